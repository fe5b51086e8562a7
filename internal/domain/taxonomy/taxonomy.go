// Package taxonomy holds the closed set of GitHub webhook event kinds the
// ingestion pipeline understands.
package taxonomy

import (
	"fmt"
	"strings"
)

// Kind is one recognized webhook event kind. The zero value is not a member.
type Kind int

// Members in declared order. Webhook subscription registration and any
// "all events" walk depend on this order; append new kinds at the end.
const (
	IssuesOpened Kind = iota + 1
	IssuesClosed
	IssuesLabeled
	IssuesUnlabeled
	IssuesTransferred
	IssuesAssigned
	IssueCommentCreated
	PullRequestClosed
	PullRequestOpened
	PullRequestLabeled
	PullRequestUnlabeled
	PullRequestAssigned
	PullRequestReviewSubmitted
	PullRequestReviewCommentCreated
	Gollum
)

// Size is the number of taxonomy members.
const Size = int(Gollum)

// Event subjects as sent in the X-GitHub-Event header.
const (
	SubjectIssues                   = "issues"
	SubjectIssueComment             = "issue_comment"
	SubjectPullRequest              = "pull_request"
	SubjectPullRequestReview        = "pull_request_review"
	SubjectPullRequestReviewComment = "pull_request_review_comment"
	SubjectGollum                   = "gollum"
)

var wireNames = [...]string{
	IssuesOpened:                    "issues.opened",
	IssuesClosed:                    "issues.closed",
	IssuesLabeled:                   "issues.labeled",
	IssuesUnlabeled:                 "issues.unlabeled",
	IssuesTransferred:               "issues.transferred",
	IssuesAssigned:                  "issues.assigned",
	IssueCommentCreated:             "issue_comment.created",
	PullRequestClosed:               "pull_request.closed",
	PullRequestOpened:               "pull_request.opened",
	PullRequestLabeled:              "pull_request.labeled",
	PullRequestUnlabeled:            "pull_request.unlabeled",
	PullRequestAssigned:             "pull_request.assigned",
	PullRequestReviewSubmitted:      "pull_request_review.submitted",
	PullRequestReviewCommentCreated: "pull_request_review_comment.created",
	Gollum:                          "gollum",
}

var byWire = func() map[string]Kind {
	m := make(map[string]Kind, Size)
	for _, k := range All() {
		m[wireNames[k]] = k
	}
	return m
}()

// All returns every member in declared order. The slice is a fresh copy.
func All() []Kind {
	out := make([]Kind, 0, Size)
	for k := IssuesOpened; k <= Gollum; k++ {
		out = append(out, k)
	}
	return out
}

// Classify maps a wire name such as "pull_request.closed" to its member.
func Classify(wire string) (Kind, error) {
	if k, ok := byWire[wire]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnrecognizedEvent, wire)
}

// ClassifyDelivery classifies a webhook delivery from its X-GitHub-Event
// header and the payload's action field. Subjects that carry no verb, like
// gollum, classify on the subject alone.
func ClassifyDelivery(subject, action string) (Kind, error) {
	subject = strings.TrimSpace(subject)
	if k, ok := byWire[subject]; ok {
		return k, nil
	}
	if action == "" {
		return 0, fmt.Errorf("%w: %q has no action", ErrUnrecognizedEvent, subject)
	}
	return Classify(subject + "." + action)
}

// Valid reports whether k is a taxonomy member.
func (k Kind) Valid() bool { return k >= IssuesOpened && k <= Gollum }

// String returns the wire name.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return wireNames[k]
}

// Subject returns the part before the dot, e.g. "pull_request".
func (k Kind) Subject() string {
	s, _, _ := strings.Cut(k.String(), ".")
	return s
}

// Verb returns the part after the dot, or "" for verbless kinds.
func (k Kind) Verb() string {
	_, v, _ := strings.Cut(k.String(), ".")
	return v
}

// OnPullRequest reports whether the event concerns a pull request rather
// than an issue or wiki page.
func (k Kind) OnPullRequest() bool {
	return strings.HasPrefix(k.Subject(), SubjectPullRequest)
}

// OnIssue reports whether the event concerns an issue.
func (k Kind) OnIssue() bool {
	s := k.Subject()
	return s == SubjectIssues || s == SubjectIssueComment
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnrecognizedEvent, int(k))
	}
	return []byte(wireNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := Classify(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
