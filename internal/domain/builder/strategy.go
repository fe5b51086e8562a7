package builder

import (
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/taxonomy"
)

// Generic metric names as stored in metric_name.
const (
	MetricCreatedIssues          = "Created Issues"
	MetricClosedIssues           = "Closed Issues"
	MetricUnlabelledIssues       = "Unlabelled Issues"
	MetricUntriagedIssues        = "Untriaged Issues"
	MetricIssueComments          = "Issue Comments"
	MetricCreatedPullRequests    = "Created Pull Requests"
	MetricPullRequestsMerged     = "Pull Requests Merged"
	MetricUnlabelledPullRequests = "Unlabelled Pull Requests"
	MetricPullRequestReviews     = "Pull Request Reviews"
	MetricPullComments           = "Pull Comments"
)

// AllEventTypes is the event_type of the composite maintainer record.
const AllEventTypes = "All"

const untriagedLabel = "untriaged"

type stepKind int

const (
	stepGeneric stepKind = iota + 1
	stepLabels
	stepMaintainer
)

// step is one record-construction strategy. when, if set, gates the step on
// the event's content.
type step struct {
	kind   stepKind
	metric string
	when   func(model.SourceEvent) bool
}

func generic(metric string) step { return step{kind: stepGeneric, metric: metric} }

func genericIf(metric string, when func(model.SourceEvent) bool) step {
	return step{kind: stepGeneric, metric: metric, when: when}
}

var (
	labels     = step{kind: stepLabels}
	maintainer = step{kind: stepMaintainer}
)

func merged(ev model.SourceEvent) bool    { return ev.Merged }
func unlabelled(ev model.SourceEvent) bool { return len(ev.Labels) == 0 }

func hasLabel(name string) func(model.SourceEvent) bool {
	return func(ev model.SourceEvent) bool {
		for _, l := range ev.Labels {
			if l == name {
				return true
			}
		}
		return false
	}
}

// strategies maps every taxonomy member to the records it produces. A member
// with an empty entry is recognized but unscored. Adding a member to the
// taxonomy requires an entry here; the package tests enforce it.
var strategies = [taxonomy.Size + 1][]step{
	taxonomy.IssuesOpened: {
		generic(MetricCreatedIssues),
		genericIf(MetricUnlabelledIssues, unlabelled),
		genericIf(MetricUntriagedIssues, hasLabel(untriagedLabel)),
		labels,
		maintainer,
	},
	taxonomy.IssuesClosed:      {generic(MetricClosedIssues), maintainer},
	taxonomy.IssuesLabeled:     {labels, maintainer},
	taxonomy.IssuesUnlabeled:   {maintainer},
	taxonomy.IssuesTransferred: {},
	taxonomy.IssuesAssigned:    {maintainer},
	taxonomy.IssueCommentCreated: {
		generic(MetricIssueComments),
		maintainer,
	},
	taxonomy.PullRequestClosed: {
		genericIf(MetricPullRequestsMerged, merged),
		labels,
		maintainer,
	},
	taxonomy.PullRequestOpened: {
		generic(MetricCreatedPullRequests),
		genericIf(MetricUnlabelledPullRequests, unlabelled),
		labels,
		maintainer,
	},
	taxonomy.PullRequestLabeled:              {labels, maintainer},
	taxonomy.PullRequestUnlabeled:            {maintainer},
	taxonomy.PullRequestAssigned:             {maintainer},
	taxonomy.PullRequestReviewSubmitted:      {generic(MetricPullRequestReviews), maintainer},
	taxonomy.PullRequestReviewCommentCreated: {generic(MetricPullComments), maintainer},
	taxonomy.Gollum:                          {},
}

// Scored reports whether events of kind k produce any record at all.
func Scored(k taxonomy.Kind) bool {
	return k.Valid() && len(strategies[k]) > 0
}

// mapped reports whether k has an entry in the strategy table, even an
// empty one. Used by tests to keep the table exhaustive.
func mapped(k taxonomy.Kind) bool {
	return k.Valid() && strategies[k] != nil
}

// Produces reports whether any strategy writes the generic metric.
func Produces(metric string) bool {
	for _, steps := range strategies {
		for _, s := range steps {
			if s.kind == stepGeneric && s.metric == metric {
				return true
			}
		}
	}
	return false
}
