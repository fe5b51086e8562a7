package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/codec"
)

// DateLayout is the current_date format shared by all records.
const DateLayout = "2006-01-02"

// RecordKind tags the variant held by a Record.
type RecordKind string

// Record variants.
const (
	KindGeneric    RecordKind = "generic"
	KindLabel      RecordKind = "label"
	KindMaintainer RecordKind = "maintainer"
	KindAlarm      RecordKind = "alarm"
	KindEvent      RecordKind = "event"
)

// GenericRecord counts a named metric for a repository and day.
type GenericRecord struct {
	ID          string      `json:"id"`
	CurrentDate string      `json:"current_date"`
	Repository  string      `json:"repository"`
	MetricName  string      `json:"metric_name"`
	MetricCount codec.Count `json:"metric_count"`
}

// LabelRecord counts issues and pull requests bearing a label. Each side
// stays null until an event for it is observed.
type LabelRecord struct {
	ID              string      `json:"id"`
	CurrentDate     string      `json:"current_date"`
	Repository      string      `json:"repository"`
	LabelName       string      `json:"label_name"`
	LabelIssueCount codec.Count `json:"label_issue_count"`
	LabelPullCount  codec.Count `json:"label_pull_count"`
}

// MaintainerRecord tracks a maintainer's latest engagement.
type MaintainerRecord struct {
	ID              string     `json:"id"`
	CurrentDate     string     `json:"current_date"`
	Repository      string     `json:"repository"`
	Name            string     `json:"name"`
	GithubLogin     string     `json:"github_login"`
	Affiliation     string     `json:"affiliation"`
	EventType       string     `json:"event_type"`
	EventAction     string     `json:"event_action"`
	TimeLastEngaged *time.Time `json:"time_last_engaged"`
	Inactive        bool       `json:"inactive"`
}

// EventRecord is the raw activity document kept for every classified event.
type EventRecord struct {
	ID           string    `json:"id"`
	Organization string    `json:"organization"`
	Repository   string    `json:"repository"`
	Type         string    `json:"type"`
	Action       string    `json:"action"`
	Sender       string    `json:"sender"`
	CreatedAt    time.Time `json:"created_at"`
}

// AlarmRecord is an alarm passed through unchanged plus its document id.
type AlarmRecord struct {
	ID string `json:"-"`
	AlarmNotification
}

// Side is the label counter a source counted on. Generic records have a
// single counter and use SideNone.
type Side string

// Counter sides.
const (
	SideNone  Side = ""
	SideIssue Side = "issue"
	SidePull  Side = "pull"
)

// Source is one delivery counted into a counting record. Each source adds
// exactly one to its side.
type Source struct {
	Delivery string `json:"delivery"`
	Side     Side   `json:"side,omitempty"`
}

// Record is the tagged union handed to the store. Exactly one variant
// pointer is set and it matches Kind.
type Record struct {
	Kind       RecordKind
	Generic    *GenericRecord
	Label      *LabelRecord
	Maintainer *MaintainerRecord
	Alarm      *AlarmRecord
	Event      *EventRecord

	// Sources lists the deliveries behind a generic or label count. It is
	// not part of the document body.
	Sources []Source
}

// ID returns the document id of the held variant.
func (r Record) ID() string {
	switch r.Kind {
	case KindGeneric:
		return r.Generic.ID
	case KindLabel:
		return r.Label.ID
	case KindMaintainer:
		return r.Maintainer.ID
	case KindAlarm:
		return r.Alarm.ID
	case KindEvent:
		return r.Event.ID
	}
	return ""
}

// Repository returns the repository a record belongs to, or "" for alarms.
func (r Record) Repository() string {
	switch r.Kind {
	case KindGeneric:
		return r.Generic.Repository
	case KindLabel:
		return r.Label.Repository
	case KindMaintainer:
		return r.Maintainer.Repository
	case KindEvent:
		return r.Event.Repository
	}
	return ""
}

// Date is the day the record is filed under.
func (r Record) Date() time.Time {
	var s string
	switch r.Kind {
	case KindGeneric:
		s = r.Generic.CurrentDate
	case KindLabel:
		s = r.Label.CurrentDate
	case KindMaintainer:
		s = r.Maintainer.CurrentDate
	case KindAlarm:
		return r.Alarm.ChangedAt()
	case KindEvent:
		return r.Event.CreatedAt
	}
	t, _ := time.Parse(DateLayout, s)
	return t
}

// MarshalJSON encodes only the held variant with its declared field set.
func (r Record) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindGeneric:
		return marshalVariant(r.Kind, r.Generic)
	case KindLabel:
		return marshalVariant(r.Kind, r.Label)
	case KindMaintainer:
		return marshalVariant(r.Kind, r.Maintainer)
	case KindAlarm:
		return marshalVariant(r.Kind, r.Alarm)
	case KindEvent:
		return marshalVariant(r.Kind, r.Event)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRecord, r.Kind)
}

func marshalVariant[T any](kind RecordKind, v *T) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: %s variant is nil", ErrUnknownRecord, kind)
	}
	return json.Marshal(v)
}

// DecodeRecord is the inverse of Record.MarshalJSON for a stored document.
// Alarm ids are not part of the body and are taken from id.
func DecodeRecord(kind RecordKind, id string, body []byte) (Record, error) {
	r := Record{Kind: kind}
	var err error
	switch kind {
	case KindGeneric:
		r.Generic, err = unmarshalVariant[GenericRecord](body)
	case KindLabel:
		r.Label, err = unmarshalVariant[LabelRecord](body)
	case KindMaintainer:
		r.Maintainer, err = unmarshalVariant[MaintainerRecord](body)
	case KindEvent:
		r.Event, err = unmarshalVariant[EventRecord](body)
	case KindAlarm:
		r.Alarm, err = unmarshalVariant[AlarmRecord](body)
		if err == nil {
			r.Alarm.ID = id
			err = r.Alarm.validate()
		}
	default:
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownRecord, kind)
	}
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

func unmarshalVariant[T any](body []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return v, nil
}
