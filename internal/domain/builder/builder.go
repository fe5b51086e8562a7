// Package builder turns classified source events into metric records.
package builder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/codec"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/identity"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
)

// Config carries everything the builder needs; there is no package state.
type Config struct {
	// Maintainers lists the roster per repository full name. Only rostered
	// senders produce maintainer records.
	Maintainers map[string][]model.Maintainer
	Inactivity  InactivityPolicy
}

// Builder constructs records. It is safe for concurrent use.
type Builder struct {
	inactivity InactivityPolicy
	roster     map[string]map[string]model.Maintainer
}

// New returns a Builder for cfg.
func New(cfg Config) *Builder {
	b := &Builder{
		inactivity: cfg.Inactivity,
		roster:     make(map[string]map[string]model.Maintainer, len(cfg.Maintainers)),
	}
	for repo, ms := range cfg.Maintainers {
		byLogin := make(map[string]model.Maintainer, len(ms))
		for _, m := range ms {
			byLogin[strings.ToLower(m.Login)] = m
		}
		b.roster[repo] = byLogin
	}
	return b
}

// Failure is one event that could not be turned into records.
type Failure struct {
	Index      int
	DeliveryID string
	Err        error
}

// Batch is the outcome of BuildBatch.
type Batch struct {
	Records  []model.Record
	Failures []Failure
}

// Build produces the records for a single event dated now. Kinds without a
// strategy yield no records and no error.
func (b *Builder) Build(ev model.SourceEvent, now time.Time) ([]model.Record, error) {
	acc := newAccumulator()
	if err := b.apply(acc, ev, now, b.inactivity.Fixed()); err != nil {
		return nil, err
	}
	return acc.records(), nil
}

// BuildBatch builds and accumulates records for events sharing the date
// now. Records with the same id are merged: counters sum and maintainers
// keep their latest engagement. A failing event is reported in Failures and
// does not affect the others. Every rostered maintainer of a repository in
// the batch gets a composite record, inactive if it had no events.
func (b *Builder) BuildBatch(events []model.SourceEvent, now time.Time) Batch {
	activity := make(map[string]int64)
	for _, ev := range events {
		if ev.Repository != "" {
			activity[ev.Repository]++
		}
	}
	least, most := activityBounds(activity)

	acc := newAccumulator()
	var out Batch
	for i, ev := range events {
		window := b.inactivity.WindowFor(activity[ev.Repository], least, most)
		if err := b.apply(acc, ev, now, window); err != nil {
			out.Failures = append(out.Failures, Failure{Index: i, DeliveryID: ev.DeliveryID, Err: err})
		}
	}
	b.idleMaintainers(acc, activity, now)
	out.Records = acc.records()
	return out
}

// Activity builds the raw activity document for a classified event.
func (b *Builder) Activity(ev model.SourceEvent, now time.Time) (model.Record, error) {
	if !ev.Kind.Valid() {
		return model.Record{}, fmt.Errorf("%w: event kind %d", ErrValidation, int(ev.Kind))
	}
	if err := require(ev, "repository", ev.Repository); err != nil {
		return model.Record{}, err
	}
	if err := require(ev, "delivery id", ev.DeliveryID); err != nil {
		return model.Record{}, err
	}
	at := engagedAt(ev, now)
	id, err := identity.ID(identity.NewKey(ev.Repository, string(model.KindEvent), ev.DeliveryID, at))
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return model.Record{Kind: model.KindEvent, Event: &model.EventRecord{
		ID:           id,
		Organization: ev.Organization,
		Repository:   ev.Repository,
		Type:         ev.Kind.Subject(),
		Action:       ev.Kind.Verb(),
		Sender:       ev.Sender,
		CreatedAt:    at,
	}}, nil
}

// Alarm wraps an alarm notification as a pass-through record.
func (b *Builder) Alarm(a model.AlarmNotification) (model.Record, error) {
	key := identity.NewKey(a.Arn, string(model.KindAlarm), a.StateChangeTime, a.ChangedAt())
	id, err := identity.ID(key)
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: alarm: %w", ErrValidation, err)
	}
	return model.Record{Kind: model.KindAlarm, Alarm: &model.AlarmRecord{ID: id, AlarmNotification: a}}, nil
}

func (b *Builder) apply(acc *accumulator, ev model.SourceEvent, now time.Time, window time.Duration) error {
	if !ev.Kind.Valid() {
		return nil
	}
	steps := strategies[ev.Kind]
	if len(steps) == 0 {
		return nil
	}
	if err := require(ev, "repository", ev.Repository); err != nil {
		return err
	}

	day := now.UTC()
	var staged []model.Record
	for _, s := range steps {
		if s.when != nil && !s.when(ev) {
			continue
		}
		var (
			recs []model.Record
			err  error
		)
		switch s.kind {
		case stepGeneric:
			recs, err = genericRecords(ev, s.metric, day)
		case stepLabels:
			recs, err = labelRecords(ev, day)
		case stepMaintainer:
			recs, err = b.maintainerRecords(ev, day, window)
		}
		if err != nil {
			return err
		}
		staged = append(staged, recs...)
	}

	combined := make([]model.Record, 0, len(staged))
	for _, r := range staged {
		m, err := acc.combine(r)
		if err != nil {
			return fmt.Errorf("%s %s: %w", ev.Kind, ev.DeliveryID, err)
		}
		combined = append(combined, m)
	}
	for _, r := range combined {
		acc.commit(r)
	}
	return nil
}

func genericRecords(ev model.SourceEvent, metric string, day time.Time) ([]model.Record, error) {
	id, err := recordID(ev.Repository, string(model.KindGeneric), day, metric)
	if err != nil {
		return nil, err
	}
	return []model.Record{{Kind: model.KindGeneric, Generic: &model.GenericRecord{
		ID:          id,
		CurrentDate: day.Format(model.DateLayout),
		Repository:  ev.Repository,
		MetricName:  metric,
		MetricCount: codec.Of(1),
	}, Sources: []model.Source{{Delivery: sourceOf(ev)}}}}, nil
}

func labelRecords(ev model.SourceEvent, day time.Time) ([]model.Record, error) {
	out := make([]model.Record, 0, len(ev.Labels))
	for _, name := range ev.Labels {
		if err := require(ev, "label name", name); err != nil {
			return nil, err
		}
		id, err := recordID(ev.Repository, string(model.KindLabel), day, name)
		if err != nil {
			return nil, err
		}
		rec := &model.LabelRecord{
			ID:          id,
			CurrentDate: day.Format(model.DateLayout),
			Repository:  ev.Repository,
			LabelName:   name,
		}
		src := model.Source{Delivery: sourceOf(ev)}
		switch {
		case ev.Kind.OnPullRequest():
			rec.LabelPullCount = codec.Of(1)
			src.Side = model.SidePull
		case ev.Kind.OnIssue():
			rec.LabelIssueCount = codec.Of(1)
			src.Side = model.SideIssue
		}
		out = append(out, model.Record{Kind: model.KindLabel, Label: rec, Sources: []model.Source{src}})
	}
	return out, nil
}

func (b *Builder) maintainerRecords(ev model.SourceEvent, day time.Time, window time.Duration) ([]model.Record, error) {
	if err := require(ev, "sender login", ev.Sender); err != nil {
		return nil, err
	}
	m, ok := b.roster[ev.Repository][strings.ToLower(ev.Sender)]
	if !ok {
		return nil, nil
	}
	at := engagedAt(ev, day)
	engagement := model.MaintainerEngagement{
		EventType:   ev.Kind.Subject(),
		EventAction: ev.Kind.Verb(),
		LastEngaged: at,
		Inactive:    Inactive(at, day, window),
	}
	perSubject, err := maintainerRecord(ev.Repository, m, engagement, day)
	if err != nil {
		return nil, err
	}
	engagement.EventType = AllEventTypes
	engagement.EventAction = ev.Kind.String()
	composite, err := maintainerRecord(ev.Repository, m, engagement, day)
	if err != nil {
		return nil, err
	}
	return []model.Record{perSubject, composite}, nil
}

func maintainerRecord(repo string, m model.Maintainer, e model.MaintainerEngagement, day time.Time) (model.Record, error) {
	id, err := recordID(repo, string(model.KindMaintainer), day, m.Login, e.EventType)
	if err != nil {
		return model.Record{}, err
	}
	rec := &model.MaintainerRecord{
		ID:          id,
		CurrentDate: day.Format(model.DateLayout),
		Repository:  repo,
		Name:        m.Name,
		GithubLogin: m.Login,
		Affiliation: m.Affiliation,
		EventType:   e.EventType,
		EventAction: e.EventAction,
		Inactive:    e.Inactive,
	}
	if e.Engaged() {
		t := e.LastEngaged
		rec.TimeLastEngaged = &t
	}
	return model.Record{Kind: model.KindMaintainer, Maintainer: rec}, nil
}

// idleMaintainers adds an inactive composite record for every rostered
// maintainer of a batch repository that produced no composite record.
func (b *Builder) idleMaintainers(acc *accumulator, activity map[string]int64, now time.Time) {
	day := now.UTC()
	repos := make([]string, 0, len(activity))
	for repo := range activity {
		repos = append(repos, repo)
	}
	sort.Strings(repos)

	for _, repo := range repos {
		byLogin := b.roster[repo]
		logins := make([]string, 0, len(byLogin))
		for l := range byLogin {
			logins = append(logins, l)
		}
		sort.Strings(logins)
		for _, l := range logins {
			rec, err := maintainerRecord(repo, byLogin[l], model.MaintainerEngagement{EventType: AllEventTypes, Inactive: true}, day)
			if err != nil {
				continue
			}
			if !acc.has(rec.ID()) {
				acc.commit(rec)
			}
		}
	}
}

func recordID(repo, kind string, day time.Time, discriminators ...string) (string, error) {
	id, err := identity.ID(identity.Key{Repository: repo, Kind: kind, Discriminators: discriminators, Date: day})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return id, nil
}

func require(ev model.SourceEvent, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s missing on %s %s", ErrValidation, field, ev.Kind, ev.DeliveryID)
	}
	return nil
}

// sourceOf names the delivery behind ev. Events without a delivery id are
// named by a digest of their identifying fields.
func sourceOf(ev model.SourceEvent) string {
	if id := strings.TrimSpace(ev.DeliveryID); id != "" {
		return id
	}
	key := fmt.Sprintf("%s|%s|%s|%d|%s", ev.Kind, ev.Repository, ev.Sender, ev.Number, ev.CreatedAt.UTC().Format(time.RFC3339Nano))
	return "event:" + uuid.NewSHA1(identity.Namespace(), []byte(key)).String()
}

func engagedAt(ev model.SourceEvent, fallback time.Time) time.Time {
	if ev.CreatedAt.IsZero() {
		return fallback.UTC()
	}
	return ev.CreatedAt.UTC()
}

func activityBounds(activity map[string]int64) (least, most int64) {
	first := true
	for _, n := range activity {
		if first || n < least {
			least = n
		}
		if first || n > most {
			most = n
		}
		first = false
	}
	return least, most
}
