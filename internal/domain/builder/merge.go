package builder

import (
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/codec"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
)

// Merge folds next into prev when both carry the same id: generic counts
// sum, label counts sum per side, and maintainers keep the later
// engagement. Other variants, and records of different kinds, resolve to
// next.
//
// When next carries Sources, only sources prev has not counted contribute,
// one each on their side, so folding the same delivery twice changes
// nothing. A next without Sources is added as is.
func Merge(prev, next model.Record) (model.Record, error) {
	if prev.Kind != next.Kind {
		return next, nil
	}
	switch next.Kind {
	case model.KindGeneric, model.KindLabel:
		if len(next.Sources) == 0 {
			out, err := sum(prev, next)
			if err != nil {
				return model.Record{}, err
			}
			out.Sources = prev.Sources
			return out, nil
		}
		fresh := unseen(prev.Sources, next.Sources)
		if len(fresh) == 0 {
			return prev, nil
		}
		out, err := sum(prev, delta(next, fresh))
		if err != nil {
			return model.Record{}, err
		}
		out.Sources = append(append([]model.Source(nil), prev.Sources...), fresh...)
		return out, nil
	case model.KindMaintainer:
		if later(prev.Maintainer, next.Maintainer) {
			return prev, nil
		}
		return next, nil
	}
	return next, nil
}

// Recount returns rec with its counts derived from its distinct sources.
// Records without sources, and other variants, are returned unchanged.
func Recount(rec model.Record) model.Record {
	if len(rec.Sources) == 0 || (rec.Kind != model.KindGeneric && rec.Kind != model.KindLabel) {
		return rec
	}
	sources := unseen(nil, rec.Sources)
	out := delta(rec, sources)
	out.Sources = sources
	return out
}

func sum(prev, next model.Record) (model.Record, error) {
	switch next.Kind {
	case model.KindGeneric:
		c, err := codec.Add(prev.Generic.MetricCount, next.Generic.MetricCount)
		if err != nil {
			return model.Record{}, err
		}
		g := *prev.Generic
		g.MetricCount = c
		return model.Record{Kind: next.Kind, Generic: &g}, nil
	case model.KindLabel:
		issues, err := codec.Add(prev.Label.LabelIssueCount, next.Label.LabelIssueCount)
		if err != nil {
			return model.Record{}, err
		}
		pulls, err := codec.Add(prev.Label.LabelPullCount, next.Label.LabelPullCount)
		if err != nil {
			return model.Record{}, err
		}
		l := *prev.Label
		l.LabelIssueCount, l.LabelPullCount = issues, pulls
		return model.Record{Kind: next.Kind, Label: &l}, nil
	}
	return next, nil
}

// unseen returns the sources of next missing from counted, without repeats.
func unseen(counted, next []model.Source) []model.Source {
	seen := make(map[model.Source]struct{}, len(counted)+len(next))
	for _, s := range counted {
		seen[s] = struct{}{}
	}
	var out []model.Source
	for _, s := range next {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// delta is the contribution of sources to rec: one per source on its side.
// Sides without a source stay null.
func delta(rec model.Record, sources []model.Source) model.Record {
	counts := make(map[model.Side]int64, 2)
	for _, s := range sources {
		counts[s.Side]++
	}
	of := func(side model.Side) codec.Count {
		if n := counts[side]; n > 0 {
			return codec.Of(n)
		}
		return codec.Null()
	}
	switch rec.Kind {
	case model.KindGeneric:
		g := *rec.Generic
		g.MetricCount = of(model.SideNone)
		return model.Record{Kind: rec.Kind, Generic: &g}
	case model.KindLabel:
		l := *rec.Label
		l.LabelIssueCount, l.LabelPullCount = of(model.SideIssue), of(model.SidePull)
		return model.Record{Kind: rec.Kind, Label: &l}
	}
	return rec
}

// Accumulates reports whether records of kind are merged rather than
// replaced when written twice.
func Accumulates(kind model.RecordKind) bool {
	switch kind {
	case model.KindGeneric, model.KindLabel, model.KindMaintainer:
		return true
	}
	return false
}

// GenericID is the id of the generic record counting metric for repository
// on day.
func GenericID(repository, metric string, day time.Time) (string, error) {
	return recordID(repository, string(model.KindGeneric), day.UTC(), metric)
}

// later reports whether x engaged strictly after y.
func later(x, y *model.MaintainerRecord) bool {
	switch {
	case x.TimeLastEngaged == nil:
		return false
	case y.TimeLastEngaged == nil:
		return true
	}
	return x.TimeLastEngaged.After(*y.TimeLastEngaged)
}
