package builder

import "github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"

// accumulator merges records sharing an id, preserving first-seen order.
type accumulator struct {
	order []string
	byID  map[string]model.Record
}

func newAccumulator() *accumulator {
	return &accumulator{byID: make(map[string]model.Record)}
}

func (a *accumulator) has(id string) bool {
	_, ok := a.byID[id]
	return ok
}

// combine returns r merged with any record already held under its id. It
// does not modify the accumulator.
func (a *accumulator) combine(r model.Record) (model.Record, error) {
	prev, ok := a.byID[r.ID()]
	if !ok {
		return r, nil
	}
	return Merge(prev, r)
}

func (a *accumulator) commit(r model.Record) {
	id := r.ID()
	if _, ok := a.byID[id]; !ok {
		a.order = append(a.order, id)
	}
	a.byID[id] = r
}

func (a *accumulator) records() []model.Record {
	out := make([]model.Record, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.byID[id])
	}
	return out
}
