package health

import (
	"encoding/json"
	"fmt"
)

// Classification is the verdict for one factor.
type Classification string

// Classifications ordered from least to most severe.
const (
	NotApplicable Classification = "not-applicable"
	Healthy       Classification = "healthy"
	AtRisk        Classification = "at-risk"
	Critical      Classification = "critical"
)

func (c Classification) severity() int {
	switch c {
	case Healthy:
		return 1
	case AtRisk:
		return 2
	case Critical:
		return 3
	}
	return 0
}

// HealthRequest asks for one factor of one repository to be evaluated
// against a threshold factor.
type HealthRequest struct {
	Theme           string `json:"theme"`
	Factor          string `json:"factor"`
	FactorThreshold string `json:"factorThreshold,omitempty"`
	Index           string `json:"index,omitempty"`
	Repository      string `json:"repository"`
}

// UnmarshalJSON also accepts factor_threshold for the threshold factor.
func (r *HealthRequest) UnmarshalJSON(b []byte) error {
	type plain HealthRequest
	var v struct {
		plain
		SnakeThreshold string `json:"factor_threshold"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = HealthRequest(v.plain)
	if r.FactorThreshold == "" {
		r.FactorThreshold = v.SnakeThreshold
	}
	return nil
}

// Evaluator classifies observed factor values against thresholds.
type Evaluator struct {
	catalog *Catalog
}

// NewEvaluator returns an evaluator over catalog, or the default catalog
// when catalog is nil.
func NewEvaluator(catalog *Catalog) *Evaluator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Evaluator{catalog: catalog}
}

// Catalog returns the evaluator's catalog.
func (e *Evaluator) Catalog() *Catalog { return e.catalog }

// Evaluate classifies observed against threshold for req. Mismatched
// domains are rejected before any comparison. A value exactly on the
// threshold is healthy.
func (e *Evaluator) Evaluate(req HealthRequest, observed, threshold int64) (Classification, error) {
	f, ok := e.catalog.Factor(req.Factor)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFactor, req.Factor)
	}
	if req.FactorThreshold == "" {
		return NotApplicable, nil
	}
	t, ok := e.catalog.Threshold(req.FactorThreshold)
	if !ok {
		return "", fmt.Errorf("%w: threshold %s", ErrUnknownFactor, req.FactorThreshold)
	}
	if f.Domain != t.Domain {
		return "", fmt.Errorf("%w: %s is %s, %s is %s", ErrThresholdMismatch, f.Name, f.Domain, t.Name, t.Domain)
	}
	return classify(f, observed, threshold), nil
}

// AllowedFor returns the threshold value of req for a base count. Requests
// without a threshold factor report ok=false.
func (e *Evaluator) AllowedFor(req HealthRequest, base int64) (int64, bool, error) {
	if req.FactorThreshold == "" {
		return 0, false, nil
	}
	t, ok := e.catalog.Threshold(req.FactorThreshold)
	if !ok {
		return 0, false, fmt.Errorf("%w: threshold %s", ErrUnknownFactor, req.FactorThreshold)
	}
	return t.Allowed(base), true, nil
}

func classify(f Factor, observed, threshold int64) Classification {
	var shortfall int64
	if f.Polarity == HigherIsBetter {
		shortfall = threshold - observed
	} else {
		shortfall = observed - threshold
	}
	switch {
	case shortfall <= 0:
		return Healthy
	case shortfall <= f.Bands.tolerance(threshold):
		return AtRisk
	default:
		return Critical
	}
}
