// Package health classifies repository health from observed factor values
// and their thresholds.
package health

import (
	"fmt"
	"math"
)

// Domain names the units a factor is measured in. A factor is only
// comparable to a threshold of the same domain.
type Domain string

// Domains used by the default catalog.
const (
	DomainIssues Domain = "issues"
	DomainPulls  Domain = "pulls"
	DomainAudit  Domain = "audit"
	DomainRepo   Domain = "repo"
)

// Polarity says which direction of a factor is good.
type Polarity int

const (
	// LowerIsBetter factors are healthy at or below their threshold.
	LowerIsBetter Polarity = iota + 1
	// HigherIsBetter factors are healthy at or above their threshold.
	HigherIsBetter
)

func (p Polarity) String() string {
	switch p {
	case LowerIsBetter:
		return "lower-is-better"
	case HigherIsBetter:
		return "higher-is-better"
	}
	return fmt.Sprintf("Polarity(%d)", int(p))
}

// Bands splits an unhealthy factor into at-risk and critical. A shortfall
// up to the larger of Absolute and Ratio*threshold is at-risk; anything
// beyond is critical.
type Bands struct {
	Absolute int64
	Ratio    float64
}

func (b Bands) tolerance(threshold int64) int64 {
	rel := int64(math.Ceil(b.Ratio * math.Abs(float64(threshold))))
	if b.Absolute > rel {
		return b.Absolute
	}
	return rel
}

// Factor is a named, comparable health signal.
type Factor struct {
	Name        string
	FullName    string
	Description string
	Domain      Domain
	Polarity    Polarity
	Bands       Bands
	// Metric is the generic metric_name holding the observed value.
	Metric string
}

// Threshold is the allowed value for a factor, either fixed or a fraction
// of a base metric.
type Threshold struct {
	Name     string
	FullName string
	Domain   Domain
	Fraction float64
	Fixed    int64
	// BaseMetric is the generic metric_name the fraction applies to.
	BaseMetric string
}

// Allowed returns the threshold value for base. Fractions round half away
// from zero.
func (t Threshold) Allowed(base int64) int64 {
	if t.Fraction == 0 {
		return t.Fixed
	}
	return int64(math.Round(t.Fraction * float64(base)))
}
