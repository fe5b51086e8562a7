package builder

import (
	"math"
	"time"
)

// Day is one calendar day.
const Day = 24 * time.Hour

// InactivityPolicy decides when a maintainer counts as inactive. With
// MinWindow and MaxWindow both set, the window shrinks linearly from
// MaxWindow for the least active repository to MinWindow for the most active
// one. Otherwise Window applies to every repository.
type InactivityPolicy struct {
	Window    time.Duration
	MinWindow time.Duration
	MaxWindow time.Duration
}

// DefaultInactivityPolicy scales between 90 and 365 days.
func DefaultInactivityPolicy() InactivityPolicy {
	return InactivityPolicy{
		Window:    365 * Day,
		MinWindow: 90 * Day,
		MaxWindow: 365 * Day,
	}
}

// Scaled reports whether the window depends on repository activity.
func (p InactivityPolicy) Scaled() bool {
	return p.MinWindow > 0 && p.MaxWindow >= p.MinWindow
}

// Fixed returns the window used when no activity comparison is available.
func (p InactivityPolicy) Fixed() time.Duration {
	if p.Window > 0 {
		return p.Window
	}
	return p.MaxWindow
}

// WindowFor returns the staleness window for a repository with activity
// events, given the least and most active repositories seen alongside it.
// When all repositories are equally active the slope is undefined and the
// shortest window applies.
func (p InactivityPolicy) WindowFor(activity, least, most int64) time.Duration {
	if !p.Scaled() {
		return p.Fixed()
	}
	if most == least {
		return p.MinWindow
	}
	lo, hi := float64(p.MinWindow), float64(p.MaxWindow)
	w := hi + (lo-hi)*float64(activity-least)/float64(most-least)
	w = math.Max(lo, math.Min(hi, w))
	return time.Duration(math.Round(w/float64(Day))) * Day
}

// Inactive reports whether last is older than window at now. A maintainer
// with no recorded engagement is inactive.
func Inactive(last, now time.Time, window time.Duration) bool {
	if last.IsZero() {
		return true
	}
	return last.Before(now.Add(-window))
}
