// Package loadgen drives a running server with synthetic GitHub deliveries
// and checks that the stored counts add up.
package loadgen

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrInvalidConfig wraps every configuration error.
var ErrInvalidConfig = errors.New("invalid load test config")

// ErrMismatch is returned when stored counts differ from what was sent.
var ErrMismatch = errors.New("stored counts do not match deliveries")

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // server address, e.g. http://localhost:9080
	Deliveries int           // unique deliveries to send
	Duplicates int           // redeliveries of already sent ids
	Workers    int           // concurrent senders
	Repository string        // repository full name written into payloads
	Timeout    time.Duration // per request
	Settle     time.Duration // how long to wait for counts to converge
	Seed       uint64        // generator seed; runs with one seed send the same mix
}

// Validate checks c.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is empty", ErrInvalidConfig)
	case c.Deliveries < 1:
		return fmt.Errorf("%w: deliveries must be positive", ErrInvalidConfig)
	case c.Duplicates < 0 || c.Duplicates > c.Deliveries:
		return fmt.Errorf("%w: duplicates must be between 0 and deliveries", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.Repository == "":
		return fmt.Errorf("%w: repository is empty", ErrInvalidConfig)
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("%w: base url: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Stats summarises a run.
type Stats struct {
	Generated  int           `json:"generated" yaml:"generated"`
	Accepted   int64         `json:"accepted" yaml:"accepted"`
	Duplicates int64         `json:"duplicates" yaml:"duplicates"`
	Failed     int64         `json:"failed" yaml:"failed"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	// Expected and Observed are per metric name.
	Expected map[string]int64 `json:"expected" yaml:"expected"`
	Observed map[string]int64 `json:"observed" yaml:"observed"`
}
