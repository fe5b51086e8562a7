package api

import (
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

// GitHub caps webhook payloads at 25 MB.
const defaultMaxBodyBytes = 25 << 20

// Option configures a Server.
type Option func(*Server)

// WithRateLimit limits webhook and alarm requests per client. A
// non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) { s.limiter = NewLimiter(perSecond, burst) }
}

// WithMaxBodyBytes caps accepted request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the receive timestamp and the default report day.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}
