// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/mq/queue"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/health"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
	Enqueue(ctx context.Context, j queue.Job) error

	IngestAlarm(ctx context.Context, body []byte) (model.Record, error)

	Evaluate(req health.HealthRequest, observed, threshold int64) (health.Classification, error)
	EvaluateHealth(ctx context.Context, repo, theme string, day time.Time) (health.Report, error)
	StoredReport(ctx context.Context, repo, theme string, day time.Time) (health.Report, error)

	Started() bool
	QueueLen(ctx context.Context) int
}

// Server wires HTTP routes for the ingestion API.
type Server struct {
	deps         Dependencies
	limiter      *Limiter
	maxBodyBytes int64
	now          func() time.Time
	logger       logger.Logger

	webhooks *WebhookHandler
	alarms   *AlarmHandler
	health   *HealthHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:         deps,
		maxBodyBytes: defaultMaxBodyBytes,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.webhooks = &WebhookHandler{deps: deps, maxBodyBytes: s.maxBodyBytes, now: s.now, logger: s.logger}
	s.alarms = &AlarmHandler{deps: deps, maxBodyBytes: s.maxBodyBytes, logger: s.logger}
	s.health = &HealthHandler{deps: deps, now: s.now}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.health.HandleHealthz, "healthz"))
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/webhooks/github",
		MetricsMiddleware(RateLimitMiddleware(s.limiter, s.webhooks.HandleDelivery, "webhooks"), "webhooks"))
	mux.HandleFunc("/alarms",
		MetricsMiddleware(RateLimitMiddleware(s.limiter, s.alarms.HandleAlarm, "alarms"), "alarms"))
	mux.HandleFunc("/health/evaluate", MetricsMiddleware(s.health.HandleEvaluate, "health_evaluate"))
	mux.HandleFunc("/health/report", MetricsMiddleware(s.health.HandleReport, "health_report"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	ID        string `json:"id,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status its kind maps to.
func writeError(w http.ResponseWriter, err error) {
	status, code := errorKind(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	for _, m := range methods {
		w.Header().Add("Allow", m)
	}
	writeError(w, ErrMethodNotAllowed)
	return false
}
