package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/health"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/metrics"
)

// MetricsHandler serves the custom Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}

// HealthHandler serves liveness and repository health evaluation.
type HealthHandler struct {
	deps Dependencies
	now  func() time.Time
}

type healthzResponse struct {
	Status      string `json:"status"`
	Started     bool   `json:"started"`
	QueueLength int    `json:"queue_length"`
}

// HandleHealthz handles GET /healthz. It reports 503 until the workers run.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	resp := healthzResponse{Status: "ok", Started: h.deps.Started(), QueueLength: h.deps.QueueLen(r.Context())}
	status := http.StatusOK
	if !resp.Started {
		resp.Status = "starting"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

type evaluateRequest struct {
	Request   health.HealthRequest `json:"request"`
	Observed  int64                `json:"observed"`
	Threshold int64                `json:"threshold"`
}

type evaluateResponse struct {
	Request        health.HealthRequest  `json:"request"`
	Classification health.Classification `json:"classification"`
}

// HandleEvaluate handles POST /health/evaluate with explicit values.
func (h *HealthHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.health_evaluate"
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	c, err := h.deps.Evaluate(req.Request, req.Observed, req.Threshold)
	if err != nil {
		writeError(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Request: req.Request, Classification: c})
}

type reportRequest struct {
	Repository string `json:"repository"`
	Theme      string `json:"theme"`
	Date       string `json:"date"`
}

// HandleReport handles /health/report. POST evaluates from stored counts and
// saves the report; GET returns a saved report.
func (h *HealthHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.health_report"
	if !allowMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	var req reportRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
			return
		}
	} else {
		q := r.URL.Query()
		req = reportRequest{Repository: q.Get("repository"), Theme: q.Get("theme"), Date: q.Get("date")}
	}
	if req.Repository == "" {
		writeError(w, fmt.Errorf("%s: %w: repository is required", op, ErrBadRequest))
		return
	}
	day, err := h.parseDay(req.Date)
	if err != nil {
		writeError(w, fmt.Errorf("%s: %w", op, err))
		return
	}

	var report health.Report
	if r.Method == http.MethodPost {
		report, err = h.deps.EvaluateHealth(r.Context(), req.Repository, req.Theme, day)
	} else {
		report, err = h.deps.StoredReport(r.Context(), req.Repository, req.Theme, day)
	}
	if err != nil {
		writeError(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *HealthHandler) parseDay(v string) (time.Time, error) {
	if v == "" {
		return h.now().UTC(), nil
	}
	t, err := time.Parse(model.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrBadRequest, v)
	}
	return t, nil
}
