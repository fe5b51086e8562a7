package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

// AlarmHandler accepts CloudWatch alarm notifications.
type AlarmHandler struct {
	deps         Dependencies
	maxBodyBytes int64
	logger       logger.Logger
}

// HandleAlarm handles POST /alarms.
func (h *AlarmHandler) HandleAlarm(w http.ResponseWriter, r *http.Request) {
	const op = "api.alarm"
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	rec, err := h.deps.IngestAlarm(r.Context(), body)
	if err != nil {
		h.logger.Warn(r.Context(), "alarm rejected", logger.Error(err))
		writeError(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: rec.ID()})
}
