package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/mq/queue"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

// GitHub delivery headers.
const (
	HeaderEvent    = "X-GitHub-Event"
	HeaderDelivery = "X-GitHub-Delivery"
)

// WebhookHandler accepts GitHub deliveries and queues them for ingestion.
type WebhookHandler struct {
	deps         Dependencies
	maxBodyBytes int64
	now          func() time.Time
	logger       logger.Logger
}

// HandleDelivery handles POST /webhooks/github.
func (h *WebhookHandler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	const op = "api.webhook"
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	event := strings.TrimSpace(r.Header.Get(HeaderEvent))
	delivery := strings.TrimSpace(r.Header.Get(HeaderDelivery))
	switch {
	case event == "":
		writeError(w, fmt.Errorf("%s: %w: missing %s header", op, ErrBadRequest, HeaderEvent))
		return
	case delivery == "":
		writeError(w, fmt.Errorf("%s: %w: missing %s header", op, ErrBadRequest, HeaderDelivery))
		return
	}

	// Sent once when the hook is created.
	if event == "ping" {
		writeJSON(w, http.StatusOK, ackResponse{Status: "pong", ID: delivery})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}

	if h.deps.SeenAndRecord(r.Context(), delivery) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, ID: delivery})
		return
	}

	job := queue.Job{Event: event, DeliveryID: delivery, Body: body, Received: h.now()}
	if err := h.deps.Enqueue(r.Context(), job); err != nil {
		// Let the sender redeliver.
		h.deps.Unrecord(r.Context(), delivery)
		if !errors.Is(err, queue.ErrFull) && !errors.Is(err, queue.ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		h.logger.Warn(r.Context(), "delivery not queued",
			logger.String("delivery", delivery), logger.String("event", event), logger.Error(err))
		writeError(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: delivery})
}
