package api

import (
	"errors"
	"net/http"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/mq/queue"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/repository"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/builder"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/codec"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/health"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrBackpressure     = errors.New("backpressure")
	ErrUnavailable      = errors.New("service unavailable")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrRateLimited      = errors.New("rate limited")
)

// errorKind maps an error to a status code and a stable code string.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, queue.ErrFull), errors.Is(err, ErrBackpressure):
		return http.StatusServiceUnavailable, "backpressure"
	case errors.Is(err, queue.ErrClosed), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, health.ErrThresholdMismatch):
		return http.StatusUnprocessableEntity, "threshold_mismatch"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, codec.ErrPrecisionLoss), errors.Is(err, repository.ErrSerialization):
		return http.StatusInternalServerError, "serialization"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrMalformedPayload),
		errors.Is(err, model.ErrInvalidAlarm),
		errors.Is(err, builder.ErrValidation),
		errors.Is(err, health.ErrUnknownFactor),
		errors.Is(err, health.ErrUnknownTheme):
		return http.StatusBadRequest, "bad_request"
	}
	return http.StatusInternalServerError, "internal"
}
