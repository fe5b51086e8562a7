// Package notify forwards alarm notifications to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/metrics"
)

// ErrDelivery wraps every failed post.
var ErrDelivery = errors.New("notification delivery failed")

// Notifier delivers an alarm somewhere.
type Notifier interface {
	Notify(ctx context.Context, a model.AlarmNotification) error
}

// message is the chat webhook body. The alarm JSON is passed through as the
// message content.
type message struct {
	Channel   string `json:"channel"`
	Username  string `json:"username"`
	Content   string `json:"Content"`
	IconEmoji string `json:"icon_emoji"`
}

// Webhook posts alarms to a URL.
type Webhook struct {
	url      string
	channel  string
	username string
	client   *http.Client
	logger   logger.Logger
}

// NewWebhook returns a notifier posting to url.
func NewWebhook(url string, opts ...Option) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("notify")
	}
	return w
}

func (w *Webhook) Notify(ctx context.Context, a model.AlarmNotification) error {
	content, err := json.Marshal(a)
	if err != nil {
		metrics.RecordSerializationFailure()
		return fmt.Errorf("%w: encode alarm: %w", ErrDelivery, err)
	}
	body, err := json.Marshal(message{Channel: w.channel, Username: w.username, Content: string(content)})
	if err != nil {
		return fmt.Errorf("%w: encode message: %w", ErrDelivery, err)
	}
	if err := w.post(ctx, body); err != nil {
		metrics.RecordAlarmNotifyFailure()
		w.logger.Error(ctx, "alarm delivery failed", logger.String("alarm", a.Name), logger.Error(err))
		return err
	}
	w.logger.Debug(ctx, "alarm delivered", logger.String("alarm", a.Name))
	return nil
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: http post: %w", ErrDelivery, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: webhook returned HTTP %d", ErrDelivery, resp.StatusCode)
	}
	return nil
}

// Discard drops every alarm. It is used when no webhook is configured.
type Discard struct{}

func (Discard) Notify(context.Context, model.AlarmNotification) error { return nil }
