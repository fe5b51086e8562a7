package notify

import (
	"net/http"

	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

// Option configures a Webhook.
type Option func(*Webhook)

// WithChannel sets the target channel.
func WithChannel(channel string) Option {
	return func(w *Webhook) { w.channel = channel }
}

// WithUsername sets the display name of the poster.
func WithUsername(username string) Option {
	return func(w *Webhook) { w.username = username }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(w *Webhook) {
		if c != nil {
			w.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Webhook) {
		if l != nil {
			w.logger = l
		}
	}
}
