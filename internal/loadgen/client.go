package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/http/api"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/health"
)

type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &client{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: timeout}}
}

func (c *client) do(ctx context.Context, method, path string, body []byte, header http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	return resp.StatusCode, b, nil
}

func (c *client) healthy(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("healthz returned HTTP %d", status)
	}
	return nil
}

// submit sends every delivery with workers concurrent senders.
func (c *client) submit(ctx context.Context, workers int, ds []Delivery, st *Stats) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, d := range ds {
		g.Go(func() error {
			h := http.Header{}
			h.Set(api.HeaderEvent, d.Event)
			h.Set(api.HeaderDelivery, d.ID)
			status, body, err := c.do(ctx, http.MethodPost, "/webhooks/github", d.Body, h)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				atomic.AddInt64(&st.Failed, 1)
				return nil
			}
			switch status {
			case http.StatusAccepted:
				atomic.AddInt64(&st.Accepted, 1)
			case http.StatusOK:
				var ack struct {
					Duplicate bool `json:"duplicate"`
				}
				if json.Unmarshal(body, &ack) == nil && ack.Duplicate {
					atomic.AddInt64(&st.Duplicates, 1)
					return nil
				}
				atomic.AddInt64(&st.Failed, 1)
			default:
				atomic.AddInt64(&st.Failed, 1)
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *client) report(ctx context.Context, repo, theme string) (health.Report, error) {
	body, err := json.Marshal(map[string]string{"repository": repo, "theme": theme})
	if err != nil {
		return health.Report{}, err
	}
	status, resp, err := c.do(ctx, http.MethodPost, "/health/report", body, nil)
	if err != nil {
		return health.Report{}, err
	}
	if status != http.StatusOK {
		return health.Report{}, fmt.Errorf("health report returned HTTP %d: %s", status, resp)
	}
	var r health.Report
	if err := json.Unmarshal(resp, &r); err != nil {
		return health.Report{}, fmt.Errorf("decode health report: %w", err)
	}
	return r, nil
}
