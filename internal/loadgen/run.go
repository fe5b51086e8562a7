package loadgen

import (
	"context"
	"fmt"
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/builder"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/health"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

const pollInterval = 200 * time.Millisecond

// verified are the metrics the community theme reports, by factor.
var verified = map[string]string{
	health.FactorIssuesCreated: builder.MetricCreatedIssues,
	health.FactorIssuesClosed:  builder.MetricClosedIssues,
	health.FactorPullsCreated:  builder.MetricCreatedPullRequests,
	health.FactorPullsMerged:   builder.MetricPullRequestsMerged,
	health.FactorPullComments:  builder.MetricPullComments,
}

// Run checks the server is up, sends the generated deliveries, then polls
// the community health report until its counts match or cfg.Settle runs
// out.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	log := logger.Get().Named("loadgen")
	start := time.Now()
	c := newClient(cfg.BaseURL, cfg.Timeout)

	if err := c.healthy(ctx); err != nil {
		return Stats{}, fmt.Errorf("service health check failed: %w", err)
	}

	ds, expected, err := Generate(cfg, start)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Generated: len(ds), Expected: make(map[string]int64)}
	for _, m := range verified {
		st.Expected[m] = expected[m]
	}
	log.Info(ctx, "sending deliveries",
		logger.Int("deliveries", cfg.Deliveries),
		logger.Int("duplicates", cfg.Duplicates),
		logger.Int("workers", cfg.Workers),
		logger.String("repository", cfg.Repository),
	)

	if err := c.submit(ctx, cfg.Workers, ds, &st); err != nil {
		return st, fmt.Errorf("submit: %w", err)
	}
	log.Info(ctx, "deliveries sent",
		logger.Int64("accepted", st.Accepted),
		logger.Int64("duplicates", st.Duplicates),
		logger.Int64("failed", st.Failed),
	)

	err = settle(ctx, c, cfg, &st)
	st.Duration = time.Since(start)
	return st, err
}

func settle(ctx context.Context, c *client, cfg Config, st *Stats) error {
	wait := cfg.Settle
	if wait <= 0 {
		wait = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		r, err := c.report(ctx, cfg.Repository, health.ThemeCommunityHealth)
		if err == nil {
			st.Observed = observed(r)
			if matches(st.Expected, st.Observed) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("%w: %w", ErrMismatch, err)
			}
			return fmt.Errorf("%w: expected %v, observed %v", ErrMismatch, st.Expected, st.Observed)
		case <-ticker.C:
		}
	}
}

func observed(r health.Report) map[string]int64 {
	out := make(map[string]int64)
	for _, th := range r.Themes {
		for _, res := range th.Factors {
			if m, ok := verified[res.Request.Factor]; ok {
				out[m] = res.Observed
			}
		}
	}
	return out
}

func matches(expected, observed map[string]int64) bool {
	for m, n := range expected {
		if observed[m] != n {
			return false
		}
	}
	return true
}
