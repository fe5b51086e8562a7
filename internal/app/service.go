// Package service wires the ingestion pipeline behind the HTTP API and the
// command line.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/mq/queue"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/mq/worker"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/notify"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/repository"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/builder"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/dedupe"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/health"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/identity"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/metrics"
)

const (
	stopTimeout = 30 * time.Second

	// reportKind tags stored health reports.
	reportKind model.RecordKind = "health"
)

// DefaultIndexNames are the stock index names.
var DefaultIndexNames = repository.IndexNamer{
	General:          "opensearch_general_metrics",
	Label:            "opensearch_label_metrics",
	MaintainerPrefix: "maintainer-inactivity",
	EventPrefix:      "github-user-activity-events",
	Alarm:            "cloudwatch-alarms",
	Health:           "opensearch_health",
}

// Service owns the pipeline: deduper, queue, worker pool, builder, writer,
// evaluator and notifier.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	names     repository.IndexNamer
	writer    *repository.Writer
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	builder   *builder.Builder
	catalog   *health.Catalog
	evaluator *health.Evaluator
	notifier  notify.Notifier

	workerCount int
	queueSize   int
	dedupeSize  int
	builderCfg  builder.Config
	now         func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a Service. Storage and evaluation are usable right away;
// Start is only needed for queued webhook ingestion.
func New(opts ...Option) *Service {
	s := &Service{
		names:       DefaultIndexNames,
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10_000,
		dedupeSize:  100_000,
		builderCfg:  builder.Config{Inactivity: builder.DefaultInactivityPolicy()},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.notifier == nil {
		s.notifier = notify.Discard{}
	}
	s.writer = repository.NewWriter(s.store, s.names)
	s.builder = builder.New(s.builderCfg)
	s.evaluator = health.NewEvaluator(s.catalog)
	s.catalog = s.evaluator.Catalog()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start launches the queue and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.builder, s.writer,
		worker.WithLogger(s.logger),
		worker.WithClock(s.now),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "ingestion service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
	)
	return nil
}

// Stop drains the queue, waits for the workers and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.started {
		shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		defer cancel()
		if err := s.pool.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		s.started = false
	}
	if err := s.store.Close(); err != nil && !errors.Is(err, repository.ErrClosed) {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.logger.Info(ctx, "ingestion service stopped")
	return errors.Join(errs...)
}

// Started reports whether the worker pool is running.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// SeenAndRecord reports whether a delivery id was seen before and records it
// if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord forgets a delivery id so a redelivery is accepted.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Enqueue hands a delivery to the worker pool.
func (s *Service) Enqueue(ctx context.Context, j queue.Job) error {
	s.mu.RLock()
	q := s.queue
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	if j.Received.IsZero() {
		j.Received = s.now()
	}
	return q.Enqueue(ctx, j)
}

// QueueLen is the number of deliveries waiting.
func (s *Service) QueueLen(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.queue == nil {
		return 0
	}
	return s.queue.Len(ctx)
}

// Ingest builds and writes the records of one event synchronously.
func (s *Service) Ingest(ctx context.Context, ev model.SourceEvent) (int, error) {
	now := s.now()
	recs, err := s.builder.Build(ev, now)
	if err != nil {
		metrics.RecordValidationFailure()
		return 0, err
	}
	act, err := s.builder.Activity(ev, now)
	if err != nil {
		return 0, err
	}
	return s.writer.Write(ctx, append(recs, act))
}

// IngestBatch builds records for events as one batch filed under day and
// writes them together with each event's activity document. A zero day
// means now. Failed events are returned alongside the write outcome.
func (s *Service) IngestBatch(ctx context.Context, events []model.SourceEvent, day time.Time) (int, []builder.Failure, error) {
	if day.IsZero() {
		day = s.now()
	}
	batch := s.builder.BuildBatch(events, day)
	failed := make(map[int]struct{}, len(batch.Failures))
	for _, f := range batch.Failures {
		failed[f.Index] = struct{}{}
	}

	recs := batch.Records
	for i, ev := range events {
		if _, ok := failed[i]; ok {
			continue
		}
		act, err := s.builder.Activity(ev, day)
		if err != nil {
			batch.Failures = append(batch.Failures, builder.Failure{Index: i, DeliveryID: ev.DeliveryID, Err: err})
			continue
		}
		recs = append(recs, act)
	}
	for range batch.Failures {
		metrics.RecordValidationFailure()
	}
	n, err := s.writer.Write(ctx, recs)
	return n, batch.Failures, err
}

// IngestAlarm stores an alarm and forwards it. A forwarding failure is
// logged and does not fail the call.
func (s *Service) IngestAlarm(ctx context.Context, body []byte) (model.Record, error) {
	a, err := model.ParseAlarm(body)
	if err != nil {
		metrics.RecordValidationFailure()
		return model.Record{}, err
	}
	metrics.RecordAlarmReceived()

	rec, err := s.builder.Alarm(a)
	if err != nil {
		return model.Record{}, err
	}
	if _, err := s.writer.Write(ctx, []model.Record{rec}); err != nil {
		return model.Record{}, err
	}
	if err := s.notifier.Notify(ctx, a); err != nil {
		s.logger.Warn(ctx, "alarm stored but not forwarded", logger.String("alarm", a.Name), logger.Error(err))
	}
	return rec, nil
}

// Lookup returns a stored record.
func (s *Service) Lookup(ctx context.Context, index, id string) (model.Record, error) {
	return s.writer.Lookup(ctx, index, id)
}

// Catalog is the health catalog in use.
func (s *Service) Catalog() *health.Catalog { return s.catalog }

// Evaluate classifies an explicit observed/threshold pair.
func (s *Service) Evaluate(req health.HealthRequest, observed, threshold int64) (health.Classification, error) {
	c, err := s.evaluator.Evaluate(req, observed, threshold)
	if err != nil {
		return "", err
	}
	metrics.RecordHealthClassification(req.Factor, string(c))
	return c, nil
}

// EvaluateHealth scores repository on day from the stored generic counts.
// Observed values come from each factor's metric; thresholds are derived
// from the base metric of the threshold factor. Factors whose metric no
// event produces are not applicable. The report is stored in
// the health index.
func (s *Service) EvaluateHealth(ctx context.Context, repo, theme string, day time.Time) (health.Report, error) {
	reqs, err := s.catalog.Requests(theme, repo)
	if err != nil {
		return health.Report{}, err
	}

	results := make([]health.Result, 0, len(reqs))
	for _, req := range reqs {
		res, err := s.evaluateStored(ctx, req, day)
		if err != nil {
			return health.Report{}, err
		}
		results = append(results, res)
	}

	report := s.catalog.BuildReport(repo, results)
	report.Date = day.UTC().Format(model.DateLayout)
	if err := s.saveReport(ctx, theme, day, report); err != nil {
		return health.Report{}, err
	}
	return report, nil
}

// StoredReport returns a report saved by EvaluateHealth.
func (s *Service) StoredReport(ctx context.Context, repo, theme string, day time.Time) (health.Report, error) {
	id, err := reportID(repo, theme, day)
	if err != nil {
		return health.Report{}, err
	}
	doc, err := s.store.Get(ctx, s.names.Health, id)
	if err != nil {
		return health.Report{}, err
	}
	var r health.Report
	if err := json.Unmarshal(doc.Body, &r); err != nil {
		return health.Report{}, fmt.Errorf("%w: report %s: %w", repository.ErrSerialization, id, err)
	}
	return r, nil
}

func (s *Service) evaluateStored(ctx context.Context, req health.HealthRequest, day time.Time) (health.Result, error) {
	f, ok := s.catalog.Factor(req.Factor)
	if !ok {
		return health.Result{}, fmt.Errorf("%w: %s", health.ErrUnknownFactor, req.Factor)
	}
	if !builder.Produces(f.Metric) {
		return health.Result{Request: req, FullName: f.FullName, Classification: health.NotApplicable}, nil
	}
	observed, err := s.metricCount(ctx, req.Repository, f.Metric, day)
	if err != nil {
		return health.Result{}, err
	}
	res := health.Result{Request: req, FullName: f.FullName, Observed: observed, Classification: health.NotApplicable}

	var base int64
	if t, ok := s.catalog.Threshold(req.FactorThreshold); ok && t.BaseMetric != "" {
		if !builder.Produces(t.BaseMetric) {
			return res, nil
		}
		if base, err = s.metricCount(ctx, req.Repository, t.BaseMetric, day); err != nil {
			return health.Result{}, err
		}
	}
	allowed, ok, err := s.evaluator.AllowedFor(req, base)
	if err != nil {
		return health.Result{}, err
	}
	if !ok {
		return res, nil
	}
	if res.Classification, err = s.Evaluate(req, observed, allowed); err != nil {
		return health.Result{}, err
	}
	res.Threshold = &allowed
	return res, nil
}

// metricCount reads the stored generic count; a missing record counts zero.
func (s *Service) metricCount(ctx context.Context, repo, metric string, day time.Time) (int64, error) {
	if metric == "" {
		return 0, nil
	}
	id, err := builder.GenericID(repo, metric, day)
	if err != nil {
		return 0, err
	}
	rec, err := s.writer.Lookup(ctx, s.names.General, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, err
	case rec.Generic == nil:
		return 0, nil
	}
	return rec.Generic.MetricCount.Value, nil
}

func (s *Service) saveReport(ctx context.Context, theme string, day time.Time, r health.Report) error {
	id, err := reportID(r.Repository, theme, day)
	if err != nil {
		return err
	}
	body, err := json.Marshal(r)
	if err != nil {
		metrics.RecordSerializationFailure()
		return fmt.Errorf("%w: report %s: %w", repository.ErrSerialization, id, err)
	}
	return s.writer.Put(ctx, repository.Document{
		Index:      s.names.Health,
		ID:         id,
		Kind:       reportKind,
		Repository: r.Repository,
		Date:       r.Date,
		Body:       body,
	})
}

func reportID(repo, theme string, day time.Time) (string, error) {
	if theme == "" {
		theme = "all"
	}
	return identity.ID(identity.NewKey(repo, string(reportKind), theme, day))
}

// ParseDay parses a YYYY-MM-DD day; empty means today.
func (s *Service) ParseDay(v string) (time.Time, error) {
	if v == "" {
		return s.now().UTC(), nil
	}
	t, err := time.Parse(model.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, v)
	}
	return t, nil
}

// Stats is a point-in-time view for monitoring.
type Stats struct {
	Started     bool  `json:"started"`
	Workers     int   `json:"workers"`
	QueueLength int   `json:"queue_length"`
	QueueSize   int   `json:"queue_size"`
	Deduped     int64 `json:"dedupe_entries"`
}

// GetStats returns service statistics and refreshes the matching gauges.
func (s *Service) GetStats(ctx context.Context) Stats {
	st := Stats{
		Started:   s.Started(),
		Workers:   s.workerCount,
		QueueSize: s.queueSize,
		Deduped:   s.deduper.Size(),
	}
	st.QueueLength = s.QueueLen(ctx)
	if st.Started {
		metrics.UpdateQueueSize(st.QueueLength)
		metrics.UpdateWorkerCount(st.Workers)
	}
	return st
}
