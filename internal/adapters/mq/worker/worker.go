// Package worker drains the ingestion queue: each job is parsed, classified,
// built into records and written to the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/mq/queue"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/taxonomy"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Queue is where workers read jobs from.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Builder turns a classified event into records.
type Builder interface {
	Build(ev model.SourceEvent, now time.Time) ([]model.Record, error)
	Activity(ev model.SourceEvent, now time.Time) (model.Record, error)
}

// Writer persists records.
type Writer interface {
	Write(ctx context.Context, recs []model.Record) (int, error)
}

// Worker processes jobs until its queue closes.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker is a single queue consumer.
type InMemoryWorker struct {
	queue   Queue
	builder Builder
	writer  Writer
	name    string
	now     func() time.Time

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, b Builder, w Writer, opts ...Option) *InMemoryWorker {
	wk := &InMemoryWorker{
		queue:    q,
		builder:  b,
		writer:   w,
		name:     "worker",
		now:      time.Now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(wk)
	}
	if wk.logger == nil {
		wk.logger = logger.Get().Named("worker")
	}
	wk.logger = wk.logger.With(logger.String("worker", wk.name))
	return wk
}

// Run consumes jobs until ctx is done, Shutdown is called or the queue
// closes.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.Process(ctx, j); err != nil {
				metrics.RecordWorkerError()
				w.logger.Error(ctx, "job failed",
					logger.String("delivery", j.DeliveryID),
					logger.String("event", j.Event),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker and waits for the current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Process ingests one job. Events outside the taxonomy are counted and
// skipped without error.
func (w *InMemoryWorker) Process(ctx context.Context, j queue.Job) error {
	start := time.Now()
	metrics.AddWorkerActive(1)
	defer func() {
		metrics.AddWorkerActive(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	ev, err := model.ParseWebhook(j.Event, j.DeliveryID, j.Body)
	switch {
	case errors.Is(err, taxonomy.ErrUnrecognizedEvent):
		metrics.RecordEventUnrecognized()
		w.logger.Debug(ctx, "skipping unrecognized event", logger.String("event", j.Event), logger.String("delivery", j.DeliveryID))
		return nil
	case err != nil:
		metrics.RecordValidationFailure()
		return fmt.Errorf("parse %s: %w", j.DeliveryID, err)
	}
	metrics.RecordEventClassified(ev.Kind.String())

	now := w.now()
	recs, buildErr := w.builder.Build(ev, now)
	if activity, err := w.builder.Activity(ev, now); err == nil {
		recs = append(recs, activity)
	} else if buildErr == nil {
		buildErr = err
	}
	if buildErr != nil {
		metrics.RecordValidationFailure()
		if len(recs) == 0 {
			return fmt.Errorf("build %s: %w", ev.Kind, buildErr)
		}
		w.logger.Warn(ctx, "partial build", logger.String("delivery", j.DeliveryID), logger.Error(buildErr))
	}

	written, err := w.writer.Write(ctx, recs)
	countBuilt(recs)
	if err != nil {
		return fmt.Errorf("write %s: %d of %d stored: %w", j.DeliveryID, written, len(recs), err)
	}
	w.logger.Debug(ctx, "job ingested",
		logger.String("delivery", j.DeliveryID),
		logger.String("kind", ev.Kind.String()),
		logger.Int("records", written),
	)
	return nil
}

func countBuilt(recs []model.Record) {
	byKind := make(map[model.RecordKind]int, 4)
	for _, r := range recs {
		byKind[r.Kind]++
	}
	for k, n := range byKind {
		metrics.RecordRecordsBuilt(string(k), n)
	}
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers sharing q, b and w. Options apply to
// every worker.
func NewPool(workerCount int, q Queue, b Builder, w Writer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
	}
	for i := range p.workers {
		wopts := make([]Option, 0, len(opts)+1)
		wopts = append(wopts, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, b, w, wopts...)
	}
	p.logger = p.workers[0].logger.Named("worker-pool")
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, wk := range p.workers {
		go wk.Run(ctx)
	}
}

// Shutdown closes the queue so workers drain what is left, then waits for
// them up to the context deadline or poolShutdownTimeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, wk := range p.workers {
		select {
		case <-wk.done:
		case <-shutdownCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
