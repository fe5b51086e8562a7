// Package metrics exposes the Prometheus instrumentation of the metrics
// ingestion service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Pipeline
	eventsClassified      *prometheus.CounterVec
	eventsUnrecognized    prometheus.Counter
	eventsDuplicate       prometheus.Counter
	recordsBuilt          *prometheus.CounterVec
	validationFailures    prometheus.Counter
	serializationFailures prometheus.Counter
	alarmsReceived        prometheus.Counter
	alarmNotifyFailures   prometheus.Counter
	healthClassifications *prometheus.CounterVec

	// Store
	storeWrites  *prometheus.CounterVec
	storeErrors  *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueRejected          prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActive            prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
	httpRateLimited     *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates and registers the collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "osmetrics",
		subsystem:        "ingest",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.eventsClassified = m.counterVec("events_classified_total", "Webhook events classified by taxonomy kind", "kind")
	m.eventsUnrecognized = m.counter("events_unrecognized_total", "Webhook events outside the taxonomy")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Redelivered webhook events dropped by delivery id")
	m.recordsBuilt = m.counterVec("records_built_total", "Metric records built by variant", "variant")
	m.validationFailures = m.counter("validation_failures_total", "Events rejected while building records")
	m.serializationFailures = m.counter("serialization_failures_total", "Records or payloads that failed to encode or decode")
	m.alarmsReceived = m.counter("alarms_received_total", "Alarm notifications accepted")
	m.alarmNotifyFailures = m.counter("alarm_notify_failures_total", "Alarm notifications that could not be forwarded")
	m.healthClassifications = m.counterVec("health_classifications_total", "Health factor verdicts", "factor", "classification")

	m.storeWrites = m.counterVec("store_writes_total", "Documents upserted by record variant", "variant")
	m.storeErrors = m.counterVec("store_errors_total", "Store operations that failed", "operation")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency in milliseconds", "operation")

	m.queueSize = m.gauge("queue_size", "Jobs waiting in the ingestion queue")
	m.queueCapacity = m.gauge("queue_capacity", "Ingestion queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Jobs dequeued")
	m.queueRejected = m.counter("queue_enqueue_errors_total", "Jobs rejected because the queue was full or closed")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Time from enqueue to dequeue in milliseconds")

	m.workerCount = m.gauge("worker_count", "Workers in the pool")
	m.workerActive = m.gauge("worker_active_count", "Workers currently processing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Job processing latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Jobs that failed in a worker")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.httpRateLimited = m.counterVec("http_rate_limited_total", "Requests refused by the rate limiter", "endpoint")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordEventClassified counts a webhook event of the given kind.
func RecordEventClassified(kind string) { globalManager.eventsClassified.WithLabelValues(kind).Inc() }

// RecordEventUnrecognized counts an event outside the taxonomy.
func RecordEventUnrecognized() { globalManager.eventsUnrecognized.Inc() }

// RecordEventDuplicate counts a redelivered event.
func RecordEventDuplicate() { globalManager.eventsDuplicate.Inc() }

// RecordRecordsBuilt adds n records of a variant.
func RecordRecordsBuilt(variant string, n int) {
	globalManager.recordsBuilt.WithLabelValues(variant).Add(float64(n))
}

// RecordValidationFailure counts an event the builder rejected.
func RecordValidationFailure() { globalManager.validationFailures.Inc() }

// RecordSerializationFailure counts an encode or decode failure.
func RecordSerializationFailure() { globalManager.serializationFailures.Inc() }

// RecordAlarmReceived counts an accepted alarm.
func RecordAlarmReceived() { globalManager.alarmsReceived.Inc() }

// RecordAlarmNotifyFailure counts an alarm that could not be forwarded.
func RecordAlarmNotifyFailure() { globalManager.alarmNotifyFailures.Inc() }

// RecordHealthClassification counts a factor verdict.
func RecordHealthClassification(factor, classification string) {
	globalManager.healthClassifications.WithLabelValues(factor, classification).Inc()
}

// RecordStoreWrite counts an upserted document.
func RecordStoreWrite(variant string) { globalManager.storeWrites.WithLabelValues(variant).Inc() }

// RecordStoreError counts a failed store operation.
func RecordStoreError(operation string) { globalManager.storeErrors.WithLabelValues(operation).Inc() }

// RecordStoreLatency observes a store operation latency.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateQueueSize sets the queue backlog.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets size/capacity.
func UpdateQueueUtilization(ratio float64) { globalManager.queueUtilization.Set(ratio) }

// RecordQueueEnqueue counts an enqueued job.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeued job.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError() { globalManager.queueRejected.Inc() }

// RecordQueueProcessingLatency observes time spent queued.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the pool size.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// AddWorkerActive moves the busy-worker gauge by delta.
func AddWorkerActive(delta int) { globalManager.workerActive.Add(float64(delta)) }

// RecordWorkerProcessingLatency observes how long a job took.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordRateLimited counts a request refused by the limiter.
func RecordRateLimited(endpoint string) { globalManager.httpRateLimited.WithLabelValues(endpoint).Inc() }

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry the service metrics live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
