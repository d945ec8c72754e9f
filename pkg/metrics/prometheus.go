// Package metrics provides Prometheus metrics for the vibo rating service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ratingDeltaBuckets covers |delta| for K up to 64.
var ratingDeltaBuckets = []float64{1, 2, 4, 8, 16, 24, 32, 40, 48, 56, 64}

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    prometheus.Labels
	registry       prometheus.Registerer

	// Rating pipeline
	matchesSubmitted  prometheus.Counter
	matchesDuplicate  prometheus.Counter
	matchesRejected   *prometheus.CounterVec
	matchesRecorded   prometheus.Counter
	matchLatency      prometheus.Histogram
	ratingDelta       *prometheus.HistogramVec
	ratingFloorHits   prometheus.Counter
	playersTotal      prometheus.Gauge
	recomputeRuns     *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	recomputeFailures prometheus.Counter

	// Store
	storeWriteLatency prometheus.Histogram
	storeReadLatency  prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount      prometheus.Gauge
	workerLatency    prometheus.Histogram
	workerErrors     prometheus.Counter
	workerThroughput prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // avoids default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "vibo",
		subsystem:      "elo",
		latencyBuckets: prometheus.DefBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.matchesSubmitted = m.counter("matches_submitted_total", "Matches accepted for rating")
	m.matchesDuplicate = m.counter("matches_duplicate_total", "Match submissions ignored as duplicates")
	m.matchesRejected = m.counterVec("matches_rejected_total", "Match submissions rejected before rating", "reason")
	m.matchesRecorded = m.counter("matches_recorded_total", "Matches rated and persisted")
	m.matchLatency = m.histogram("match_record_latency_milliseconds", "Time to rate and persist one match", m.latencyBuckets)
	m.ratingDelta = m.histogramVec("rating_delta_points", "Absolute rating change per player and match", ratingDeltaBuckets, "k_factor")
	m.ratingFloorHits = m.counter("rating_floor_hits_total", "Rating updates clamped to the floor")
	m.playersTotal = m.gauge("players_total", "Players known to the service")
	m.recomputeRuns = m.counterVec("recompute_runs_total", "Recomputation runs by mode and outcome", "mode", "outcome")
	m.recomputeDuration = m.histogram("recompute_duration_milliseconds", "Recomputation wall time", m.latencyBuckets)
	m.recomputeFailures = m.counter("recompute_match_failures_total", "Historical matches that failed during replay")

	m.storeWriteLatency = m.histogram("store_write_latency_milliseconds", "Store write latency", m.latencyBuckets)
	m.storeReadLatency = m.histogram("store_read_latency_milliseconds", "Store read latency", m.latencyBuckets)

	m.queueSize = m.gauge("queue_size", "Matches waiting to be rated")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size / capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Matches enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Matches dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Enqueue failures", "reason")

	m.workerCount = m.gauge("worker_count", "Rating workers running")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency", m.latencyBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Worker processing errors")
	m.workerThroughput = m.gauge("worker_matches_per_second", "Average matches rated per second")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", m.latencyBuckets, "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordMatchSubmitted counts a match accepted into the queue.
func RecordMatchSubmitted() { globalManager.matchesSubmitted.Inc() }

// RecordMatchDuplicate counts a duplicate submission.
func RecordMatchDuplicate() { globalManager.matchesDuplicate.Inc() }

// RecordMatchRejected counts a rejected submission by reason.
func RecordMatchRejected(reason string) { globalManager.matchesRejected.WithLabelValues(reason).Inc() }

// RecordMatchRecorded counts a rated and persisted match and its latency.
func RecordMatchRecorded(latencyMs float64) {
	globalManager.matchesRecorded.Inc()
	globalManager.matchLatency.Observe(latencyMs)
}

// RecordRatingDelta observes one player's absolute rating change.
func RecordRatingDelta(kFactor string, delta int) {
	if delta < 0 {
		delta = -delta
	}
	globalManager.ratingDelta.WithLabelValues(kFactor).Observe(float64(delta))
}

// RecordRatingFloorHit counts a rating clamped to the floor.
func RecordRatingFloorHit() { globalManager.ratingFloorHits.Inc() }

// UpdatePlayersTotal sets the number of known players.
func UpdatePlayersTotal(n int) { globalManager.playersTotal.Set(float64(n)) }

// RecordRecompute records one recomputation run.
func RecordRecompute(mode, outcome string, durationMs float64, failures int) {
	globalManager.recomputeRuns.WithLabelValues(mode, outcome).Inc()
	globalManager.recomputeDuration.Observe(durationMs)
	globalManager.recomputeFailures.Add(float64(failures))
}

// RecordStoreWriteLatency observes a store write.
func RecordStoreWriteLatency(latencyMs float64) { globalManager.storeWriteLatency.Observe(latencyMs) }

// RecordStoreReadLatency observes a store read.
func RecordStoreReadLatency(latencyMs float64) { globalManager.storeReadLatency.Observe(latencyMs) }

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a failed enqueue by reason.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency observes one processed match.
func RecordWorkerProcessingLatency(latencyMs float64) { globalManager.workerLatency.Observe(latencyMs) }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// UpdateWorkerThroughput sets the average matches rated per second.
func UpdateWorkerThroughput(rate float64) { globalManager.workerThroughput.Set(rate) }

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry holding the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
