// Package metrics provides Prometheus metrics for the salle club service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Club activity
	boutsRecorded      *prometheus.CounterVec
	boutsRejected      *prometheus.CounterVec
	boutsUpdated       prometheus.Counter
	boutsDeleted       prometheus.Counter
	fencersRegistered  prometheus.Counter
	idempotentReplays  prometheus.Counter
	aggregationLatency *prometheus.HistogramVec

	// Client state store
	statePhase           prometheus.Gauge
	stateFencers         prometheus.Gauge
	stateBouts           prometheus.Gauge
	stateSessions        prometheus.Gauge
	stateRefreshDuration prometheus.Histogram
	stateRefreshes       *prometheus.CounterVec
	stateRollbacks       prometheus.Counter

	// Record store
	recordStoreLatency *prometheus.HistogramVec
	recordStoreErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Change queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Live push
	liveClients    prometheus.Gauge
	liveBroadcasts *prometheus.CounterVec

	// Auth and export
	authAttempts *prometheus.CounterVec
	exports      *prometheus.CounterVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "salle",
		subsystem:        "club",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.boutsRecorded = m.counterVec("bouts_recorded_total", "Bouts accepted by the record store, by source", "source")
	m.boutsRejected = m.counterVec("bouts_rejected_total", "Bout submissions rejected by validation, by reason", "reason")
	m.boutsUpdated = m.counter("bouts_updated_total", "Bouts whose scores or notes were edited")
	m.boutsDeleted = m.counter("bouts_deleted_total", "Bouts deleted")
	m.fencersRegistered = m.counter("fencers_registered_total", "Fencers registered")
	m.idempotentReplays = m.counter("idempotent_replays_total", "Bout submissions dropped as replays of an idempotency key")
	m.aggregationLatency = m.histogramVec("aggregation_latency_milliseconds", "Latency of derived view computation", "view")

	m.statePhase = m.gauge("state_phase", "Client state store phase (0 idle, 1 loading, 2 ready, 3 failed)")
	m.stateFencers = m.gauge("state_fencers", "Fencers held by the client state store")
	m.stateBouts = m.gauge("state_bouts", "Bouts held by the client state store")
	m.stateSessions = m.gauge("state_sessions", "Sessions held by the client state store")
	m.stateRefreshDuration = m.histogram("state_refresh_duration_milliseconds", "Duration of a full state refresh", m.histogramBuckets)
	m.stateRefreshes = m.counterVec("state_refreshes_total", "State refreshes by outcome", "outcome")
	m.stateRollbacks = m.counter("state_rollbacks_total", "Tentative writes rolled back after a remote failure")

	m.recordStoreLatency = m.histogramVec("record_store_latency_milliseconds", "Record store call latency", "op")
	m.recordStoreErrors = m.counterVec("record_store_errors_total", "Record store call failures", "op")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = m.gauge("queue_size", "Pending change notifications")
	m.queueCapacity = m.gauge("queue_capacity", "Change queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Change queue utilization (0-1)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Change notifications enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Change notifications dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Change notifications dropped on enqueue")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency", m.histogramBuckets)

	m.workerActiveCount = m.gauge("worker_active_count", "Change workers running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Change handling latency", m.histogramBuckets)
	m.workerErrorRate = m.counter("worker_errors_total", "Change handler failures")

	m.liveClients = m.gauge("live_clients", "Connected websocket clients")
	m.liveBroadcasts = m.counterVec("live_broadcasts_total", "Messages pushed to websocket rooms", "room")

	m.authAttempts = m.counterVec("auth_attempts_total", "Authentication attempts by method and outcome", "method", "outcome")
	m.exports = m.counterVec("exports_total", "CSV exports by outcome", "outcome")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordBoutRecorded counts an accepted bout; source is "manual" or "simulated".
func RecordBoutRecorded(source string) {
	globalManager.boutsRecorded.WithLabelValues(source).Inc()
}

// RecordBoutRejected counts a validation rejection.
func RecordBoutRejected(reason string) {
	globalManager.boutsRejected.WithLabelValues(reason).Inc()
}

// RecordBoutUpdated counts an edited bout.
func RecordBoutUpdated() {
	globalManager.boutsUpdated.Inc()
}

// RecordBoutDeleted counts a deleted bout.
func RecordBoutDeleted() {
	globalManager.boutsDeleted.Inc()
}

// RecordFencersRegistered adds n registered fencers.
func RecordFencersRegistered(n int) {
	globalManager.fencersRegistered.Add(float64(n))
}

// RecordIdempotentReplay counts a dropped replay.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// RecordAggregationLatency records how long a derived view took.
func RecordAggregationLatency(view string, latencyMs float64) {
	globalManager.aggregationLatency.WithLabelValues(view).Observe(latencyMs)
}

// UpdateStatePhase sets the store phase gauge.
func UpdateStatePhase(phase int) {
	globalManager.statePhase.Set(float64(phase))
}

// UpdateStateSizes sets the store collection gauges.
func UpdateStateSizes(fencers, bouts, sessions int) {
	globalManager.stateFencers.Set(float64(fencers))
	globalManager.stateBouts.Set(float64(bouts))
	globalManager.stateSessions.Set(float64(sessions))
}

// RecordStateRefresh records a refresh outcome and duration.
func RecordStateRefresh(outcome string, durationMs float64) {
	globalManager.stateRefreshes.WithLabelValues(outcome).Inc()
	globalManager.stateRefreshDuration.Observe(durationMs)
}

// RecordStateRollback counts a rolled back tentative write.
func RecordStateRollback() {
	globalManager.stateRollbacks.Inc()
}

// RecordRecordStoreCall records the latency of a record store operation and whether it failed.
func RecordRecordStoreCall(op string, latencyMs float64, failed bool) {
	globalManager.recordStoreLatency.WithLabelValues(op).Observe(latencyMs)
	if failed {
		globalManager.recordStoreErrors.WithLabelValues(op).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records change handling latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// UpdateLiveClients sets the number of websocket clients.
func UpdateLiveClients(count int) {
	globalManager.liveClients.Set(float64(count))
}

// RecordLiveBroadcast counts a message pushed to a room.
func RecordLiveBroadcast(room string) {
	globalManager.liveBroadcasts.WithLabelValues(room).Inc()
}

// RecordAuthAttempt counts an authentication attempt.
func RecordAuthAttempt(method, outcome string) {
	globalManager.authAttempts.WithLabelValues(method, outcome).Inc()
}

// RecordExport counts an export run.
func RecordExport(outcome string) {
	globalManager.exports.WithLabelValues(outcome).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Since returns the elapsed milliseconds since start.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
