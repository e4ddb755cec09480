// Package metrics provides Prometheus metrics for the fulbito service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Balancing
	balanceJobs         *prometheus.CounterVec
	balanceCombinations prometheus.Counter
	balanceTruncated    prometheus.Counter
	balanceLatency      prometheus.Histogram
	balanceRosterSize   prometheus.Histogram

	// Matches
	matchesSaved     prometheus.Counter
	matchesDuplicate prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount  prometheus.Gauge
	workerBusy   prometheus.Gauge
	jobsTracked  prometheus.Gauge
	workerErrors prometheus.Counter

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

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out of /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fulbito",
		subsystem:        "balancer",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.balanceJobs = m.counterVec("jobs_total", "Balance jobs by final outcome", "outcome")
	m.balanceCombinations = m.counter("combinations_examined_total", "Team combinations enumerated by the balancer")
	m.balanceTruncated = m.counter("results_truncated_total", "Balance runs stopped by the combination ceiling")
	m.balanceLatency = m.histogram("latency_milliseconds", "Wall time of a single balance run", m.histogramBuckets)
	m.balanceRosterSize = m.histogram("roster_size", "Number of players per balance request", []float64{4, 10, 12, 16, 22, 32})

	m.matchesSaved = m.counter("matches_saved_total", "Matches persisted from a chosen split")
	m.matchesDuplicate = m.counter("matches_duplicate_total", "Match saves rejected by the idempotency key")

	m.queueSize = m.gauge("queue_size", "Current number of queued balance jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued balance jobs")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs accepted by the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Jobs handed to workers")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Jobs refused by the queue", "reason")

	m.workerCount = m.gauge("worker_count", "Configured number of balance workers")
	m.workerBusy = m.gauge("worker_busy", "Workers currently running a job")
	m.jobsTracked = m.gauge("jobs_tracked", "Jobs currently held in the job store")
	m.workerErrors = m.counter("worker_errors_total", "Jobs that ended with an error")

	auto := promauto.With(m.registry)
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})
}

// RecordBalanceJob counts a finished job by outcome (done, failed, cancelled, rejected).
func RecordBalanceJob(outcome string) {
	globalManager.balanceJobs.WithLabelValues(outcome).Inc()
}

// RecordCombinationsExamined adds to the enumerated combinations counter.
func RecordCombinationsExamined(n int) {
	globalManager.balanceCombinations.Add(float64(n))
}

// RecordBalanceTruncated counts a run stopped by the combination ceiling.
func RecordBalanceTruncated() {
	globalManager.balanceTruncated.Inc()
}

// RecordBalanceLatency records the duration of one balance run in milliseconds.
func RecordBalanceLatency(latencyMs float64) {
	globalManager.balanceLatency.Observe(latencyMs)
}

// RecordRosterSize records the roster size of a balance request.
func RecordRosterSize(n int) {
	globalManager.balanceRosterSize.Observe(float64(n))
}

// RecordMatchSaved counts a persisted match.
func RecordMatchSaved() {
	globalManager.matchesSaved.Inc()
}

// RecordMatchDuplicate counts a match save skipped by the idempotency key.
func RecordMatchDuplicate() {
	globalManager.matchesDuplicate.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets queue size over capacity.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a job handed to a worker.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a refused job.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// IncWorkerBusy marks a worker as running a job.
func IncWorkerBusy() {
	globalManager.workerBusy.Inc()
}

// DecWorkerBusy marks a worker as idle again.
func DecWorkerBusy() {
	globalManager.workerBusy.Dec()
}

// UpdateJobsTracked sets the number of jobs held in the job store.
func UpdateJobsTracked(count int) {
	globalManager.jobsTracked.Set(float64(count))
}

// RecordWorkerError counts a job that ended in error.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap bytes.
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

// GetRegistry returns the registry backing the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
