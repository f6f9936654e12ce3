// Package metrics provides Prometheus metrics for the vendor matching service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Matching
	rebuildsTotal   *prometheus.CounterVec
	rebuildLatency  prometheus.Histogram
	matchOutcomes   *prometheus.CounterVec
	candidatesFound prometheus.Histogram
	notifications   *prometheus.CounterVec

	// SLA
	slaChecks       prometheus.Counter
	slaBreaches     prometheus.Counter
	slaFlagged      prometheus.Counter
	slaSweepErrors  prometheus.Counter
	slaSweepLatency prometheus.Histogram

	// Refresh batches
	refreshRuns      *prometheus.CounterVec
	refreshProjects  *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	refreshInFlight  prometheus.Gauge
	refreshQueued    prometheus.Gauge
	refreshWorkers   prometheus.Gauge
	refreshLastUnix  prometheus.Gauge
	schedulerSkipped *prometheus.CounterVec

	// Repository
	repositoryLatency *prometheus.HistogramVec
	repositoryErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "xpand",
		subsystem:        "matching",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.rebuildsTotal = m.counterVec("rebuilds_total", "Project match rebuilds by result", "result")
	m.rebuildLatency = m.histogram("rebuild_latency_milliseconds", "Latency of one project rebuild in milliseconds", m.histogramBuckets)
	m.matchOutcomes = m.counterVec("match_outcomes_total", "Candidate outcomes during rebuilds", "outcome")
	m.candidatesFound = m.histogram("candidates_per_rebuild", "Candidate vendors discovered per rebuild",
		[]float64{0, 1, 2, 5, 10, 25, 50, 100, 250})
	m.notifications = m.counterVec("notifications_total", "Notifications by kind and result", "kind", "result")

	m.slaChecks = m.counter("sla_checks_total", "Matches evaluated by SLA sweeps")
	m.slaBreaches = m.counter("sla_breaches_total", "Matches found past their vendor SLA")
	m.slaFlagged = m.counter("sla_vendors_flagged_total", "Vendors newly flagged as SLA expired")
	m.slaSweepErrors = m.counter("sla_sweep_errors_total", "Per-pair failures during SLA sweeps")
	m.slaSweepLatency = m.histogram("sla_sweep_latency_milliseconds", "SLA sweep duration in milliseconds", m.histogramBuckets)

	m.refreshRuns = m.counterVec("refresh_runs_total", "Refresh runs by trigger result", "result")
	m.refreshProjects = m.counterVec("refresh_projects_total", "Projects processed by refresh runs", "result")
	m.refreshDuration = m.histogram("refresh_duration_seconds", "Duration of a full refresh run in seconds",
		[]float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600})
	m.refreshInFlight = m.gauge("refresh_in_flight", "Projects currently being rebuilt by the refresh pool")
	m.refreshQueued = m.gauge("refresh_queue_depth", "Projects waiting in the refresh queue")
	m.refreshWorkers = m.gauge("refresh_workers", "Configured refresh worker count")
	m.refreshLastUnix = m.gauge("refresh_last_success_unix", "Unix time of the last completed refresh run")
	m.schedulerSkipped = m.counterVec("scheduler_skipped_total", "Job firings skipped because the previous run was still active", "job")

	m.repositoryLatency = m.histogramVec("repository_latency_milliseconds", "Repository operation latency in milliseconds", "operation")
	m.repositoryErrors = m.counterVec("repository_errors_total", "Repository operation failures", "operation")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
}

// RecordRebuild records one rebuild outcome ("ok", "not_found", "error") and its latency.
func RecordRebuild(result string, latencyMs float64) {
	globalManager.rebuildsTotal.WithLabelValues(result).Inc()
	globalManager.rebuildLatency.Observe(latencyMs)
}

// RecordMatchOutcome counts a created/updated/unchanged candidate.
func RecordMatchOutcome(outcome string) {
	globalManager.matchOutcomes.WithLabelValues(outcome).Inc()
}

// RecordCandidates observes the number of candidates found for one project.
func RecordCandidates(n int) {
	globalManager.candidatesFound.Observe(float64(n))
}

// RecordNotification counts a notification attempt ("new_matches"/"sla_expired", "ok"/"error").
func RecordNotification(kind, result string) {
	globalManager.notifications.WithLabelValues(kind, result).Inc()
}

// RecordSLACheck counts one evaluated match.
func RecordSLACheck() {
	globalManager.slaChecks.Inc()
}

// RecordSLABreach counts one match past its SLA.
func RecordSLABreach() {
	globalManager.slaBreaches.Inc()
}

// RecordSLAFlagged counts one vendor newly flagged.
func RecordSLAFlagged() {
	globalManager.slaFlagged.Inc()
}

// RecordSLASweepError counts one isolated per-pair failure.
func RecordSLASweepError() {
	globalManager.slaSweepErrors.Inc()
}

// RecordSLASweepLatency observes the duration of a sweep.
func RecordSLASweepLatency(latencyMs float64) {
	globalManager.slaSweepLatency.Observe(latencyMs)
}

// RecordRefreshRun records the end of a refresh run.
func RecordRefreshRun(result string, seconds float64) {
	globalManager.refreshRuns.WithLabelValues(result).Inc()
	globalManager.refreshDuration.Observe(seconds)
}

// RecordRefreshProject counts one project processed by a refresh ("ok", "error", "skipped").
func RecordRefreshProject(result string) {
	globalManager.refreshProjects.WithLabelValues(result).Inc()
}

// UpdateRefreshInFlight adjusts the in-flight gauge by delta.
func UpdateRefreshInFlight(delta int) {
	globalManager.refreshInFlight.Add(float64(delta))
}

// UpdateRefreshQueueDepth sets the number of queued refresh jobs.
func UpdateRefreshQueueDepth(n int) {
	globalManager.refreshQueued.Set(float64(n))
}

// UpdateRefreshWorkers sets the configured worker count.
func UpdateRefreshWorkers(count int) {
	globalManager.refreshWorkers.Set(float64(count))
}

// UpdateRefreshLastSuccess stamps the last completed refresh run.
func UpdateRefreshLastSuccess(unix int64) {
	globalManager.refreshLastUnix.Set(float64(unix))
}

// RecordSchedulerSkipped counts a skipped job firing.
func RecordSchedulerSkipped(job string) {
	globalManager.schedulerSkipped.WithLabelValues(job).Inc()
}

// RecordRepositoryLatency observes one repository operation.
func RecordRepositoryLatency(operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordRepositoryError counts one repository failure.
func RecordRepositoryError(operation string) {
	globalManager.repositoryErrors.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
