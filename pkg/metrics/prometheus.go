// Package metrics provides Prometheus metrics for the leadscore service.
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
	registry         prometheus.Registerer

	// Scoring pipeline
	companiesScored        prometheus.Counter
	companiesSkipped       prometheus.Counter
	engagementWritten      prometheus.Counter
	recommendationsWritten *prometheus.CounterVec
	criticViolations       *prometheus.CounterVec
	scoringLatency         prometheus.Histogram

	// Nightly batch
	nightlyRuns     prometheus.Counter
	nightlyDuration prometheus.Histogram
	nightlyLastUnix prometheus.Gauge
	nightlyEligible prometheus.Gauge

	// Ingestion
	eventsIngested  prometheus.Counter
	eventsDuplicate prometheus.Counter

	// Ranking
	rankedCompanies prometheus.Gauge

	// Queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	workerCount   prometheus.Gauge
	workerErrors  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the Record*/Update* helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out of /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager. Collectors are registered on the
// configured registry, prometheus.DefaultRegisterer unless overridden.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "leadscore",
		subsystem:        "pipeline",
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

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.companiesScored = m.counter("companies_scored_total", "Companies whose readiness snapshot was written")
	m.companiesSkipped = m.counter("companies_skipped_total", "Companies skipped because processing failed")
	m.engagementWritten = m.counter("engagement_written_total", "Engagement snapshots written")
	m.recommendationsWritten = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "recommendations_written_total",
		Help: "Outreach recommendations written by recommendation type",
	}, []string{"type"})
	m.criticViolations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "critic_violations_total",
		Help: "Draft violations reported by the critic, by rule",
	}, []string{"rule"})
	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "company_latency_milliseconds",
		Help:    "Time to score one company end to end",
		Buckets: m.histogramBuckets,
	})

	m.nightlyRuns = m.counter("nightly_runs_total", "Nightly batches executed")
	m.nightlyDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "nightly_duration_seconds",
		Help:    "Wall time of a nightly batch",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	m.nightlyLastUnix = m.gauge("nightly_last_run_unix", "Unix time the last nightly batch finished")
	m.nightlyEligible = m.gauge("nightly_eligible_companies", "Companies selected by the last nightly batch")

	m.eventsIngested = m.counter("events_ingested_total", "Signals accepted by the ingestion API")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Signals rejected as duplicates")

	m.rankedCompanies = m.gauge("ranked_companies", "Companies present in the outreach ranking")

	m.queueSize = m.gauge("queue_size", "Scoring jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the scoring job queue")
	m.workerCount = m.gauge("worker_count", "Scoring workers in the current pool")
	m.workerErrors = m.counter("worker_errors_total", "Scoring jobs that failed inside a worker")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_total",
		Help: "Errors by component and error type",
	}, []string{"component", "error_type"})
}

// Scoring pipeline.

// RecordCompanyScored increments the scored-companies counter.
func RecordCompanyScored() { globalManager.companiesScored.Inc() }

// RecordCompanySkipped increments the skipped-companies counter.
func RecordCompanySkipped() { globalManager.companiesSkipped.Inc() }

// RecordEngagementWritten increments the engagement snapshot counter.
func RecordEngagementWritten() { globalManager.engagementWritten.Inc() }

// RecordRecommendation counts a persisted recommendation of the given type.
func RecordRecommendation(recType string) {
	globalManager.recommendationsWritten.WithLabelValues(recType).Inc()
}

// RecordCriticViolation counts one violation of the named critic rule.
func RecordCriticViolation(rule string) {
	globalManager.criticViolations.WithLabelValues(rule).Inc()
}

// RecordCompanyLatency observes the time spent on one company.
func RecordCompanyLatency(latencyMs float64) { globalManager.scoringLatency.Observe(latencyMs) }

// Nightly batch.

// RecordNightlyRun records a finished batch.
func RecordNightlyRun(durationSeconds float64, finishedUnix float64, eligible int) {
	globalManager.nightlyRuns.Inc()
	globalManager.nightlyDuration.Observe(durationSeconds)
	globalManager.nightlyLastUnix.Set(finishedUnix)
	globalManager.nightlyEligible.Set(float64(eligible))
}

// Ingestion.

// RecordEventIngested increments the ingested-signals counter.
func RecordEventIngested() { globalManager.eventsIngested.Inc() }

// RecordEventDuplicate increments the duplicate-signals counter.
func RecordEventDuplicate() { globalManager.eventsDuplicate.Inc() }

// UpdateRankedCompanies sets the ranking size.
func UpdateRankedCompanies(n int) { globalManager.rankedCompanies.Set(float64(n)) }

// Queue and workers.

// UpdateQueueSize sets the number of queued jobs.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateWorkerCount sets the worker count of the active pool.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
