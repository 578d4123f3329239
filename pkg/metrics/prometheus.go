// Package metrics provides Prometheus metrics for the shrimpd training service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the shrimpd service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core Business Metrics - Training run lifecycle
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsFailed    prometheus.Counter
	runsStopped   prometheus.Counter
	runDuration   prometheus.Histogram

	// Dataset Preparation Metrics
	datasetPrepDuration prometheus.Histogram
	datasetTrainSamples prometheus.Gauge
	datasetValSamples   prometheus.Gauge
	datasetSkipped      prometheus.Counter

	// Progress Parsing Metrics
	progressEvents   *prometheus.CounterVec
	parseSkippedLine prometheus.Counter

	// Status Store Metrics
	trainingProgress prometheus.Gauge
	currentEpoch     prometheus.Gauge

	// Live Channel Metrics - Subscriber fan-out health
	wsSubscribers      prometheus.Gauge
	wsBroadcasts       prometheus.Counter
	wsDeliveryFailures prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "shrimpd",
		subsystem:        "training",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Core Business Metrics - Training run lifecycle
	m.runsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_started_total",
		Help:      "Total number of training runs started",
	})

	m.runsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_completed_total",
		Help:      "Total number of training runs that completed with a model artifact",
	})

	m.runsFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_failed_total",
		Help:      "Total number of training runs that ended in a failed status",
	})

	m.runsStopped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_stopped_total",
		Help:      "Total number of training runs stopped by user request",
	})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_duration_seconds",
		Help:      "Histogram of end-to-end training run duration in seconds",
		Buckets:   []float64{10, 30, 60, 300, 900, 1800, 3600, 7200, 14400},
	})

	// Dataset Preparation Metrics
	m.datasetPrepDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dataset_prep_duration_milliseconds",
		Help:      "Dataset preparation duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.datasetTrainSamples = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dataset_train_samples",
		Help:      "Number of samples staged into the training split on the last preparation",
	})

	m.datasetValSamples = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dataset_val_samples",
		Help:      "Number of samples staged into the validation split on the last preparation",
	})

	m.datasetSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dataset_samples_skipped_total",
		Help:      "Total number of samples skipped for missing image or annotation",
	})

	// Progress Parsing Metrics
	m.progressEvents = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "progress_events_total",
			Help:      "Total number of progress events emitted by the parser, by kind",
		},
		[]string{"kind"},
	)

	m.parseSkippedLine = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "parse_skipped_lines_total",
		Help:      "Total number of captured output lines that matched no progress pattern",
	})

	// Status Store Metrics
	m.trainingProgress = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "progress_percent",
		Help:      "Current overall training progress in percent",
	})

	m.currentEpoch = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "current_epoch",
		Help:      "Current training epoch of the active run",
	})

	// Live Channel Metrics
	m.wsSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_subscribers",
		Help:      "Current number of connected live-channel subscribers",
	})

	m.wsBroadcasts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_broadcasts_total",
		Help:      "Total number of status updates broadcast to subscribers",
	})

	m.wsDeliveryFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_delivery_failures_total",
		Help:      "Total number of failed deliveries that caused a subscriber to be pruned",
	})

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total errors by component and error type",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total errors by endpoint, method, and error type",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current heap memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})
}

// Package-level helpers operating on the global manager.

// RecordRunStarted increments the started-runs counter.
func RecordRunStarted() {
	globalManager.runsStarted.Inc()
}

// RecordRunCompleted increments the completed-runs counter.
func RecordRunCompleted() {
	globalManager.runsCompleted.Inc()
}

// RecordRunFailed increments the failed-runs counter.
func RecordRunFailed() {
	globalManager.runsFailed.Inc()
}

// RecordRunStopped increments the user-stopped-runs counter.
func RecordRunStopped() {
	globalManager.runsStopped.Inc()
}

// RecordRunDuration observes an end-to-end run duration.
func RecordRunDuration(seconds float64) {
	globalManager.runDuration.Observe(seconds)
}

// RecordDatasetPrepDuration observes a dataset preparation duration.
func RecordDatasetPrepDuration(latencyMs float64) {
	globalManager.datasetPrepDuration.Observe(latencyMs)
}

// UpdateDatasetSplitSizes sets the staged split sizes from the last preparation.
func UpdateDatasetSplitSizes(train, val int) {
	globalManager.datasetTrainSamples.Set(float64(train))
	globalManager.datasetValSamples.Set(float64(val))
}

// RecordDatasetSampleSkipped increments the skipped-samples counter.
func RecordDatasetSampleSkipped() {
	globalManager.datasetSkipped.Inc()
}

// RecordProgressEvent increments the progress-event counter for a kind.
func RecordProgressEvent(kind string) {
	globalManager.progressEvents.WithLabelValues(kind).Inc()
}

// RecordParseSkippedLine increments the unmatched-line counter.
func RecordParseSkippedLine() {
	globalManager.parseSkippedLine.Inc()
}

// UpdateTrainingProgress sets the current overall progress gauge.
func UpdateTrainingProgress(percent float64) {
	globalManager.trainingProgress.Set(percent)
}

// UpdateCurrentEpoch sets the current epoch gauge.
func UpdateCurrentEpoch(epoch int) {
	globalManager.currentEpoch.Set(float64(epoch))
}

// UpdateWSSubscribers sets the connected-subscriber gauge.
func UpdateWSSubscribers(count int) {
	globalManager.wsSubscribers.Set(float64(count))
}

// RecordWSBroadcast increments the broadcast counter.
func RecordWSBroadcast() {
	globalManager.wsBroadcasts.Inc()
}

// RecordWSDeliveryFailure increments the pruned-subscriber counter.
func RecordWSDeliveryFailure() {
	globalManager.wsDeliveryFailures.Inc()
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent increments the per-component error counter.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint increments the per-endpoint error counter.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
