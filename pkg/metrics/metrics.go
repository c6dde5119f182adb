package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           *prometheus.Registry
	registryOnce       sync.Once
	defaultMetricsPath = "/metrics"
	metricsEnabled     = true

	// Upload metrics
	UploadsTotal   *prometheus.CounterVec
	UploadBytes    *prometheus.CounterVec
	ActiveAnalyses prometheus.Gauge

	// Pipeline metrics
	PipelineDuration *prometheus.HistogramVec
	IssuesDetected   *prometheus.CounterVec

	// Capability metrics
	CapabilityRequestsTotal *prometheus.CounterVec
	CapabilityLatency       *prometheus.HistogramVec
	CapabilityErrors        *prometheus.CounterVec
	WordsTranscribed        *prometheus.CounterVec
	FramesInspected         *prometheus.CounterVec

	// AMQP metrics
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionErrors  *prometheus.CounterVec
	AMQPConnectionStatus  prometheus.Gauge
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		// Initialize upload metrics
		UploadsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediamod_uploads_total",
				Help: "Total number of media uploads",
			},
			[]string{"media_type", "status"},
		)

		UploadBytes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediamod_upload_bytes_total",
				Help: "Total number of media bytes uploaded",
			},
			[]string{"media_type"},
		)

		ActiveAnalyses = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mediamod_active_analyses",
				Help: "Number of analyses currently in flight",
			},
		)

		// Initialize pipeline metrics
		PipelineDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediamod_pipeline_duration_seconds",
				Help:    "End-to-end duration of the analysis pipeline",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
			},
			[]string{"media_type"},
		)

		IssuesDetected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediamod_issues_detected_total",
				Help: "Total number of issues flagged across all analyses",
			},
			[]string{"kind"},
		)

		// Initialize capability metrics
		CapabilityRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediamod_capability_requests_total",
				Help: "Total number of inference capability requests",
			},
			[]string{"capability", "status"},
		)

		CapabilityLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediamod_capability_latency_seconds",
				Help:    "Latency of inference capability requests",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~100s
			},
			[]string{"capability"},
		)

		CapabilityErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediamod_capability_errors_total",
				Help: "Total number of inference capability errors",
			},
			[]string{"capability"},
		)

		WordsTranscribed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediamod_words_transcribed_total",
				Help: "Total number of words transcribed",
			},
			[]string{"provider"},
		)

		FramesInspected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediamod_frames_inspected_total",
				Help: "Total number of sampled frames sent for detection",
			},
			[]string{"detector"},
		)

		// Initialize AMQP metrics
		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediamod_amqp_published_messages_total",
				Help: "Total number of messages published to AMQP",
			},
			[]string{"queue", "status"},
		)

		AMQPConnectionErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediamod_amqp_connection_errors_total",
				Help: "Total number of AMQP connection errors",
			},
			[]string{"error_type"},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mediamod_amqp_connection_status",
				Help: "Status of AMQP connection (1 = connected, 0 = disconnected)",
			},
		)

		// Register all metrics
		registry.MustRegister(
			// Upload metrics
			UploadsTotal,
			UploadBytes,
			ActiveAnalyses,

			// Pipeline metrics
			PipelineDuration,
			IssuesDetected,

			// Capability metrics
			CapabilityRequestsTotal,
			CapabilityLatency,
			CapabilityErrors,
			WordsTranscribed,
			FramesInspected,

			// AMQP metrics
			AMQPPublishedMessages,
			AMQPConnectionErrors,
			AMQPConnectionStatus,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	return registry
}

// SetMetricsPath sets the HTTP path for metrics endpoint
func SetMetricsPath(path string) {
	defaultMetricsPath = path
}

// EnableMetrics enables or disables metrics collection
func EnableMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IsMetricsEnabled returns whether metrics are enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// RegisterHandler registers the metrics HTTP handler
func RegisterHandler(mux *http.ServeMux) {
	if metricsEnabled && registry != nil {
		handler := promhttp.HandlerFor(
			registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          registry,
			},
		)
		mux.Handle(defaultMetricsPath, handler)
	}
}

// StartMetrics initializes the metrics service
func StartMetrics(logger *logrus.Logger, enabled bool) {
	if !enabled {
		EnableMetrics(false)
		logger.Info("Metrics collection is disabled")
		return
	}

	Init(logger)
	EnableMetrics(true)
	logger.WithField("metrics_path", defaultMetricsPath).Info("Metrics endpoint initialized")
}

// ObserveCapability records one inference request against a capability.
// Safe to call before Init or with metrics disabled.
func ObserveCapability(capability string, latency time.Duration, err error) {
	if !metricsEnabled || CapabilityRequestsTotal == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
		CapabilityErrors.WithLabelValues(capability).Inc()
	}
	CapabilityRequestsTotal.WithLabelValues(capability, status).Inc()
	CapabilityLatency.WithLabelValues(capability).Observe(latency.Seconds())
}

// AddWordsTranscribed records transcribed word counts for a provider.
func AddWordsTranscribed(provider string, words int) {
	if !metricsEnabled || WordsTranscribed == nil {
		return
	}
	WordsTranscribed.WithLabelValues(provider).Add(float64(words))
}

// AddFramesInspected records sampled frames sent to a detector.
func AddFramesInspected(detector string, frames int) {
	if !metricsEnabled || FramesInspected == nil {
		return
	}
	FramesInspected.WithLabelValues(detector).Add(float64(frames))
}

// RecordUpload records a completed upload request.
func RecordUpload(mediaType, status string, bytes int64) {
	if !metricsEnabled || UploadsTotal == nil {
		return
	}
	UploadsTotal.WithLabelValues(mediaType, status).Inc()
	if bytes > 0 {
		UploadBytes.WithLabelValues(mediaType).Add(float64(bytes))
	}
}

// RecordPipeline records one pipeline run.
func RecordPipeline(mediaType string, duration time.Duration) {
	if !metricsEnabled || PipelineDuration == nil {
		return
	}
	PipelineDuration.WithLabelValues(mediaType).Observe(duration.Seconds())
}

// RecordIssue records a flagged issue by kind.
func RecordIssue(kind string) {
	if !metricsEnabled || IssuesDetected == nil {
		return
	}
	IssuesDetected.WithLabelValues(kind).Inc()
}

// SetActiveAnalyses adjusts the in-flight analysis gauge.
func SetActiveAnalyses(delta float64) {
	if !metricsEnabled || ActiveAnalyses == nil {
		return
	}
	ActiveAnalyses.Add(delta)
}

// RecordAMQPPublish records one AMQP publish attempt.
func RecordAMQPPublish(queue string, err error) {
	if !metricsEnabled || AMQPPublishedMessages == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	AMQPPublishedMessages.WithLabelValues(queue, status).Inc()
}

// RecordAMQPConnectionError records one AMQP connection error by type.
func RecordAMQPConnectionError(errorType string) {
	if !metricsEnabled || AMQPConnectionErrors == nil {
		return
	}
	AMQPConnectionErrors.WithLabelValues(errorType).Inc()
}

// SetAMQPConnected updates the AMQP connection status gauge.
func SetAMQPConnected(connected bool) {
	if !metricsEnabled || AMQPConnectionStatus == nil {
		return
	}
	if connected {
		AMQPConnectionStatus.Set(1)
	} else {
		AMQPConnectionStatus.Set(0)
	}
}
