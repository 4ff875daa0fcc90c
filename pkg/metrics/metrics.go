package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heicconv_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heicconv_http_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Conversion metrics
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heicconv_conversions_total",
			Help: "Total number of image conversions",
		},
		[]string{"status", "format"}, // success, error, timeout
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heicconv_conversion_duration_seconds",
			Help:    "Conversion duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"format"},
	)

	ConversionBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heicconv_conversion_bytes",
			Help:    "Conversion input/output bytes",
			Buckets: []float64{10240, 102400, 512000, 1048576, 5242880, 10485760, 52428800, 104857600},
		},
		[]string{"direction"}, // input, output
	)

	// Worker pool metrics
	WorkerPoolQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heicconv_worker_pool_queue_size",
			Help: "Current number of jobs in worker pool queue",
		},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heicconv_worker_pool_active_jobs",
			Help: "Current number of active conversion jobs",
		},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heicconv_rate_limit_exceeded_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
		[]string{"ip_prefix"}, // First octet for privacy
	)

	// Concurrency metrics
	ConcurrentRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heicconv_concurrent_requests",
			Help: "Current number of concurrent requests being processed",
		},
	)

	ConcurrencyLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heicconv_concurrency_limit_exceeded_total",
			Help: "Total number of requests rejected due to concurrency limit",
		},
	)

	// Batch metrics
	BatchFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heicconv_batch_files_total",
			Help: "Total number of files processed by directory conversions",
		},
		[]string{"status"}, // success, error
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordConversion records a conversion attempt. Output bytes are only
// observed for successful conversions.
func RecordConversion(status, format string, duration time.Duration, inputBytes, outputBytes int) {
	ConversionsTotal.WithLabelValues(status, format).Inc()
	if duration > 0 {
		ConversionDuration.WithLabelValues(format).Observe(duration.Seconds())
	}
	if inputBytes > 0 {
		ConversionBytes.WithLabelValues("input").Observe(float64(inputBytes))
	}
	if outputBytes > 0 {
		ConversionBytes.WithLabelValues("output").Observe(float64(outputBytes))
	}
}

// UpdateWorkerPoolMetrics updates worker pool metrics
func UpdateWorkerPoolMetrics(activeJobs, queueSize int) {
	WorkerPoolActiveJobs.Set(float64(activeJobs))
	WorkerPoolQueueSize.Set(float64(queueSize))
}

// RecordRateLimitExceeded records a rate limit rejection
func RecordRateLimitExceeded(ipPrefix string) {
	RateLimitExceeded.WithLabelValues(ipPrefix).Inc()
}

// UpdateConcurrency updates concurrent request gauge
func UpdateConcurrency(count int) {
	ConcurrentRequests.Set(float64(count))
}

// RecordConcurrencyLimitExceeded records a concurrency limit rejection
func RecordConcurrencyLimitExceeded() {
	ConcurrencyLimitExceeded.Inc()
}

// RecordBatchFile records the outcome of one file in a directory conversion
func RecordBatchFile(status string) {
	BatchFilesTotal.WithLabelValues(status).Inc()
}
