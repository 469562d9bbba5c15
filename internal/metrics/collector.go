// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records gateway metrics into the default Prometheus registry.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	jobSubmissionsTotal *prometheus.CounterVec
	jobPollsTotal       *prometheus.CounterVec
	waitDuration        *prometheus.HistogramVec

	probeAttempts  *prometheus.HistogramVec
	ingestionBytes *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.jobSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_submissions_total",
			Help:      "Total number of upstream job submissions",
		},
		[]string{"surface", "kind", "status"},
	)

	c.jobPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_polls_total",
			Help:      "Total number of upstream record polls",
		},
		[]string{"kind", "status"},
	)

	c.waitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wait_duration_seconds",
			Help:      "Synchronous wait engine duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	c.probeAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_attempts",
			Help:      "Candidate routes tried before one succeeded",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"capability"},
	)

	c.ingestionBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_bytes_total",
			Help:      "Total bytes ingested to the upstream",
		},
		[]string{"mime"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordHTTPRequest records one HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordJobSubmission records one upstream job submission.
func (c *Collector) RecordJobSubmission(surface, kind, status string) {
	c.jobSubmissionsTotal.WithLabelValues(surface, kind, status).Inc()
}

// RecordJobPoll records one upstream record poll.
func (c *Collector) RecordJobPoll(kind, status string) {
	c.jobPollsTotal.WithLabelValues(kind, status).Inc()
}

// RecordWait records one synchronous wait and its outcome.
func (c *Collector) RecordWait(outcome string, duration time.Duration) {
	c.waitDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordProbe records how many candidates a probe consumed (1-based index of
// the winner, or the full list length on exhaustion).
func (c *Collector) RecordProbe(capability string, attempts int) {
	c.probeAttempts.WithLabelValues(capability).Observe(float64(attempts))
}

// RecordIngestion records one media upload.
func (c *Collector) RecordIngestion(mime string, bytes int) {
	c.ingestionBytes.WithLabelValues(mime).Add(float64(bytes))
}
