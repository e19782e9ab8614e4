package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Submissions     *prometheus.CounterVec
	ScoreRatio      *prometheus.HistogramVec
	Feedback        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toefl_submissions_total",
				Help: "Section submissions by section type",
			},
			[]string{"section_type"},
		),
		ScoreRatio: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toefl_submission_score_ratio",
				Help:    "Score over max score of auto-scored submissions",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"section_type"},
		),
		Feedback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toefl_feedback_total",
				Help: "Reviewer feedback saved by response type",
			},
			[]string{"response_type"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCounter,
		m.RequestDuration,
		m.Submissions,
		m.ScoreRatio,
		m.Feedback,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSubmission counts a submission and, when maxScore > 0, its score ratio
func (m *Metrics) ObserveSubmission(sectionType string, score, maxScore int) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(sectionType).Inc()
	if maxScore > 0 {
		m.ScoreRatio.WithLabelValues(sectionType).Observe(float64(score) / float64(maxScore))
	}
}

func (m *Metrics) ObserveFeedback(responseType string) {
	if m == nil {
		return
	}
	m.Feedback.WithLabelValues(responseType).Inc()
}

func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()

		m.RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		m.RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) PrometheusHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
