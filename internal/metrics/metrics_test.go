package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.MetricsMiddleware())
	router.GET("/sections/:type", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", m.PrometheusHandler())

	for i := 0; i < 2; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sections/reading", nil))
	}

	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/sections/:type", "200")); got != 2 {
		t.Errorf("request counter = %v, want 2", got)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Error("/metrics output should include http_requests_total")
	}
}

func TestObserveSubmission(t *testing.T) {
	m := New()
	m.ObserveSubmission("reading", 3, 4)
	m.ObserveSubmission("reading", 0, 0)
	m.ObserveFeedback("speaking")

	if got := testutil.ToFloat64(m.Submissions.WithLabelValues("reading")); got != 2 {
		t.Errorf("submissions = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.ScoreRatio); got != 1 {
		t.Errorf("score ratio series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.Feedback.WithLabelValues("speaking")); got != 1 {
		t.Errorf("feedback = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSubmission("reading", 1, 1)
	m.ObserveFeedback("writing")
}
