package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/event-scraper/event-scraper/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func matches(got []*dto.LabelPair, want prometheus.Labels) bool {
	for k, v := range want {
		found := false
		for _, lp := range got {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// collectCounter returns the counter value for labels, or 0 if unobserved.
func collectCounter(cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	ch := make(chan prometheus.Metric, 64)
	cv.Collect(ch)
	close(ch)
	for m := range ch {
		var dm dto.Metric
		if m.Write(&dm) == nil && matches(dm.GetLabel(), labels) {
			return dm.GetCounter().GetValue()
		}
	}
	return 0
}

func collectHistogramCount(hv *prometheus.HistogramVec, labels prometheus.Labels) uint64 {
	ch := make(chan prometheus.Metric, 64)
	hv.Collect(ch)
	close(ch)
	for m := range ch {
		var dm dto.Metric
		if m.Write(&dm) == nil && matches(dm.GetLabel(), labels) {
			return dm.GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func newMetricsRouter() *gin.Engine {
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.POST("/events/batch", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r
}

// ---------------------------------------------------------------------------
// MetricsMiddleware
// ---------------------------------------------------------------------------

func TestMetricsMiddleware_CountsByRouteTemplate(t *testing.T) {
	r := newMetricsRouter()
	labels := prometheus.Labels{"method": "POST", "path": "/events/batch", "status": "201"}
	before := collectCounter(telemetry.HTTPRequestsTotal, labels)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events/batch", nil))
	}

	if got := collectCounter(telemetry.HTTPRequestsTotal, labels) - before; got != 2 {
		t.Errorf("http_requests_total delta = %.0f, want 2", got)
	}
}

func TestMetricsMiddleware_RecordsErrorStatus(t *testing.T) {
	r := newMetricsRouter()
	labels := prometheus.Labels{"method": "GET", "path": "/boom", "status": "500"}
	before := collectCounter(telemetry.HTTPRequestsTotal, labels)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	if collectCounter(telemetry.HTTPRequestsTotal, labels)-before != 1 {
		t.Error("500 response was not counted")
	}
}

func TestMetricsMiddleware_UnmatchedRouteLabel(t *testing.T) {
	r := newMetricsRouter()
	labels := prometheus.Labels{"method": "GET", "path": unmatchedRoute, "status": "404"}
	before := collectCounter(telemetry.HTTPRequestsTotal, labels)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/no/such/page", nil))

	if collectCounter(telemetry.HTTPRequestsTotal, labels)-before != 1 {
		t.Errorf("unmatched request not recorded under %q", unmatchedRoute)
	}
}

func TestMetricsMiddleware_ObservesDuration(t *testing.T) {
	r := newMetricsRouter()
	labels := prometheus.Labels{"method": "POST", "path": "/events/batch"}
	before := collectHistogramCount(telemetry.HTTPRequestDuration, labels)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/events/batch", nil))

	if collectHistogramCount(telemetry.HTTPRequestDuration, labels)-before != 1 {
		t.Error("duration histogram sample count did not increase")
	}
}
