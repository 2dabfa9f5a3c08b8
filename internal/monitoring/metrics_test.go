package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestInit_Idempotent(t *testing.T) {
	assert.Same(t, Init(), Init())
	assert.Same(t, Init(), Get())
}

func TestMetricsMiddleware_LabelsRoute(t *testing.T) {
	m := Get()
	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/endpoints", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/endpoints", "200"))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/endpoints", nil))
	after := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/endpoints", "200"))
	assert.Equal(t, before+1, after)

	beforeUnmatched := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/abc", nil))
	afterUnmatched := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	assert.Equal(t, beforeUnmatched+1, afterUnmatched)
}

func TestRecorders(t *testing.T) {
	m := Get()

	before := testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("accepted"))
	RecordWebhook("accepted")
	assert.Equal(t, before+1, testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("accepted")))

	before = testutil.ToFloat64(m.PayloadOps.WithLabelValues("redis", "save", "ok"))
	RecordPayloadOp("redis", "save", "ok", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(m.PayloadOps.WithLabelValues("redis", "save", "ok")))

	before = testutil.ToFloat64(m.RetentionDeletes)
	RecordRetentionDeletes(5)
	assert.Equal(t, before+5, testutil.ToFloat64(m.RetentionDeletes))

	SetCircuitBreakerState("payload-redis", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("payload-redis")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordEndpointCreated()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "endpoints_created_total"))
}
