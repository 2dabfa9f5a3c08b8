package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Webhook ingestion metrics
	WebhooksTotal    *prometheus.CounterVec
	WebhookBodyBytes prometheus.Histogram

	// Payload store metrics
	PayloadOps        *prometheus.CounterVec
	PayloadOpDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec

	// Business metrics
	UsersRegistered   prometheus.Counter
	EndpointsCreated  prometheus.Counter
	RetentionDeletes  prometheus.Counter
	SessionsRevoked   prometheus.Counter

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

var (
	metrics *Metrics
	once    sync.Once
)

// Init initializes all Prometheus metrics
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				},
				[]string{"method", "path"},
			),
			HTTPRequestsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "http_requests_in_flight",
					Help: "Number of HTTP requests currently being processed",
				},
			),

			WebhooksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "webhooks_received_total",
					Help: "Inbound webhook calls by outcome",
				},
				[]string{"outcome"},
			),
			WebhookBodyBytes: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "webhook_body_bytes",
					Help:    "Size of accepted webhook bodies",
					Buckets: prometheus.ExponentialBuckets(128, 4, 8),
				},
			),

			PayloadOps: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "payload_store_operations_total",
					Help: "Payload store operations by strategy, operation and status",
				},
				[]string{"strategy", "operation", "status"},
			),
			PayloadOpDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "payload_store_operation_duration_seconds",
					Help:    "Payload store operation latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
				},
				[]string{"strategy", "operation"},
			),

			CacheHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_type"},
			),
			CacheMisses: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_type"},
			),

			DBQueryDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "db_query_duration_seconds",
					Help:    "Database query duration in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
				},
				[]string{"query_type"},
			),

			UsersRegistered: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "users_registered_total",
					Help: "Total number of registered users",
				},
			),
			EndpointsCreated: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "endpoints_created_total",
					Help: "Total number of webhook endpoints created",
				},
			),
			RetentionDeletes: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "webhook_logs_expired_total",
					Help: "Webhook log rows removed by the retention sweeper",
				},
			),
			SessionsRevoked: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_revoked_total",
					Help: "Session tokens added to the deny-list",
				},
			),

			CircuitBreakerState: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "circuit_breaker_state",
					Help: "Circuit breaker state (0=closed, 1=open, 0.5=half-open)",
				},
				[]string{"name"},
			),
		}
	})

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Init()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics.
// Unmatched routes are labelled "unmatched" to keep label cardinality bounded.
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordWebhook records the outcome of an inbound webhook call
func RecordWebhook(outcome string) {
	Get().WebhooksTotal.WithLabelValues(outcome).Inc()
}

// RecordWebhookBody records the size of an accepted webhook body
func RecordWebhookBody(size int) {
	Get().WebhookBodyBytes.Observe(float64(size))
}

// RecordPayloadOp records a payload store operation
func RecordPayloadOp(strategy, operation, status string, duration time.Duration) {
	m := Get()
	m.PayloadOps.WithLabelValues(strategy, operation, status).Inc()
	m.PayloadOpDuration.WithLabelValues(strategy, operation).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	Get().CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	Get().CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(queryType string, duration time.Duration) {
	Get().DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

// RecordUserRegistered records a registration
func RecordUserRegistered() {
	Get().UsersRegistered.Inc()
}

// RecordEndpointCreated records an endpoint creation
func RecordEndpointCreated() {
	Get().EndpointsCreated.Inc()
}

// RecordRetentionDeletes records rows removed by the retention sweeper
func RecordRetentionDeletes(n int64) {
	Get().RetentionDeletes.Add(float64(n))
}

// RecordSessionRevoked records a deny-listed session
func RecordSessionRevoked() {
	Get().SessionsRevoked.Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
// state: 0=closed, 1=open, 0.5=half-open
func SetCircuitBreakerState(name string, state float64) {
	Get().CircuitBreakerState.WithLabelValues(name).Set(state)
}
