package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aimerfeng/LineHook/internal/auth"
	"github.com/aimerfeng/LineHook/internal/config"
	"github.com/aimerfeng/LineHook/internal/endpoint"
	apierrors "github.com/aimerfeng/LineHook/internal/errors"
	"github.com/aimerfeng/LineHook/internal/ingest"
	"github.com/aimerfeng/LineHook/internal/logging"
	"github.com/aimerfeng/LineHook/internal/middleware"
	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/aimerfeng/LineHook/internal/payload"
	"github.com/aimerfeng/LineHook/internal/retention"
	"github.com/aimerfeng/LineHook/internal/webhooklog"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const healthCheckTimeout = 3 * time.Second

// authScope is the rate limit scope shared by /register and /login
const authScope = "auth"

// HealthCheck is a named dependency check reported by /health
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Services bundles the domain services the API serves
type Services struct {
	Auth      *auth.Service
	Sessions  *auth.Sessions
	Endpoints *endpoint.Registry
	Payloads  payload.Store
	Ingest    *ingest.Service
	Logs      *webhooklog.Service
	// Retention is nil when the sweeper is disabled
	Retention *retention.Scheduler
	// AuthLimiter throttles /register and /login per client IP when set
	AuthLimiter middleware.RateLimiter
	Checks      []HealthCheck
}

// APIServer represents the main API server
type APIServer struct {
	config    *config.Config
	router    *gin.Engine
	auth      *auth.Service
	sessions  *auth.Sessions
	endpoints *endpoint.Registry
	payloads  payload.Store
	ingest    *ingest.Service
	logs      *webhooklog.Service
	retention *retention.Scheduler
	limiter   middleware.RateLimiter
	checks    []HealthCheck
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, svc *Services) *APIServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config:    cfg,
		router:    router,
		auth:      svc.Auth,
		sessions:  svc.Sessions,
		endpoints: svc.Endpoints,
		payloads:  svc.Payloads,
		ingest:    svc.Ingest,
		logs:      svc.Logs,
		retention: svc.Retention,
		limiter:   svc.AuthLimiter,
		checks:    svc.Checks,
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	// LINE delivers here; authenticated by channel signature, not session
	s.router.POST("/webhook/*path", s.handleWebhook)

	// Auth routes (public)
	credentials := s.router.Group("/")
	if s.limiter != nil {
		credentials.Use(middleware.RateLimit(s.limiter, authScope))
	}
	{
		credentials.POST("/register", s.handleRegister)
		credentials.POST("/login", s.handleLogin)
	}
	s.router.POST("/logout", s.handleLogout)

	// Dashboard routes (protected)
	protected := s.router.Group("/")
	protected.Use(middleware.SessionAuth(s.sessions, s.config.JWT.CookieName))
	{
		protected.GET("/endpoints", s.handleListEndpoints)
		protected.POST("/endpoints", s.handleCreateEndpoint)
		protected.DELETE("/endpoints", s.handleDeleteEndpoint)
		protected.GET("/logs", s.handleListLogs)
	}
}

// Health check handler
func (s *APIServer) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for _, hc := range s.checks {
		if err := hc.Check(ctx); err != nil {
			logging.LogError(err, middleware.GetRequestIDFromContext(c), "health", hc.Name)
			checks[hc.Name] = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[hc.Name] = "ok"
	}

	body := gin.H{
		"status":  status,
		"service": "api",
		"checks":  checks,
	}
	if s.payloads != nil {
		store := gin.H{"strategy": s.payloads.Strategy()}
		if keyed, ok := s.payloads.(interface{ BackendState() string }); ok {
			store["backend"] = keyed.BackendState()
		}
		body["payload"] = store
	}
	if s.retention != nil {
		body["retention"] = s.retention.GetStatus()
	}

	c.JSON(code, body)
}

// respondError sends a standardized error response. Server errors are logged
// with the cause attached to the context by respondInternal, if any.
func respondError(c *gin.Context, err *apierrors.APIError) {
	requestID := middleware.GetRequestIDFromContext(c)
	switch {
	case apierrors.IsServerError(err):
		var cause error = err
		operation := c.FullPath()
		if last := c.Errors.Last(); last != nil {
			cause = last.Err
			if op, ok := last.Meta.(string); ok {
				operation = op
			}
		}
		logging.LogError(cause, requestID, "api", operation)
	case apierrors.IsClientError(err):
		log.Debug().
			Str("request_id", requestID).
			Str("code", string(err.Code)).
			Str("path", c.FullPath()).
			Msg("Request rejected")
	}
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, requestID))
}

// respondInternal sends a 500 carrying only message; err is logged server-side
func respondInternal(c *gin.Context, err error, operation, message string) {
	_ = c.Error(err).SetMeta(operation)
	respondError(c, apierrors.NewInternalError(message))
}
