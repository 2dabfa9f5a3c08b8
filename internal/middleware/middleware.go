package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/aimerfeng/LineHook/internal/auth"
	apierrors "github.com/aimerfeng/LineHook/internal/errors"
	"github.com/aimerfeng/LineHook/internal/logging"
	"github.com/aimerfeng/LineHook/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys for storing session information
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUsername  = "username"
	ContextKeyClaims    = "claims"
	ContextKeyRequestID = "request_id"
)

// SessionValidator validates session tokens
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*auth.Claims, bool)
}

// SessionAuth creates a middleware that authenticates the session cookie.
// A missing cookie is "Not authenticated", a rejected one "Invalid token".
func SessionAuth(sessions SessionValidator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			respondWithError(c, apierrors.ErrNotAuthenticatedError)
			c.Abort()
			return
		}

		claims, ok := sessions.Validate(c.Request.Context(), token)
		if !ok {
			respondWithError(c, apierrors.ErrInvalidTokenError)
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.ID)
		if err != nil {
			respondWithError(c, apierrors.ErrInvalidTokenError)
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyClaims, claims)

		c.Next()
	}
}

// RateLimiter checks a caller against its request window
type RateLimiter interface {
	Allow(ctx context.Context, key string) *ratelimit.Result
	Reset(ctx context.Context, key string) error
}

// RateLimitKey is the limiter key RateLimit uses for clientIP within scope
func RateLimitKey(scope, clientIP string) string {
	return scope + ":" + clientIP
}

// RateLimit limits requests per client IP within scope and answers 429 with
// Retry-After once the window is full
func RateLimit(limiter RateLimiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		result := limiter.Allow(c.Request.Context(), RateLimitKey(scope, ip))

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

		if !result.Allowed {
			retryAfter := int64(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			logging.LogSecurityEvent("rate_limited", "", ip, scope)
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			respondWithError(c, apierrors.ErrRateLimitedError)
			c.Abort()
			return
		}

		c.Next()
	}
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, GetRequestIDFromContext(c)))
}

// GetUserIDFromContext extracts the authenticated user ID from the gin context
// Returns uuid.Nil if not found
func GetUserIDFromContext(c *gin.Context) uuid.UUID {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, _ := userID.(uuid.UUID)
	return id
}

// GetUsernameFromContext extracts the username from the gin context
func GetUsernameFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}

// GetClaimsFromContext extracts the full claims from the gin context
// Returns nil if not found
func GetClaimsFromContext(c *gin.Context) *auth.Claims {
	claims, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	parsed, _ := claims.(*auth.Claims)
	return parsed
}

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// GetRequestIDFromContext extracts the request ID from the gin context
// Returns empty string if not found
func GetRequestIDFromContext(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// CORS configures CORS headers for the dashboard origin. Credentials are
// allowed so the session cookie is sent, which rules out a wildcard origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if _, ok := allowed[origin]; ok && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", strconv.Itoa(12*60*60))
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
