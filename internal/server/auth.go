package server

import (
	"errors"
	"net/http"

	"github.com/aimerfeng/LineHook/internal/auth"
	apierrors "github.com/aimerfeng/LineHook/internal/errors"
	"github.com/aimerfeng/LineHook/internal/logging"
	"github.com/aimerfeng/LineHook/internal/middleware"
	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/gin-gonic/gin"
)

// CredentialsRequest is the body of /register and /login
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func newUserResponse(u *models.User) gin.H {
	return gin.H{"user": userResponse{ID: u.ID.String(), Username: u.Username}}
}

// handleRegister handles user registration
func (s *APIServer) handleRegister(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(auth.ErrCredentialsRequired.Error()))
		return
	}

	user, err := s.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrCredentialsRequired),
			errors.Is(err, auth.ErrPasswordTooShort),
			errors.Is(err, auth.ErrUsernameExists):
			respondError(c, apierrors.NewValidationError(err.Error()))
		default:
			respondInternal(c, err, "register", "Registration failed")
		}
		return
	}

	if !s.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(user))
}

// handleLogin handles user login
func (s *APIServer) handleLogin(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(auth.ErrCredentialsRequired.Error()))
		return
	}

	user, err := s.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrCredentialsRequired):
			respondError(c, apierrors.NewValidationError(err.Error()))
		case errors.Is(err, auth.ErrInvalidCredentials):
			logging.LogSecurityEvent("login_failed", "", c.ClientIP(),
				"username "+logging.SanitizeForLog(req.Username, 64))
			respondError(c, apierrors.ErrInvalidCredentialsError)
		default:
			respondInternal(c, err, "login", "Login failed")
		}
		return
	}

	if !s.startSession(c, user) {
		return
	}
	// Earlier failed attempts from this address stop counting
	if s.limiter != nil {
		key := middleware.RateLimitKey(authScope, c.ClientIP())
		if err := s.limiter.Reset(c.Request.Context(), key); err != nil {
			logging.LogError(err, middleware.GetRequestIDFromContext(c), "api", "reset_rate_limit")
		}
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

// handleLogout clears the session cookie and, when revocation is enabled,
// deny-lists the token so copies of it stop working too
func (s *APIServer) handleLogout(c *gin.Context) {
	if s.sessions.RevocationEnabled() {
		if token, err := c.Cookie(s.config.JWT.CookieName); err == nil && token != "" {
			if claims, ok := s.sessions.Validate(c.Request.Context(), token); ok {
				if err := s.sessions.Revoke(c.Request.Context(), claims); err != nil {
					logging.LogError(err, middleware.GetRequestIDFromContext(c), "api", "revoke_session")
				}
			}
		}
	}

	s.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// startSession issues a token for user and sets the session cookie. It
// responds with 500 and returns false if the token cannot be issued.
func (s *APIServer) startSession(c *gin.Context, user *models.User) bool {
	token, err := s.sessions.Issue(user)
	if err != nil {
		respondInternal(c, err, "issue_session", "Internal server error")
		return false
	}
	s.setSessionCookie(c, token, int(s.config.JWT.TokenExpiry.Seconds()))
	return true
}

// setSessionCookie writes the session cookie. A negative maxAge expires it.
func (s *APIServer) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.config.JWT.CookieName, token, maxAge, "/", "", s.config.IsProduction(), true)
}
