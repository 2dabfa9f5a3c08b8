package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aimerfeng/LineHook/internal/config"
	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const revokedKeyPrefix = "session:revoked:"

// Claims represents session token claims
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Sessions issues and validates session tokens
type Sessions struct {
	config *config.JWTConfig
	// revoked is nil unless revocation is enabled
	revoked *redis.Client
	now     func() time.Time
}

// NewSessions creates a session manager. revoked may be nil, in which case
// tokens are purely stateless and Revoke is a no-op.
func NewSessions(cfg *config.JWTConfig, revoked *redis.Client) *Sessions {
	return &Sessions{
		config:  cfg,
		revoked: revoked,
		now:     time.Now,
	}
}

// RevocationEnabled reports whether logout revokes tokens server-side
func (s *Sessions) RevocationEnabled() bool {
	return s.revoked != nil
}

// Issue creates a signed session token for user
func (s *Sessions) Issue(user *models.User) (string, error) {
	now := s.now()
	claims := &Claims{
		ID:       user.ID.String(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenExpiry)),
			ID:        generateJTI(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Validate parses and checks a session token. Any failure, including a
// revoked token, yields nil, false.
func (s *Sessions) Validate(ctx context.Context, tokenString string) (*Claims, bool) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, false
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, false
	}

	if s.revoked != nil && claims.RegisteredClaims.ID != "" {
		n, err := s.revoked.Exists(ctx, revokedKeyPrefix+claims.RegisteredClaims.ID).Result()
		if err != nil {
			// Fail closed: an unreachable deny-list cannot vouch for the token
			log.Error().Err(err).Msg("Session deny-list lookup failed")
			return nil, false
		}
		if n > 0 {
			return nil, false
		}
	}

	return claims, true
}

// Revoke deny-lists the token for the rest of its lifetime
func (s *Sessions) Revoke(ctx context.Context, claims *Claims) error {
	if s.revoked == nil {
		return ErrRevocationDisabled
	}
	if claims == nil || claims.RegisteredClaims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}

	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Set(ctx, revokedKeyPrefix+claims.RegisteredClaims.ID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	monitoring.RecordSessionRevoked()
	return nil
}

// generateJTI generates a unique JWT ID
func generateJTI() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
