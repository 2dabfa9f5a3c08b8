package payload

import (
	"context"
	"errors"
	"time"

	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BreakerConfig holds configuration for the backend circuit breaker
type BreakerConfig struct {
	// MaxRequests is the number of requests allowed through while half-open
	MaxRequests uint32
	// Interval is the cyclic period of the closed state for clearing counts
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens it
	FailureThreshold uint32
}

// DefaultBreakerConfig returns default circuit breaker configuration
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerBackend guards a Backend with a circuit breaker. Missing keys count
// as successes.
type BreakerBackend struct {
	backend Backend
	cb      *gobreaker.CircuitBreaker
}

// NewBreakerBackend wraps backend with a named circuit breaker
func NewBreakerBackend(name string, backend Backend, cfg *BreakerConfig) *BreakerBackend {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("circuit_breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			monitoring.SetCircuitBreakerState(name, stateValue(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
	})
	monitoring.SetCircuitBreakerState(name, stateValue(gobreaker.StateClosed))

	return &BreakerBackend{backend: backend, cb: cb}
}

// Put stores data through the breaker
func (b *BreakerBackend) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.backend.Put(ctx, key, data, ttl)
	})
	return translateBreakerErr(err)
}

// Get loads data through the breaker
func (b *BreakerBackend) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.backend.Get(ctx, key)
	})
	if err != nil {
		return nil, translateBreakerErr(err)
	}
	return result.([]byte), nil
}

// State returns the breaker state name
func (b *BreakerBackend) State() string {
	return b.cb.State().String()
}

func translateBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}
