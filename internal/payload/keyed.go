package payload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/LineHook/internal/logging"
	"github.com/aimerfeng/LineHook/internal/models"
	"github.com/aimerfeng/LineHook/internal/monitoring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Backend is a key/value store with per-entry expiry
type Backend interface {
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Get returns ErrNotFound when the key is absent or expired
	Get(ctx context.Context, key string) ([]byte, error)
}

// KeyedOptions configures a KeyedStore
type KeyedOptions struct {
	Strategy    string
	KeyPrefix   string
	TTL         time.Duration
	Compression string
}

// KeyedStore writes payloads to a Backend and records only the key
type KeyedStore struct {
	backend Backend
	opts    KeyedOptions
	logger  zerolog.Logger
}

// NewKeyedStore creates a split payload store over backend
func NewKeyedStore(backend Backend, opts KeyedOptions) *KeyedStore {
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}
	return &KeyedStore{backend: backend, opts: opts, logger: logging.NewLogger("payload")}
}

// Strategy returns the configured strategy name
func (s *KeyedStore) Strategy() string {
	return s.opts.Strategy
}

// BackendState reports the circuit breaker state of the backend, or
// "unavailable" when the backend could not be set up
func (s *KeyedStore) BackendState() string {
	switch b := s.backend.(type) {
	case *BreakerBackend:
		return b.State()
	case unavailableBackend:
		return "unavailable"
	default:
		return "unguarded"
	}
}

// Key returns the backend key for a log row
func (s *KeyedStore) Key(logID uuid.UUID) string {
	return s.opts.KeyPrefix + logID.String()
}

// Save writes p under the log row's key with the configured TTL
func (s *KeyedStore) Save(ctx context.Context, logID uuid.UUID, p *models.WebhookPayload) (Ref, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Ref{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	key := s.Key(logID)
	start := time.Now()
	err = s.backend.Put(ctx, key, encode(data, s.opts.Compression), s.opts.TTL)
	if err != nil {
		monitoring.RecordPayloadOp(s.opts.Strategy, "save", "error", time.Since(start))
		return Ref{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	monitoring.RecordPayloadOp(s.opts.Strategy, "save", "ok", time.Since(start))

	return Ref{Key: key}, nil
}

// Load resolves ref. Inline refs from rows written before a strategy change
// are decoded directly.
func (s *KeyedStore) Load(ctx context.Context, ref Ref) (*models.WebhookPayload, error) {
	if len(ref.Inline) > 0 {
		return NewInlineStore().Load(ctx, ref)
	}
	if ref.Key == "" {
		return nil, nil
	}

	start := time.Now()
	data, err := s.backend.Get(ctx, ref.Key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			monitoring.RecordPayloadOp(s.opts.Strategy, "load", "miss", time.Since(start))
			monitoring.RecordCacheMiss(s.opts.Strategy)
			return nil, nil
		}
		monitoring.RecordPayloadOp(s.opts.Strategy, "load", "error", time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	monitoring.RecordPayloadOp(s.opts.Strategy, "load", "ok", time.Since(start))
	monitoring.RecordCacheHit(s.opts.Strategy)

	raw, err := decode(data)
	if err == nil {
		var p *models.WebhookPayload
		if p, err = decodeSnapshot(raw); err == nil {
			return p, nil
		}
	}
	s.logger.Warn().Err(err).Str("key", ref.Key).Msg("Discarding undecodable payload")
	return nil, nil
}
