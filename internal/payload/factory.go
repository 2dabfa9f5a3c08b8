package payload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/LineHook/internal/cache"
	"github.com/aimerfeng/LineHook/internal/config"
	"github.com/aimerfeng/LineHook/internal/logging"
)

// NewFromConfig builds the Store selected by cfg.Payload.Strategy. redis may be
// nil. A split strategy whose backend cannot be set up still yields a Store;
// every Save and keyed Load on it fails with ErrBackendUnavailable.
func NewFromConfig(ctx context.Context, cfg *config.Config, redis *cache.Redis) (Store, error) {
	logger := logging.NewLogger("payload")
	opts := KeyedOptions{
		Strategy:    cfg.Payload.Strategy,
		KeyPrefix:   cfg.Payload.KeyPrefix,
		TTL:         cfg.Payload.TTL,
		Compression: cfg.Payload.Compression,
	}

	switch cfg.Payload.Strategy {
	case config.PayloadStrategyInline:
		return NewInlineStore(), nil
	case config.PayloadStrategyRedis:
		if redis == nil {
			logger.Warn().
				Str("strategy", cfg.Payload.Strategy).
				Msg("REDIS_URL not set, webhook payloads cannot be stored")
			return NewKeyedStore(unavailableBackend{reason: "redis not configured"}, opts), nil
		}
		backend := NewBreakerBackend("payload-redis", NewRedisBackend(redis.Client), nil)
		return NewKeyedStore(backend, opts), nil
	case config.PayloadStrategyS3:
		s3Backend, err := NewS3Backend(ctx, cfg.S3)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("strategy", cfg.Payload.Strategy).
				Msg("S3 backend unavailable, webhook payloads cannot be stored")
			return NewKeyedStore(unavailableBackend{reason: "s3 not configured: " + err.Error()}, opts), nil
		}
		backend := NewBreakerBackend("payload-s3", s3Backend, nil)
		return NewKeyedStore(backend, opts), nil
	default:
		return nil, fmt.Errorf("unknown payload strategy %q", cfg.Payload.Strategy)
	}
}

// unavailableBackend stands in for a split backend that could not be set up
type unavailableBackend struct {
	reason string
}

func (b unavailableBackend) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New(b.reason)
}

func (b unavailableBackend) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New(b.reason)
}
