package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromURL_InvalidURL(t *testing.T) {
	_, err := NewFromURL("not-a-redis-url")
	assert.Error(t, err)
}

func TestNewFromURL_UnreachableIsNotFatal(t *testing.T) {
	r, err := NewFromURL("redis://127.0.0.1:1/0?dial_timeout=100ms&max_retries=-1")
	require.NoError(t, err)
	require.NotNil(t, r)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, r.Health(ctx))
}

func TestNewFromURL_Live(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	r, err := NewFromURL(url)
	require.NoError(t, err)
	defer r.Close()

	assert.NoError(t, r.Health(context.Background()))
}
