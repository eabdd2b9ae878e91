package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/cache"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
)

// TestContext creates a context with timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// NewTestStore starts an in-process Redis and returns a store bound to it.
// Both are closed when the test ends.
func NewTestStore(t *testing.T) (cache.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := cache.NewRedisCache(&config.RedisConfig{
		URL:         mr.Addr(),
		PoolSize:    5,
		DialTimeout: 5 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}
