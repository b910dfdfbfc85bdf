package nonceguard_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genlayerlabs/glvault/internal/infrastructure/nonceguard"
)

func newTestGuard(t *testing.T, ttl time.Duration) (*nonceguard.Guard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return nonceguard.NewGuard(client, ttl), mr
}

func TestSeenBeforeRejectsReplay(t *testing.T) {
	guard, _ := newTestGuard(t, 30*time.Second)
	ctx := context.Background()

	seen, err := guard.SeenBefore(ctx, "weather-api", "nonce-1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.SeenBefore(ctx, "weather-api", "nonce-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSeenBeforeScopesNoncePerAlias(t *testing.T) {
	guard, _ := newTestGuard(t, 30*time.Second)
	ctx := context.Background()

	seen, err := guard.SeenBefore(ctx, "weather-api", "nonce-1")
	require.NoError(t, err)
	assert.False(t, seen)

	// Same nonce under a different alias is a different signed payload.
	seen, err = guard.SeenBefore(ctx, "news-api", "nonce-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestSeenBeforeForgetsAfterTTL(t *testing.T) {
	ttl := 30 * time.Second
	guard, mr := newTestGuard(t, ttl)
	ctx := context.Background()

	_, err := guard.SeenBefore(ctx, "weather-api", "nonce-1")
	require.NoError(t, err)

	mr.FastForward(ttl + time.Second)

	seen, err := guard.SeenBefore(ctx, "weather-api", "nonce-1")
	require.NoError(t, err)
	assert.False(t, seen)
}
