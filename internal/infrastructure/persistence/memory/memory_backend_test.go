package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genlayerlabs/glvault/internal/infrastructure/persistence/memory"
	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
)

func TestSetGetRoundTrip(t *testing.T) {
	b := memory.NewBackend()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "glvault:key:alias1", "value1"))

	val, err := b.Get(ctx, "glvault:key:alias1")
	require.NoError(t, err)
	assert.Equal(t, "value1", val)
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	b := memory.NewBackend()
	_, err := b.Get(context.Background(), "glvault:key:missing")
	require.Error(t, err)
	ve, ok := vaulterr.As(err)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", string(ve.Code()))
}

func TestDeleteIsIdempotent(t *testing.T) {
	b := memory.NewBackend()
	ctx := context.Background()
	require.NoError(t, b.Set(ctx, "k", "v"))
	require.NoError(t, b.Delete(ctx, "k"))
	require.NoError(t, b.Delete(ctx, "k"))

	_, err := b.Get(ctx, "k")
	assert.Error(t, err)
}

func TestScanByPrefix(t *testing.T) {
	b := memory.NewBackend()
	ctx := context.Background()
	require.NoError(t, b.Set(ctx, "glvault:audit:alias1:a", "1"))
	require.NoError(t, b.Set(ctx, "glvault:audit:alias1:b", "2"))
	require.NoError(t, b.Set(ctx, "glvault:audit:alias2:a", "3"))

	keys, err := b.Scan(ctx, "glvault:audit:alias1:")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
