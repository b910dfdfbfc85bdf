package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genlayerlabs/glvault/internal/application/service"
	"github.com/genlayerlabs/glvault/internal/infrastructure/crypto"
	"github.com/genlayerlabs/glvault/internal/infrastructure/persistence/memory"
	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

func newTestStore() *service.CredentialStore {
	backend := memory.NewBackend()
	cryptoSvc := crypto.NewAESGCMService(make([]byte, 32), []byte("signing-secret"))
	return service.NewCredentialStore(backend, cryptoSvc, logger.NewNoopLogger(), 60*time.Second)
}

func TestRegisterAndGetPlaintext(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	rec, err := store.Register(ctx, "weather-api", "sk-live-123", "https://api.openweathermap.org", 100, "ops")
	require.NoError(t, err)
	assert.Equal(t, "weather-api", rec.Alias)
	assert.Equal(t, int64(100), rec.QuotaLimit)

	plaintext, err := store.GetPlaintext(ctx, "weather-api")
	require.NoError(t, err)
	assert.Equal(t, "sk-live-123", plaintext)
}

func TestRegisterAppliesDefaults(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	rec, err := store.Register(ctx, "news-api", "token", "https://newsapi.org", 0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), rec.QuotaLimit)
	assert.Equal(t, "admin", rec.Owner)
}

func TestRegisterRejectsInvalidAlias(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, err := store.Register(ctx, "bad alias!", "token", "https://example.com", 0, "")
	require.Error(t, err)
	ve, ok := vaulterr.As(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_INPUT", string(ve.Code()))
}

func TestRegisterRejectsDuplicateAlias(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, err := store.Register(ctx, "weather-api", "token", "https://example.com", 0, "")
	require.NoError(t, err)

	_, err = store.Register(ctx, "weather-api", "other-token", "https://example.com", 0, "")
	require.Error(t, err)
	ve, ok := vaulterr.As(err)
	require.True(t, ok)
	assert.Equal(t, "ALREADY_EXISTS", string(ve.Code()))
}

func TestRotatePreservesQuotaFields(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	original, err := store.Register(ctx, "weather-api", "token-v1", "https://example.com", 50, "ops")
	require.NoError(t, err)

	rotated, err := store.Rotate(ctx, "weather-api", "token-v2")
	require.NoError(t, err)

	assert.Equal(t, original.QuotaLimit, rotated.QuotaLimit)
	assert.Equal(t, original.CreatedAt, rotated.CreatedAt)
	assert.Equal(t, original.Owner, rotated.Owner)
	assert.NotZero(t, rotated.RotatedAt)

	plaintext, err := store.GetPlaintext(ctx, "weather-api")
	require.NoError(t, err)
	assert.Equal(t, "token-v2", plaintext)
}

func TestRemoveThenList(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, err := store.Register(ctx, "weather-api", "token", "https://example.com", 0, "")
	require.NoError(t, err)
	_, err = store.Register(ctx, "news-api", "token", "https://example.com", 0, "")
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, "weather-api"))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "news-api", summaries[0].Alias)

	err = store.Remove(ctx, "weather-api")
	require.Error(t, err)
	ve, ok := vaulterr.As(err)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", string(ve.Code()))
}

func TestIncrementUsageEnforcesQuota(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_, err := store.Register(ctx, "weather-api", "token", "https://example.com", 2, "")
	require.NoError(t, err)

	allowed, remaining, _, err := store.IncrementUsage(ctx, "weather-api")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), remaining)

	allowed, remaining, _, err = store.IncrementUsage(ctx, "weather-api")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(0), remaining)

	allowed, remaining, retryAfterMs, err := store.IncrementUsage(ctx, "weather-api")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(0), remaining)
	assert.Equal(t, int64(60000), retryAfterMs)
}

func TestIncrementUsageUnknownAlias(t *testing.T) {
	store := newTestStore()
	_, _, _, err := store.IncrementUsage(context.Background(), "does-not-exist")
	require.Error(t, err)
	ve, ok := vaulterr.As(err)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", string(ve.Code()))
}
