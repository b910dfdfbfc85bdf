package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genlayerlabs/glvault/internal/domain/models"
	"github.com/genlayerlabs/glvault/internal/infrastructure/audit"
	"github.com/genlayerlabs/glvault/internal/infrastructure/persistence/memory"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

type recordingMirror struct {
	entries []models.AuditEntry
	failN   int
}

func (m *recordingMirror) Mirror(_ context.Context, entry models.AuditEntry) error {
	if m.failN > 0 {
		m.failN--
		return errors.New("mirror unavailable")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func sequentialIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return "id-" + string(rune('a'+n-1)), nil
	}
}

func TestRecordAndQueryMostRecentFirst(t *testing.T) {
	backend := memory.NewBackend()
	log := audit.NewKVLog(backend, sequentialIDs(), logger.NewNoopLogger())
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, models.AuditEntry{Alias: "weather-api", Status: 200, Timestamp: 1000}))
	require.NoError(t, log.Record(ctx, models.AuditEntry{Alias: "weather-api", Status: 200, Timestamp: 2000}))
	require.NoError(t, log.Record(ctx, models.AuditEntry{Alias: "weather-api", Status: 500, Timestamp: 3000}))

	entries, err := log.Query(ctx, "weather-api", nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(3000), entries[0].Timestamp)
	assert.Equal(t, int64(1000), entries[2].Timestamp)
}

func TestQueryRespectsLimitAndWindow(t *testing.T) {
	backend := memory.NewBackend()
	log := audit.NewKVLog(backend, sequentialIDs(), logger.NewNoopLogger())
	ctx := context.Background()

	for _, ts := range []int64{1000, 2000, 3000, 4000} {
		require.NoError(t, log.Record(ctx, models.AuditEntry{Alias: "weather-api", Status: 200, Timestamp: ts}))
	}

	since := int64(1500)
	entries, err := log.Query(ctx, "weather-api", &since, nil, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(4000), entries[0].Timestamp)
	assert.Equal(t, int64(3000), entries[1].Timestamp)
}

func TestStatsComputesAggregate(t *testing.T) {
	backend := memory.NewBackend()
	log := audit.NewKVLog(backend, sequentialIDs(), logger.NewNoopLogger())
	ctx := context.Background()

	since := int64(0)
	require.NoError(t, log.Record(ctx, models.AuditEntry{Alias: "weather-api", Status: 200, LatencyMs: 10, Timestamp: 1000}))
	require.NoError(t, log.Record(ctx, models.AuditEntry{Alias: "weather-api", Status: 500, LatencyMs: 20, Timestamp: 2000}))

	stats, err := log.Stats(ctx, "weather-api", &since)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.ErrorCount)
	assert.Equal(t, int64(15), stats.AvgLatencyMs)
	assert.Equal(t, int64(2000), stats.LastAccessed)
}

func TestRecordFansOutToMirrorsBestEffort(t *testing.T) {
	backend := memory.NewBackend()
	mirror := &recordingMirror{}
	log := audit.NewKVLog(backend, sequentialIDs(), logger.NewNoopLogger(), mirror)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, models.AuditEntry{Alias: "weather-api", Status: 200, Timestamp: 1000}))
	require.Len(t, mirror.entries, 1)
}

func TestRecordSucceedsEvenWhenMirrorFails(t *testing.T) {
	backend := memory.NewBackend()
	mirror := &recordingMirror{failN: 1}
	log := audit.NewKVLog(backend, sequentialIDs(), logger.NewNoopLogger(), mirror)
	ctx := context.Background()

	err := log.Record(ctx, models.AuditEntry{Alias: "weather-api", Status: 200, Timestamp: 1000})
	assert.NoError(t, err)
}
