// Package audit implements the append-only audit trail: a canonical
// KV-backed log queryable by alias, an optional Postgres mirror for
// long-term analytical storage, and an optional Kafka publisher for
// downstream SIEM ingestion.
package audit

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/genlayerlabs/glvault/internal/domain/models"
	"github.com/genlayerlabs/glvault/internal/domain/service"
	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

// defaultQueryLimit is applied to Query when the caller doesn't specify one.
const defaultQueryLimit = 100

// defaultStatsWindowMs is how far back Stats looks when since is nil (24h).
const defaultStatsWindowMs = int64(24 * 60 * 60 * 1000)

func entryKey(alias, id string) string { return "glvault:audit:" + alias + ":" + id }
func indexKey(alias string) string     { return "glvault:audit_index:" + alias }

// KVLog implements service.AuditLog directly on top of a StorageBackend.
// It is the backend of record; PostgresMirror and KafkaPublisher are
// best-effort fan-outs that run synchronously after the primary write and
// never fail a Record call.
type KVLog struct {
	backend  service.StorageBackend
	mirror   Mirror
	log      logger.Logger
	idSource func() (string, error)
}

// Mirror receives a copy of every recorded entry for durable secondary
// storage (Postgres) or downstream streaming (Kafka). Implementations must
// not return an error that should fail the primary Record call; KVLog logs
// mirror failures and continues.
type Mirror interface {
	Mirror(ctx context.Context, entry models.AuditEntry) error
}

// NewKVLog builds a KVLog. idGen generates the opaque audit entry ID.
func NewKVLog(backend service.StorageBackend, idGen func() (string, error), log logger.Logger, mirrors ...Mirror) *KVLog {
	var mirror Mirror
	if len(mirrors) > 0 {
		mirror = &fanOutMirror{mirrors: mirrors}
	}
	return &KVLog{backend: backend, mirror: mirror, log: log, idSource: idGen}
}

// Record appends entry to the alias's audit trail: one entry key plus an
// update to the alias's bounded index. Mirror fan-out happens after the
// primary write and never fails the call.
func (l *KVLog) Record(ctx context.Context, entry models.AuditEntry) error {
	if entry.ID == "" {
		id, err := l.idSource()
		if err != nil {
			return vaulterr.BackendFail("audit id generation failed").WithCause(err)
		}
		entry.ID = id
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return vaulterr.BackendFail("audit entry marshal failed").WithCause(err)
	}
	if err := l.backend.Set(ctx, entryKey(entry.Alias, entry.ID), string(raw)); err != nil {
		return err
	}

	idx, err := l.loadIndex(ctx, entry.Alias)
	if err != nil {
		return err
	}
	idx.Append(entry.ID, entry.Timestamp)
	if err := l.saveIndex(ctx, entry.Alias, idx); err != nil {
		return err
	}

	if l.mirror != nil {
		if err := l.mirror.Mirror(ctx, entry); err != nil {
			l.log.Warn(ctx, "audit mirror failed", logger.Fields{"alias": entry.Alias, "error": err.Error()})
		}
	}

	return nil
}

func (l *KVLog) loadIndex(ctx context.Context, alias string) (*models.AuditIndex, error) {
	raw, err := l.backend.Get(ctx, indexKey(alias))
	if err != nil {
		if ve, ok := vaulterr.As(err); ok && ve.Code() == "NOT_FOUND" {
			return &models.AuditIndex{}, nil
		}
		return nil, err
	}
	var idx models.AuditIndex
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		return nil, vaulterr.BackendFail("audit index corrupt").WithCause(err)
	}
	return &idx, nil
}

func (l *KVLog) saveIndex(ctx context.Context, alias string, idx *models.AuditIndex) error {
	raw, err := json.Marshal(idx)
	if err != nil {
		return vaulterr.BackendFail("audit index marshal failed").WithCause(err)
	}
	return l.backend.Set(ctx, indexKey(alias), string(raw))
}

// Query returns alias's entries filtered to [since, until] and bounded to
// limit, most-recent-first (entries with equal timestamps come newest-recorded
// first). limit<=0 uses defaultQueryLimit.
func (l *KVLog) Query(ctx context.Context, alias string, since, until *int64, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	idx, err := l.loadIndex(ctx, alias)
	if err != nil {
		return nil, err
	}

	ordered := make([]models.AuditIndexEntry, len(idx.Entries))
	for i, e := range idx.Entries {
		ordered[len(ordered)-1-i] = e
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp > ordered[j].Timestamp })

	var out []models.AuditEntry
	for _, e := range ordered {
		if since != nil && e.Timestamp < *since {
			continue
		}
		if until != nil && e.Timestamp > *until {
			continue
		}
		raw, err := l.backend.Get(ctx, entryKey(alias, e.ID))
		if err != nil {
			continue
		}
		var entry models.AuditEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		out = append(out, entry)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Stats computes the aggregate {total_requests, error_count, avg_latency_ms,
// last_accessed} for alias since the given time, defaulting to the last 24h.
func (l *KVLog) Stats(ctx context.Context, alias string, since *int64) (models.AuditStats, error) {
	effectiveSince := since
	if effectiveSince == nil {
		now := nowMs()
		windowStart := now - defaultStatsWindowMs
		effectiveSince = &windowStart
	}

	entries, err := l.queryAll(ctx, alias, effectiveSince, nil)
	if err != nil {
		return models.AuditStats{}, err
	}

	if len(entries) == 0 {
		return models.AuditStats{}, nil
	}

	var stats models.AuditStats
	var totalLatency int64
	for _, e := range entries {
		stats.TotalRequests++
		if e.IsError() {
			stats.ErrorCount++
		}
		totalLatency += e.LatencyMs
		if e.Timestamp > stats.LastAccessed {
			stats.LastAccessed = e.Timestamp
		}
	}
	stats.AvgLatencyMs = (totalLatency + stats.TotalRequests/2) / stats.TotalRequests

	return stats, nil
}

// queryAll mirrors Query without the default limit, since Stats needs every
// entry in the window to compute an accurate average.
func (l *KVLog) queryAll(ctx context.Context, alias string, since, until *int64) ([]models.AuditEntry, error) {
	idx, err := l.loadIndex(ctx, alias)
	if err != nil {
		return nil, err
	}

	var out []models.AuditEntry
	for _, e := range idx.Entries {
		if since != nil && e.Timestamp < *since {
			continue
		}
		if until != nil && e.Timestamp > *until {
			continue
		}
		raw, err := l.backend.Get(ctx, entryKey(alias, e.ID))
		if err != nil {
			continue
		}
		var entry models.AuditEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

type fanOutMirror struct {
	mirrors []Mirror
}

func (f *fanOutMirror) Mirror(ctx context.Context, entry models.AuditEntry) error {
	var firstErr error
	for _, m := range f.mirrors {
		if err := m.Mirror(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
