package models

import "encoding/json"

// AuditEntry is one record of an attempted relay, whether it succeeded,
// was rejected at rate limiting, or failed upstream. Entries are
// append-only: created once by the relay handler, never mutated afterward.
type AuditEntry struct {
	ID        string `json:"id"`
	Alias     string `json:"alias"`
	Caller    string `json:"caller"`
	Path      string `json:"path"`
	Method    string `json:"method"`
	Status    int    `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Timestamp int64  `json:"timestamp"` // unix-ms
	Error     string `json:"error,omitempty"`
}

// AuditIndexEntry is one {id, ts} pair in an alias's AuditIndex.
type AuditIndexEntry struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// MaxAuditIndexEntries bounds the per-alias AuditIndex to the most recent N entries.
const MaxAuditIndexEntries = 10000

// AuditIndex is the ordered, bounded list of {id, ts} pairs for one alias,
// stored under glvault:audit_index:<alias> as a bare JSON array.
type AuditIndex struct {
	Entries []AuditIndexEntry
}

// MarshalJSON writes the index in its on-disk layout: a plain array of
// {id, ts} objects with no wrapper.
func (idx AuditIndex) MarshalJSON() ([]byte, error) {
	if idx.Entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(idx.Entries)
}

// UnmarshalJSON reads the bare-array layout written by MarshalJSON.
func (idx *AuditIndex) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &idx.Entries)
}

// Append adds a new index entry, trimming the oldest entries past MaxAuditIndexEntries.
func (idx *AuditIndex) Append(id string, timestamp int64) {
	idx.Entries = append(idx.Entries, AuditIndexEntry{ID: id, Timestamp: timestamp})
	if overflow := len(idx.Entries) - MaxAuditIndexEntries; overflow > 0 {
		idx.Entries = idx.Entries[overflow:]
	}
}

// AuditStats is the computed aggregate returned by the audit log's stats() query.
type AuditStats struct {
	TotalRequests int64 `json:"total_requests"`
	ErrorCount    int64 `json:"error_count"`
	AvgLatencyMs  int64 `json:"avg_latency_ms"`
	LastAccessed  int64 `json:"last_accessed,omitempty"` // unix-ms, 0 if unset
}

// IsError reports whether an entry's status counts as an error for stats().
func (e AuditEntry) IsError() bool { return e.Status >= 400 }
