// Package models defines the persistent data shapes glvault reads and writes:
// encrypted credential records, the alias index, and audit trail entries.
package models

import (
	"encoding/json"
	"time"
)

// AliasPattern is the allowed alias syntax: ASCII letters, digits, underscore, hyphen, 1-64 chars.
const AliasPattern = `^[A-Za-z0-9_-]{1,64}$`

// DefaultQuotaLimit is the quota_limit applied when register() omits one.
const DefaultQuotaLimit = 1000

// DefaultOwner is the owner applied when register() omits one.
const DefaultOwner = "admin"

// CredentialRecord is the stored unit, one per alias. The plaintext
// credential is never stored; ciphertext/iv/auth_tag are the outputs of
// AES-256-GCM encryption under the master key.
type CredentialRecord struct {
	Alias            string `json:"alias"`
	Ciphertext       []byte `json:"ciphertext"`
	IV               []byte `json:"iv"`
	AuthTag          []byte `json:"auth_tag"`
	BaseURL          string `json:"base_url"`
	QuotaLimit       int64  `json:"quota_limit"`
	QuotaUsed        int64  `json:"quota_used"`
	QuotaWindowStart int64  `json:"quota_window_start"` // unix-ms
	CreatedAt        int64  `json:"created_at"`         // unix-ms
	RotatedAt        int64  `json:"rotated_at"`         // unix-ms, 0 if never rotated
	Owner            string `json:"owner"`
}

func nowMs() int64 { return time.Now().UTC().UnixMilli() }

// NewCredentialRecord builds a fresh record for a just-registered alias,
// applying the register() defaults for quotaLimit and owner.
func NewCredentialRecord(alias, baseURL string, ciphertext, iv, authTag []byte, quotaLimit int64, owner string) *CredentialRecord {
	if quotaLimit <= 0 {
		quotaLimit = DefaultQuotaLimit
	}
	if owner == "" {
		owner = DefaultOwner
	}
	now := nowMs()
	return &CredentialRecord{
		Alias:            alias,
		Ciphertext:       ciphertext,
		IV:               iv,
		AuthTag:          authTag,
		BaseURL:          baseURL,
		QuotaLimit:       quotaLimit,
		QuotaUsed:        0,
		QuotaWindowStart: now,
		CreatedAt:        now,
		RotatedAt:        0,
		Owner:            owner,
	}
}

// Rotate replaces the ciphertext in place and bumps rotated_at, preserving
// quota_limit, quota_used, quota_window_start, created_at, and owner.
func (r *CredentialRecord) Rotate(ciphertext, iv, authTag []byte) {
	r.Ciphertext = ciphertext
	r.IV = iv
	r.AuthTag = authTag
	r.RotatedAt = nowMs()
}

// CredentialSummary is the list() projection: every CredentialRecord field
// except the encrypted material, so plaintext-adjacent bytes never leave the store.
type CredentialSummary struct {
	Alias            string `json:"alias"`
	BaseURL          string `json:"base_url"`
	QuotaLimit       int64  `json:"quota_limit"`
	QuotaUsed        int64  `json:"quota_used"`
	QuotaWindowStart int64  `json:"quota_window_start"`
	CreatedAt        int64  `json:"created_at"`
	RotatedAt        int64  `json:"rotated_at"`
	Owner            string `json:"owner"`
}

// Summary projects a record to its list()-safe form.
func (r *CredentialRecord) Summary() CredentialSummary {
	return CredentialSummary{
		Alias:            r.Alias,
		BaseURL:          r.BaseURL,
		QuotaLimit:       r.QuotaLimit,
		QuotaUsed:        r.QuotaUsed,
		QuotaWindowStart: r.QuotaWindowStart,
		CreatedAt:        r.CreatedAt,
		RotatedAt:        r.RotatedAt,
		Owner:            r.Owner,
	}
}

// AliasIndex is the persisted set of all registered aliases, kept alongside
// the per-alias records so list() never needs a full backend scan. It is
// stored under glvault:index as a bare JSON array of alias strings.
type AliasIndex struct {
	Aliases []string
}

// MarshalJSON writes the index in its on-disk layout: a plain array, not an
// object wrapper, so any implementation sharing the backend can parse it.
func (idx AliasIndex) MarshalJSON() ([]byte, error) {
	if idx.Aliases == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(idx.Aliases)
}

// UnmarshalJSON reads the bare-array layout written by MarshalJSON.
func (idx *AliasIndex) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &idx.Aliases)
}

// Add inserts alias if absent, returning whether the index changed.
func (idx *AliasIndex) Add(alias string) bool {
	if idx.Contains(alias) {
		return false
	}
	idx.Aliases = append(idx.Aliases, alias)
	return true
}

// Remove deletes alias if present, returning whether the index changed.
func (idx *AliasIndex) Remove(alias string) bool {
	for i, a := range idx.Aliases {
		if a == alias {
			idx.Aliases = append(idx.Aliases[:i], idx.Aliases[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether alias is currently registered.
func (idx *AliasIndex) Contains(alias string) bool {
	for _, a := range idx.Aliases {
		if a == alias {
			return true
		}
	}
	return false
}
