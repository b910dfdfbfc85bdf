// Package memory implements an in-process StorageBackend, used for local
// development, tests, and single-instance deployments that don't need a
// shared backend.
package memory

import (
	"context"
	"strings"
	"sync"

	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
)

// Backend is a StorageBackend backed by a guarded map. Values never persist
// across process restarts.
type Backend struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewBackend returns an empty in-memory StorageBackend.
func NewBackend() *Backend {
	return &Backend{data: make(map[string]string)}
}

// Get returns the value at key, or NotFound if key is absent.
func (b *Backend) Get(_ context.Context, key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	val, ok := b.data[key]
	if !ok {
		return "", vaulterr.NotFound("key not found")
	}
	return val, nil
}

// Set writes value at key, overwriting any existing value.
func (b *Backend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

// Scan returns every key with the given prefix.
func (b *Backend) Scan(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []string
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Close releases resources. The in-memory backend holds none.
func (b *Backend) Close() error { return nil }
