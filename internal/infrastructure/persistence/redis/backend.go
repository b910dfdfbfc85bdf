package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
)

// Backend implements service.StorageBackend against a shared Redis
// deployment, so multiple glvault instances can serve the same credential
// set. Scan uses SCAN rather than KEYS to avoid blocking the server on
// large keyspaces.
type Backend struct {
	conn *RedisConnection
}

// NewBackend wraps an already-connected RedisConnection as a StorageBackend.
func NewBackend(conn *RedisConnection) *Backend {
	return &Backend{conn: conn}
}

// Get returns the value at key, or NotFound if key is absent.
func (b *Backend) Get(ctx context.Context, key string) (string, error) {
	val, err := b.conn.GetClient().Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", vaulterr.NotFound("key not found")
		}
		return "", vaulterr.BackendFail("redis read failed").WithCause(err)
	}
	return val, nil
}

// Set writes value at key with no expiration.
func (b *Backend) Set(ctx context.Context, key, value string) error {
	if err := b.conn.GetClient().Set(ctx, key, value, 0).Err(); err != nil {
		return vaulterr.BackendFail("redis write failed").WithCause(err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.conn.GetClient().Del(ctx, key).Err(); err != nil {
		return vaulterr.BackendFail("redis delete failed").WithCause(err)
	}
	return nil
}

// Scan returns every key with the given prefix by iterating SCAN cursors.
func (b *Backend) Scan(ctx context.Context, prefix string) ([]string, error) {
	client := b.conn.GetClient()
	var out []string
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, prefix+"*", 500).Result()
		if err != nil {
			return nil, vaulterr.BackendFail("redis scan failed").WithCause(err)
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// Close closes the underlying Redis connection.
func (b *Backend) Close() error {
	return b.conn.Close()
}
