// Package nonceguard provides an optional replay-protection layer for relay
// requests: it remembers nonces it has already seen, within a bounded
// window, so a captured signed request cannot be replayed even inside its
// freshness window. It is independent of quota tracking, which lives in the
// credential store.
package nonceguard

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
)

// seenNonceLuaScript atomically checks whether alias:nonce was already
// recorded and, if not, records it with a TTL. A single round trip, so two
// concurrent requests carrying the same nonce cannot both pass.
const seenNonceLuaScript = `
local key = KEYS[1]
local ttl_ms = tonumber(ARGV[1])
local exists = redis.call("GET", key)
if exists then
	return 1
end
redis.call("SET", key, "1", "PX", ttl_ms)
return 0
`

// Guard remembers nonces seen within a TTL window, backed by Redis so the
// guard is shared across instances.
type Guard struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
}

// NewGuard builds a Guard that remembers a nonce for ttl after first use.
// ttl should be at least as long as the relay authenticator's max request
// age, so a nonce can't become eligible to replay before its signature
// would also have expired.
func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	return &Guard{client: client, script: redis.NewScript(seenNonceLuaScript), ttl: ttl}
}

// SeenBefore records alias:nonce if new, returning true if it had already
// been recorded, in which case the caller must reject the request as a replay.
func (g *Guard) SeenBefore(ctx context.Context, alias, nonce string) (bool, error) {
	key := "glvault:nonce:" + alias + ":" + nonce
	res, err := g.script.Run(ctx, g.client, []string{key}, g.ttl.Milliseconds()).Int()
	if err != nil {
		return false, vaulterr.BackendFail("nonce guard check failed").WithCause(err)
	}
	return res == 1, nil
}
