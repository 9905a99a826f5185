package storage

import (
	"context"
	"time"

	"academyhub/internal/cache"
)

const redisKeyPrefix = "portal_session:"

// RedisVault is the session-scoped tier: entries live in Redis under a
// per-browser-session namespace and expire with the session TTL, mirroring
// sessionStorage semantics. Redis outages degrade to cache misses, which the
// session layer reads as "no session".
type RedisVault struct {
	cache     *cache.Client
	sessionID string
	ttl       time.Duration
}

// NewRedisVault builds the session-scoped vault for one browser session.
func NewRedisVault(c *cache.Client, sessionID string, ttl time.Duration) *RedisVault {
	return &RedisVault{cache: c, sessionID: sessionID, ttl: ttl}
}

func (v *RedisVault) key(key string) string {
	return redisKeyPrefix + v.sessionID + ":" + key
}

// Get returns the stored value or nil on miss.
func (v *RedisVault) Get(ctx context.Context, key string) ([]byte, error) {
	return v.cache.Get(ctx, v.key(key))
}

// Set stores value with the session TTL.
func (v *RedisVault) Set(ctx context.Context, key string, value []byte) error {
	return v.cache.Set(ctx, v.key(key), value, v.ttl)
}

// Delete removes the entry.
func (v *RedisVault) Delete(ctx context.Context, key string) error {
	return v.cache.Delete(ctx, v.key(key))
}
