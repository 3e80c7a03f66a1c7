package cache

import (
	"context"
	"time"
)

// BasicOps covers the string-key operations used for status caching and rate limiting.
type BasicOps interface {
	// Get returns "" and a nil error when the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// ZMember is a sorted set member with its score.
type ZMember struct {
	Member string
	Score  float64
}

// ZSetOps covers the sorted set operations backing leaderboard ranking.
type ZSetOps interface {
	ZAdd(ctx context.Context, key string, members ...ZMember) error
	// ZScore returns 0 and a nil error when the member does not exist.
	ZScore(ctx context.Context, key, member string) (float64, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error)
	// ZRevRank returns -1 when the member does not exist.
	ZRevRank(ctx context.Context, key, member string) (int64, error)
	ZCard(ctx context.Context, key string) (int64, error)
}

// LockOps provides owner-checked distributed locks.
type LockOps interface {
	// TryLock acquires key for ttl. The returned token must be passed to Unlock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Unlock releases key only if it is still held by token.
	Unlock(ctx context.Context, key, token string) error
}

// Cache is the full set of operations provided by the Redis client.
type Cache interface {
	BasicOps
	ZSetOps
	LockOps
	Ping(ctx context.Context) error
	Close() error
}
