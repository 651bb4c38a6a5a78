package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by counter store implementations.
var (
	// ErrNotFound indicates the requested key does not exist or has expired.
	ErrNotFound = errors.New("store: key not found")

	// ErrUnavailable indicates the backing store cannot be reached.
	// The rate limiter treats this as a signal to fail open to its
	// process-local fallback rather than rejecting traffic.
	ErrUnavailable = errors.New("store: unavailable")
)

// CounterStore is the contract the rate limiter requires of any backing
// cache. Any service that can satisfy these operations is pluggable:
// plain key/value with TTL, sorted sets scored by timestamp, and two
// composite operations that must execute atomically (a transaction or
// server-side script in distributed implementations).
type CounterStore interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A ttl of zero means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr atomically increments the integer at key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets the remaining TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining lifetime of key, or ErrNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// ZAdd inserts member with the given score into the sorted set at key.
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRemRangeByScore removes members whose score lies in [min, max].
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error

	// ZCount counts members whose score lies in [min, max].
	ZCount(ctx context.Context, key string, min, max float64) (int64, error)

	// Del removes key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// SlidingWindowAdd atomically prunes entries older than now-window from
	// the sorted set at key, inserts member scored at now, refreshes the
	// key's TTL to window, and returns the resulting cardinality.
	//
	// Atomicity is what makes increment-and-compare safe under concurrent
	// callers: two requests racing on the same key must observe distinct
	// counts. Distributed implementations run this as a single server-side
	// script; the in-memory implementation holds its lock across the steps.
	SlidingWindowAdd(ctx context.Context, key string, now time.Time, window time.Duration, member string) (int64, error)

	// IncrWithTTL atomically increments the counter at key and, when the
	// increment created the key, sets its TTL. Used for violation counters.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
