package valkey

import (
	"context"
	"strconv"
	"time"
)

// Lua scripts for atomic rate-limit operations.
//
// Running these server-side is what makes increment-and-compare safe
// under concurrent callers: two requests racing on the same window key
// are serialized by the server and must observe distinct counts. Without
// this, both could read remaining > 0 and both be admitted, silently
// exceeding the tier limit.

// luaSlidingWindowAdd prunes timestamps older than the window, records
// the current request, refreshes the key TTL, and returns the resulting
// cardinality, all in one atomic step.
//
// KEYS[1] = window key (e.g. "seccore:rl:auth:tenant:identifier")
// ARGV[1] = now in nanoseconds (score of the new member)
// ARGV[2] = window in nanoseconds
// ARGV[3] = unique member for this request
// ARGV[4] = key TTL in milliseconds
//
// Returns: integer count of entries inside the window after insertion.
const luaSlidingWindowAdd = `
local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', cutoff)
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return redis.call('ZCARD', KEYS[1])
`

// luaIncrWithTTL increments a counter and attaches a TTL when the
// increment created the key. Used for violation counters so their decay
// is independent of the request window.
//
// KEYS[1] = counter key
// ARGV[1] = TTL in milliseconds
//
// Returns: integer counter value after the increment.
const luaIncrWithTTL = `
local n = redis.call('INCR', KEYS[1])
if n == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`

// SlidingWindowAdd executes the sliding-window script atomically on the
// server and returns the in-window count including this request.
func (s *Store) SlidingWindowAdd(ctx context.Context, key string, now time.Time, window time.Duration, member string) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.client.Do(ctx,
		s.client.B().Eval().Script(luaSlidingWindowAdd).
			Numkeys(1).
			Key(s.key(key)).
			Arg(strconv.FormatInt(now.UnixNano(), 10)).
			Arg(strconv.FormatInt(window.Nanoseconds(), 10)).
			Arg(member).
			Arg(strconv.FormatInt(window.Milliseconds(), 10)).
			Build(),
	).AsInt64()
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// IncrWithTTL executes the increment script atomically on the server.
func (s *Store) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.client.Do(ctx,
		s.client.B().Eval().Script(luaIncrWithTTL).
			Numkeys(1).
			Key(s.key(key)).
			Arg(strconv.FormatInt(ttl.Milliseconds(), 10)).
			Build(),
	).AsInt64()
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}
