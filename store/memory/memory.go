// Package memory provides an in-memory implementation of the counter
// store contract. It is suitable for development, testing, and
// single-process deployments, and doubles as the fail-open fallback
// when a shared store is unreachable.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/healthstack/securecore/store"
)

// Compile-time interface check.
var _ store.CounterStore = (*Store)(nil)

type valueEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

type zsetEntry struct {
	members   map[string]float64
	expiresAt time.Time
}

// Store is a mutex-guarded, process-local counter store.
// All composite operations execute under a single lock acquisition,
// which is what makes increment-and-compare atomic within the process.
type Store struct {
	mu     sync.Mutex
	values map[string]*valueEntry
	zsets  map[string]*zsetEntry

	clock           func() time.Time
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, used by tests for deterministic
// window arithmetic.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithCleanupInterval sets how often the background sweep removes
// expired keys. Zero or negative keeps the default of one minute.
func WithCleanupInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.cleanupInterval = d
		}
	}
}

// New creates an in-memory store and starts its cleanup sweep.
func New(opts ...Option) *Store {
	s := &Store{
		values:          make(map[string]*valueEntry),
		zsets:           make(map[string]*zsetEntry),
		clock:           time.Now,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

// Stop terminates the background cleanup goroutine.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCleanup:
			return
		}
	}
}

// sweep removes expired values and sorted sets.
func (s *Store) sweep() {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.values {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(s.values, key)
			removed++
		}
	}
	for key, z := range s.zsets {
		if !z.expiresAt.IsZero() && now.After(z.expiresAt) {
			delete(s.zsets, key)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("Memory store cleanup completed",
			"removed", removed,
			"values", len(s.values),
			"zsets", len(s.zsets))
	}
}

// liveValue returns the value entry at key, dropping it when past its
// TTL. Must be called with the mutex held.
func (s *Store) liveValue(key string, now time.Time) (*valueEntry, bool) {
	e, ok := s.values[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
		delete(s.values, key)
		return nil, false
	}
	return e, true
}

func (s *Store) liveZSet(key string, now time.Time) (*zsetEntry, bool) {
	z, ok := s.zsets[key]
	if !ok {
		return nil, false
	}
	if !z.expiresAt.IsZero() && now.After(z.expiresAt) {
		delete(s.zsets, key)
		return nil, false
	}
	return z, true
}

// Get returns the value at key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.liveValue(key, s.clock())
	if !ok {
		return "", store.ErrNotFound
	}
	return e.value, nil
}

// Set stores value at key with the given TTL.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &valueEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.clock().Add(ttl)
	}
	s.values[key] = e
	return nil
}

// Incr atomically increments the integer at key, creating it at 1.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.incrLocked(key)
}

func (s *Store) incrLocked(key string) (int64, error) {
	now := s.clock()
	e, ok := s.liveValue(key, now)
	if !ok {
		s.values[key] = &valueEntry{value: "1"}
		return 1, nil
	}

	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value at %q is not an integer: %w", key, err)
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	return n, nil
}

// Expire sets the remaining TTL on an existing key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if e, ok := s.liveValue(key, now); ok {
		e.expiresAt = now.Add(ttl)
		return nil
	}
	if z, ok := s.liveZSet(key, now); ok {
		z.expiresAt = now.Add(ttl)
		return nil
	}
	return store.ErrNotFound
}

// TTL returns the remaining lifetime of key.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if e, ok := s.liveValue(key, now); ok {
		if e.expiresAt.IsZero() {
			return 0, nil
		}
		return e.expiresAt.Sub(now), nil
	}
	if z, ok := s.liveZSet(key, now); ok {
		if z.expiresAt.IsZero() {
			return 0, nil
		}
		return z.expiresAt.Sub(now), nil
	}
	return 0, store.ErrNotFound
}

// ZAdd inserts member into the sorted set at key.
func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	z, ok := s.liveZSet(key, s.clock())
	if !ok {
		z = &zsetEntry{members: make(map[string]float64)}
		s.zsets[key] = z
	}
	z.members[member] = score
	return nil
}

// ZRemRangeByScore removes members whose score lies in [min, max].
func (s *Store) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	z, ok := s.liveZSet(key, s.clock())
	if !ok {
		return nil
	}
	for member, score := range z.members {
		if score >= min && score <= max {
			delete(z.members, member)
		}
	}
	return nil
}

// ZCount counts members whose score lies in [min, max].
func (s *Store) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	z, ok := s.liveZSet(key, s.clock())
	if !ok {
		return 0, nil
	}
	var n int64
	for _, score := range z.members {
		if score >= min && score <= max {
			n++
		}
	}
	return n, nil
}

// Del removes key from both keyspaces.
func (s *Store) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	delete(s.zsets, key)
	return nil
}

// SlidingWindowAdd prunes entries older than now-window, inserts member
// scored at now, refreshes the TTL, and returns the cardinality. The
// whole sequence runs under one lock acquisition.
func (s *Store) SlidingWindowAdd(ctx context.Context, key string, now time.Time, window time.Duration, member string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	z, ok := s.liveZSet(key, now)
	if !ok {
		z = &zsetEntry{members: make(map[string]float64)}
		s.zsets[key] = z
	}

	cutoff := float64(now.Add(-window).UnixNano())
	for m, score := range z.members {
		if score <= cutoff {
			delete(z.members, m)
		}
	}

	z.members[member] = float64(now.UnixNano())
	z.expiresAt = now.Add(window)

	return int64(len(z.members)), nil
}

// IncrWithTTL increments the counter at key, setting the TTL when the
// increment created the key.
func (s *Store) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.incrLocked(key)
	if err != nil {
		return 0, err
	}
	if n == 1 && ttl > 0 {
		s.values[key].expiresAt = s.clock().Add(ttl)
	}
	return n, nil
}

// Len reports the number of live keys, for monitoring and tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values) + len(s.zsets)
}
