package ratelimit

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

// fallbackEntry tracks one identifier's fixed window and its last
// access time for LRU eviction.
type fallbackEntry struct {
	key         string
	windowStart time.Time
	count       int
	lastAccess  time.Time
}

// localLimiter is the process-local fixed-window limiter used while the
// shared store is unreachable. It bounds memory with LRU eviction so a
// store outage cannot be turned into a memory exhaustion.
//
// Fixed windows are coarser than the shared sliding window; during
// degradation an identifier may briefly exceed the shared limit at a
// window boundary. That is the accepted cost of failing open.
type localLimiter struct {
	entries         map[string]*list.Element // key -> list element
	lruList         *list.List               // LRU list of *fallbackEntry
	mu              sync.Mutex
	maxEntries      int
	logger          *slog.Logger
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once

	totalEvictions int64
	totalCleanups  int64
}

const defaultFallbackMaxEntries = 10000

func newLocalLimiter(maxEntries int, logger *slog.Logger) *localLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxEntries <= 0 {
		maxEntries = defaultFallbackMaxEntries
	}

	ll := &localLimiter{
		entries:         make(map[string]*list.Element),
		lruList:         list.New(),
		maxEntries:      maxEntries,
		logger:          logger,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go ll.cleanupLoop()

	return ll
}

// allow counts the request against the key's fixed window and reports
// whether it fits under limit. The caller supplies now so tests and the
// limiter's clock stay in charge of time.
func (ll *localLimiter) allow(key string, limit int, window time.Duration, now time.Time) bool {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if elem, exists := ll.entries[key]; exists {
		ll.lruList.MoveToFront(elem)
		entry := elem.Value.(*fallbackEntry)
		entry.lastAccess = now

		if now.Sub(entry.windowStart) >= window {
			entry.windowStart = now
			entry.count = 0
		}
		entry.count++
		return entry.count <= limit
	}

	if len(ll.entries) >= ll.maxEntries {
		ll.evictLRU()
	}

	entry := &fallbackEntry{
		key:         key,
		windowStart: now,
		count:       1,
		lastAccess:  now,
	}
	ll.entries[key] = ll.lruList.PushFront(entry)

	return entry.count <= limit
}

// evictLRU removes the least recently used entry. Must be called with
// the mutex locked.
func (ll *localLimiter) evictLRU() {
	elem := ll.lruList.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*fallbackEntry)
	delete(ll.entries, entry.key)
	ll.lruList.Remove(elem)
	ll.totalEvictions++

	ll.logger.Debug("Fallback limiter LRU eviction",
		"key", entry.key,
		"total_evictions", ll.totalEvictions,
		"current_entries", len(ll.entries))
}

func (ll *localLimiter) cleanupLoop() {
	ticker := time.NewTicker(ll.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ll.cleanup(30*time.Minute, time.Now())
		case <-ll.stopCleanup:
			return
		}
	}
}

// cleanup removes entries idle longer than maxIdleTime.
func (ll *localLimiter) cleanup(maxIdleTime time.Duration, now time.Time) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	removed := 0
	var next *list.Element
	for elem := ll.lruList.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*fallbackEntry)

		if now.Sub(entry.lastAccess) > maxIdleTime {
			delete(ll.entries, entry.key)
			ll.lruList.Remove(elem)
			removed++
		}
	}

	if removed > 0 {
		ll.totalCleanups++
		ll.logger.Debug("Fallback limiter cleanup completed",
			"removed", removed,
			"remaining", len(ll.entries),
			"total_cleanups", ll.totalCleanups)
	}
}

func (ll *localLimiter) stop() {
	ll.stopOnce.Do(func() { close(ll.stopCleanup) })
}

// FallbackStats holds fallback limiter statistics for monitoring.
type FallbackStats struct {
	CurrentEntries int
	MaxEntries     int
	TotalEvictions int64
	TotalCleanups  int64
}

func (ll *localLimiter) stats() FallbackStats {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	return FallbackStats{
		CurrentEntries: len(ll.entries),
		MaxEntries:     ll.maxEntries,
		TotalEvictions: ll.totalEvictions,
		TotalCleanups:  ll.totalCleanups,
	}
}
