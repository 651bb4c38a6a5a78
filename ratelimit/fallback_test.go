package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestLocalLimiter_FixedWindow(t *testing.T) {
	ll := newLocalLimiter(100, nil)
	defer ll.stop()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		if got := ll.allow("k", 3, time.Minute, now); !got {
			t.Errorf("request #%d denied inside limit", i)
		}
	}
	if ll.allow("k", 3, time.Minute, now) {
		t.Error("request over limit allowed")
	}

	// A new window resets the count.
	now = now.Add(time.Minute)
	if !ll.allow("k", 3, time.Minute, now) {
		t.Error("request denied after window reset")
	}
}

func TestLocalLimiter_LRUEviction(t *testing.T) {
	ll := newLocalLimiter(3, nil)
	defer ll.stop()

	now := time.Now()
	for i := 0; i < 5; i++ {
		ll.allow(fmt.Sprintf("k%d", i), 10, time.Minute, now)
	}

	stats := ll.stats()
	if stats.CurrentEntries != 3 {
		t.Errorf("CurrentEntries = %d, want 3", stats.CurrentEntries)
	}
	if stats.TotalEvictions != 2 {
		t.Errorf("TotalEvictions = %d, want 2", stats.TotalEvictions)
	}
}

func TestLocalLimiter_Cleanup(t *testing.T) {
	ll := newLocalLimiter(100, nil)
	defer ll.stop()

	now := time.Now()
	ll.allow("old", 10, time.Minute, now)
	ll.allow("fresh", 10, time.Minute, now.Add(45*time.Minute))

	ll.cleanup(30*time.Minute, now.Add(46*time.Minute))

	stats := ll.stats()
	if stats.CurrentEntries != 1 {
		t.Errorf("CurrentEntries = %d, want 1 after cleanup", stats.CurrentEntries)
	}
}
