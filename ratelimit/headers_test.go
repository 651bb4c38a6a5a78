package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestSetHeaders_Allowed(t *testing.T) {
	h := http.Header{}
	resetAt := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	SetHeaders(h, Result{
		Allowed:   true,
		Tier:      "api",
		Limit:     100,
		Remaining: 42,
		ResetAt:   resetAt,
	})

	if got := h.Get(HeaderLimit); got != "100" {
		t.Errorf("%s = %q, want 100", HeaderLimit, got)
	}
	if got := h.Get(HeaderRemaining); got != "42" {
		t.Errorf("%s = %q, want 42", HeaderRemaining, got)
	}
	if got := h.Get(HeaderReset); got != "1772366460" {
		t.Errorf("%s = %q, want %d", HeaderReset, got, resetAt.Unix())
	}
	if got := h.Get(HeaderTier); got != "api" {
		t.Errorf("%s = %q, want api", HeaderTier, got)
	}
	if got := h.Get(HeaderRetryAfter); got != "" {
		t.Errorf("%s = %q, want unset on allowed result", HeaderRetryAfter, got)
	}
}

func TestSetHeaders_DeniedRoundsRetryAfterUp(t *testing.T) {
	h := http.Header{}
	SetHeaders(h, Result{
		Allowed:    false,
		Tier:       "auth",
		Limit:      5,
		RetryAfter: 1500 * time.Millisecond,
	})

	if got := h.Get(HeaderRetryAfter); got != "2" {
		t.Errorf("%s = %q, want 2 (rounded up)", HeaderRetryAfter, got)
	}
	if got := h.Get(HeaderRemaining); got != "0" {
		t.Errorf("%s = %q, want 0", HeaderRemaining, got)
	}
}
