package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Standard rate-limit response headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderTier       = "X-RateLimit-Tier"
	HeaderRetryAfter = "Retry-After"
)

// SetHeaders writes the standard rate-limit headers for a check result.
// Retry-After is only set on denials, in whole seconds rounded up so a
// compliant client never retries early.
func SetHeaders(h http.Header, r Result) {
	h.Set(HeaderLimit, strconv.Itoa(r.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(r.Remaining))
	h.Set(HeaderReset, strconv.FormatInt(r.ResetAt.Unix(), 10))
	h.Set(HeaderTier, r.Tier)

	if !r.Allowed && r.RetryAfter > 0 {
		secs := int64(r.RetryAfter.Seconds())
		if r.RetryAfter%time.Second != 0 {
			secs++
		}
		h.Set(HeaderRetryAfter, strconv.FormatInt(secs, 10))
	}
}
