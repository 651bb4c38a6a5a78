// Package ratelimit implements tiered, sliding-window rate limiting
// over a shared counter store.
//
// Requests are classified into tiers by path pattern; each tier carries
// its own limit, window, and escalation policy. Counting uses an atomic
// add-and-count against the store, so concurrent checks across
// processes never admit more than the limit. Repeated rejections
// escalate to a block that outlives the counting window.
//
// When the shared store is unreachable the limiter fails open to a
// process-local fixed-window fallback and marks results as degraded
// rather than refusing traffic.
package ratelimit
