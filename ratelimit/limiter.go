package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/healthstack/securecore/store"
)

// Event describes one limiter decision for audit and monitoring hooks.
type Event struct {
	Type       string    `json:"type"`
	Tenant     string    `json:"tenant"`
	Identifier string    `json:"identifier"`
	Tier       string    `json:"tier"`
	Allowed    bool      `json:"allowed"`
	Count      int64     `json:"count"`
	Limit      int       `json:"limit"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event types emitted by the limiter.
const (
	EventChecked   = "ratelimit.checked"
	EventDenied    = "ratelimit.denied"
	EventBlocked   = "ratelimit.blocked"
	EventUnblocked = "ratelimit.unblocked"
	EventDegraded  = "ratelimit.degraded"
)

// Result is the outcome of one rate-limit check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Tier is the name of the tier the request classified into.
	Tier string

	// Limit is the tier's request budget per window.
	Limit int

	// Remaining is the budget left in the current window.
	Remaining int

	// ResetAt is when the current window's oldest pressure expires.
	ResetAt time.Time

	// TotalRequests is the count observed in the window, including
	// this request.
	TotalRequests int64

	// Blocked reports that the identifier is under an escalated block,
	// not merely over the window limit.
	Blocked bool

	// RetryAfter is how long the caller should wait before retrying.
	// Zero when the request was allowed.
	RetryAfter time.Duration

	// Degraded reports that the shared store was unreachable and the
	// decision came from the process-local fallback.
	Degraded bool
}

// Limiter enforces tiered sliding-window limits against a shared
// counter store, with escalation to blocks and fail-open degradation.
type Limiter struct {
	store  store.CounterStore
	tiers  *TierSet
	logger *slog.Logger
	clock  func() time.Time

	fallback *localLimiter

	// degradedLog throttles the store-unreachable warning so an outage
	// does not flood the logs.
	degradedLog *rate.Limiter

	onEvent func(Event)

	// newMember generates unique sliding-window members; overridable
	// in tests.
	newMember func() string
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithTiers replaces the built-in tier set.
func WithTiers(ts *TierSet) Option {
	return func(l *Limiter) { l.tiers = ts }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithClock overrides the time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) { l.clock = clock }
}

// WithEventHandler registers a hook invoked synchronously with every
// limiter event. Handlers must be fast; slow ones stall checks.
func WithEventHandler(fn func(Event)) Option {
	return func(l *Limiter) { l.onEvent = fn }
}

// WithFallbackMaxEntries caps the number of identifiers tracked by the
// local fallback during store outages.
func WithFallbackMaxEntries(n int) Option {
	return func(l *Limiter) { l.fallback = newLocalLimiter(n, l.logger) }
}

// New creates a limiter over the given store, defaulting to
// DefaultTiers.
func New(st store.CounterStore, opts ...Option) (*Limiter, error) {
	if st == nil {
		return nil, fmt.Errorf("ratelimit: store is required")
	}

	l := &Limiter{
		store:       st,
		logger:      slog.Default(),
		clock:       time.Now,
		degradedLog: rate.NewLimiter(rate.Every(10*time.Second), 1),
		newMember:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.tiers == nil {
		ts, err := NewTierSet(DefaultTiers())
		if err != nil {
			return nil, err
		}
		l.tiers = ts
	}
	if l.fallback == nil {
		l.fallback = newLocalLimiter(defaultFallbackMaxEntries, l.logger)
	}
	return l, nil
}

// Close stops the fallback limiter's background cleanup.
func (l *Limiter) Close() {
	l.fallback.stop()
}

func counterKey(tier, tenant, identifier string) string {
	return "rl:" + tier + ":" + tenant + ":" + identifier
}

func blockKey(tier, tenant, identifier string) string {
	return "rl:block:" + tier + ":" + tenant + ":" + identifier
}

func violationKey(tier, tenant, identifier string) string {
	return "rl:viol:" + tier + ":" + tenant + ":" + identifier
}

// Check counts one request from identifier within tenant against the
// tier selected by path and reports whether it may proceed. Blocks are
// consulted before counting, so blocked traffic adds no window
// pressure. Store unavailability degrades to the local fallback rather
// than failing the request.
func (l *Limiter) Check(ctx context.Context, tenant, identifier, path string) (Result, error) {
	if identifier == "" {
		return Result{}, fmt.Errorf("ratelimit: identifier is required")
	}

	tier := l.tiers.Match(path)
	now := l.clock()

	blocked, retryAfter, err := l.isBlocked(ctx, tier, tenant, identifier)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			return l.degraded(tier, tenant, identifier, now), nil
		}
		return Result{}, err
	}
	if blocked {
		res := Result{
			Allowed:    false,
			Tier:       tier.Name,
			Limit:      tier.Limit,
			Blocked:    true,
			RetryAfter: retryAfter,
			ResetAt:    now.Add(retryAfter),
		}
		l.emit(EventBlocked, tenant, identifier, tier, false, 0, now)
		return res, nil
	}

	count, err := l.store.SlidingWindowAdd(ctx, counterKey(tier.Name, tenant, identifier), now, tier.Window, l.newMember())
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			return l.degraded(tier, tenant, identifier, now), nil
		}
		return Result{}, fmt.Errorf("ratelimit: counting request: %w", err)
	}

	res := Result{
		Tier:          tier.Name,
		Limit:         tier.Limit,
		TotalRequests: count,
		ResetAt:       now.Add(tier.Window),
	}

	if count <= int64(tier.Limit) {
		res.Allowed = true
		res.Remaining = tier.Limit - int(count)
		l.emit(EventChecked, tenant, identifier, tier, true, count, now)
		return res, nil
	}

	res.Allowed = false
	res.Remaining = 0
	res.RetryAfter = tier.Window
	l.emit(EventDenied, tenant, identifier, tier, false, count, now)

	if tier.BlockThreshold > 0 {
		if err := l.escalate(ctx, tier, tenant, identifier, now, &res); err != nil {
			// Escalation is best effort; the request is already denied.
			l.logger.Warn("Rate limit escalation failed",
				"tenant", tenant,
				"tier", tier.Name,
				"error", err)
		}
	}
	return res, nil
}

// escalate counts the rejection and, at the threshold, installs a block
// that survives window resets.
func (l *Limiter) escalate(ctx context.Context, tier Tier, tenant, identifier string, now time.Time, res *Result) error {
	violations, err := l.store.IncrWithTTL(ctx, violationKey(tier.Name, tenant, identifier), tier.Window)
	if err != nil {
		return err
	}
	if violations < int64(tier.BlockThreshold) {
		return nil
	}

	if err := l.store.Set(ctx, blockKey(tier.Name, tenant, identifier), "1", tier.BlockDuration); err != nil {
		return err
	}

	res.Blocked = true
	res.RetryAfter = tier.BlockDuration
	res.ResetAt = now.Add(tier.BlockDuration)

	l.logger.Warn("Identifier blocked after repeated rate limit violations",
		"tenant", tenant,
		"tier", tier.Name,
		"violations", violations,
		"block_duration", tier.BlockDuration)
	l.emit(EventBlocked, tenant, identifier, tier, false, violations, now)
	return nil
}

func (l *Limiter) isBlocked(ctx context.Context, tier Tier, tenant, identifier string) (bool, time.Duration, error) {
	key := blockKey(tier.Name, tenant, identifier)
	if _, err := l.store.Get(ctx, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, 0, nil
		}
		return false, 0, err
	}

	ttl, err := l.store.TTL(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Block expired between the two reads.
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, ttl, nil
}

// IsBlocked reports whether the identifier is under an escalated block
// in the named tier, and for how much longer.
func (l *Limiter) IsBlocked(ctx context.Context, tenant, identifier, tierName string) (bool, time.Duration, error) {
	tier, ok := l.tiers.ByName(tierName)
	if !ok {
		return false, 0, fmt.Errorf("ratelimit: unknown tier %q", tierName)
	}
	return l.isBlocked(ctx, tier, tenant, identifier)
}

// BlockIdentifier installs an administrative block, independent of any
// counting window.
func (l *Limiter) BlockIdentifier(ctx context.Context, tenant, identifier, tierName string, d time.Duration) error {
	tier, ok := l.tiers.ByName(tierName)
	if !ok {
		return fmt.Errorf("ratelimit: unknown tier %q", tierName)
	}
	if d <= 0 {
		return fmt.Errorf("ratelimit: block duration must be positive")
	}

	if err := l.store.Set(ctx, blockKey(tier.Name, tenant, identifier), "1", d); err != nil {
		return fmt.Errorf("ratelimit: installing block: %w", err)
	}
	l.emit(EventBlocked, tenant, identifier, tier, false, 0, l.clock())
	return nil
}

// UnblockIdentifier lifts a block and clears the violation count so the
// identifier starts from a clean slate.
func (l *Limiter) UnblockIdentifier(ctx context.Context, tenant, identifier, tierName string) error {
	tier, ok := l.tiers.ByName(tierName)
	if !ok {
		return fmt.Errorf("ratelimit: unknown tier %q", tierName)
	}

	if err := l.store.Del(ctx, blockKey(tier.Name, tenant, identifier)); err != nil {
		return fmt.Errorf("ratelimit: lifting block: %w", err)
	}
	if err := l.store.Del(ctx, violationKey(tier.Name, tenant, identifier)); err != nil {
		return fmt.Errorf("ratelimit: clearing violations: %w", err)
	}
	l.emit(EventUnblocked, tenant, identifier, tier, true, 0, l.clock())
	return nil
}

// degraded decides via the local fallback while the store is down.
func (l *Limiter) degraded(tier Tier, tenant, identifier string, now time.Time) Result {
	if l.degradedLog.Allow() {
		l.logger.Warn("Counter store unreachable, using local fallback limiter",
			"tier", tier.Name,
			"tenant", tenant)
	}

	allowed := l.fallback.allow(counterKey(tier.Name, tenant, identifier), tier.Limit, tier.Window, now)

	res := Result{
		Allowed:  allowed,
		Tier:     tier.Name,
		Limit:    tier.Limit,
		ResetAt:  now.Add(tier.Window),
		Degraded: true,
	}
	if !allowed {
		res.RetryAfter = tier.Window
	}
	l.emit(EventDegraded, tenant, identifier, tier, allowed, 0, now)
	return res
}

// FallbackStats reports local fallback statistics for monitoring.
func (l *Limiter) FallbackStats() FallbackStats {
	return l.fallback.stats()
}

func (l *Limiter) emit(eventType, tenant, identifier string, tier Tier, allowed bool, count int64, now time.Time) {
	if l.onEvent == nil {
		return
	}
	l.onEvent(Event{
		Type:       eventType,
		Tenant:     tenant,
		Identifier: identifier,
		Tier:       tier.Name,
		Allowed:    allowed,
		Count:      count,
		Limit:      tier.Limit,
		Timestamp:  now,
	})
}
