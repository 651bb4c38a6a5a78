package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the securecore library
type Metrics struct {
	// Rate Limiting Metrics
	RateLimitChecksTotal   metric.Int64Counter
	RateLimitDenialsTotal  metric.Int64Counter
	RateLimitBlocksTotal   metric.Int64Counter
	RateLimitFallbackTotal metric.Int64Counter
	RateLimitCheckDuration metric.Float64Histogram

	// Vault Metrics
	VaultOperationsTotal   metric.Int64Counter
	VaultDecryptFailures   metric.Int64Counter
	VaultOperationDuration metric.Float64Histogram

	// Access Control Metrics
	PermissionChecksTotal  metric.Int64Counter
	PermissionDenialsTotal metric.Int64Counter

	// Validation Metrics
	ThreatsDetectedTotal metric.Int64Counter

	// Store Metrics
	StoreOperationTotal    metric.Int64Counter
	StoreOperationDuration metric.Float64Histogram
	StoreKeysCount         metric.Int64ObservableGauge

	// Audit Metrics
	AuditEventsTotal metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	rateMeter := inst.Meter("ratelimit")
	vaultMeter := inst.Meter("vault")
	rbacMeter := inst.Meter("rbac")
	validateMeter := inst.Meter("validate")
	storeMeter := inst.Meter("store")
	auditMeter := inst.Meter("audit")

	var err error

	// Rate Limiting Metrics
	m.RateLimitChecksTotal, err = rateMeter.Int64Counter(
		"securecore.ratelimit.checks.total",
		metric.WithDescription("Total number of rate limit checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.checks.total counter: %w", err)
	}

	m.RateLimitDenialsTotal, err = rateMeter.Int64Counter(
		"securecore.ratelimit.denials.total",
		metric.WithDescription("Number of requests denied by rate limiting"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.denials.total counter: %w", err)
	}

	m.RateLimitBlocksTotal, err = rateMeter.Int64Counter(
		"securecore.ratelimit.blocks.total",
		metric.WithDescription("Number of identifiers escalated to blocks"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.blocks.total counter: %w", err)
	}

	m.RateLimitFallbackTotal, err = rateMeter.Int64Counter(
		"securecore.ratelimit.fallback.total",
		metric.WithDescription("Number of checks decided by the local fallback limiter"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.fallback.total counter: %w", err)
	}

	m.RateLimitCheckDuration, err = rateMeter.Float64Histogram(
		"securecore.ratelimit.check.duration",
		metric.WithDescription("Rate limit check duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.check.duration histogram: %w", err)
	}

	// Vault Metrics
	m.VaultOperationsTotal, err = vaultMeter.Int64Counter(
		"securecore.vault.operations.total",
		metric.WithDescription("Total number of encryption/decryption operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault.operations.total counter: %w", err)
	}

	m.VaultDecryptFailures, err = vaultMeter.Int64Counter(
		"securecore.vault.decrypt_failures.total",
		metric.WithDescription("Number of failed field decryptions"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault.decrypt_failures.total counter: %w", err)
	}

	m.VaultOperationDuration, err = vaultMeter.Float64Histogram(
		"securecore.vault.operation.duration",
		metric.WithDescription("Vault operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault.operation.duration histogram: %w", err)
	}

	// Access Control Metrics
	m.PermissionChecksTotal, err = rbacMeter.Int64Counter(
		"securecore.rbac.checks.total",
		metric.WithDescription("Total number of permission checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rbac.checks.total counter: %w", err)
	}

	m.PermissionDenialsTotal, err = rbacMeter.Int64Counter(
		"securecore.rbac.denials.total",
		metric.WithDescription("Number of denied permission checks"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rbac.denials.total counter: %w", err)
	}

	// Validation Metrics
	m.ThreatsDetectedTotal, err = validateMeter.Int64Counter(
		"securecore.validate.threats.total",
		metric.WithDescription("Number of threats detected in input, by family"),
		metric.WithUnit("{threat}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validate.threats.total counter: %w", err)
	}

	// Store Metrics
	m.StoreOperationTotal, err = storeMeter.Int64Counter(
		"securecore.store.operation.total",
		metric.WithDescription("Total number of counter store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store.operation.total counter: %w", err)
	}

	m.StoreOperationDuration, err = storeMeter.Float64Histogram(
		"securecore.store.operation.duration",
		metric.WithDescription("Counter store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store.operation.duration histogram: %w", err)
	}

	m.StoreKeysCount, err = storeMeter.Int64ObservableGauge(
		"securecore.store.keys",
		metric.WithDescription("Number of live keys in the counter store"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store.keys gauge: %w", err)
	}

	// Audit Metrics
	m.AuditEventsTotal, err = auditMeter.Int64Counter(
		"securecore.audit.events.total",
		metric.WithDescription("Total number of audit events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.events.total counter: %w", err)
	}

	return m, nil
}

// Helper methods for common metric recording patterns

// RecordRateLimitCheck records a rate limit check and its outcome
func (m *Metrics) RecordRateLimitCheck(ctx context.Context, tier string, allowed bool, durationMs float64) {
	m.RateLimitChecksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.Bool("allowed", allowed),
	))
	m.RateLimitCheckDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("tier", tier),
	))
	if !allowed {
		m.RateLimitDenialsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tier", tier),
		))
	}
}

// RecordRateLimitBlock records an identifier escalating to a block
func (m *Metrics) RecordRateLimitBlock(ctx context.Context, tier string) {
	m.RateLimitBlocksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
	))
}

// RecordRateLimitFallback records a check decided by the local fallback
func (m *Metrics) RecordRateLimitFallback(ctx context.Context, tier string) {
	m.RateLimitFallbackTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
	))
}

// RecordVaultOperation records an encryption or decryption operation
func (m *Metrics) RecordVaultOperation(ctx context.Context, operation string, durationMs float64) {
	m.VaultOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
	m.VaultOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordVaultDecryptFailure records a failed field decryption
func (m *Metrics) RecordVaultDecryptFailure(ctx context.Context) {
	m.VaultDecryptFailures.Add(ctx, 1)
}

// RecordPermissionCheck records a permission check and its outcome
func (m *Metrics) RecordPermissionCheck(ctx context.Context, role string, allowed bool) {
	m.PermissionChecksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", role),
		attribute.Bool("allowed", allowed),
	))
	if !allowed {
		m.PermissionDenialsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("role", role),
		))
	}
}

// RecordThreatDetected records detected threats by family
func (m *Metrics) RecordThreatDetected(ctx context.Context, families []string) {
	for _, family := range families {
		m.ThreatsDetectedTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("family", family),
		))
	}
}

// RecordStoreOperation records a counter store operation
func (m *Metrics) RecordStoreOperation(ctx context.Context, operation, result string, durationMs float64) {
	m.StoreOperationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
	m.StoreOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordAuditEvent records an audit event
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}
