package securecore

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/healthstack/securecore/instrumentation"
	"github.com/healthstack/securecore/ratelimit"
	"github.com/healthstack/securecore/rbac"
	"github.com/healthstack/securecore/validate"
)

// Config holds the security guard configuration.
// Structured using composition for better organization and maintainability.
type Config struct {
	// Store configures the shared counter store backing rate limiting.
	Store StoreConfig

	// RateLimit configures tiered request limiting.
	RateLimit RateLimitConfig

	// Validation configures input threat detection.
	Validation ValidationConfig

	// Access configures role-based access control.
	Access AccessConfig

	// Security holds cross-cutting security settings (secure by default).
	Security SecurityConfig

	// Telemetry configures OpenTelemetry instrumentation.
	Telemetry instrumentation.Config

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// StoreConfig selects and configures the counter store backend.
// An empty ValkeyAddress selects the in-process memory store.
type StoreConfig struct {
	// ValkeyAddress is the host:port of a Valkey or Redis server.
	// Empty means rate limiting state stays process-local.
	ValkeyAddress string

	// ValkeyPassword authenticates to the server. Optional.
	ValkeyPassword string

	// DB selects the logical database.
	DB int

	// KeyPrefix namespaces all keys. Default: "seccore:".
	KeyPrefix string

	// TLS enables encrypted connections when non-nil. Handed to the
	// Valkey client unchanged.
	TLS *tls.Config

	// OpTimeout bounds each store round trip. Default: 500ms. Keeping
	// this short is what makes fail-open degradation fast.
	OpTimeout time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Tiers is the ordered tier list; the last tier must be a
	// catch-all. Nil uses ratelimit.DefaultTiers.
	Tiers []ratelimit.Tier

	// FallbackMaxEntries caps identifiers tracked by the local
	// fallback during store outages. Zero uses the default.
	FallbackMaxEntries int

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TrustedProxyCount is how many proxies to trust from the right of
	// X-Forwarded-For. Zero assumes one.
	TrustedProxyCount int
}

// ValidationConfig holds input validation configuration
type ValidationConfig struct {
	// MaxLength rejects request inputs longer than this many bytes.
	// Zero means no limit.
	MaxLength int

	// RequireUTF8 rejects inputs that are not valid UTF-8.
	RequireUTF8 bool

	// Mode selects the sanitizer applied to inputs.
	Mode validate.SanitizeMode
}

// AccessConfig holds access control configuration
type AccessConfig struct {
	// Roles replaces the built-in role graph. Nil uses
	// rbac.DefaultRoles.
	Roles []rbac.RoleDefinition

	// ConsentLedger answers patient consent lookups. Nil denies all
	// consent-gated access.
	ConsentLedger rbac.ConsentLedger
}

// SecurityConfig holds cross-cutting security settings (secure by default)
type SecurityConfig struct {
	// DisableAuditLogging turns off the security audit trail.
	// WARNING: Only for tests. Privileged patient-data reads carry an
	// audit obligation that cannot be fulfilled without it.
	DisableAuditLogging bool

	// AuditFloodLimit caps audit events per second. Zero uses the
	// auditor's default.
	AuditFloodLimit int

	// ServerURL is the externally visible base URL, used to decide
	// whether HSTS headers apply.
	ServerURL string
}

// Validate checks the configuration for errors that would only surface
// at request time.
func (c *Config) Validate() error {
	if c.Store.OpTimeout < 0 {
		return fmt.Errorf("securecore: store op timeout must not be negative")
	}
	if c.RateLimit.FallbackMaxEntries < 0 {
		return fmt.Errorf("securecore: fallback max entries must not be negative")
	}
	if c.Validation.MaxLength < 0 {
		return fmt.Errorf("securecore: validation max length must not be negative")
	}

	if c.RateLimit.Tiers != nil {
		if _, err := ratelimit.NewTierSet(c.RateLimit.Tiers); err != nil {
			return fmt.Errorf("securecore: %w", err)
		}
	}
	if c.Access.Roles != nil {
		if _, err := rbac.NewEvaluator(rbac.WithRoles(c.Access.Roles)); err != nil {
			return fmt.Errorf("securecore: %w", err)
		}
	}
	return nil
}
