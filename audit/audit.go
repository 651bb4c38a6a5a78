// Package audit provides security event logging with PII protection.
// Identifiers that could name a person are hashed before they reach the
// log stream, and a flood throttle keeps an attack from drowning the
// audit trail in its own noise.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Auditor handles security event logging with hashed identifiers.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
	clock   func() time.Time

	// flood limits the event rate per process. Events over the limit
	// are dropped silently.
	flood *rate.Limiter
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithClock overrides the time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(a *Auditor) { a.clock = clock }
}

// WithFloodLimit caps logged events per second. Zero or negative
// disables throttling.
func WithFloodLimit(eventsPerSecond int) Option {
	return func(a *Auditor) {
		if eventsPerSecond > 0 {
			a.flood = rate.NewLimiter(rate.Limit(eventsPerSecond), eventsPerSecond)
		} else {
			a.flood = nil
		}
	}
}

// NewAuditor creates a security auditor. A disabled auditor drops all
// events, which is only appropriate for tests.
func NewAuditor(logger *slog.Logger, enabled bool, opts ...Option) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Auditor{
		logger:  logger,
		enabled: enabled,
		clock:   time.Now,
		flood:   rate.NewLimiter(rate.Limit(200), 400),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Event represents a security audit event.
type Event struct {
	ID        string
	Type      string
	Tenant    string
	UserID    string
	PatientID string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII. UserID and PatientID
// are hashed; tenant and IP are operational data and logged as-is.
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}
	if a.flood != nil && !a.flood.Allow() {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Timestamp = a.clock()

	a.logger.Info("security_audit",
		"event_id", event.ID,
		"event_type", event.Type,
		"tenant", event.Tenant,
		"user_id_hash", hashForLogging(event.UserID),
		"patient_id_hash", hashForLogging(event.PatientID),
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogThreatDetected logs an input that matched threat patterns.
func (a *Auditor) LogThreatDetected(tenant, userID, ipAddress string, threats []string) {
	a.LogEvent(Event{
		Type:      EventThreatDetected,
		Tenant:    tenant,
		UserID:    userID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"threats": threats,
		},
	})
}

// LogRateLimitExceeded logs a rate limit violation.
func (a *Auditor) LogRateLimitExceeded(tenant, userID, ipAddress, tier string) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		Tenant:    tenant,
		UserID:    userID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"tier": tier,
		},
	})
}

// LogIdentifierBlocked logs an escalated or administrative block.
func (a *Auditor) LogIdentifierBlocked(tenant, userID, tier string, duration time.Duration) {
	a.LogEvent(Event{
		Type:   EventIdentifierBlocked,
		Tenant: tenant,
		UserID: userID,
		Details: map[string]any{
			"tier":     tier,
			"duration": duration.String(),
		},
	})
}

// LogIdentifierUnblocked logs an administratively lifted block.
func (a *Auditor) LogIdentifierUnblocked(tenant, userID, tier string) {
	a.LogEvent(Event{
		Type:   EventIdentifierUnblocked,
		Tenant: tenant,
		UserID: userID,
		Details: map[string]any{
			"tier": tier,
		},
	})
}

// LogRateLimitDegraded logs a decision made by the local fallback while
// the shared counter store was unreachable.
func (a *Auditor) LogRateLimitDegraded(tenant, userID, tier string) {
	a.LogEvent(Event{
		Type:   EventRateLimitDegraded,
		Tenant: tenant,
		UserID: userID,
		Details: map[string]any{
			"tier": tier,
		},
	})
}

// LogVaultUnlocked logs a successful vault unlock.
func (a *Auditor) LogVaultUnlocked(tenant, userID, keyID string) {
	a.LogEvent(Event{
		Type:   EventVaultUnlocked,
		Tenant: tenant,
		UserID: userID,
		Details: map[string]any{
			"key_id": keyID,
		},
	})
}

// LogVaultLocked logs zeroization of the vault's key material.
func (a *Auditor) LogVaultLocked(tenant, userID, keyID string) {
	a.LogEvent(Event{
		Type:   EventVaultLocked,
		Tenant: tenant,
		UserID: userID,
		Details: map[string]any{
			"key_id": keyID,
		},
	})
}

// LogDecryptionFailure logs a failed field decryption. The cause is
// deliberately absent: wrong key, tampering, and corruption must stay
// indistinguishable even in the audit trail.
func (a *Auditor) LogDecryptionFailure(tenant, userID, keyID string) {
	a.LogEvent(Event{
		Type:   EventDecryptionFailed,
		Tenant: tenant,
		UserID: userID,
		Details: map[string]any{
			"key_id": keyID,
		},
	})
}

// LogPermissionDenied logs a denied permission check.
func (a *Auditor) LogPermissionDenied(tenant, userID, resource, action string) {
	a.LogEvent(Event{
		Type:   EventPermissionDenied,
		Tenant: tenant,
		UserID: userID,
		Details: map[string]any{
			"resource": resource,
			"action":   action,
		},
	})
}

// LogPatientDataAccess records an allowed access to an individual
// patient record. This is the obligation attached to privileged reads.
func (a *Auditor) LogPatientDataAccess(tenant, userID, patientID, role, action string) {
	a.LogEvent(Event{
		Type:      EventPatientDataAccessed,
		Tenant:    tenant,
		UserID:    userID,
		PatientID: patientID,
		Details: map[string]any{
			"role":   role,
			"action": action,
		},
	})
}

// LogConsentLookupFailed logs a consent ledger failure. The access it
// would have decided was denied fail-closed.
func (a *Auditor) LogConsentLookupFailed(tenant, userID, patientID string) {
	a.LogEvent(Event{
		Type:      EventConsentLookupFailed,
		Tenant:    tenant,
		UserID:    userID,
		PatientID: patientID,
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
