package audit

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent
// typos when logging security-relevant events.
const (
	// Input validation events

	// EventThreatDetected is logged when input matches injection patterns
	EventThreatDetected = "threat_detected"

	// Rate limiting events

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"

	// EventIdentifierBlocked is logged when repeated violations escalate to a block
	EventIdentifierBlocked = "identifier_blocked"

	// EventIdentifierUnblocked is logged when a block is lifted administratively
	EventIdentifierUnblocked = "identifier_unblocked"

	// EventRateLimitDegraded is logged when the shared store is unreachable
	// and decisions fall back to the local limiter
	EventRateLimitDegraded = "rate_limit_degraded"

	// Vault events

	// EventVaultUnlocked is logged when the vault derives its active key
	EventVaultUnlocked = "vault_unlocked"

	// EventVaultLocked is logged when key material is zeroized
	EventVaultLocked = "vault_locked"

	// EventDecryptionFailed is logged when a field fails to decrypt
	EventDecryptionFailed = "decryption_failed"

	// Access control events

	// EventPermissionDenied is logged when a permission check denies
	EventPermissionDenied = "permission_denied"

	// EventPatientDataAccessed is logged for every allowed access to an
	// individual patient record by someone other than the patient
	EventPatientDataAccessed = "patient_data_accessed"

	// EventConsentLookupFailed is logged when the consent ledger errors
	// and access fails closed
	EventConsentLookupFailed = "consent_lookup_failed"
)
