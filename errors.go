package securecore

import (
	"fmt"
	"net/http"
)

// Security error codes as constants
const (
	ErrorCodeThreatDetected    = "threat_detected"
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrorCodeIdentifierBlocked = "identifier_blocked"
	ErrorCodeVaultLocked       = "vault_locked"
	ErrorCodeDecryptionFailed  = "decryption_failed"
	ErrorCodePermissionDenied  = "permission_denied"
	ErrorCodeStoreUnavailable  = "store_unavailable"
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeServerError       = "server_error"
)

// SecurityError represents a security enforcement failure with an HTTP
// mapping. Description is safe to return to callers; it never carries
// the internal reason for a denial.
type SecurityError struct {
	Code        string // Stable error code (e.g., "rate_limit_exceeded")
	Description string // Human-readable error description
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *SecurityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewSecurityError creates a new security error
func NewSecurityError(code, description string, status int) *SecurityError {
	return &SecurityError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Common security errors as reusable constructors
var (
	// ErrThreatDetected indicates the input matched injection signatures
	ErrThreatDetected = func(desc string) *SecurityError {
		return NewSecurityError(ErrorCodeThreatDetected, desc, http.StatusBadRequest)
	}

	// ErrRateLimitExceeded indicates the caller is over its tier's window limit
	ErrRateLimitExceeded = func(desc string) *SecurityError {
		return NewSecurityError(ErrorCodeRateLimitExceeded, desc, http.StatusTooManyRequests)
	}

	// ErrIdentifierBlocked indicates the caller is under an escalated block
	ErrIdentifierBlocked = func(desc string) *SecurityError {
		return NewSecurityError(ErrorCodeIdentifierBlocked, desc, http.StatusTooManyRequests)
	}

	// ErrVaultLocked indicates a cryptographic operation was attempted
	// before the vault derived its key
	ErrVaultLocked = func(desc string) *SecurityError {
		return NewSecurityError(ErrorCodeVaultLocked, desc, http.StatusServiceUnavailable)
	}

	// ErrDecryptionFailed indicates a field could not be decrypted
	ErrDecryptionFailed = func(desc string) *SecurityError {
		return NewSecurityError(ErrorCodeDecryptionFailed, desc, http.StatusUnprocessableEntity)
	}

	// ErrPermissionDenied indicates the caller lacks a matching grant
	ErrPermissionDenied = func(desc string) *SecurityError {
		return NewSecurityError(ErrorCodePermissionDenied, desc, http.StatusForbidden)
	}

	// ErrStoreUnavailable indicates the shared counter store is unreachable
	ErrStoreUnavailable = func(desc string) *SecurityError {
		return NewSecurityError(ErrorCodeStoreUnavailable, desc, http.StatusServiceUnavailable)
	}

	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = func(desc string) *SecurityError {
		return NewSecurityError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// ErrServerError indicates an internal error occurred
	ErrServerError = func(desc string) *SecurityError {
		return NewSecurityError(ErrorCodeServerError, desc, http.StatusInternalServerError)
	}
)
