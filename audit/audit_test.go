package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newCapturingAuditor(t *testing.T, enabled bool, opts ...Option) (*Auditor, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewAuditor(logger, enabled, opts...), &buf
}

func TestLogEvent_HashesPII(t *testing.T) {
	a, buf := newCapturingAuditor(t, true)

	a.LogEvent(Event{
		Type:      EventPermissionDenied,
		Tenant:    "clinic-a",
		UserID:    "user-secret-42",
		PatientID: "patient-77",
		IPAddress: "203.0.113.9",
	})

	out := buf.String()
	if strings.Contains(out, "user-secret-42") {
		t.Error("raw user ID leaked into audit log")
	}
	if strings.Contains(out, "patient-77") {
		t.Error("raw patient ID leaked into audit log")
	}
	if !strings.Contains(out, "user_id_hash") || !strings.Contains(out, "patient_id_hash") {
		t.Errorf("hashed identifiers missing: %s", out)
	}
	if !strings.Contains(out, "clinic-a") || !strings.Contains(out, "203.0.113.9") {
		t.Errorf("operational fields missing: %s", out)
	}
}

func TestLogEvent_AssignsEventID(t *testing.T) {
	a, buf := newCapturingAuditor(t, true)

	a.LogEvent(Event{Type: EventThreatDetected})

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log record: %v", err)
	}
	id, _ := record["event_id"].(string)
	if id == "" {
		t.Error("event_id missing or empty")
	}
}

func TestLogEvent_DisabledDropsEverything(t *testing.T) {
	a, buf := newCapturingAuditor(t, false)

	a.LogThreatDetected("clinic-a", "u", "203.0.113.9", []string{"SQL_INJECTION"})

	if buf.Len() != 0 {
		t.Errorf("disabled auditor wrote output: %s", buf.String())
	}
}

func TestLogEvent_FloodThrottle(t *testing.T) {
	a, buf := newCapturingAuditor(t, true, WithFloodLimit(5))

	for i := 0; i < 100; i++ {
		a.LogEvent(Event{Type: EventRateLimitExceeded})
	}

	lines := strings.Count(buf.String(), "\n")
	// Burst capacity equals the per-second limit.
	if lines > 10 {
		t.Errorf("flood throttle let %d events through, want <= 10", lines)
	}
	if lines == 0 {
		t.Error("flood throttle dropped everything")
	}
}

func TestLogEvent_UsesInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, buf := newCapturingAuditor(t, true, WithClock(func() time.Time { return fixed }))

	a.LogVaultUnlocked("clinic-a", "u", "abc123")

	if !strings.Contains(buf.String(), "2026-03-01T12:00:00") {
		t.Errorf("timestamp not from injected clock: %s", buf.String())
	}
}

func TestTypedHelpers(t *testing.T) {
	tests := []struct {
		name string
		log  func(a *Auditor)
		want string
	}{
		{
			name: "threat detected",
			log:  func(a *Auditor) { a.LogThreatDetected("t", "u", "ip", []string{"SQL_INJECTION"}) },
			want: EventThreatDetected,
		},
		{
			name: "rate limit",
			log:  func(a *Auditor) { a.LogRateLimitExceeded("t", "u", "ip", "auth") },
			want: EventRateLimitExceeded,
		},
		{
			name: "blocked",
			log:  func(a *Auditor) { a.LogIdentifierBlocked("t", "u", "auth", 5*time.Minute) },
			want: EventIdentifierBlocked,
		},
		{
			name: "unblocked",
			log:  func(a *Auditor) { a.LogIdentifierUnblocked("t", "u", "auth") },
			want: EventIdentifierUnblocked,
		},
		{
			name: "degraded",
			log:  func(a *Auditor) { a.LogRateLimitDegraded("t", "u", "api") },
			want: EventRateLimitDegraded,
		},
		{
			name: "vault unlocked",
			log:  func(a *Auditor) { a.LogVaultUnlocked("t", "u", "kid") },
			want: EventVaultUnlocked,
		},
		{
			name: "vault locked",
			log:  func(a *Auditor) { a.LogVaultLocked("t", "u", "kid") },
			want: EventVaultLocked,
		},
		{
			name: "decryption failure",
			log:  func(a *Auditor) { a.LogDecryptionFailure("t", "u", "kid") },
			want: EventDecryptionFailed,
		},
		{
			name: "permission denied",
			log:  func(a *Auditor) { a.LogPermissionDenied("t", "u", "health:own", "read") },
			want: EventPermissionDenied,
		},
		{
			name: "patient data access",
			log:  func(a *Auditor) { a.LogPatientDataAccess("t", "u", "p", "DOCTOR", "read") },
			want: EventPatientDataAccessed,
		},
		{
			name: "consent lookup failed",
			log:  func(a *Auditor) { a.LogConsentLookupFailed("t", "u", "p") },
			want: EventConsentLookupFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, buf := newCapturingAuditor(t, true)
			tt.log(a)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("log output missing event type %q: %s", tt.want, buf.String())
			}
		})
	}
}

func TestHashForLogging(t *testing.T) {
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q", got)
	}
	a, b := hashForLogging("user-1"), hashForLogging("user-1")
	if a != b {
		t.Error("hash not deterministic")
	}
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}
	if a == hashForLogging("user-2") {
		t.Error("distinct inputs collided")
	}
}
