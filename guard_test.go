package securecore

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/healthstack/securecore/audit"
	"github.com/healthstack/securecore/internal/testutil"
	"github.com/healthstack/securecore/ratelimit"
	"github.com/healthstack/securecore/rbac"
	"github.com/healthstack/securecore/store/valkey"
)

func newTestGuard(t *testing.T, cfg Config) *Guard {
	t.Helper()
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(g.Close)
	return g
}

func TestGuard_AllowsCleanRequest(t *testing.T) {
	g := newTestGuard(t, Config{})

	v, err := g.Check(context.Background(), Request{
		Tenant:     "clinic-a",
		Identifier: "user-1",
		Path:       "/api/v1/records",
		Input:      "patient reported mild headache",
		Role:       rbac.RoleUser,
		Resource:   "health:own",
		Action:     "read",
	})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !v.Allowed {
		t.Fatalf("Allowed = false: %v", v.Err)
	}
	if v.RateLimit.Tier != "api" {
		t.Errorf("Tier = %q, want api", v.RateLimit.Tier)
	}
	if !v.Decision.Allowed {
		t.Errorf("Decision denied: %s", v.Decision.Reason)
	}
}

func TestGuard_RejectsThreatBeforeOtherStages(t *testing.T) {
	g := newTestGuard(t, Config{})

	v, err := g.Check(context.Background(), Request{
		Tenant:     "clinic-a",
		Identifier: "user-1",
		Path:       "/api/v1/search",
		Input:      "' OR '1'='1",
		Role:       rbac.RoleUser,
		Resource:   "health:own",
		Action:     "read",
	})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if v.Allowed {
		t.Fatal("Allowed = true for SQL injection payload")
	}
	if v.Err == nil || v.Err.Code != ErrorCodeThreatDetected {
		t.Errorf("Err = %v, want threat_detected", v.Err)
	}
	if len(v.Threats) == 0 {
		t.Error("Threats empty")
	}
	// The rate-limit stage must not have run.
	if v.RateLimit.Tier != "" {
		t.Errorf("RateLimit ran after a threat: %+v", v.RateLimit)
	}
}

func TestGuard_RateLimitDenial(t *testing.T) {
	g := newTestGuard(t, Config{
		RateLimit: RateLimitConfig{
			Tiers: []ratelimit.Tier{
				{Name: "tiny", Limit: 2, Window: time.Minute, Patterns: []string{"^/x"}},
				{Name: "default", Limit: 100, Window: time.Minute},
			},
		},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		v, err := g.Check(ctx, Request{Tenant: "t", Identifier: "u", Path: "/x"})
		if err != nil || !v.Allowed {
			t.Fatalf("request #%d: v=%+v err=%v", i+1, v, err)
		}
	}

	v, err := g.Check(ctx, Request{Tenant: "t", Identifier: "u", Path: "/x"})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if v.Allowed {
		t.Fatal("Allowed = true over the limit")
	}
	if v.Err == nil || v.Err.Code != ErrorCodeRateLimitExceeded {
		t.Errorf("Err = %v, want rate_limit_exceeded", v.Err)
	}
	if v.Err.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", v.Err.Status)
	}
}

func TestGuard_PermissionDenial(t *testing.T) {
	g := newTestGuard(t, Config{})

	v, err := g.Check(context.Background(), Request{
		Tenant:     "clinic-a",
		Identifier: "user-1",
		Path:       "/api/v1/admin",
		Role:       rbac.RoleUser,
		Resource:   "system:config",
		Action:     "write",
	})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if v.Allowed {
		t.Fatal("Allowed = true for unprivileged role")
	}
	if v.Err == nil || v.Err.Code != ErrorCodePermissionDenied {
		t.Errorf("Err = %v, want permission_denied", v.Err)
	}
}

func TestGuard_SkipsPermissionWithoutResource(t *testing.T) {
	g := newTestGuard(t, Config{})

	v, err := g.Check(context.Background(), Request{
		Tenant:     "clinic-a",
		Identifier: "user-1",
		Path:       "/healthz",
	})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !v.Allowed {
		t.Fatalf("Allowed = false: %v", v.Err)
	}
}

func TestGuard_RequiresIdentifier(t *testing.T) {
	g := newTestGuard(t, Config{})
	if _, err := g.Check(context.Background(), Request{Tenant: "t"}); err == nil {
		t.Error("Check without identifier expected error")
	}
}

func TestGuard_CanAccessPatientData(t *testing.T) {
	g := newTestGuard(t, Config{})
	ctx := context.Background()

	d := g.CanAccessPatientData(ctx, "clinic-a", rbac.PatientAccessRequest{
		Subject: "p-1", Role: rbac.RoleUser, PatientID: "p-1", Action: "read",
	})
	if !d.Allowed {
		t.Errorf("self access denied: %s", d.Reason)
	}

	d = g.CanAccessPatientData(ctx, "clinic-a", rbac.PatientAccessRequest{
		Subject: "doc-1", Role: rbac.RoleDoctor, PatientID: "p-1", Action: "read",
	})
	if d.Allowed {
		t.Error("provider access allowed with deny-all consent ledger")
	}
}

func TestGuard_Middleware(t *testing.T) {
	g := newTestGuard(t, Config{
		RateLimit: RateLimitConfig{
			Tiers: []ratelimit.Tier{
				{Name: "default", Limit: 2, Window: time.Minute},
			},
		},
	})

	var served int
	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		w.WriteHeader(http.StatusOK)
	}))

	req := func() int {
		rr := testutil.NewHTTPRequest(http.MethodGet, "/api/thing").Do(handler)
		return rr.Code
	}

	if code := req(); code != http.StatusOK {
		t.Fatalf("first request: status = %d", code)
	}
	if code := req(); code != http.StatusOK {
		t.Fatalf("second request: status = %d", code)
	}
	if code := req(); code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", code)
	}
	if served != 2 {
		t.Errorf("handler served %d requests, want 2", served)
	}

	rr := testutil.NewHTTPRequest(http.MethodGet, "/api/thing").Do(handler)
	if rr.Header().Get(ratelimit.HeaderLimit) == "" {
		t.Error("rate-limit headers missing on denial")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestGuard_VaultStartsLocked(t *testing.T) {
	g := newTestGuard(t, Config{})
	if g.Vault().Unlocked() {
		t.Error("vault unlocked before Unlock")
	}
}

func TestGuard_CloseLocksVault(t *testing.T) {
	g, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := g.Vault().Unlock("correct horse battery staple", nil); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}

	g.Close()

	if g.Vault().Unlocked() {
		t.Error("vault still unlocked after Close")
	}
}

func TestGuard_AuditsUnblock(t *testing.T) {
	var buf bytes.Buffer
	g := newTestGuard(t, Config{
		Logger: slog.New(slog.NewJSONHandler(&buf, nil)),
	})
	ctx := context.Background()

	if err := g.Limiter().BlockIdentifier(ctx, "t", "u", "api", time.Minute); err != nil {
		t.Fatalf("BlockIdentifier() error: %v", err)
	}
	if err := g.Limiter().UnblockIdentifier(ctx, "t", "u", "api"); err != nil {
		t.Fatalf("UnblockIdentifier() error: %v", err)
	}

	if !strings.Contains(buf.String(), audit.EventIdentifierUnblocked) {
		t.Errorf("audit trail missing %s event: %s", audit.EventIdentifierUnblocked, buf.String())
	}
}

type failingLedger struct{}

func (failingLedger) HasConsent(context.Context, string, string, string) (bool, error) {
	return false, errors.New("ledger offline")
}

func TestGuard_AuditsConsentLookupFailure(t *testing.T) {
	var buf bytes.Buffer
	g := newTestGuard(t, Config{
		Logger: slog.New(slog.NewJSONHandler(&buf, nil)),
		Access: AccessConfig{ConsentLedger: failingLedger{}},
	})

	d := g.CanAccessPatientData(context.Background(), "clinic-a", rbac.PatientAccessRequest{
		Subject: "doc-1", Role: rbac.RoleDoctor, PatientID: "p-1", Action: "read",
	})
	if d.Allowed {
		t.Fatal("ledger failure must deny")
	}
	if !strings.Contains(buf.String(), audit.EventConsentLookupFailed) {
		t.Errorf("audit trail missing %s event: %s", audit.EventConsentLookupFailed, buf.String())
	}
}

func TestStoreConfig_TLSPassThrough(t *testing.T) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	cfg := Config{Store: StoreConfig{TLS: tlsCfg}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	// The guard hands StoreConfig.TLS to the Valkey client unchanged.
	vc := valkey.Config{TLS: cfg.Store.TLS}
	if vc.TLS != tlsCfg {
		t.Error("TLS config not passed through")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "zero config", cfg: Config{}},
		{
			name:    "negative op timeout",
			cfg:     Config{Store: StoreConfig{OpTimeout: -time.Second}},
			wantErr: true,
		},
		{
			name: "bad tiers",
			cfg: Config{RateLimit: RateLimitConfig{
				Tiers: []ratelimit.Tier{{Name: "a", Limit: 0, Window: time.Minute}},
			}},
			wantErr: true,
		},
		{
			name: "cyclic roles",
			cfg: Config{Access: AccessConfig{
				Roles: []rbac.RoleDefinition{
					{Role: "A", InheritsFrom: []rbac.Role{"B"}},
					{Role: "B", InheritsFrom: []rbac.Role{"A"}},
				},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
