package securecore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/healthstack/securecore/audit"
	"github.com/healthstack/securecore/instrumentation"
	"github.com/healthstack/securecore/ratelimit"
	"github.com/healthstack/securecore/rbac"
	"github.com/healthstack/securecore/store"
	"github.com/healthstack/securecore/store/memory"
	"github.com/healthstack/securecore/store/valkey"
	"github.com/healthstack/securecore/validate"
	"github.com/healthstack/securecore/vault"
)

// Request describes one guarded operation for the enforcement pipeline.
type Request struct {
	// Tenant scopes all rate-limit and audit state.
	Tenant string

	// Identifier is the caller's stable identity for rate limiting,
	// typically a user ID or client IP.
	Identifier string

	// IP is the caller's network address, for the audit trail.
	IP string

	// Path classifies the request into a rate-limit tier.
	Path string

	// Input is untrusted request content to run threat detection on.
	// Empty skips validation.
	Input string

	// Role, Resource, and Action drive the permission check. An empty
	// Resource skips it.
	Role     rbac.Role
	Resource string
	Action   string

	// Context carries condition values for permission evaluation,
	// e.g. "access": "provider_access".
	Context map[string]string
}

// Verdict is the combined outcome of the enforcement pipeline.
type Verdict struct {
	// Allowed reports whether every stage passed.
	Allowed bool

	// Err describes the first failing stage, with its HTTP mapping.
	// Nil when Allowed.
	Err *SecurityError

	// Threats lists injection families detected in Input.
	Threats []validate.Threat

	// Sanitized is Input after the configured sanitizer.
	Sanitized string

	// RateLimit is the rate-limiting stage's result, present whenever
	// that stage ran.
	RateLimit ratelimit.Result

	// Decision is the permission stage's result, present when a
	// Resource was given.
	Decision rbac.Decision
}

// Guard wires validation, rate limiting, and access control into one
// enforcement pipeline, with auditing and metrics on every decision.
type Guard struct {
	cfg Config

	limiter   *ratelimit.Limiter
	evaluator *rbac.Evaluator
	patients  *rbac.PatientPolicy
	vault     *vault.Vault
	auditor   *audit.Auditor
	inst      *instrumentation.Instrumentation
	logger    *slog.Logger
	clock     func() time.Time

	st      store.CounterStore
	closeFn func()
}

// New builds a Guard from configuration. The vault starts locked;
// call Guard.Vault().Unlock before encrypting or decrypting fields.
func New(cfg Config) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Guard{
		cfg:    cfg,
		logger: logger,
		clock:  time.Now,
	}

	inst, err := instrumentation.New(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("securecore: instrumentation: %w", err)
	}
	g.inst = inst

	auditOpts := []audit.Option{}
	if cfg.Security.AuditFloodLimit > 0 {
		auditOpts = append(auditOpts, audit.WithFloodLimit(cfg.Security.AuditFloodLimit))
	}
	g.auditor = audit.NewAuditor(logger, !cfg.Security.DisableAuditLogging, auditOpts...)

	if err := g.initStore(); err != nil {
		return nil, err
	}

	limiterOpts := []ratelimit.Option{
		ratelimit.WithLogger(logger),
		ratelimit.WithEventHandler(g.auditLimiterEvent),
	}
	if cfg.RateLimit.Tiers != nil {
		ts, err := ratelimit.NewTierSet(cfg.RateLimit.Tiers)
		if err != nil {
			return nil, fmt.Errorf("securecore: %w", err)
		}
		limiterOpts = append(limiterOpts, ratelimit.WithTiers(ts))
	}
	if cfg.RateLimit.FallbackMaxEntries > 0 {
		limiterOpts = append(limiterOpts, ratelimit.WithFallbackMaxEntries(cfg.RateLimit.FallbackMaxEntries))
	}
	g.limiter, err = ratelimit.New(g.st, limiterOpts...)
	if err != nil {
		return nil, fmt.Errorf("securecore: %w", err)
	}

	evalOpts := []rbac.EvaluatorOption{rbac.WithEvaluatorLogger(logger)}
	if cfg.Access.Roles != nil {
		evalOpts = append(evalOpts, rbac.WithRoles(cfg.Access.Roles))
	}
	g.evaluator, err = rbac.NewEvaluator(evalOpts...)
	if err != nil {
		return nil, fmt.Errorf("securecore: %w", err)
	}
	g.patients = rbac.NewPatientPolicy(cfg.Access.ConsentLedger)

	g.vault = vault.New(vault.WithLogger(logger))

	return g, nil
}

func (g *Guard) initStore() error {
	if g.cfg.Store.ValkeyAddress == "" {
		mem := memory.New(memory.WithLogger(g.logger))
		g.st = mem
		g.closeFn = mem.Stop
		if err := g.inst.RegisterStoreSizeCallback(func() int64 { return int64(mem.Len()) }); err != nil {
			return fmt.Errorf("securecore: store metrics: %w", err)
		}
		return nil
	}

	vk, err := valkey.New(valkey.Config{
		Address:   g.cfg.Store.ValkeyAddress,
		Password:  g.cfg.Store.ValkeyPassword,
		DB:        g.cfg.Store.DB,
		KeyPrefix: g.cfg.Store.KeyPrefix,
		TLS:       g.cfg.Store.TLS,
		OpTimeout: g.cfg.Store.OpTimeout,
		Logger:    g.logger,
	})
	if err != nil {
		return fmt.Errorf("securecore: connecting to counter store: %w", err)
	}
	g.st = vk
	g.closeFn = vk.Close
	return nil
}

// auditLimiterEvent mirrors limiter lifecycle events into the audit
// trail. Checks, denials, and blocks are audited inline by Check; only
// the events with no other audit path are handled here.
func (g *Guard) auditLimiterEvent(ev ratelimit.Event) {
	switch ev.Type {
	case ratelimit.EventUnblocked:
		g.auditor.LogIdentifierUnblocked(ev.Tenant, ev.Identifier, ev.Tier)
	case ratelimit.EventDegraded:
		g.auditor.LogRateLimitDegraded(ev.Tenant, ev.Identifier, ev.Tier)
	}
}

// Close releases the guard's background resources and zeroizes any
// unlocked vault key.
func (g *Guard) Close() {
	if g.vault.Unlocked() {
		keyID := g.vault.KeyID()
		g.vault.Lock()
		g.auditor.LogVaultLocked("", "", keyID)
	}
	g.limiter.Close()
	if g.closeFn != nil {
		g.closeFn()
	}
	g.inst.Shutdown(context.Background())
}

// Check runs the enforcement pipeline: input validation, then rate
// limiting, then the permission check. The first failing stage decides
// the verdict; later stages do not run, so a threat never consumes
// rate-limit budget reasoning or reaches policy code.
func (g *Guard) Check(ctx context.Context, req Request) (*Verdict, error) {
	if req.Identifier == "" {
		return nil, fmt.Errorf("securecore: request identifier is required")
	}

	v := &Verdict{Sanitized: req.Input}

	if req.Input != "" {
		res := validate.ValidateInput(req.Input, validate.Options{
			MaxLength:   g.cfg.Validation.MaxLength,
			RequireUTF8: g.cfg.Validation.RequireUTF8,
			Mode:        g.cfg.Validation.Mode,
		})
		v.Threats = res.Threats
		v.Sanitized = res.Sanitized

		if !res.Valid {
			v.Err = ErrThreatDetected("request rejected")
			if len(res.Threats) > 0 {
				families := make([]string, len(res.Threats))
				for i, t := range res.Threats {
					families[i] = string(t)
				}
				g.auditor.LogThreatDetected(req.Tenant, req.Identifier, req.IP, families)
				g.inst.Metrics().RecordThreatDetected(ctx, families)
			}
			return v, nil
		}
	}

	start := g.clock()
	rl, err := g.limiter.Check(ctx, req.Tenant, req.Identifier, req.Path)
	if err != nil {
		return nil, fmt.Errorf("securecore: rate limit check: %w", err)
	}
	v.RateLimit = rl
	g.inst.Metrics().RecordRateLimitCheck(ctx, rl.Tier, rl.Allowed,
		float64(g.clock().Sub(start))/float64(time.Millisecond))
	if rl.Degraded {
		g.inst.Metrics().RecordRateLimitFallback(ctx, rl.Tier)
	}

	if !rl.Allowed {
		if rl.Blocked {
			v.Err = ErrIdentifierBlocked("too many violations, try again later")
			g.auditor.LogIdentifierBlocked(req.Tenant, req.Identifier, rl.Tier, rl.RetryAfter)
			g.inst.Metrics().RecordRateLimitBlock(ctx, rl.Tier)
		} else {
			v.Err = ErrRateLimitExceeded("rate limit exceeded, slow down")
			g.auditor.LogRateLimitExceeded(req.Tenant, req.Identifier, req.IP, rl.Tier)
		}
		return v, nil
	}

	if req.Resource != "" {
		d := g.evaluator.HasPermission(req.Role, req.Resource, req.Action, req.Context)
		v.Decision = d
		g.inst.Metrics().RecordPermissionCheck(ctx, string(req.Role), d.Allowed)
		if !d.Allowed {
			v.Err = ErrPermissionDenied("access denied")
			g.auditor.LogPermissionDenied(req.Tenant, req.Identifier, req.Resource, req.Action)
			return v, nil
		}
	}

	v.Allowed = true
	return v, nil
}

// CanAccessPatientData evaluates the patient-data policy and fulfills
// the audit obligation attached to privileged reads before returning.
func (g *Guard) CanAccessPatientData(ctx context.Context, tenant string, req rbac.PatientAccessRequest) rbac.Decision {
	d := g.patients.CanAccessPatientData(ctx, req)
	g.inst.Metrics().RecordPermissionCheck(ctx, string(req.Role), d.Allowed)

	if !d.Allowed {
		if d.Reason == rbac.ReasonConsentUnavailable {
			g.auditor.LogConsentLookupFailed(tenant, req.Subject, req.PatientID)
		}
		g.auditor.LogPermissionDenied(tenant, req.Subject, "patients:"+req.PatientID, req.Action)
		return d
	}
	for _, o := range d.Obligations {
		if o == rbac.ObligationAuditLog {
			g.auditor.LogPatientDataAccess(tenant, req.Subject, req.PatientID, string(req.Role), req.Action)
			break
		}
	}
	return d
}

// Middleware wraps an http.Handler with security headers and per-IP
// rate limiting. Denied requests carry the standard rate-limit headers.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetSecurityHeaders(w, g.cfg.Security.ServerURL)

		ip := ClientIP(r, g.cfg.RateLimit.TrustProxy, g.cfg.RateLimit.TrustedProxyCount)
		tenant := r.Header.Get("X-Tenant-ID")

		v, err := g.Check(r.Context(), Request{
			Tenant:     tenant,
			Identifier: ip,
			IP:         ip,
			Path:       r.URL.Path,
		})
		if err != nil {
			g.logger.Error("Security check failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		ratelimit.SetHeaders(w.Header(), v.RateLimit)
		if !v.Allowed {
			http.Error(w, v.Err.Description, v.Err.Status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Vault returns the field-encryption vault.
func (g *Guard) Vault() *vault.Vault { return g.vault }

// Limiter returns the rate limiter for explicit block management.
func (g *Guard) Limiter() *ratelimit.Limiter { return g.limiter }

// Evaluator returns the permission evaluator.
func (g *Guard) Evaluator() *rbac.Evaluator { return g.evaluator }

// Auditor returns the security auditor.
func (g *Guard) Auditor() *audit.Auditor { return g.auditor }

// Instrumentation returns the telemetry handle.
func (g *Guard) Instrumentation() *instrumentation.Instrumentation { return g.inst }
