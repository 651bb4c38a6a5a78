package instrumentation

import (
	"context"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer inst.Shutdown(context.Background())

	if inst.Metrics() == nil {
		t.Fatal("Metrics() = nil")
	}
	if inst.MeterProvider() == nil || inst.TracerProvider() == nil {
		t.Fatal("providers not initialized")
	}
}

func TestNew_DisabledUsesNoop(t *testing.T) {
	inst, err := New(Config{ServiceName: "test", Enabled: false})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer inst.Shutdown(context.Background())

	// Recording against no-op instruments must not panic.
	ctx := context.Background()
	m := inst.Metrics()
	m.RecordRateLimitCheck(ctx, "auth", false, 0.5)
	m.RecordRateLimitBlock(ctx, "auth")
	m.RecordRateLimitFallback(ctx, "auth")
	m.RecordVaultOperation(ctx, "encrypt", 1.2)
	m.RecordVaultDecryptFailure(ctx)
	m.RecordPermissionCheck(ctx, "DOCTOR", true)
	m.RecordThreatDetected(ctx, []string{"SQL_INJECTION", "PATH_TRAVERSAL"})
	m.RecordStoreOperation(ctx, "sliding_window_add", "ok", 0.3)
	m.RecordAuditEvent(ctx, "threat_detected")
}

func TestMeterAndTracerScopes(t *testing.T) {
	inst, err := New(Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer inst.Shutdown(context.Background())

	if m := inst.Meter("ratelimit"); m == nil {
		t.Error("Meter() = nil")
	}
	if tr := inst.Tracer("vault"); tr == nil {
		t.Error("Tracer() = nil")
	}
}

func TestRegisterStoreSizeCallback(t *testing.T) {
	inst, err := New(Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer inst.Shutdown(context.Background())

	if err := inst.RegisterStoreSizeCallback(func() int64 { return 7 }); err != nil {
		t.Errorf("RegisterStoreSizeCallback() error: %v", err)
	}
	if err := inst.RegisterStoreSizeCallback(nil); err == nil {
		t.Error("RegisterStoreSizeCallback(nil) expected error")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	inst, err := New(Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx := context.Background()
	if err := inst.Shutdown(ctx); err != nil {
		t.Errorf("first Shutdown() error: %v", err)
	}
	if err := inst.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error: %v", err)
	}
}
