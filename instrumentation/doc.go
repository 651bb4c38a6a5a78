// Package instrumentation provides OpenTelemetry metrics and tracing
// for the securecore library.
//
// Instrumentation is optional and defaults to no-op providers, so
// library users pay nothing unless they wire in real exporters through
// a custom MeterProvider or TracerProvider. Instruments cover the four
// enforcement surfaces: rate limiting (checks, denials, blocks,
// fallback activations), the vault (operations and decryption
// failures), permission evaluation (checks and denials), and input
// validation (threats by family).
//
// Usage:
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-service",
//		ServiceVersion: "1.2.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer inst.Shutdown(ctx)
//
//	inst.Metrics().RecordRateLimitCheck(ctx, "auth", true, 0.42)
package instrumentation
