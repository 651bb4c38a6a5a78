// Package securecore provides the security and access-control core for
// multi-tenant healthcare services: tiered distributed rate limiting,
// password-derived field-level encryption, signature-based injection
// detection, and role-based access control with a patient-data policy.
//
// The Guard type wires the four enforcement surfaces into one pipeline
// with auditing and OpenTelemetry metrics on every decision:
//
//	guard, err := securecore.New(securecore.Config{
//		Store: securecore.StoreConfig{ValkeyAddress: "localhost:6379"},
//	})
//	if err != nil {
//		return err
//	}
//	defer guard.Close()
//
//	verdict, err := guard.Check(ctx, securecore.Request{
//		Tenant:     "clinic-a",
//		Identifier: userID,
//		Path:       r.URL.Path,
//		Role:       claims.Role,
//		Resource:   "health:own",
//		Action:     "read",
//	})
//
// Each surface is also usable on its own through its package: ratelimit,
// vault, validate, rbac, audit, and store.
package securecore
