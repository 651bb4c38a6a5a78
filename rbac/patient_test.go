package rbac

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type fakeLedger struct {
	grants map[string]bool // "patient/accessor/relationship"
	err    error
}

func (f *fakeLedger) HasConsent(_ context.Context, patientID, accessorID, relationship string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.grants[patientID+"/"+accessorID+"/"+relationship], nil
}

func TestCanAccessPatientData(t *testing.T) {
	ledger := &fakeLedger{grants: map[string]bool{
		"p-1/doc-1/provider": true,
		"p-1/fam-1/family":   true,
	}}
	policy := NewPatientPolicy(ledger)
	ctx := context.Background()

	tests := []struct {
		name           string
		req            PatientAccessRequest
		want           bool
		wantObligation string
	}{
		{
			name: "self read",
			req:  PatientAccessRequest{Subject: "p-1", Role: RoleUser, PatientID: "p-1", Action: "read"},
			want: true,
		},
		{
			name: "self write",
			req:  PatientAccessRequest{Subject: "p-1", Role: RoleUser, PatientID: "p-1", Action: "write"},
			want: true,
		},
		{
			name: "other patient denied",
			req:  PatientAccessRequest{Subject: "p-2", Role: RoleUser, PatientID: "p-1", Action: "read"},
			want: false,
		},
		{
			name:           "doctor with consent",
			req:            PatientAccessRequest{Subject: "doc-1", Role: RoleDoctor, PatientID: "p-1", Action: "read"},
			want:           true,
			wantObligation: ObligationAuditLog,
		},
		{
			name: "doctor without consent",
			req:  PatientAccessRequest{Subject: "doc-2", Role: RoleDoctor, PatientID: "p-1", Action: "read"},
			want: false,
		},
		{
			name:           "family read with consent",
			req:            PatientAccessRequest{Subject: "fam-1", Role: RoleFamily, PatientID: "p-1", Action: "read"},
			want:           true,
			wantObligation: ObligationAuditLog,
		},
		{
			name: "family write denied even with consent",
			req:  PatientAccessRequest{Subject: "fam-1", Role: RoleFamily, PatientID: "p-1", Action: "write"},
			want: false,
		},
		{
			name: "admin read denied",
			req:  PatientAccessRequest{Subject: "adm-1", Role: RoleAdmin, PatientID: "p-1", Action: "read"},
			want: false,
		},
		{
			name: "admin write denied",
			req:  PatientAccessRequest{Subject: "adm-1", Role: RoleAdmin, PatientID: "p-1", Action: "write"},
			want: false,
		},
		{
			name:           "super admin read with audit obligation",
			req:            PatientAccessRequest{Subject: "root-1", Role: RoleSuperAdmin, PatientID: "p-1", Action: "read"},
			want:           true,
			wantObligation: ObligationAuditLog,
		},
		{
			name: "super admin write denied",
			req:  PatientAccessRequest{Subject: "root-1", Role: RoleSuperAdmin, PatientID: "p-1", Action: "write"},
			want: false,
		},
		{
			name: "unknown action denied",
			req:  PatientAccessRequest{Subject: "doc-1", Role: RoleDoctor, PatientID: "p-1", Action: "delete"},
			want: false,
		},
		{
			name: "empty subject denied",
			req:  PatientAccessRequest{Role: RoleDoctor, PatientID: "p-1", Action: "read"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := policy.CanAccessPatientData(ctx, tt.req)
			if d.Allowed != tt.want {
				t.Errorf("Allowed = %v, want %v (%s)", d.Allowed, tt.want, d.Reason)
			}
			if tt.wantObligation != "" && !slices.Contains(d.Obligations, tt.wantObligation) {
				t.Errorf("Obligations = %v, want %q", d.Obligations, tt.wantObligation)
			}
		})
	}
}

func TestCanAccessPatientData_LedgerErrorFailsClosed(t *testing.T) {
	policy := NewPatientPolicy(&fakeLedger{err: errors.New("ledger down")})

	d := policy.CanAccessPatientData(context.Background(), PatientAccessRequest{
		Subject: "doc-1", Role: RoleDoctor, PatientID: "p-1", Action: "read",
	})
	if d.Allowed {
		t.Error("Allowed = true when consent ledger errored")
	}
	if d.Reason != ReasonConsentUnavailable {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonConsentUnavailable)
	}
}

func TestCanAccessPatientData_DefaultLedgerDeniesAll(t *testing.T) {
	policy := NewPatientPolicy(nil)

	d := policy.CanAccessPatientData(context.Background(), PatientAccessRequest{
		Subject: "doc-1", Role: RoleDoctor, PatientID: "p-1", Action: "read",
	})
	if d.Allowed {
		t.Error("Allowed = true with default deny-all ledger")
	}
}
