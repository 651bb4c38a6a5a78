package rbac

import (
	"strings"
	"testing"
)

func TestNormalize_OIDC(t *testing.T) {
	raw := map[string]any{
		"sub":               "user-42",
		"role":              "doctor",
		"tenant_id":         "clinic-a",
		"department":        "cardiology",
		"employee_id":       "E-100",
		"credentials":       "MD, board-certified",
		"data_access_level": "full",
	}

	c, err := ProfileOIDC.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if c.Subject != "user-42" || c.Role != RoleDoctor || c.TenantID != "clinic-a" {
		t.Errorf("Claims = %+v", c)
	}
	if len(c.Credentials) != 2 || c.Credentials[0] != "MD" {
		t.Errorf("Credentials = %v", c.Credentials)
	}
}

func TestNormalize_AzureADRolesList(t *testing.T) {
	raw := map[string]any{
		"oid":   "obj-1",
		"tid":   "tenant-1",
		"roles": []any{"Reader", "NURSE"},
	}

	c, err := ProfileAzureAD.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if c.Role != RoleNurse {
		t.Errorf("Role = %q, want NURSE", c.Role)
	}
}

func TestNormalize_DefaultRole(t *testing.T) {
	raw := map[string]any{
		"oid": "obj-1",
		"tid": "tenant-1",
	}

	c, err := ProfileAzureAD.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if c.Role != RoleUser {
		t.Errorf("Role = %q, want USER default", c.Role)
	}
}

func TestNormalize_MissingRequiredClaims(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{
			name: "missing subject",
			raw:  map[string]any{"tenant_id": "t", "role": "user"},
			want: "subject",
		},
		{
			name: "missing tenant",
			raw:  map[string]any{"sub": "s", "role": "user"},
			want: "tenant",
		},
		{
			name: "missing role without default",
			raw:  map[string]any{"sub": "s", "tenant_id": "t"},
			want: "role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProfileOIDC.Normalize(tt.raw)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "doctor", want: RoleDoctor},
		{in: " NURSE ", want: RoleNurse},
		{in: "Super_Admin", want: RoleSuperAdmin},
		{in: "janitor", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRole(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProfileByName(t *testing.T) {
	for _, name := range []string{"saml", "oidc", "azuread", "azure", "okta"} {
		if _, err := ProfileByName(name); err != nil {
			t.Errorf("ProfileByName(%q) error: %v", name, err)
		}
	}
	if _, err := ProfileByName("ldap"); err == nil {
		t.Error("ProfileByName(ldap) expected error")
	}
}
