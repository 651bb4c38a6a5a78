package rbac

import (
	"fmt"
	"strings"
)

// Claims is the normalized identity extracted from a federation
// provider's assertion. Downstream policy code only ever sees this
// shape, never raw provider claims.
type Claims struct {
	Subject         string
	Role            Role
	TenantID        string
	Department      string
	EmployeeID      string
	Credentials     []string
	DataAccessLevel string
}

// ClaimsProfile maps one identity provider's raw claim names onto the
// normalized Claims shape.
type ClaimsProfile struct {
	// Name identifies the profile in configuration and logs.
	Name string

	// Attribute names in the provider's assertion.
	SubjectKey    string
	RoleKey       string
	TenantKey     string
	DepartmentKey string
	EmployeeKey   string
	CredentialKey string
	AccessKey     string

	// DefaultRole applies when the provider omits a role claim
	// entirely. Empty means a missing role is an error.
	DefaultRole Role
}

// Built-in profiles for the supported identity providers.
var (
	ProfileSAML = ClaimsProfile{
		Name:          "saml",
		SubjectKey:    "urn:oid:0.9.2342.19200300.100.1.1", // uid
		RoleKey:       "urn:healthstack:role",
		TenantKey:     "urn:healthstack:tenant",
		DepartmentKey: "urn:oid:2.5.4.11", // organizationalUnit
		EmployeeKey:   "urn:oid:2.16.840.1.113730.3.1.3",
		CredentialKey: "urn:healthstack:credentials",
		AccessKey:     "urn:healthstack:access_level",
	}

	ProfileOIDC = ClaimsProfile{
		Name:          "oidc",
		SubjectKey:    "sub",
		RoleKey:       "role",
		TenantKey:     "tenant_id",
		DepartmentKey: "department",
		EmployeeKey:   "employee_id",
		CredentialKey: "credentials",
		AccessKey:     "data_access_level",
	}

	ProfileAzureAD = ClaimsProfile{
		Name:          "azuread",
		SubjectKey:    "oid",
		RoleKey:       "roles",
		TenantKey:     "tid",
		DepartmentKey: "department",
		EmployeeKey:   "employeeId",
		CredentialKey: "credentials",
		AccessKey:     "data_access_level",
		DefaultRole:   RoleUser,
	}

	ProfileOkta = ClaimsProfile{
		Name:          "okta",
		SubjectKey:    "sub",
		RoleKey:       "healthstack_role",
		TenantKey:     "org_id",
		DepartmentKey: "department",
		EmployeeKey:   "employee_number",
		CredentialKey: "credentials",
		AccessKey:     "data_access_level",
		DefaultRole:   RoleUser,
	}
)

// ProfileByName resolves a configured profile name.
func ProfileByName(name string) (ClaimsProfile, error) {
	switch strings.ToLower(name) {
	case "saml":
		return ProfileSAML, nil
	case "oidc":
		return ProfileOIDC, nil
	case "azuread", "azure":
		return ProfileAzureAD, nil
	case "okta":
		return ProfileOkta, nil
	}
	return ClaimsProfile{}, fmt.Errorf("rbac: unknown claims profile %q", name)
}

// Normalize maps raw provider claims to the canonical Claims shape.
// Subject and tenant are required; the role claim may be a string or a
// []any of strings (Azure AD style), in which case the first entry that
// parses as a role wins.
func (cp ClaimsProfile) Normalize(raw map[string]any) (Claims, error) {
	c := Claims{
		Subject:         stringClaim(raw, cp.SubjectKey),
		TenantID:        stringClaim(raw, cp.TenantKey),
		Department:      stringClaim(raw, cp.DepartmentKey),
		EmployeeID:      stringClaim(raw, cp.EmployeeKey),
		DataAccessLevel: stringClaim(raw, cp.AccessKey),
		Credentials:     stringListClaim(raw, cp.CredentialKey),
	}

	if c.Subject == "" {
		return Claims{}, fmt.Errorf("rbac: %s claims missing subject (%s)", cp.Name, cp.SubjectKey)
	}
	if c.TenantID == "" {
		return Claims{}, fmt.Errorf("rbac: %s claims missing tenant (%s)", cp.Name, cp.TenantKey)
	}

	role, err := cp.resolveRole(raw)
	if err != nil {
		return Claims{}, err
	}
	c.Role = role
	return c, nil
}

func (cp ClaimsProfile) resolveRole(raw map[string]any) (Role, error) {
	v, ok := raw[cp.RoleKey]
	if !ok || v == nil {
		if cp.DefaultRole != "" {
			return cp.DefaultRole, nil
		}
		return "", fmt.Errorf("rbac: %s claims missing role (%s)", cp.Name, cp.RoleKey)
	}

	switch role := v.(type) {
	case string:
		return ParseRole(role)
	case []any:
		for _, entry := range role {
			s, ok := entry.(string)
			if !ok {
				continue
			}
			if r, err := ParseRole(s); err == nil {
				return r, nil
			}
		}
		if cp.DefaultRole != "" {
			return cp.DefaultRole, nil
		}
		return "", fmt.Errorf("rbac: %s claims: no recognized role in %v", cp.Name, role)
	case []string:
		for _, s := range role {
			if r, err := ParseRole(s); err == nil {
				return r, nil
			}
		}
		if cp.DefaultRole != "" {
			return cp.DefaultRole, nil
		}
		return "", fmt.Errorf("rbac: %s claims: no recognized role in %v", cp.Name, role)
	}
	return "", fmt.Errorf("rbac: %s claims: role has unsupported type %T", cp.Name, v)
}

func stringClaim(raw map[string]any, key string) string {
	if key == "" {
		return ""
	}
	if s, ok := raw[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func stringListClaim(raw map[string]any, key string) []string {
	if key == "" {
		return nil
	}
	switch v := raw[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []string:
		return append([]string(nil), v...)
	case []any:
		var out []string
		for _, entry := range v {
			if s, ok := entry.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
