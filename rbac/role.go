package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Role names a position in the inheritance graph.
type Role string

// Built-in roles for the healthcare deployment. The set is static
// configuration; deployments may replace it wholesale via LoadRoles.
const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleDoctor     Role = "DOCTOR"
	RoleNurse      Role = "NURSE"
	RolePharmacist Role = "PHARMACIST"
	RoleClinician  Role = "CLINICIAN"
	RoleFamily     Role = "FAMILY"
	RoleUser       Role = "USER"
)

// ParseRole normalizes a provider-supplied role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleDoctor, RoleNurse, RolePharmacist,
		RoleClinician, RoleFamily, RoleUser:
		return r, nil
	}
	return "", fmt.Errorf("rbac: unknown role %q", s)
}

// Permission grants a set of actions on resources matching a wildcard
// pattern, optionally gated by conditions that the caller's context
// must match exactly.
type Permission struct {
	// Resource is a wildcard pattern, e.g. "health:*" or "patients:own".
	Resource string `yaml:"resource" json:"resource"`

	// Actions is the set of permitted operations, e.g. read, write.
	Actions []string `yaml:"actions" json:"actions"`

	// Conditions, when present, must each be matched exactly by the
	// evaluation context or the grant does not apply.
	Conditions map[string]string `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// key is the canonical identity of a permission, used to deduplicate
// the transitive closure independent of declaration order.
func (p Permission) key() string {
	actions := append([]string(nil), p.Actions...)
	sort.Strings(actions)

	conds := make([]string, 0, len(p.Conditions))
	for k, v := range p.Conditions {
		conds = append(conds, k+"="+v)
	}
	sort.Strings(conds)

	return p.Resource + "|" + strings.Join(actions, ",") + "|" + strings.Join(conds, ",")
}

// RoleDefinition is one node of the role graph: the role's direct
// permissions and the roles it inherits from.
type RoleDefinition struct {
	Role         Role         `yaml:"role" json:"role"`
	Permissions  []Permission `yaml:"permissions" json:"permissions"`
	InheritsFrom []Role       `yaml:"inheritsFrom,omitempty" json:"inheritsFrom,omitempty"`
}

// DefaultRoles returns the built-in role graph:
//
//	SUPER_ADMIN → ADMIN
//	DOCTOR, NURSE, PHARMACIST → CLINICIAN → USER
//	FAMILY → USER
func DefaultRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Role: RoleUser,
			Permissions: []Permission{
				{Resource: "health:own", Actions: []string{"read", "write"}},
				{Resource: "profile:own", Actions: []string{"read", "write"}},
				{Resource: "appointments:own", Actions: []string{"read", "write"}},
			},
		},
		{
			Role:         RoleFamily,
			InheritsFrom: []Role{RoleUser},
			Permissions: []Permission{
				{
					Resource:   "health:*",
					Actions:    []string{"read"},
					Conditions: map[string]string{"relationship": "family", "consent": "granted"},
				},
			},
		},
		{
			Role:         RoleClinician,
			InheritsFrom: []Role{RoleUser},
			Permissions: []Permission{
				{
					Resource:   "patients:*",
					Actions:    []string{"read"},
					Conditions: map[string]string{"access": "provider_access"},
				},
				{Resource: "schedules:own", Actions: []string{"read", "write"}},
			},
		},
		{
			Role:         RoleDoctor,
			InheritsFrom: []Role{RoleClinician},
			Permissions: []Permission{
				{
					Resource:   "prescriptions:*",
					Actions:    []string{"read", "write"},
					Conditions: map[string]string{"access": "provider_access"},
				},
				{
					Resource:   "diagnoses:*",
					Actions:    []string{"read", "write"},
					Conditions: map[string]string{"access": "provider_access"},
				},
			},
		},
		{
			Role:         RoleNurse,
			InheritsFrom: []Role{RoleClinician},
			Permissions: []Permission{
				{
					Resource:   "vitals:*",
					Actions:    []string{"read", "write"},
					Conditions: map[string]string{"access": "provider_access"},
				},
			},
		},
		{
			Role:         RolePharmacist,
			InheritsFrom: []Role{RoleClinician},
			Permissions: []Permission{
				{
					Resource:   "prescriptions:*",
					Actions:    []string{"read", "dispense"},
					Conditions: map[string]string{"access": "provider_access"},
				},
			},
		},
		{
			Role: RoleAdmin,
			Permissions: []Permission{
				{Resource: "users:*", Actions: []string{"read", "write"}},
				{Resource: "roles:*", Actions: []string{"read"}},
				{Resource: "audit:*", Actions: []string{"read"}},
				{Resource: "system:config", Actions: []string{"read", "write"}},
			},
		},
		{
			Role:         RoleSuperAdmin,
			InheritsFrom: []Role{RoleAdmin},
			Permissions: []Permission{
				{Resource: "roles:*", Actions: []string{"read", "write"}},
				{Resource: "system:*", Actions: []string{"read", "write"}},
				{Resource: "tenants:*", Actions: []string{"read", "write"}},
			},
		},
	}
}
