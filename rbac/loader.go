package rbac

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// rolesFile is the YAML document shape for externally configured role
// graphs:
//
//	roles:
//	  - role: DOCTOR
//	    inheritsFrom: [CLINICIAN]
//	    permissions:
//	      - resource: "prescriptions:*"
//	        actions: [read, write]
//	        conditions:
//	          access: provider_access
type rolesFile struct {
	Roles []RoleDefinition `yaml:"roles"`
}

// LoadRoles parses role definitions from YAML. Graph validation happens
// in NewEvaluator, not here.
func LoadRoles(r io.Reader) ([]RoleDefinition, error) {
	var doc rolesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("rbac: parsing roles: %w", err)
	}
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("rbac: roles file defines no roles")
	}
	return doc.Roles, nil
}

// LoadRolesFile reads role definitions from a YAML file on disk.
func LoadRolesFile(path string) ([]RoleDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rbac: opening roles file: %w", err)
	}
	defer f.Close()
	return LoadRoles(f)
}
