package rbac

import (
	"fmt"
	"regexp"
)

// roleGraph is the validated inheritance graph. Construction fails on
// duplicate roles, unknown parents, or cycles, so lookups at evaluation
// time cannot recurse forever or dead-end.
type roleGraph struct {
	defs map[Role]RoleDefinition

	// closure maps each role to its deduplicated transitive permission
	// set, computed once at construction.
	closure map[Role][]Permission

	// matchers holds the compiled resource matcher for every grant
	// pattern appearing in the closure.
	matchers map[string]*regexp.Regexp
}

func newRoleGraph(defs []RoleDefinition) (*roleGraph, error) {
	g := &roleGraph{
		defs:     make(map[Role]RoleDefinition, len(defs)),
		closure:  make(map[Role][]Permission, len(defs)),
		matchers: make(map[string]*regexp.Regexp),
	}

	for _, def := range defs {
		if def.Role == "" {
			return nil, fmt.Errorf("rbac: role definition with empty role name")
		}
		if _, dup := g.defs[def.Role]; dup {
			return nil, fmt.Errorf("rbac: duplicate role %q", def.Role)
		}
		g.defs[def.Role] = def
	}

	for _, def := range g.defs {
		for _, parent := range def.InheritsFrom {
			if _, ok := g.defs[parent]; !ok {
				return nil, fmt.Errorf("rbac: role %q inherits from unknown role %q", def.Role, parent)
			}
		}
	}

	if cycle := g.findCycle(); len(cycle) > 0 {
		return nil, fmt.Errorf("rbac: inheritance cycle: %v", cycle)
	}

	for role := range g.defs {
		g.closure[role] = g.resolve(role)
	}
	for _, perms := range g.closure {
		for _, p := range perms {
			if _, ok := g.matchers[p.Resource]; !ok {
				g.matchers[p.Resource] = compilePattern(p.Resource)
			}
		}
	}
	return g, nil
}

// match applies the matcher compiled at construction for pattern,
// compiling ad hoc for a pattern the graph has not seen.
func (g *roleGraph) match(pattern, resource string) bool {
	if re, ok := g.matchers[pattern]; ok {
		return re.MatchString(resource)
	}
	return matchResource(pattern, resource)
}

// findCycle runs a three-color DFS over the inheritance edges and
// returns the first cycle found, or nil.
func (g *roleGraph) findCycle() []Role {
	const (
		white = iota // unvisited
		gray         // on the current path
		black        // fully explored
	)
	color := make(map[Role]int, len(g.defs))

	var path []Role
	var visit func(r Role) []Role
	visit = func(r Role) []Role {
		color[r] = gray
		path = append(path, r)
		for _, parent := range g.defs[r].InheritsFrom {
			switch color[parent] {
			case gray:
				// Trim the path to the segment forming the cycle.
				for i, p := range path {
					if p == parent {
						return append(append([]Role(nil), path[i:]...), parent)
					}
				}
			case white:
				if cycle := visit(parent); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		color[r] = black
		return nil
	}

	for role := range g.defs {
		if color[role] == white {
			if cycle := visit(role); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// resolve collects the role's own permissions plus everything inherited,
// deduplicated by canonical key. The result is independent of the order
// parents are declared in.
func (g *roleGraph) resolve(role Role) []Permission {
	seen := make(map[string]struct{})
	var out []Permission

	var walk func(r Role)
	walk = func(r Role) {
		def := g.defs[r]
		for _, p := range def.Permissions {
			k := p.key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, p)
		}
		for _, parent := range def.InheritsFrom {
			walk(parent)
		}
	}
	walk(role)
	return out
}

func (g *roleGraph) permissions(role Role) ([]Permission, bool) {
	perms, ok := g.closure[role]
	return perms, ok
}
