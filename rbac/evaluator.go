package rbac

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Decision is the outcome of a permission check. Reason is for logging
// and audit only; it must never be surfaced to the caller whose request
// was denied.
type Decision struct {
	Allowed     bool
	Reason      string
	Obligations []string
}

// Evaluator answers permission questions against a validated role
// graph. It is immutable after construction and safe for concurrent
// use.
type Evaluator struct {
	graph  *roleGraph
	logger *slog.Logger

	// graphErr carries a role-graph validation failure from an option
	// so NewEvaluator can fail fast.
	graphErr error
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithRoles replaces the built-in role graph.
func WithRoles(defs []RoleDefinition) EvaluatorOption {
	return func(e *Evaluator) {
		g, err := newRoleGraph(defs)
		if err != nil {
			e.graph = nil
			e.graphErr = err
			return
		}
		e.graph = g
	}
}

// WithEvaluatorLogger sets the logger for denial decisions.
func WithEvaluatorLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator builds an evaluator over the given role definitions,
// defaulting to DefaultRoles. Construction fails if the role graph
// contains a cycle, a duplicate role, or an unknown parent.
func NewEvaluator(opts ...EvaluatorOption) (*Evaluator, error) {
	e := &Evaluator{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.graphErr != nil {
		return nil, e.graphErr
	}
	if e.graph == nil {
		g, err := newRoleGraph(DefaultRoles())
		if err != nil {
			return nil, err
		}
		e.graph = g
	}
	return e, nil
}

// GetAllPermissions returns the deduplicated transitive permission set
// for a role. The set is stable for a given graph regardless of the
// order inheritance edges were declared.
func (e *Evaluator) GetAllPermissions(role Role) ([]Permission, error) {
	perms, ok := e.graph.permissions(role)
	if !ok {
		return nil, fmt.Errorf("rbac: unknown role %q", role)
	}
	return append([]Permission(nil), perms...), nil
}

// HasPermission reports whether the role may perform action on the
// resource under the given evaluation context. Unknown roles deny. A
// grant whose conditions are not all matched exactly by ctx is skipped
// silently; the decision reason never reveals which condition failed.
func (e *Evaluator) HasPermission(role Role, resource, action string, ctx map[string]string) Decision {
	perms, ok := e.graph.permissions(role)
	if !ok {
		return Decision{Allowed: false, Reason: "unknown role"}
	}

	for _, p := range perms {
		if !e.graph.match(p.Resource, resource) {
			continue
		}
		if !containsAction(p.Actions, action) {
			continue
		}
		if !conditionsMatch(p.Conditions, ctx) {
			continue
		}
		return Decision{Allowed: true, Reason: "granted by " + p.Resource}
	}

	e.logger.Debug("permission denied",
		slog.String("role", string(role)),
		slog.String("resource", resource),
		slog.String("action", action))
	return Decision{Allowed: false, Reason: "no matching grant"}
}

// matchResource matches a grant pattern against a concrete resource.
// Each "*" in the pattern matches any run of characters, ":" included,
// and the whole pattern is anchored: "health:*" covers "health:vitals"
// but not bare "health", and "records:*:notes" covers
// "records:123:notes". "*" alone covers everything.
func matchResource(pattern, resource string) bool {
	return compilePattern(pattern).MatchString(resource)
}

// compilePattern translates a grant pattern into its anchored matcher:
// literal text with "*" expanding to ".*".
func compilePattern(pattern string) *regexp.Regexp {
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	return regexp.MustCompile(expr)
}

func containsAction(actions []string, action string) bool {
	for _, a := range actions {
		if a == action || a == "*" {
			return true
		}
	}
	return false
}

// conditionsMatch requires every grant condition to be present in ctx
// with an exactly equal value. A grant with no conditions always
// matches.
func conditionsMatch(conds, ctx map[string]string) bool {
	for k, want := range conds {
		if got, ok := ctx[k]; !ok || got != want {
			return false
		}
	}
	return true
}
