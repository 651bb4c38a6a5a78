// Package rbac implements role-based access control over a static role
// graph.
//
// Roles form a directed acyclic inheritance graph validated once at
// construction; a cycle or an unknown parent fails fast rather than
// surfacing as runtime recursion. Permission resolution is the
// transitive closure over that graph. Grants match a wildcard resource
// pattern, an action set, and optional exact-match conditions; a
// missing or mismatched condition denies silently.
//
// A domain policy for individual patient data sits above the generic
// evaluator: self-access is always allowed, administrative roles never
// get write access to individual records, and clinical or family access
// defers to an external consent ledger.
package rbac
