// Package store defines the counter store contract backing the rate
// limiter, along with the sentinel errors implementations must return.
//
// Two implementations ship with this module:
//
//   - memory: a process-local store guarded by a mutex. Single-process
//     accuracy only; used directly in tests and as the fail-open fallback
//     when a shared store is unreachable.
//   - valkey: a Valkey/Redis-backed store whose composite operations run
//     as server-side Lua scripts, giving atomic increment-and-compare
//     semantics across processes.
package store
