// Package valkey implements the counter store contract on top of a
// Valkey (or Redis-compatible) server.
//
// The sliding-window check and violation increment run as server-side
// Lua scripts, which serializes concurrent increment-and-compare across
// every process sharing the store. Each round trip carries an explicit
// timeout; timeouts and connection failures surface as
// store.ErrUnavailable so callers can fail open to a local fallback.
package valkey
