// Package testutil provides testing utilities and helpers shared across
// the securecore packages.
package testutil
