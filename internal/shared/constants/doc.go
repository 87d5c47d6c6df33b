// Package constants centralizes defaults shared across the CLI and the engine.
//
// File permissions, capture limits, fetch timeouts and TLS warning windows live
// here so cmd/ and internal/ packages can share them without import cycles.
package constants
