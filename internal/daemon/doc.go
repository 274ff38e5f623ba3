// Package daemon coordinates the long-running folio process.
//
// It wires configuration, the dispatcher and the acquisition history into a
// single lifecycle with flock-based locking to prevent multiple instances
// sharing one log directory. On start it reclaims stale work directories and
// logs failed preflight checks, then serves the HTTP API that feeds command
// text to the dispatcher.
//
// Keep orchestration logic here: acquisition, lookup and favorites behaviour
// live in their own packages while the daemon focuses on startup, shutdown
// and the transport surface.
package daemon
