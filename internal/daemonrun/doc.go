// Package daemonrun wires folio's components from configuration. Build is
// shared by the one-shot CLI commands and "folio serve"; Run adds the daemon
// lifecycle and blocks until SIGINT or SIGTERM.
package daemonrun
