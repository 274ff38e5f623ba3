// Package daemonctl is the client side of the daemon's HTTP API. The CLI uses
// it to forward commands to a running "folio serve" process and to report
// whether one is running.
package daemonctl
