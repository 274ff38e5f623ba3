// Package main hosts the folio CLI entrypoint and command graph.
//
// The Cobra-based command tree runs acquisitions, metadata lookups and
// favorites operations in-process through the same dispatcher the daemon
// uses, serves the daemon itself, forwards command text to a running daemon,
// and scaffolds configuration. It centralizes configuration resolution and
// logging setup so subcommands can focus on output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
