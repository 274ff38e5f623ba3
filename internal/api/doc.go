// Package api defines wire-format types and converters for the daemon's HTTP
// API. It translates dispatcher replies, history entries and daemon status
// into transport-friendly DTOs that the CLI client and other consumers can
// decode without importing internal packages.
//
// # Key Types
//
// CommandRequest/CommandResponse: one line of command text and its reply.
//
// DaemonStatus: daemon running state, dispatcher counters, lock path and
// history totals.
//
// HistoryResponse: recent acquisitions, newest first.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Component results in CommandResponse.Data are passed through as
// json.RawMessage so clients choose whether to decode them.
package api
