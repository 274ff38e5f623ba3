// Package favorites keeps the persistent set of favorite work identifiers.
//
// The set lives in a single JSON record:
//
//	{"version": 1, "ids": ["123", "456"]}
//
// A bare JSON array of identifiers is also accepted on read. Every operation
// reads the whole record, and mutations rewrite it atomically. Operations on
// the same record are serialised by a process-wide mutex keyed by its absolute
// path and by an advisory file lock on <record>.lock, so separate processes
// sharing a data directory never interleave read-modify-write cycles.
//
// A record that cannot be parsed is treated as empty. Read-only operations
// report it through Listing.Warning; the next mutation moves it aside to
// <record>.corrupt before writing a fresh record.
package favorites
