// Package history records acquisition outcomes in a SQLite database.
//
// The store implements acquire.Recorder and backs the history command and the
// daemon's /api/history endpoint. Schema changes ship as embedded SQL files
// applied in lexical order on Open.
package history
