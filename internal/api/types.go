package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CommandRequest carries one line of command text.
type CommandRequest struct {
	Text string `json:"text"`
}

// Message is a rendered reply message.
type Message struct {
	Event    string   `json:"event,omitempty"`
	Title    string   `json:"title"`
	Body     string   `json:"body,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Priority string   `json:"priority,omitempty"`
	Attach   string   `json:"attach,omitempty"`
}

// CommandResponse is the reply to a CommandRequest.
type CommandResponse struct {
	RequestID string          `json:"requestId"`
	Verb      string          `json:"verb"`
	OK        bool            `json:"ok"`
	ErrorKind string          `json:"errorKind,omitempty"`
	Text      string          `json:"text"`
	Messages  []Message       `json:"messages"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// DispatcherStatus summarizes dispatcher execution state.
type DispatcherStatus struct {
	Running   bool   `json:"running"`
	StartedAt string `json:"startedAt,omitempty"`
	InFlight  int64  `json:"inFlight"`
	Handled   int64  `json:"handled"`
	LastError string `json:"lastError,omitempty"`
}

// HistoryTotals aggregates recorded acquisitions.
type HistoryTotals struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	DataDir      string           `json:"dataDir"`
	LockFilePath string           `json:"lockFilePath"`
	Dispatcher   DispatcherStatus `json:"dispatcher"`
	History      *HistoryTotals   `json:"history,omitempty"`
}

// HistoryEntry describes one recorded acquisition.
type HistoryEntry struct {
	ID            int64  `json:"id"`
	WorkID        string `json:"workId"`
	Title         string `json:"title"`
	ArtifactPath  string `json:"artifactPath,omitempty"`
	Succeeded     bool   `json:"succeeded"`
	Reused        bool   `json:"reused"`
	Pages         int    `json:"pages"`
	FailureKind   string `json:"failureKind,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	StartedAt     string `json:"startedAt"`
	DurationMS    int64  `json:"durationMs"`
}

// HistoryResponse wraps recent acquisitions, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
