package api

import (
	"encoding/json"

	"folio/internal/dispatch"
	"folio/internal/history"
	"folio/internal/notifications"
)

// FromReply converts a dispatcher reply into its wire form.
func FromReply(reply dispatch.Reply) CommandResponse {
	resp := CommandResponse{
		RequestID: reply.RequestID,
		Verb:      string(reply.Command.Verb),
		OK:        reply.OK,
		ErrorKind: reply.ErrorKind,
		Text:      reply.Text(),
		Messages:  FromMessages(reply.Messages),
	}
	if reply.Data != nil {
		if data, err := json.Marshal(reply.Data); err == nil {
			resp.Data = data
		}
	}
	return resp
}

// FromMessages converts rendered messages.
func FromMessages(msgs []notifications.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, Message{
			Event:    string(msg.Event),
			Title:    msg.Title,
			Body:     msg.Body,
			Tags:     msg.Tags,
			Priority: msg.Priority,
			Attach:   msg.Attach,
		})
	}
	return out
}

// FromStatusSummary converts dispatcher diagnostics.
func FromStatusSummary(summary dispatch.StatusSummary) DispatcherStatus {
	status := DispatcherStatus{
		Running:   summary.Running,
		InFlight:  summary.InFlight,
		Handled:   summary.Handled,
		LastError: summary.LastError,
	}
	if !summary.StartedAt.IsZero() {
		status.StartedAt = summary.StartedAt.UTC().Format(dateTimeFormat)
	}
	return status
}

// FromHistorySummary converts history totals.
func FromHistorySummary(summary history.Summary) *HistoryTotals {
	return &HistoryTotals{
		Total:     summary.Total,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
	}
}

// FromHistoryEntries converts recorded acquisitions, preserving order.
func FromHistoryEntries(entries []history.Entry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntry{
			ID:            e.ID,
			WorkID:        e.WorkID,
			Title:         e.Title,
			ArtifactPath:  e.ArtifactPath,
			Succeeded:     e.Succeeded,
			Reused:        e.Reused,
			Pages:         e.Pages,
			FailureKind:   e.FailureKind,
			FailureReason: e.FailureReason,
			RequestID:     e.RequestID,
			StartedAt:     e.StartedAt.UTC().Format(dateTimeFormat),
			DurationMS:    e.Duration.Milliseconds(),
		})
	}
	return out
}
