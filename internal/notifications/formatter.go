package notifications

import (
	"fmt"
	"path/filepath"
	"strings"

	"folio/internal/acquire"
	"folio/internal/favorites"
	"folio/internal/metadata"
	"folio/internal/services"
	"folio/internal/textutil"
	"folio/internal/workid"
)

// Event classifies a message so publishers can filter by kind.
type Event string

const (
	EventWorkDetails         Event = "work_details"
	EventAcquisitionComplete Event = "acquisition_complete"
	EventFavorites           Event = "favorites"
	EventError               Event = "error"
	EventTest                Event = "test"
)

// Message is a display payload. Attach is a remote URL shown alongside the
// message, typically a cover.
type Message struct {
	Event    Event    `json:"event"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Tags     []string `json:"tags,omitempty"`
	Priority string   `json:"priority,omitempty"`
	Attach   string   `json:"attach,omitempty"`
}

// Text renders the message as plain text.
func (m Message) Text() string {
	if m.Body == "" {
		return m.Title
	}
	if m.Title == "" {
		return m.Body
	}
	return m.Title + "\n" + m.Body
}

func tagsFor(event Event) []string {
	return []string{"folio", textutil.SanitizeToken(string(event))}
}

// FormatWork renders metadata lookup results.
func FormatWork(work metadata.Work) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s", work.ID)
	if len(work.Tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s", strings.Join(work.Tags, ", "))
	} else {
		b.WriteString("\nTags: none")
	}
	if work.CoverURL != "" {
		fmt.Fprintf(&b, "\nCover: %s", work.CoverURL)
	}
	return Message{
		Event:  EventWorkDetails,
		Title:  work.Title,
		Body:   b.String(),
		Tags:   tagsFor(EventWorkDetails),
		Attach: work.CoverURL,
	}
}

// FormatAcquisition renders an acquisition result. Failures are rendered as
// error messages.
func FormatAcquisition(res acquire.Result) Message {
	if !res.Succeeded {
		reason := res.FailureReason
		if reason == "" {
			reason = "unknown failure"
		}
		label := "JM" + res.ID.String()
		if res.ID == "" {
			label = "request"
		}
		return Message{
			Event:    EventError,
			Title:    "Download failed: " + label,
			Body:     reason,
			Tags:     tagsFor(EventError),
			Priority: "high",
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s", filepath.Base(res.ArtifactPath))
	if res.Reused {
		b.WriteString("\nAlready downloaded; reused the existing PDF")
	} else {
		fmt.Fprintf(&b, "\nPages: %d", res.Pages)
	}
	fmt.Fprintf(&b, "\nPath: %s", res.ArtifactPath)
	return Message{
		Event: EventAcquisitionComplete,
		Title: fmt.Sprintf("Downloaded JM%s: %s", res.ID, res.Title),
		Body:  b.String(),
		Tags:  tagsFor(EventAcquisitionComplete),
	}
}

// FormatAdded renders the outcome of adding a favorite.
func FormatAdded(res favorites.AddResult) Message {
	title := fmt.Sprintf("Added %s to favorites", res.ID)
	if res.AlreadyPresent {
		title = fmt.Sprintf("%s is already a favorite", res.ID)
	}
	return favoritesMessage(title, res.Total)
}

// FormatRemoved renders the outcome of removing a favorite.
func FormatRemoved(res favorites.RemoveResult) Message {
	title := fmt.Sprintf("Removed %s from favorites", res.ID)
	if !res.WasPresent {
		title = fmt.Sprintf("%s is not a favorite", res.ID)
	}
	return favoritesMessage(title, res.Total)
}

// FormatListing renders the favorites set.
func FormatListing(listing favorites.Listing) Message {
	ids := make([]string, len(listing.IDs))
	for i, id := range listing.IDs {
		ids[i] = id.String()
	}
	body := "No favorites saved"
	if len(ids) > 0 {
		body = strings.Join(ids, "\n")
	}
	if listing.Warning != nil {
		body += "\nWarning: " + services.UserMessage(listing.Warning)
	}
	return Message{
		Event: EventFavorites,
		Title: fmt.Sprintf("Favorites (%d)", len(ids)),
		Body:  body,
		Tags:  tagsFor(EventFavorites),
	}
}

// FormatRandom renders a randomly picked favorite.
func FormatRandom(id workid.ID) Message {
	return Message{
		Event: EventFavorites,
		Title: "Random favorite: " + id.String(),
		Body:  "Send \"jmd " + id.String() + "\" to download it",
		Tags:  tagsFor(EventFavorites),
	}
}

func favoritesMessage(title string, total int) Message {
	return Message{
		Event: EventFavorites,
		Title: title,
		Body:  fmt.Sprintf("Total favorites: %d", total),
		Tags:  tagsFor(EventFavorites),
	}
}

// FormatError renders a failure for the person who issued the request.
func FormatError(err error, operation string) Message {
	title := "Error"
	if op := strings.TrimSpace(operation); op != "" {
		title = "Error: " + op
	}
	body := "unknown"
	if err != nil {
		body = services.UserMessage(err)
	}
	return Message{
		Event:    EventError,
		Title:    title,
		Body:     body,
		Tags:     tagsFor(EventError),
		Priority: "high",
	}
}
