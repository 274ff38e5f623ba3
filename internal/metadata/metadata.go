// Package metadata resolves a work identifier to its title, tags and cover.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"folio/internal/logging"
	"folio/internal/services"
	"folio/internal/source"
	"folio/internal/workid"
)

var (
	titleKeys = []string{"name", "title", "album_name"}
	tagKeys   = []string{"tags", "tag_list", "keywords"}
	coverKeys = []string{"cover", "cover_url", "thumb", "thumbnail", "image"}
)

// Work is the descriptive metadata of a remote work.
type Work struct {
	ID       workid.ID `json:"id"`
	Title    string    `json:"title"`
	Tags     []string  `json:"tags"`
	CoverURL string    `json:"cover_url"`
}

// Lookup fetches work metadata through a source transport. It never touches
// the filesystem.
type Lookup struct {
	transport     source.Transport
	coverTemplate string
	logger        *slog.Logger
}

// New constructs a Lookup. coverTemplate, when non-empty, supplies the cover
// locator for works whose document has none; "{id}" is replaced by the id.
func New(transport source.Transport, coverTemplate string, logger *slog.Logger) *Lookup {
	return &Lookup{
		transport:     transport,
		coverTemplate: strings.TrimSpace(coverTemplate),
		logger:        logging.NewComponentLogger(logger, "metadata"),
	}
}

// Fetch returns the metadata for raw. Missing optional attributes fall back to
// defaults: title "Work <id>", no tags, empty cover.
func (l *Lookup) Fetch(ctx context.Context, raw string) (Work, error) {
	id, err := workid.Parse(raw)
	if err != nil {
		return Work{}, err
	}
	ctx = services.WithWorkID(ctx, id.String())
	logger := logging.WithContext(ctx, l.logger)

	fields, err := l.transport.FetchMetadata(ctx, id)
	if err != nil {
		wrapped := classifyTransportError(err, "fetch metadata", id)
		logger.Debug("metadata lookup failed",
			logging.String(logging.FieldErrorKind, services.Kind(wrapped)),
			logging.Error(err),
		)
		return Work{}, wrapped
	}

	work := Work{
		ID:       id,
		Title:    firstString(fields, titleKeys),
		Tags:     firstTags(fields, tagKeys),
		CoverURL: firstString(fields, coverKeys),
	}
	if work.Title == "" {
		work.Title = DefaultTitle(id)
	}
	if work.CoverURL == "" && l.coverTemplate != "" {
		work.CoverURL = strings.ReplaceAll(l.coverTemplate, "{id}", id.String())
	}
	logger.Debug("metadata resolved",
		logging.String("title", work.Title),
		logging.Int("tag_count", len(work.Tags)),
	)
	return work, nil
}

// DefaultTitle is the title used when the source supplies none.
func DefaultTitle(id workid.ID) string {
	return "Work " + id.String()
}

func classifyTransportError(err error, operation string, id workid.ID) error {
	if errors.Is(err, source.ErrNotFound) {
		return services.Wrap(services.ErrNotFound, "metadata", operation, fmt.Sprintf("work %s", id), err)
	}
	return services.Wrap(services.ErrRemoteUnavailable, "metadata", operation, fmt.Sprintf("work %s", id), err)
}

func firstString(fields source.Fields, keys []string) string {
	for _, key := range keys {
		if value, ok := fields.String(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// firstTags returns the first candidate holding at least one tag. A candidate
// may be a JSON array of strings or a comma-separated string.
func firstTags(fields source.Fields, keys []string) []string {
	for _, key := range keys {
		var tags []string
		switch v := fields[key].(type) {
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					tags = appendTag(tags, s)
				}
			}
		case string:
			for _, part := range strings.Split(v, ",") {
				tags = appendTag(tags, part)
			}
		}
		if len(tags) > 0 {
			return tags
		}
	}
	return []string{}
}

func appendTag(tags []string, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return tags
	}
	for _, existing := range tags {
		if existing == value {
			return tags
		}
	}
	return append(tags, value)
}
