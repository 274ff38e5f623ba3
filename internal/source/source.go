package source

import (
	"context"
	"errors"

	"folio/internal/workid"
)

// ErrNotFound reports that the remote source has no work with the requested id.
var ErrNotFound = errors.New("source: work not found")

// Fields is a decoded album document. Optional attributes are looked up by
// key so callers can apply their own candidate tables.
type Fields map[string]any

// String returns the string value stored under key.
func (f Fields) String(key string) (string, bool) {
	v, ok := f[key].(string)
	if !ok {
		return "", false
	}
	return v, true
}

// PageRef locates one page image of an album.
type PageRef struct {
	Ordinal int
	URL     string
}

// Album is the download metadata for a work.
type Album struct {
	ID     workid.ID
	Name   string
	Pages  []PageRef
	Fields Fields
}

// Page is a downloaded page image. Ext includes the leading dot.
type Page struct {
	Ordinal int
	Ext     string
	Data    []byte
}

// PageSink receives downloaded pages. It may be called concurrently, once per
// ordinal.
type PageSink func(Page) error

// Transport fetches works from the remote source.
type Transport interface {
	FetchMetadata(ctx context.Context, id workid.ID) (Fields, error)
	FetchAlbum(ctx context.Context, id workid.ID) (Album, error)
	FetchPages(ctx context.Context, album Album, sink PageSink) error
}
