package metadata_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"folio/internal/logging"
	"folio/internal/metadata"
	"folio/internal/services"
	"folio/internal/source"
	"folio/internal/testsupport"
)

func TestFetchResolvesCandidateFields(t *testing.T) {
	transport := testsupport.NewFakeTransport()
	transport.Put("123", testsupport.FakeWork{Fields: source.Fields{
		"title":      "Second Choice",
		"name":       "  ",
		"album_name": "Third",
		"tag_list":   "x, y ,x,,z",
		"thumbnail":  "https://cdn.test/123.jpg",
	}})

	work, err := metadata.New(transport, "", logging.NewNop()).Fetch(context.Background(), " 123 ")
	require.NoError(t, err)
	require.Equal(t, "123", work.ID.String())
	require.Equal(t, "Second Choice", work.Title)
	require.Equal(t, []string{"x", "y", "z"}, work.Tags)
	require.Equal(t, "https://cdn.test/123.jpg", work.CoverURL)
}

func TestFetchAppliesDefaults(t *testing.T) {
	transport := testsupport.NewFakeTransport()
	transport.Put("42", testsupport.FakeWork{Fields: source.Fields{"tags": []any{}}})

	work, err := metadata.New(transport, "", nil).Fetch(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "Work 42", work.Title)
	require.NotNil(t, work.Tags)
	require.Empty(t, work.Tags)
	require.Empty(t, work.CoverURL)
}

func TestFetchUsesCoverTemplate(t *testing.T) {
	transport := testsupport.NewFakeTransport()
	transport.Put("77", testsupport.FakeWork{Fields: source.Fields{"name": "Seven", "tags": []any{"a", 3, "b"}}})

	work, err := metadata.New(transport, "https://cdn.test/covers/{id}.jpg", nil).Fetch(context.Background(), "77")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.test/covers/77.jpg", work.CoverURL)
	require.Equal(t, []string{"a", "b"}, work.Tags)
}

func TestFetchNotFoundTouchesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()

	_, err := metadata.New(transport, "", nil).Fetch(context.Background(), "999999")
	require.Error(t, err)
	require.True(t, errors.Is(err, services.ErrNotFound))
	require.Equal(t, "not_found", services.Kind(err))

	entries, err := testsupport.ListTree(cfg.Paths.DataDir)
	require.NoError(t, err)
	require.Equal(t, []string{"pdf"}, entries)
}

func TestFetchRemoteUnavailable(t *testing.T) {
	transport := testsupport.NewFakeTransport()
	transport.Unavailable = true

	_, err := metadata.New(transport, "", nil).Fetch(context.Background(), "1")
	require.True(t, errors.Is(err, services.ErrRemoteUnavailable))
}

func TestFetchInvalidIdentifierSkipsTransport(t *testing.T) {
	transport := testsupport.NewFakeTransport()

	_, err := metadata.New(transport, "", nil).Fetch(context.Background(), "abc")
	require.True(t, errors.Is(err, services.ErrInvalidIdentifier))
	require.Zero(t, transport.MetadataCalls.Load())
}
