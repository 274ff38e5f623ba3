package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"folio/internal/acquire"
	"folio/internal/config"
	"folio/internal/favorites"
	"folio/internal/metadata"
	"folio/internal/notifications"
	"folio/internal/services"
	"folio/internal/workid"
)

type captured struct {
	title, body, tags, priority, attach string
}

func captureServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var got []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			attach:   r.Header.Get("Attach"),
		})
		mu.Unlock()
	}))
	t.Cleanup(server.Close)
	return server, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), got...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	require.NoError(t, svc.Publish(context.Background(), notifications.FormatError(errors.New("x"), "get")))
	require.NoError(t, svc.TestNotification(context.Background()))
}

func TestFormatWork(t *testing.T) {
	msg := notifications.FormatWork(metadata.Work{
		ID:       "123",
		Title:    "Sample Work",
		Tags:     []string{"a", "b"},
		CoverURL: "https://cdn.test/123.jpg",
	})
	require.Equal(t, notifications.EventWorkDetails, msg.Event)
	require.Equal(t, "Sample Work", msg.Title)
	require.Equal(t, "ID: 123\nTags: a, b\nCover: https://cdn.test/123.jpg", msg.Body)
	require.Equal(t, "https://cdn.test/123.jpg", msg.Attach)
	require.Equal(t, []string{"folio", "work_details"}, msg.Tags)

	bare := notifications.FormatWork(metadata.Work{ID: "9", Title: "Work 9", Tags: []string{}})
	require.Equal(t, "ID: 9\nTags: none", bare.Body)
}

func TestFormatAcquisition(t *testing.T) {
	ok := notifications.FormatAcquisition(acquire.Result{
		ID:           "123456",
		Title:        "Sample Work",
		ArtifactPath: "/data/pdf/Sample_Work.pdf",
		Succeeded:    true,
		Pages:        3,
	})
	require.Equal(t, "Downloaded JM123456: Sample Work", ok.Title)
	require.Contains(t, ok.Body, "File: Sample_Work.pdf")
	require.Contains(t, ok.Body, "Pages: 3")

	reused := notifications.FormatAcquisition(acquire.Result{ID: "1", Succeeded: true, Reused: true, ArtifactPath: "/x/A.pdf"})
	require.Contains(t, reused.Body, "reused")

	failed := notifications.FormatAcquisition(acquire.Result{ID: "7", FailureReason: "the work does not exist on the remote source"})
	require.Equal(t, notifications.EventError, failed.Event)
	require.Equal(t, "Download failed: JM7", failed.Title)
	require.Equal(t, "high", failed.Priority)
}

func TestFormatFavorites(t *testing.T) {
	added := notifications.FormatAdded(favorites.AddResult{ID: "5", AlreadyPresent: true, Total: 2})
	require.Equal(t, "5 is already a favorite", added.Title)
	require.Equal(t, "Total favorites: 2", added.Body)

	removed := notifications.FormatRemoved(favorites.RemoveResult{ID: "5", WasPresent: true, Total: 1})
	require.Equal(t, "Removed 5 from favorites", removed.Title)

	listing := notifications.FormatListing(favorites.Listing{IDs: []workid.ID{"1", "2"}})
	require.Equal(t, "Favorites (2)", listing.Title)
	require.Equal(t, "1\n2", listing.Body)

	warned := notifications.FormatListing(favorites.Listing{
		IDs:     []workid.ID{},
		Warning: services.Wrap(services.ErrPersistenceCorrupted, "favorites", "decode record", "x", nil),
	})
	require.Contains(t, warned.Body, "No favorites saved")
	require.Contains(t, warned.Body, "Warning:")

	require.Equal(t, "Random favorite: 42", notifications.FormatRandom("42").Title)
	require.Equal(t, "Random favorite: 42\nSend \"jmd 42\" to download it", notifications.FormatRandom("42").Text())
}

func TestNtfyServicePublishesAndFilters(t *testing.T) {
	server, received := captureServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Lookup = false
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	require.NoError(t, svc.Publish(ctx, notifications.FormatWork(metadata.Work{ID: "1", Title: "Skipped"})))
	require.NoError(t, svc.Publish(ctx, notifications.FormatAdded(favorites.AddResult{ID: "1", Total: 1})))
	require.NoError(t, svc.Publish(ctx, notifications.FormatAcquisition(acquire.Result{
		ID: "1", Title: "東方", Succeeded: true, ArtifactPath: "/d/pdf/x.pdf", Pages: 1,
	})))
	require.NoError(t, svc.Publish(ctx, notifications.FormatError(errors.New("boom"), "info")))

	got := received()
	require.Len(t, got, 2)
	require.Contains(t, got[0].title, "=?utf-8?q?")
	require.Equal(t, "folio,acquisition_complete", got[0].tags)
	require.Equal(t, "Error: info", got[1].title)
	require.Equal(t, "boom", got[1].body)
	require.Equal(t, "high", got[1].priority)
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}
