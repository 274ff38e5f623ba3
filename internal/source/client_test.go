package source_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"folio/internal/source"
)

func newClient(t *testing.T, baseURL string, opts ...source.Option) *source.Client {
	t.Helper()
	opts = append([]source.Option{source.WithSleeper(func(time.Duration) {})}, opts...)
	client, err := source.NewClient(source.Config{
		BaseURL:       baseURL,
		UserAgent:     "folio-test",
		RetryAttempts: 3,
		PageWorkers:   2,
	}, opts...)
	require.NoError(t, err)
	return client
}

func TestFetchAlbumResolvesPages(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/album/123456", r.URL.Path)
		require.Equal(t, "folio-test", r.Header.Get("User-Agent"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name": " Sample Work ",
			"tags": []string{"a", "b"},
			"pages": []any{
				"img/1.jpg",
				map[string]any{"url": "/static/2.png"},
				server.URL + "/abs/3.webp",
				"",
			},
		})
	}))
	defer server.Close()

	client := newClient(t, server.URL+"/api/")
	album, err := client.FetchAlbum(context.Background(), "123456")
	require.NoError(t, err)
	require.Equal(t, "Sample Work", album.Name)
	require.Len(t, album.Pages, 3)
	require.Equal(t, source.PageRef{Ordinal: 1, URL: server.URL + "/api/img/1.jpg"}, album.Pages[0])
	require.Equal(t, server.URL+"/static/2.png", album.Pages[1].URL)
	require.Equal(t, 3, album.Pages[2].Ordinal)
	require.Equal(t, server.URL+"/abs/3.webp", album.Pages[2].URL)
	require.Contains(t, album.Fields, "tags")
}

func TestFetchAlbumFallsBackToImagesField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":"Alt","images":["p1.jpg","p2.jpg"]}`))
	}))
	defer server.Close()

	album, err := newClient(t, server.URL).FetchAlbum(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, "Alt", album.Name)
	require.Len(t, album.Pages, 2)
}

func TestFetchMetadataNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newClient(t, server.URL).FetchMetadata(context.Background(), "999999")
	require.Error(t, err)
	require.True(t, errors.Is(err, source.ErrNotFound))
	require.EqualValues(t, 1, calls.Load(), "not found must not be retried")
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer server.Close()

	var slept []time.Duration
	client := newClient(t, server.URL, source.WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	fields, err := client.FetchMetadata(context.Background(), "1")
	require.NoError(t, err)
	name, _ := fields.String("name")
	require.Equal(t, "ok", name)
	require.EqualValues(t, 2, calls.Load())
	require.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestClientGivesUpAfterRetryAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newClient(t, server.URL).FetchMetadata(context.Background(), "1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed after 3 attempts")
	require.False(t, errors.Is(err, source.ErrNotFound))
	require.EqualValues(t, 3, calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newClient(t, server.URL).FetchMetadata(context.Background(), "1")
	require.Error(t, err)
	require.EqualValues(t, 1, calls.Load())
}

func TestFetchPagesDeliversEveryPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/p1":
			w.Header().Set("Content-Type", "image/png")
		case "/p2.webp":
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		_, _ = w.Write([]byte("data" + r.URL.Path))
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	album := source.Album{
		ID: "5",
		Pages: []source.PageRef{
			{Ordinal: 1, URL: server.URL + "/p1"},
			{Ordinal: 2, URL: server.URL + "/p2.webp"},
			{Ordinal: 3, URL: server.URL + "/p3"},
		},
	}

	var mu sync.Mutex
	var got []source.Page
	err := client.FetchPages(context.Background(), album, func(p source.Page) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	sort.Slice(got, func(i, j int) bool { return got[i].Ordinal < got[j].Ordinal })
	require.Equal(t, ".png", got[0].Ext)
	require.Equal(t, ".webp", got[1].Ext)
	require.Equal(t, ".jpg", got[2].Ext)
	require.Equal(t, "data/p3", string(got[2].Data))
}

func TestFetchPagesReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	album := source.Album{Pages: []source.PageRef{
		{Ordinal: 1, URL: server.URL + "/good"},
		{Ordinal: 2, URL: server.URL + "/bad"},
	}}
	err := newClient(t, server.URL).FetchPages(context.Background(), album, func(source.Page) error { return nil })
	require.Error(t, err)
	require.Contains(t, err.Error(), "page 2")
}

func TestNewClientRejectsRelativeBase(t *testing.T) {
	_, err := source.NewClient(source.Config{BaseURL: "example.test/api"})
	require.Error(t, err)
}
