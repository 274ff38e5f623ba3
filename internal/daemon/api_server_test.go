package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"folio/internal/api"
	"folio/internal/dispatch"
	"folio/internal/favorites"
	"folio/internal/logging"
	"folio/internal/testsupport"
)

func newTestAPIServer(t *testing.T) *apiServer {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	dispatcher := dispatch.New(dispatch.Deps{
		Favorites: favorites.Open(cfg.FavoritesPath(), logging.NewNop()),
		Logger:    logging.NewNop(),
	})
	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("start dispatcher: %v", err)
	}
	t.Cleanup(dispatcher.Stop)

	d, err := New(cfg, dispatcher, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return newAPIServer("", d, logging.NewNop())
}

func TestAPIServerHandleCommand(t *testing.T) {
	srv := newTestAPIServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"text":"fav add 42"}`))
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	srv.handleCommand(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.CommandResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.OK || resp.Verb != "fav_add" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.RequestID != "req-42" {
		t.Fatalf("expected request id to be propagated, got %q", resp.RequestID)
	}
}

func TestAPIServerCommandValidation(t *testing.T) {
	srv := newTestAPIServer(t)

	cases := []struct {
		method string
		body   string
		code   int
	}{
		{http.MethodGet, "", http.StatusMethodNotAllowed},
		{http.MethodPost, "not json", http.StatusBadRequest},
		{http.MethodPost, `{"text":"  "}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/api/command", strings.NewReader(tc.body))
		w := httptest.NewRecorder()
		srv.handleCommand(w, req)
		if w.Code != tc.code {
			t.Errorf("%s %q: expected %d, got %d", tc.method, tc.body, tc.code, w.Code)
		}
	}
}

func TestAPIServerCommandAfterStop(t *testing.T) {
	srv := newTestAPIServer(t)
	srv.daemon.dispatcher.Stop()

	req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"text":"help"}`))
	w := httptest.NewRecorder()
	srv.handleCommand(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestAPIServerHistoryLimit(t *testing.T) {
	srv := newTestAPIServer(t)

	for _, q := range []string{"limit=0", "limit=abc", "limit=-3"} {
		w := httptest.NewRecorder()
		srv.handleHistory(w, httptest.NewRequest(http.MethodGet, "/api/history?"+q, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}

	w := httptest.NewRecorder()
	srv.handleHistory(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 0 {
		t.Fatalf("expected no entries without a history store, got %d", len(resp.Entries))
	}
}
