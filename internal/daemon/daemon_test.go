package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"folio/internal/acquire"
	"folio/internal/api"
	"folio/internal/assembly"
	"folio/internal/config"
	"folio/internal/daemon"
	"folio/internal/dispatch"
	"folio/internal/favorites"
	"folio/internal/history"
	"folio/internal/logging"
	"folio/internal/metadata"
	"folio/internal/testsupport"
)

type harness struct {
	cfg       *config.Config
	transport *testsupport.FakeTransport
	history   *history.Store
	daemon    *daemon.Daemon
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()

	hist, err := history.Open(cfg.HistoryPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })

	logger := logging.NewNop()
	codec := assembly.NewPDFCodec(cfg.PDFDir(), logger)
	dispatcher := dispatch.New(dispatch.Deps{
		Acquirer:  acquire.New(acquire.OptionsFromConfig(cfg), transport, codec, hist, logger),
		Lookup:    metadata.New(transport, cfg.Source.CoverURLTemplate, logger),
		Favorites: favorites.Open(cfg.FavoritesPath(), logger),
		Logger:    logger,
	})
	d, err := daemon.New(cfg, dispatcher, hist, nil, logger)
	require.NoError(t, err)
	t.Cleanup(d.Stop)

	return &harness{cfg: cfg, transport: transport, history: hist, daemon: d}
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.daemon.Start(ctx))
	status := h.daemon.Status(ctx)
	require.True(t, status.Running)
	require.True(t, status.Dispatcher.Running)
	require.Equal(t, h.cfg.LockPath(), status.LockFilePath)
	require.NotNil(t, status.History)

	require.Error(t, h.daemon.Start(ctx), "second start should fail")

	h.daemon.Stop()
	require.False(t, h.daemon.Status(ctx).Running)
	require.Empty(t, h.daemon.Address())
}

func TestSecondInstanceIsRejected(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.daemon.Start(context.Background()))

	other, err := daemon.New(h.cfg, dispatch.New(dispatch.Deps{}), nil, nil, logging.NewNop())
	require.NoError(t, err)
	err = other.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "already running")
}

func TestStartReclaimsStaleWorkDirectories(t *testing.T) {
	h := newHarness(t)
	stale := filepath.Join(h.cfg.Paths.DataDir, "Abandoned")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	h.cfg.Staging.StaleAfterHours = 1
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	require.NoError(t, h.daemon.Start(context.Background()))
	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err))
}

func TestAPIServesCommandsOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.transport.AddWork(t, "123456", "Sample Work", 2)
	require.NoError(t, h.daemon.Start(context.Background()))
	base := "http://" + h.daemon.Address()

	body, _ := json.Marshal(api.CommandRequest{Text: "/jmd 123456"})
	resp, err := http.Post(base+"/api/command", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var cmd api.CommandResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cmd))
	require.True(t, cmd.OK, cmd.Text)
	require.Equal(t, "get", cmd.Verb)
	require.FileExists(t, filepath.Join(h.cfg.PDFDir(), "Sample_Work.pdf"))

	histResp, err := http.Get(base + "/api/history?limit=5")
	require.NoError(t, err)
	defer histResp.Body.Close()
	var hist api.HistoryResponse
	require.NoError(t, json.NewDecoder(histResp.Body).Decode(&hist))
	require.Len(t, hist.Entries, 1)
	require.Equal(t, "123456", hist.Entries[0].WorkID)

	statusResp, err := http.Get(base + "/api/status")
	require.NoError(t, err)
	defer statusResp.Body.Close()
	var status api.DaemonStatus
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	require.True(t, status.Running)
	require.Equal(t, int64(1), status.Dispatcher.Handled)
	require.Equal(t, 1, status.History.Succeeded)
}
