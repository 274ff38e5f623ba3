package acquire_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"folio/internal/acquire"
	"folio/internal/assembly"
	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/services"
	"folio/internal/source"
	"folio/internal/testsupport"
	"folio/internal/workid"
)

type recorder struct {
	mu      sync.Mutex
	results []acquire.Result
	err     error
}

func (r *recorder) RecordAcquisition(_ context.Context, res acquire.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return r.err
}

type failingCodec struct{}

func (failingCodec) Assemble(context.Context, string, string, workid.ID) (string, error) {
	return "", errors.New("encoder exploded")
}

func newPipeline(t *testing.T, cfg *config.Config, transport source.Transport, rec acquire.Recorder) *acquire.Pipeline {
	t.Helper()
	codec := assembly.NewPDFCodec(cfg.PDFDir(), logging.NewNop())
	return acquire.New(acquire.OptionsFromConfig(cfg), transport, codec, rec, logging.NewNop())
}

func TestAcquireProducesArtifactAndRemovesPages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()
	transport.AddWork(t, "123456", "Sample Work", 3)
	rec := &recorder{}

	res, err := newPipeline(t, cfg, transport, rec).Acquire(context.Background(), "123456")
	require.NoError(t, err)
	require.True(t, res.Succeeded)
	require.False(t, res.Reused)
	require.Equal(t, "Sample Work", res.Title)
	require.Equal(t, 3, res.Pages)
	require.NotEmpty(t, res.RequestID)
	require.Equal(t, filepath.Join(cfg.Paths.DataDir, "pdf", "Sample_Work.pdf"), res.ArtifactPath)

	data, err := os.ReadFile(res.ArtifactPath)
	require.NoError(t, err)
	require.Equal(t, "%PDF-", string(data[:5]))

	pages, err := assembly.ListPages(filepath.Join(cfg.Paths.DataDir, "Sample_Work"))
	if err == nil {
		require.Empty(t, pages)
	}
	_, statErr := os.Stat(filepath.Join(cfg.Paths.DataDir, "Sample_Work"))
	require.True(t, os.IsNotExist(statErr), "empty work directory should be removed")

	require.Len(t, rec.results, 1)
	require.True(t, rec.results[0].Succeeded)
}

func TestAcquireTwiceReusesArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()
	transport.AddWork(t, "42", "Twice", 2)
	pipeline := newPipeline(t, cfg, transport, nil)

	first, err := pipeline.Acquire(context.Background(), "42")
	require.NoError(t, err)
	second, err := pipeline.Acquire(context.Background(), " 42 ")
	require.NoError(t, err)

	require.True(t, second.Succeeded)
	require.True(t, second.Reused)
	require.Equal(t, first.ArtifactPath, second.ArtifactPath)
	require.EqualValues(t, 2, transport.PageCalls.Load())
}

func TestAcquireTitleCollisionDoesNotReuseOtherWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()
	transport.AddWork(t, "1", "A/B", 2)
	transport.AddWork(t, "2", "A:B", 3)
	pipeline := newPipeline(t, cfg, transport, nil)

	first, err := pipeline.Acquire(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cfg.PDFDir(), "A_B.pdf"), first.ArtifactPath)

	second, err := pipeline.Acquire(context.Background(), "2")
	require.NoError(t, err)
	require.True(t, second.Succeeded)
	require.False(t, second.Reused)
	require.Equal(t, 3, second.Pages)
	require.Equal(t, filepath.Join(cfg.PDFDir(), "A_B_2.pdf"), second.ArtifactPath)
	require.EqualValues(t, 5, transport.PageCalls.Load())

	owner, ok, err := assembly.ReadOwner(first.ArtifactPath)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, workid.ID("1"), owner)
	owner, ok, err = assembly.ReadOwner(second.ArtifactPath)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, workid.ID("2"), owner)

	// Each id keeps reusing its own artifact.
	again, err := pipeline.Acquire(context.Background(), "2")
	require.NoError(t, err)
	require.True(t, again.Reused)
	require.Equal(t, second.ArtifactPath, again.ArtifactPath)
	again, err = pipeline.Acquire(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, again.Reused)
	require.Equal(t, first.ArtifactPath, again.ArtifactPath)
	require.EqualValues(t, 5, transport.PageCalls.Load())
}

func TestAcquireDoesNotReuseUnmarkedArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()
	transport.AddWork(t, "77", "Foreign", 1)
	foreign := filepath.Join(cfg.PDFDir(), "Foreign.pdf")
	require.NoError(t, os.MkdirAll(cfg.PDFDir(), 0o755))
	require.NoError(t, os.WriteFile(foreign, []byte("%PDF-1.4\n%%EOF\n"), 0o644))

	res, err := newPipeline(t, cfg, transport, nil).Acquire(context.Background(), "77")
	require.NoError(t, err)
	require.False(t, res.Reused)
	require.Equal(t, filepath.Join(cfg.PDFDir(), "Foreign_77.pdf"), res.ArtifactPath)
	require.EqualValues(t, 1, transport.PageCalls.Load())

	data, err := os.ReadFile(foreign)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4\n%%EOF\n", string(data))
}

func TestAcquireKeepsPagesWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.PDF.DeletePages = false
	transport := testsupport.NewFakeTransport()
	transport.AddWork(t, "7", "Keep", 2)

	_, err := newPipeline(t, cfg, transport, nil).Acquire(context.Background(), "7")
	require.NoError(t, err)

	pages, err := assembly.ListPages(filepath.Join(cfg.Paths.DataDir, "Keep"))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.Equal(t, "00001.png", filepath.Base(pages[0].Path))
}

func TestAcquireInvalidIdentifier(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()

	res, err := newPipeline(t, cfg, transport, nil).Acquire(context.Background(), "12ab")
	require.True(t, errors.Is(err, services.ErrInvalidIdentifier))
	require.False(t, res.Succeeded)
	require.Equal(t, "invalid_identifier", res.FailureKind)
	require.NotEmpty(t, res.FailureReason)
	require.Zero(t, transport.AlbumCalls.Load())
}

func TestAcquireNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := &recorder{}

	res, err := newPipeline(t, cfg, testsupport.NewFakeTransport(), rec).Acquire(context.Background(), "999999")
	require.True(t, errors.Is(err, services.ErrNotFound))
	require.Equal(t, "not_found", res.FailureKind)
	require.Len(t, rec.results, 1)
	require.False(t, rec.results[0].Succeeded)
}

func TestAcquireRemoteUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()
	transport.Unavailable = true

	_, err := newPipeline(t, cfg, transport, nil).Acquire(context.Background(), "1")
	require.True(t, errors.Is(err, services.ErrRemoteUnavailable))
}

func TestAcquirePageFailureKeepsPartialDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()
	transport.Put("55", testsupport.FakeWork{
		Name:     "Partial",
		Pages:    [][]byte{testsupport.PNGBytes(t, 2, 2), testsupport.PNGBytes(t, 2, 2), testsupport.PNGBytes(t, 2, 2)},
		FailPage: 2,
	})

	res, err := newPipeline(t, cfg, transport, nil).Acquire(context.Background(), "55")
	require.True(t, errors.Is(err, services.ErrDownloadFailed))
	require.Equal(t, "download_failed", res.FailureKind)
	require.Empty(t, res.ArtifactPath)

	pages, err := assembly.ListPages(filepath.Join(cfg.Paths.DataDir, "Partial"))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	_, statErr := os.Stat(filepath.Join(cfg.PDFDir(), "Partial.pdf"))
	require.True(t, os.IsNotExist(statErr))

	// A later run heals the directory once the source recovers.
	transport.AddWork(t, "55", "Partial", 3)
	res, err = newPipeline(t, cfg, transport, nil).Acquire(context.Background(), "55")
	require.NoError(t, err)
	require.True(t, res.Succeeded)
}

func TestAcquireAssemblyFailureKeepsPages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()
	transport.AddWork(t, "9", "Broken", 2)
	pipeline := acquire.New(acquire.OptionsFromConfig(cfg), transport, failingCodec{}, nil, nil)

	res, err := pipeline.Acquire(context.Background(), "9")
	require.True(t, errors.Is(err, services.ErrAssemblyFailed))
	require.Contains(t, res.FailureReason, "encoder exploded")

	pages, err := assembly.ListPages(filepath.Join(cfg.Paths.DataDir, "Broken"))
	require.NoError(t, err)
	require.Len(t, pages, 2)
}

func TestAcquireZeroPages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()
	transport.AddWork(t, "3", "Empty", 0)

	_, err := newPipeline(t, cfg, transport, nil).Acquire(context.Background(), "3")
	require.True(t, errors.Is(err, services.ErrDownloadFailed))
}

func TestAcquireRecorderFailureIsIgnored(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()
	transport.AddWork(t, "8", "Recorded", 1)

	res, err := newPipeline(t, cfg, transport, &recorder{err: errors.New("disk full")}).Acquire(context.Background(), "8")
	require.NoError(t, err)
	require.True(t, res.Succeeded)
}

func TestConcurrentSameIDDownloadsOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()
	transport.AddWork(t, "100", "Shared", 3)
	transport.Gate = make(chan struct{})
	pipeline := newPipeline(t, cfg, transport, nil)

	const callers = 8
	results := make([]acquire.Result, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = pipeline.Acquire(context.Background(), "100")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(transport.Gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.True(t, results[i].Succeeded)
		require.Equal(t, results[0].ArtifactPath, results[i].ArtifactPath)
	}
	require.EqualValues(t, 3, transport.PageCalls.Load())
}

func TestAbandonedCallerDoesNotCancelRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	transport := testsupport.NewFakeTransport()
	transport.AddWork(t, "200", "Detached", 2)
	transport.Gate = make(chan struct{})
	pipeline := newPipeline(t, cfg, transport, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := pipeline.Acquire(ctx, "200")
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(transport.Gate)
	res, err := pipeline.Acquire(context.Background(), "200")
	require.NoError(t, err)
	require.True(t, res.Succeeded)
	require.EqualValues(t, 2, transport.PageCalls.Load())
}
