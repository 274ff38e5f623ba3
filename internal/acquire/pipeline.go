package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"folio/internal/assembly"
	"folio/internal/config"
	"folio/internal/fileutil"
	"folio/internal/logging"
	"folio/internal/services"
	"folio/internal/source"
	"folio/internal/textutil"
	"folio/internal/workid"
)

var pdfMagic = []byte("%PDF-")

// Result describes the outcome of one acquisition.
type Result struct {
	ID            workid.ID     `json:"id"`
	Title         string        `json:"title"`
	ArtifactPath  string        `json:"artifact_path,omitempty"`
	Succeeded     bool          `json:"succeeded"`
	FailureReason string        `json:"failure_reason,omitempty"`
	FailureKind   string        `json:"failure_kind,omitempty"`
	Pages         int           `json:"pages"`
	Reused        bool          `json:"reused"`
	RequestID     string        `json:"request_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
}

// Recorder persists acquisition outcomes. Recording is best effort.
type Recorder interface {
	RecordAcquisition(ctx context.Context, result Result) error
}

// Options controls where artifacts are written.
type Options struct {
	DataDir        string
	PDFDir         string
	MaxTitleLength int
	DeletePages    bool
}

// OptionsFromConfig derives pipeline options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DataDir:        cfg.Paths.DataDir,
		PDFDir:         cfg.PDFDir(),
		MaxTitleLength: cfg.PDF.MaxTitleLength,
		DeletePages:    cfg.PDF.DeletePages,
	}
}

// Pipeline runs acquisitions.
type Pipeline struct {
	opts      Options
	transport source.Transport
	codec     assembly.Codec
	recorder  Recorder
	logger    *slog.Logger
	group     singleflight.Group

	mu      sync.Mutex
	claimed map[string]workid.ID
}

// New constructs a pipeline. recorder may be nil.
func New(opts Options, transport source.Transport, codec assembly.Codec, recorder Recorder, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		opts:      opts,
		transport: transport,
		codec:     codec,
		recorder:  recorder,
		logger:    logging.NewComponentLogger(logger, "acquire"),
		claimed:   make(map[string]workid.ID),
	}
}

// Acquire produces the PDF artifact for raw. The returned Result is always
// populated; on failure err carries a services marker and the result's
// FailureReason describes it. A caller whose ctx ends first gets ctx.Err()
// while the shared run continues in the background.
func (p *Pipeline) Acquire(ctx context.Context, raw string) (Result, error) {
	id, err := workid.Parse(raw)
	if err != nil {
		res := Result{StartedAt: time.Now().UTC()}
		fail(&res, err)
		return res, err
	}

	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	runCtx := services.WithRequestID(services.WithWorkID(context.WithoutCancel(ctx), id.String()), requestID)

	ch := p.group.DoChan(id.String(), func() (any, error) {
		return p.run(runCtx, id)
	})
	select {
	case <-ctx.Done():
		res := Result{ID: id, RequestID: requestID, StartedAt: time.Now().UTC()}
		fail(&res, ctx.Err())
		return res, ctx.Err()
	case out := <-ch:
		res, _ := out.Val.(Result)
		if out.Shared {
			logging.WithContext(ctx, p.logger).Debug("joined in-flight acquisition",
				logging.String(logging.FieldWorkID, id.String()),
			)
		}
		return res, out.Err
	}
}

// ArtifactPath returns where the artifact for a sanitized title lives.
func (p *Pipeline) ArtifactPath(sanitized string) string {
	return filepath.Join(p.opts.PDFDir, sanitized+".pdf")
}

// WorkDir returns the page directory for a sanitized title.
func (p *Pipeline) WorkDir(sanitized string) string {
	return filepath.Join(p.opts.DataDir, sanitized)
}

// SanitizedName maps a work title to its file name stem.
func (p *Pipeline) SanitizedName(id workid.ID, title string) string {
	return textutil.SanitizeTitle(title, p.opts.MaxTitleLength, "work_"+id.String())
}

func (p *Pipeline) run(ctx context.Context, id workid.ID) (res Result, err error) {
	requestID, _ := services.RequestIDFromContext(ctx)
	res = Result{ID: id, RequestID: requestID, StartedAt: time.Now().UTC()}
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("acquisition started")

	defer func() {
		res.Duration = time.Since(res.StartedAt)
		if err != nil {
			fail(&res, err)
			logging.WarnWithContext(logger, "acquisition failed", "acquisition_failed",
				logging.String(logging.FieldErrorKind, res.FailureKind),
				logging.String(logging.FieldErrorHint, hintFor(err)),
				logging.String(logging.FieldImpact, "no PDF was produced for this request"),
				logging.Error(err),
			)
		} else {
			logger.Info("acquisition completed",
				logging.String("artifact", res.ArtifactPath),
				logging.Int("pages", res.Pages),
				logging.Bool("reused", res.Reused),
				logging.Duration("duration", res.Duration),
			)
		}
		p.record(ctx, logger, res)
	}()

	album, err := p.transport.FetchAlbum(ctx, id)
	if err != nil {
		return res, classifyAlbumError(id, err)
	}
	res.Title = album.Name
	if res.Title == "" {
		res.Title = "Work " + id.String()
	}
	name, reuse := p.claimName(logger, id, p.SanitizedName(id, res.Title))
	defer p.releaseName(name)
	workDir := p.WorkDir(name)
	artifact := p.ArtifactPath(name)

	if reuse {
		res.ArtifactPath = artifact
		res.Succeeded = true
		res.Reused = true
		res.Pages = len(album.Pages)
		return res, nil
	}

	if len(album.Pages) == 0 {
		return res, services.Wrap(services.ErrDownloadFailed, "acquire", "download pages", fmt.Sprintf("work %s lists no pages", id), nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return res, services.Wrap(services.ErrStorage, "acquire", "create work directory", workDir, err)
	}
	if err := removePages(workDir); err != nil {
		return res, services.Wrap(services.ErrStorage, "acquire", "clear stale pages", workDir, err)
	}

	var written atomic.Int32
	err = p.transport.FetchPages(ctx, album, func(page source.Page) error {
		target := filepath.Join(workDir, fmt.Sprintf("%05d%s", page.Ordinal, page.Ext))
		if err := fileutil.WriteFileAtomic(target, page.Data, 0o644); err != nil {
			return err
		}
		written.Add(1)
		return nil
	})
	res.Pages = int(written.Load())
	if err != nil {
		return res, services.Wrap(
			services.ErrDownloadFailed,
			"acquire",
			"download pages",
			fmt.Sprintf("%d of %d pages stored in %s", res.Pages, len(album.Pages), workDir),
			err,
		)
	}
	logger.Debug("pages downloaded", logging.Int("pages", res.Pages), logging.String("dir", workDir))

	path, err := p.codec.Assemble(ctx, workDir, name, id)
	if err != nil {
		return res, services.Wrap(services.ErrAssemblyFailed, "acquire", "assemble", workDir, err)
	}
	if !fileutil.HasPrefix(path, pdfMagic) {
		return res, services.Wrap(services.ErrAssemblyFailed, "acquire", "verify artifact", fmt.Sprintf("%s is missing or not a PDF", path), nil)
	}
	res.ArtifactPath = path
	res.Succeeded = true

	if p.opts.DeletePages {
		if err := removePages(workDir); err != nil {
			logging.WarnWithContext(logger, "page cleanup failed", "page_cleanup_failed",
				logging.String("dir", workDir),
				logging.String(logging.FieldErrorHint, "remove the page directory manually or run folio clean"),
				logging.String(logging.FieldImpact, "page images remain on disk"),
				logging.Error(err),
			)
		} else if _, err := fileutil.RemoveIfEmpty(workDir); err != nil {
			logger.Debug("work directory kept", logging.String("dir", workDir), logging.Error(err))
		}
	}
	return res, nil
}

// claimName picks the file name stem for id. The sanitized title is used
// unless an artifact or an in-flight run of another work holds it, in which
// case "_<id>" is appended. reuse reports that an artifact recorded as
// produced for id already exists under the returned stem.
func (p *Pipeline) claimName(logger *slog.Logger, id workid.ID, name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := []string{name, p.suffixedName(id, name)}
	for _, candidate := range candidates {
		if owner, exists := p.artifactOwner(candidate); exists && owner == id {
			p.claimed[candidate] = id
			return candidate, true
		}
	}

	chosen := candidates[1]
	if owner, busy := p.claimed[name]; !busy || owner == id {
		if _, exists := p.artifactOwner(name); !exists {
			chosen = name
		}
	}
	if chosen != name {
		logger.Info("artifact name held by another work",
			logging.String("title_name", name),
			logging.String("artifact_name", chosen),
		)
	}
	p.claimed[chosen] = id
	return chosen, false
}

func (p *Pipeline) releaseName(name string) {
	p.mu.Lock()
	delete(p.claimed, name)
	p.mu.Unlock()
}

// artifactOwner reports whether a PDF exists for name and which work it
// records. Unreadable or unmarked artifacts have an empty owner.
func (p *Pipeline) artifactOwner(name string) (workid.ID, bool) {
	path := p.ArtifactPath(name)
	if !fileutil.HasPrefix(path, pdfMagic) {
		return "", false
	}
	owner, ok, err := assembly.ReadOwner(path)
	if err != nil || !ok {
		return "", true
	}
	return owner, true
}

func (p *Pipeline) suffixedName(id workid.ID, name string) string {
	suffix := "_" + id.String()
	limit := p.opts.MaxTitleLength
	if limit <= 0 {
		limit = textutil.DefaultMaxTitleRunes
	}
	limit = max(limit-len(suffix), 1)
	if r := []rune(name); len(r) > limit {
		name = strings.TrimRight(string(r[:limit]), "._-")
	}
	return name + suffix
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, res Result) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.RecordAcquisition(ctx, res); err != nil {
		logging.WarnWithContext(logger, "failed to record acquisition", "history_write_failed",
			logging.String(logging.FieldErrorHint, "check history database permissions"),
			logging.String(logging.FieldImpact, "acquisition missing from history"),
			logging.Error(err),
		)
	}
}

func removePages(dir string) error {
	pages, err := assembly.ListPages(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, page := range pages {
		if err := os.Remove(page.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func fail(res *Result, err error) {
	res.Succeeded = false
	res.ArtifactPath = ""
	res.FailureKind = services.Kind(err)
	res.FailureReason = services.UserMessage(err)
}

func classifyAlbumError(id workid.ID, err error) error {
	if errors.Is(err, source.ErrNotFound) {
		return services.Wrap(services.ErrNotFound, "acquire", "fetch album", fmt.Sprintf("work %s", id), err)
	}
	return services.Wrap(services.ErrRemoteUnavailable, "acquire", "fetch album", fmt.Sprintf("work %s", id), err)
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "verify the identifier exists on the source"
	case errors.Is(err, services.ErrRemoteUnavailable), errors.Is(err, services.ErrDownloadFailed):
		return "check source.base_url and network connectivity, then retry"
	case errors.Is(err, services.ErrAssemblyFailed):
		return "inspect the page images left in the work directory"
	default:
		return "check data_dir permissions and free space"
	}
}
