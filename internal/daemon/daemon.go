package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"folio/internal/config"
	"folio/internal/dispatch"
	"folio/internal/history"
	"folio/internal/logging"
	"folio/internal/notifications"
	"folio/internal/preflight"
	"folio/internal/staging"
)

// HistoryReader exposes recorded acquisitions.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Summary(ctx context.Context) (history.Summary, error)
}

// Daemon serves the dispatcher and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
	history    HistoryReader
	notifier   notifications.Service

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	api     *apiServer
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DataDir      string
	LockFilePath string
	Dispatcher   dispatch.StatusSummary
	History      *history.Summary
}

// New constructs a daemon. history may be nil when the history store is
// disabled.
func New(cfg *config.Config, dispatcher *dispatch.Dispatcher, hist HistoryReader, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || dispatcher == nil {
		return nil, errors.New("daemon requires config and dispatcher")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		dispatcher: dispatcher,
		history:    hist,
		notifier:   notifier,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, starts the dispatcher and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another folio daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.dispatcher.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start dispatcher: %w", err)
	}

	d.reclaimWorkDirs(runCtx)
	d.runPreflight(runCtx)

	api := newAPIServer(d.cfg.Paths.APIBind, d, d.logger)
	if err := api.start(runCtx); err != nil {
		d.dispatcher.Stop()
		_ = d.lock.Unlock()
		cancel()
		return err
	}

	d.api = api
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("folio daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", api.address()),
	)
	return nil
}

// Stop shuts the API down, drains the dispatcher and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.api = nil
	d.dispatcher.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("folio daemon stopped")
}

// Address returns the API listen address, or "" when not running.
func (d *Daemon) Address() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.address()
}

// Submit forwards command text to the dispatcher.
func (d *Daemon) Submit(ctx context.Context, text string) (dispatch.Reply, error) {
	return d.dispatcher.Submit(ctx, text)
}

// Recent returns recorded acquisitions, newest first.
func (d *Daemon) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	if d.history == nil {
		return nil, nil
	}
	return d.history.Recent(ctx, limit)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DataDir:      d.cfg.Paths.DataDir,
		LockFilePath: d.lockPath,
		Dispatcher:   d.dispatcher.Status(),
	}
	if d.history != nil {
		summary, err := d.history.Summary(ctx)
		if err != nil {
			d.logger.Warn("failed to read history summary",
				logging.Error(err),
				logging.String(logging.FieldEventType, "history_summary_failed"),
				logging.String(logging.FieldErrorHint, "check history.path"),
				logging.String(logging.FieldImpact, "status omits history totals"),
			)
		} else {
			status.History = &summary
		}
	}
	return status
}

func (d *Daemon) reclaimWorkDirs(ctx context.Context) {
	maxAge := time.Duration(d.cfg.Staging.StaleAfterHours) * time.Hour
	if maxAge <= 0 {
		return
	}
	result := staging.CleanStale(ctx, staging.Layout{
		DataDir:  d.cfg.Paths.DataDir,
		PDFDir:   d.cfg.PDFDir(),
		Reserved: []string{d.cfg.Paths.LogDir},
	}, maxAge, d.logger)
	if len(result.Removed) > 0 {
		d.logger.Info("reclaimed stale work directories",
			logging.Int("removed", len(result.Removed)),
			logging.String(logging.FieldEventType, "staging_reclaimed"),
		)
	}
}

func (d *Daemon) runPreflight(ctx context.Context) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "run folio check for details"),
			logging.String(logging.FieldImpact, "commands depending on this check will fail"),
		)
	}
}
