package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"folio/internal/config"
	"folio/internal/daemon"
	"folio/internal/logging"
)

// Run starts the folio daemon and blocks until ctx ends or a termination
// signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logConfigSnapshot(logger, cfg)

	components, err := Build(cfg, logger, opts...)
	if err != nil {
		logging.ErrorWithContext(logger, "build components", "daemon_build_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `folio check` to inspect the environment"),
		)
		return err
	}
	defer components.Close()

	var hist daemon.HistoryReader
	if components.History != nil {
		hist = components.History
	}
	d, err := daemon.New(cfg, components.Dispatcher, hist, components.Notifier, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Stop()

	<-signalCtx.Done()
	logger.Info("folio daemon shutting down")
	return nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.String("pdf_dir", cfg.PDFDir()),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.String("source", cfg.Source.BaseURL),
		logging.Int("page_workers", cfg.Source.PageWorkers),
		logging.Bool("history_enabled", cfg.History.Enabled),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}
