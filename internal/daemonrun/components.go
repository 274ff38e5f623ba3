package daemonrun

import (
	"errors"
	"fmt"
	"log/slog"

	"folio/internal/acquire"
	"folio/internal/assembly"
	"folio/internal/config"
	"folio/internal/dispatch"
	"folio/internal/favorites"
	"folio/internal/history"
	"folio/internal/logging"
	"folio/internal/metadata"
	"folio/internal/notifications"
	"folio/internal/services"
	"folio/internal/source"
)

// Components holds the wired core of one folio process.
type Components struct {
	Config     *config.Config
	Logger     *slog.Logger
	Transport  source.Transport
	Pipeline   *acquire.Pipeline
	Lookup     *metadata.Lookup
	Favorites  *favorites.Store
	History    *history.Store
	Notifier   notifications.Service
	Dispatcher *dispatch.Dispatcher
}

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	transport source.Transport
	notifier  notifications.Service
}

// WithTransport replaces the HTTP source client.
func WithTransport(transport source.Transport) Option {
	return func(o *buildOptions) { o.transport = transport }
}

// WithNotifier replaces the configured notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *buildOptions) { o.notifier = notifier }
}

// Build constructs every component from cfg. Callers must Close the result.
// The dispatcher is built but not started.
func Build(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "daemonrun", "ensure directories", cfg.Paths.DataDir, err)
	}

	transport := o.transport
	if transport == nil {
		client, err := source.NewClient(source.Config{
			BaseURL:        cfg.Source.BaseURL,
			UserAgent:      cfg.Source.UserAgent,
			TimeoutSeconds: cfg.Source.RequestTimeout,
			RetryAttempts:  cfg.Source.RetryAttempts,
			PageWorkers:    cfg.Source.PageWorkers,
		}, source.WithLogger(logger))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "daemonrun", "source client", cfg.Source.BaseURL, err)
		}
		transport = client
	}

	c := &Components{
		Config:    cfg,
		Logger:    logger,
		Transport: transport,
		Lookup:    metadata.New(transport, cfg.Source.CoverURLTemplate, logger),
		Favorites: favorites.Open(cfg.FavoritesPath(), logger),
		Notifier:  o.notifier,
	}
	if c.Notifier == nil {
		c.Notifier = notifications.NewService(cfg)
	}

	var recorder acquire.Recorder
	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		c.History = store
		recorder = store
	}

	codec := assembly.NewPDFCodec(cfg.PDFDir(), logger)
	c.Pipeline = acquire.New(acquire.OptionsFromConfig(cfg), transport, codec, recorder, logger)
	c.Dispatcher = dispatch.New(dispatch.Deps{
		Acquirer:  c.Pipeline,
		Lookup:    c.Lookup,
		Favorites: c.Favorites,
		Notifier:  c.Notifier,
		Logger:    logger,
	})
	return c, nil
}

// Close releases the history database.
func (c *Components) Close() error {
	if c == nil || c.History == nil {
		return nil
	}
	return c.History.Close()
}
