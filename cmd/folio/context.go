package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"folio/internal/config"
	"folio/internal/daemonrun"
	"folio/internal/dispatch"
	"folio/internal/logging"
	"folio/internal/services"
)

// errReported marks a failure whose details were already printed.
var errReported = errors.New("command failed")

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	componentsOnce sync.Once
	components     *daemonrun.Components
	componentsErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// cliLogger writes to <log_dir>/folio.log only, keeping stdout for results.
func (c *commandContext) cliLogger(cfg *config.Config) (*slog.Logger, error) {
	logPath := filepath.Join(cfg.Paths.LogDir, "folio.log")
	return logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           "json",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
}

func (c *commandContext) ensureComponents() (*daemonrun.Components, error) {
	c.componentsOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.componentsErr = err
			return
		}
		logger, err := c.cliLogger(cfg)
		if err != nil {
			c.componentsErr = err
			return
		}
		c.components, c.componentsErr = daemonrun.Build(cfg, logger)
	})
	return c.components, c.componentsErr
}

func (c *commandContext) close() error {
	if c.components == nil {
		return nil
	}
	return c.components.Close()
}

// execute runs one dispatcher command in-process.
func (c *commandContext) execute(cmd *cobra.Command, verb dispatch.Verb, arg string) (dispatch.Reply, error) {
	components, err := c.ensureComponents()
	if err != nil {
		return dispatch.Reply{}, err
	}
	ctx := requestContext(cmd.Context())
	ctx = services.WithCommand(ctx, string(verb))
	return components.Dispatcher.Execute(ctx, dispatch.Command{Verb: verb, Arg: arg, Raw: strings.TrimSpace(string(verb) + " " + arg)}), nil
}

func requestContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return services.WithRequestID(ctx, uuid.NewString())
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
