package main

import (
	"github.com/spf13/cobra"

	"folio/internal/daemonrun"
	"folio/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"daemon"},
		Short:   "Run the folio daemon in the foreground",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, logger)
		},
	}
}
