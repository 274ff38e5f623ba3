package main

import (
	"errors"

	"github.com/spf13/cobra"

	"folio/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			bind := cfg.Paths.APIBind
			status, err := daemonctl.New(bind).Status(cmd.Context())
			if errors.Is(err, daemonctl.ErrUnavailable) {
				status, err = nil, nil
			}
			if err != nil {
				return err
			}
			if asJSON {
				if status == nil {
					return writeJSON(cmd, map[string]any{"running": false})
				}
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			renderDaemonStatus(status, bind, shouldColorize(out)).writeTo(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}
