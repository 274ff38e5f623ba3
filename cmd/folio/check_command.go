package main

import (
	"github.com/spf13/cobra"

	"folio/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, the favorites record and the remote source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if asJSON {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				renderPreflight(results, ctx.configPath, shouldColorize(out)).writeTo(out)
			}
			if len(preflight.Failed(results)) > 0 {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}
