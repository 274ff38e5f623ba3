package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"folio/internal/daemonctl"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "send <command text>",
		Short: "Send a chat command to the running daemon",
		Example: `  folio send /jmd 123456
  folio send fav add 350234`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			resp, err := daemonctl.New(cfg.Paths.APIBind).Command(cmd.Context(), strings.Join(args, " "))
			if errors.Is(err, daemonctl.ErrUnavailable) {
				return fmt.Errorf("folio daemon is not running at %s (start it with `folio serve`)", cfg.Paths.APIBind)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			if !resp.OK {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the daemon response as JSON")
	return cmd
}
