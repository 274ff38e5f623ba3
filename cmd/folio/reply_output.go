package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"folio/internal/dispatch"
)

// printReply writes the reply messages and turns a failed reply into
// errReported so main exits non-zero without repeating the message.
func printReply(cmd *cobra.Command, reply dispatch.Reply, asJSON bool) error {
	if asJSON {
		if err := writeJSON(cmd, reply); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), reply.Text())
	}
	if !reply.OK {
		return errReported
	}
	return nil
}
