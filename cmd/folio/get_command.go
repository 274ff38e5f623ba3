package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"folio/internal/dispatch"
	"folio/internal/metadata"
	"folio/internal/workid"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "get <id>",
		Aliases: []string{"jmd", "jmdown", "download"},
		Short:   "Download a work and assemble its pages into a PDF",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := strings.Join(args, " ")
			if !asJSON {
				fmt.Fprintf(cmd.ErrOrStderr(), "Downloading %s; the PDF is assembled once every page has arrived...\n", arg)
			}
			reply, err := ctx.execute(cmd, dispatch.VerbGet, arg)
			if err != nil {
				return err
			}
			return printReply(cmd, reply, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the reply as JSON")
	return cmd
}

func newInfoCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "info <id>",
		Aliases: []string{"lookup"},
		Short:   "Show the title, tags and cover of a work",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := ctx.execute(cmd, dispatch.VerbInfo, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON && reply.OK {
				return writeJSON(cmd, reply.Data)
			}
			if err := printReply(cmd, reply, asJSON); err != nil {
				return err
			}
			if work, ok := reply.Data.(metadata.Work); ok && !asJSON {
				printLastArtifact(cmd, ctx, work.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the work metadata as JSON")
	return cmd
}

// printLastArtifact adds the newest successful download of id from the
// history database, when history is enabled and has one.
func printLastArtifact(cmd *cobra.Command, ctx *commandContext, id workid.ID) {
	components, err := ctx.ensureComponents()
	if err != nil || components.History == nil {
		return
	}
	entry, found, err := components.History.LastSuccess(cmd.Context(), id.String())
	if err != nil || !found || entry.ArtifactPath == "" {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Last PDF: %s (%s)\n",
		entry.ArtifactPath,
		entry.StartedAt.Local().Format("2006-01-02 15:04"),
	)
}
