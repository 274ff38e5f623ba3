package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"folio/internal/dispatch"
	"folio/internal/favorites"
)

func newFavCommand(ctx *commandContext) *cobra.Command {
	favCmd := &cobra.Command{
		Use:     "fav",
		Aliases: []string{"favorites"},
		Short:   "Manage the favorites list",
	}

	favCmd.AddCommand(newFavMutateCommand(ctx, "add <id>", nil, "Add a work to favorites", dispatch.VerbFavAdd))
	favCmd.AddCommand(newFavMutateCommand(ctx, "remove <id>", []string{"rm", "del"}, "Remove a work from favorites", dispatch.VerbFavRemove))
	favCmd.AddCommand(newFavListCommand(ctx))
	favCmd.AddCommand(&cobra.Command{
		Use:   "random",
		Short: "Pick a random favorite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := ctx.execute(cmd, dispatch.VerbFavRandom, "")
			if err != nil {
				return err
			}
			return printReply(cmd, reply, false)
		},
	})

	return favCmd
}

func newFavMutateCommand(ctx *commandContext, use string, aliases []string, short string, verb dispatch.Verb) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   short,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := ctx.execute(cmd, verb, args[0])
			if err != nil {
				return err
			}
			return printReply(cmd, reply, false)
		},
	}
}

func newFavListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List favorites",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := ctx.execute(cmd, dispatch.VerbFavList, "")
			if err != nil {
				return err
			}
			listing, ok := reply.Data.(favorites.Listing)
			if !ok {
				return printReply(cmd, reply, asJSON)
			}
			if asJSON {
				return writeJSON(cmd, listing)
			}
			if len(listing.IDs) == 0 || listing.Warning != nil {
				return printReply(cmd, reply, false)
			}

			rows := make([][]string, 0, len(listing.IDs))
			for i, id := range listing.IDs {
				rows = append(rows, []string{strconv.Itoa(i + 1), id.String()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "ID"}, rows, []columnAlignment{alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the favorites as JSON")
	return cmd
}
