package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"folio/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent acquisitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := ctx.ensureComponents()
			if err != nil {
				return err
			}
			if components.History == nil {
				return errors.New("history is disabled (set history.enabled = true)")
			}
			entries, err := components.History.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				if entries == nil {
					entries = []history.Entry{}
				}
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No acquisitions recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func renderHistory(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := "ok"
		switch {
		case !e.Succeeded:
			result = e.FailureKind
		case e.Reused:
			result = "reused"
		}
		rows = append(rows, []string{
			e.StartedAt.Local().Format("2006-01-02 15:04"),
			e.WorkID,
			e.Title,
			result,
			strconv.Itoa(e.Pages),
			e.Duration.Round(100 * time.Millisecond).String(),
		})
	}
	return renderTable(
		[]string{"When", "ID", "Title", "Result", "Pages", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}
