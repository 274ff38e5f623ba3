package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"folio/internal/staging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var completed bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover per-work page directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			layout := staging.Layout{
				DataDir:  cfg.Paths.DataDir,
				PDFDir:   cfg.PDFDir(),
				Reserved: []string{cfg.Paths.LogDir},
			}
			out := cmd.OutOrStdout()

			if dryRun {
				dirs, err := staging.ListDirectories(layout)
				if err != nil {
					return err
				}
				if len(dirs) == 0 {
					fmt.Fprintln(out, "No work directories")
					return nil
				}
				rows := make([][]string, 0, len(dirs))
				for _, d := range dirs {
					rows = append(rows, []string{
						d.Name,
						d.ModTime.Local().Format("2006-01-02 15:04"),
						strconv.Itoa(d.Files),
						strconv.FormatInt(d.Size, 10),
						yesNo(d.Complete),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Directory", "Modified", "Files", "Bytes", "PDF exists"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			}

			if olderThan <= 0 {
				olderThan = time.Duration(cfg.Staging.StaleAfterHours) * time.Hour
			}
			var result staging.CleanResult
			if completed {
				result = staging.CleanCompleted(cmd.Context(), layout, nil)
			} else {
				result = staging.CleanStale(cmd.Context(), layout, olderThan, nil)
			}
			for _, path := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to remove %s: %v\n", e.Path, e.Error)
			}
			fmt.Fprintf(out, "Removed %d work directories\n", len(result.Removed))
			if len(result.Errors) > 0 {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Remove directories untouched for this long (default staging.stale_after_hours)")
	cmd.Flags().BoolVar(&completed, "completed", false, "Remove directories whose PDF already exists instead of stale ones")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List work directories without removing anything")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
