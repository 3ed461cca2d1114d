package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past batches",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			batches, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(batches) == 0 {
				fmt.Fprintln(out, "No batches recorded")
				return nil
			}

			rows := make([][]string, 0, len(batches))
			for _, b := range batches {
				rows = append(rows, []string{
					b.ID,
					b.StartedAt.Local().Format("2006-01-02 15:04"),
					formatDuration(b.Duration()),
					b.Source,
					fmt.Sprint(b.Items),
					fmt.Sprint(b.Succeeded),
					fmt.Sprint(b.Failed),
					fmt.Sprint(b.Unresolved),
					b.Archive,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Started", "Took", "Source", "Items", "OK", "Failed", "Unresolved", "Archive"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of batches to show")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the outcomes of one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("batch %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Batch %s (%s)\n", rec.ID, rec.Source)
			fmt.Fprintf(out, "Started %s, took %s\n", rec.StartedAt.Local().Format("2006-01-02 15:04:05"), formatDuration(rec.Duration()))
			fmt.Fprintf(out, "Links: %s\n", strings.Join(rec.References, ", "))
			if rec.Archive != "" {
				fmt.Fprintf(out, "Archive: %s\n", rec.Archive)
			}

			if len(rec.Outcomes) > 0 {
				rows := make([][]string, 0, len(rec.Outcomes))
				for _, o := range rec.Outcomes {
					detail := o.Artifact
					if o.Reason != "" {
						detail = o.Reason
					}
					rows = append(rows, []string{fmt.Sprint(o.Index + 1), o.Title, o.Status, fmt.Sprint(o.Attempts), detail})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Title", "Status", "Attempts", "File / Error"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight}))
			}

			if len(rec.Unresolved) > 0 {
				rows := make([][]string, 0, len(rec.Unresolved))
				for _, f := range rec.Unresolved {
					rows = append(rows, []string{f.Reference, f.Title, f.Reason})
				}
				fmt.Fprintln(out, renderTable([]string{"Link", "Entry", "Error"}, rows, nil))
			}
			return nil
		},
	}
}
