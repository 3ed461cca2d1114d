package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/handiism/audiobatch/internal/download"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "resolve [links...]",
		Short: "List the items a batch would download without downloading",
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := collectReferences(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				return download.ErrNoReferences
			}

			sess, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr(), "cli", nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			plan, err := sess.manager.Plan(cmd.Context(), refs)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), len(refs), plan)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read links from a file, one per line (- for stdin)")
	return cmd
}

func printPlan(out io.Writer, refs int, plan *download.Plan) {
	if len(plan.Items) > 0 {
		rows := make([][]string, 0, len(plan.Items))
		for i, item := range plan.Items {
			rows = append(rows, []string{fmt.Sprint(i + 1), item.Title, item.Container, item.FetchRef})
		}
		fmt.Fprintln(out, renderTable([]string{"#", "Title", "Playlist", "Link"}, rows, []columnAlignment{alignRight}))
	}

	if len(plan.Failures) > 0 {
		rows := make([][]string, 0, len(plan.Failures))
		for _, f := range plan.Failures {
			rows = append(rows, []string{f.Reference, f.Title, f.Reason})
		}
		fmt.Fprintln(out, renderTable([]string{"Link", "Entry", "Error"}, rows, nil))
	}

	fmt.Fprintf(out, "%d items from %d links, %d unresolved\n", len(plan.Items), refs, len(plan.Failures))
}
