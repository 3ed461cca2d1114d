package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/handiism/audiobatch/internal/tui"
)

func newTUICommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive terminal interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			// the UI owns the terminal; logs only go to log.file
			sess, err := ctx.openSession(cmd.Context(), io.Discard, "tui", nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.manager.CheckDependencies(); err != nil {
				return err
			}
			return tui.Run(sess.manager, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ".", "Directory for archives")
	return cmd
}
