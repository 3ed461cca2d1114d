package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/handiism/audiobatch/internal/config"
	"github.com/handiism/audiobatch/internal/download"
	"github.com/handiism/audiobatch/internal/history"
	"github.com/handiism/audiobatch/internal/logging"
	"github.com/handiism/audiobatch/internal/tui"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var configPath, output string

	cmd := &cobra.Command{
		Use:           "audiobatch-tui",
		Short:         "Interactive audiobatch downloader",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger, closeLog, err := logging.FromSettings(settings.Log, io.Discard)
			if err != nil {
				return err
			}
			defer closeLog()

			deps := download.Deps{Logger: logger, Source: "tui"}
			if settings.History.Enabled {
				store, err := history.Open(cmd.Context(), settings.History.Path)
				if err != nil {
					logger.Warn("history disabled", "path", settings.History.Path, "error", err)
				} else {
					defer store.Close()
					deps.Recorder = store
				}
			}

			manager, err := download.NewManager(settings, deps)
			if err != nil {
				return err
			}
			if err := manager.CheckDependencies(); err != nil {
				return err
			}
			return tui.Run(manager, output)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Directory for archives")
	return cmd
}
