package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/handiism/audiobatch/internal/config"
	"github.com/handiism/audiobatch/internal/server"
)

const serveLockName = "audiobatch-serve.lock"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession(cmd.Context(), cmd.ErrOrStderr(), "http", func(s *config.Settings) {
				if addr != "" {
					s.Server.Addr = addr
				}
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.manager.CheckDependencies(); err != nil {
				return err
			}

			lockDir := sess.settings.Download.WorkDir
			if lockDir == "" {
				lockDir = os.TempDir()
			}
			if err := os.MkdirAll(lockDir, 0o755); err != nil {
				return err
			}
			opts := server.Options{
				Logger:     sess.logger,
				ArchiveTTL: sess.settings.Server.ArchiveTTL,
				LockPath:   filepath.Join(lockDir, serveLockName),
			}
			if sess.history != nil {
				opts.History = sess.history
			}

			return server.New(sess.manager, opts).Run(cmd.Context(), sess.settings.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
