package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/handiism/audiobatch/internal/config"
	"github.com/handiism/audiobatch/internal/download"
	"github.com/handiism/audiobatch/internal/history"
	"github.com/handiism/audiobatch/internal/logging"
)

type commandContext struct {
	configFlag *string
	deps       download.Deps

	configOnce sync.Once
	settings   *config.Settings
	configErr  error
}

func newCommandContext(configFlag *string, deps download.Deps) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		deps:       deps,
	}
}

func (c *commandContext) ensureSettings() (*config.Settings, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.settings, c.configErr = config.Load(path)
	})
	return c.settings, c.configErr
}

// session bundles what a batch-running command needs.
type session struct {
	settings *config.Settings
	logger   *slog.Logger
	history  *history.Store
	manager  *download.Manager
	closers  []func() error
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openSession builds a logger, opens history when enabled and creates a
// manager labelled with source. Console log lines go to console.
func (c *commandContext) openSession(ctx context.Context, console io.Writer, source string, tweak func(*config.Settings)) (*session, error) {
	base, err := c.ensureSettings()
	if err != nil {
		return nil, err
	}
	settings := *base
	if tweak != nil {
		tweak(&settings)
		if err := settings.Validate(); err != nil {
			return nil, err
		}
	}

	logger, closeLog, err := logging.FromSettings(settings.Log, console)
	if err != nil {
		return nil, err
	}
	s := &session{settings: &settings, logger: logger, closers: []func() error{closeLog}}

	deps := c.deps
	deps.Logger = logger
	deps.Source = source

	if settings.History.Enabled && deps.Recorder == nil {
		store, err := history.Open(ctx, settings.History.Path)
		if err != nil {
			// a broken history database should not block downloads
			logger.Warn("history disabled", "path", settings.History.Path, "error", err)
		} else {
			s.history = store
			s.closers = append(s.closers, store.Close)
			deps.Recorder = store
		}
	}

	manager, err := download.NewManager(&settings, deps)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.manager = manager
	return s, nil
}

// openHistory opens the history store for the history commands.
func (c *commandContext) openHistory(ctx context.Context) (*history.Store, error) {
	settings, err := c.ensureSettings()
	if err != nil {
		return nil, err
	}
	if !settings.History.Enabled {
		return nil, errors.New("history is disabled (set history.enabled to true)")
	}
	return history.Open(ctx, settings.History.Path)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
