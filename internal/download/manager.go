package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/handiism/audiobatch/internal/archive"
	"github.com/handiism/audiobatch/internal/audio"
	"github.com/handiism/audiobatch/internal/bandcamp"
	"github.com/handiism/audiobatch/internal/config"
	"github.com/handiism/audiobatch/internal/history"
	"github.com/handiism/audiobatch/internal/http"
	ioutils "github.com/handiism/audiobatch/internal/io"
	"github.com/handiism/audiobatch/internal/model"
	"github.com/handiism/audiobatch/internal/source"
	"github.com/handiism/audiobatch/internal/transcode"
	"github.com/handiism/audiobatch/internal/ytdlp"
)

// Recorder persists finished batches. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, rec history.Record) error
	SetArchive(ctx context.Context, id, archive string) error
}

// Deps overrides the components a Manager builds from its settings. Zero
// fields get the real implementations.
type Deps struct {
	Resolver      Resolver
	Downloader    Downloader
	Transcoder    Transcoder
	PostProcessor PostProcessor
	Recorder      Recorder
	Logger        *slog.Logger

	// Source labels recorded batches ("cli", "tui", "http").
	Source string
}

// Manager coordinates complete batches: it owns the workspace, wires the
// resolver, fetcher and scheduler from settings, and records history.
//
// Example:
//
//	manager, err := download.NewManager(settings, download.Deps{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	batch, err := manager.Run(ctx, refs, listener)
//	if err != nil {
//	    return err
//	}
//	defer batch.Release()
//	_, err = batch.SaveArchive("out/" + batch.ArchiveName())
type Manager struct {
	settings   *config.Settings
	resolver   Resolver
	downloader Downloader
	transcoder Transcoder
	post       PostProcessor
	recorder   Recorder
	logger     *slog.Logger
	source     string
	order      archive.Order
	playlist   *audio.PlaylistCreator
}

// NewManager creates a Manager.
func NewManager(settings *config.Settings, deps Deps) (*Manager, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}

	m := &Manager{
		settings:   settings,
		resolver:   deps.Resolver,
		downloader: deps.Downloader,
		transcoder: deps.Transcoder,
		post:       deps.PostProcessor,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		source:     deps.Source,
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.source == "" {
		m.source = "cli"
	}

	order, err := archive.ParseOrder(settings.Archive.Order)
	if err != nil {
		return nil, err
	}
	m.order = order

	if settings.Archive.Playlist != "" {
		format, err := audio.ParsePlaylistFormat(settings.Archive.Playlist)
		if err != nil {
			return nil, err
		}
		m.playlist = audio.NewPlaylistCreator(format, true)
	}

	if m.downloader == nil || m.resolver == nil {
		client := ytdlp.New(settings.Tools.YtDlp, ytdlp.WithLogger(m.logger))
		if m.downloader == nil {
			m.downloader = client
		}
		if m.resolver == nil {
			opts := []source.Option{
				source.WithLogger(m.logger),
				source.WithProbeTimeout(settings.Tools.ProbeTimeout),
			}
			if settings.Download.NativePlaylists {
				opts = append(opts,
					source.WithLister(source.NativeLister{Pages: http.NewClient()}),
					source.WithSite(bandcamp.NewResolver(http.NewClient(), m.logger)),
				)
			}
			m.resolver = source.NewResolver(client, opts...)
		}
	}

	if m.transcoder == nil {
		ffmpeg, err := transcode.New(transcode.Config{
			FFmpegPath:  settings.Tools.FFmpeg,
			FFprobePath: settings.Tools.FFprobe,
			Codec:       settings.Audio.Codec,
			BitrateKbps: settings.Audio.BitrateKbps,
			Logger:      m.logger,
		})
		if err != nil {
			return nil, err
		}
		m.transcoder = ffmpeg
	}

	if m.post == nil && (settings.Audio.ModifyTags || settings.Audio.EmbedArtwork) {
		tagCfg := audio.DefaultTagConfig()
		tagCfg.ModifyTags = settings.Audio.ModifyTags
		m.post = NewTagProcessor(TagOptions{
			Config:       tagCfg,
			EmbedArtwork: settings.Audio.EmbedArtwork,
			ArtworkSize:  settings.Audio.ArtworkMaxSize,
			Logger:       m.logger,
		})
	}

	return m, nil
}

// Settings returns the manager configuration.
func (m *Manager) Settings() *config.Settings {
	return m.settings
}

// CheckDependencies verifies that the external tools can be found.
func (m *Manager) CheckDependencies() error {
	var errs []error
	if c, ok := m.downloader.(*ytdlp.Client); ok {
		if _, err := c.LookPath(); err != nil {
			errs = append(errs, err)
		}
	}
	if t, ok := m.transcoder.(*transcode.FFmpeg); ok {
		if err := t.LookPath(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Plan resolves refs without downloading anything.
func (m *Manager) Plan(ctx context.Context, refs []string) (*Plan, error) {
	return m.scheduler(nil, nil).Plan(ctx, refs)
}

// Run resolves and downloads refs. The returned Batch owns a temporary
// workspace holding the artifacts; call Release when done with it.
func (m *Manager) Run(ctx context.Context, refs []string, listener Listener) (*Batch, error) {
	started := time.Now()

	ws, err := ioutils.NewWorkspace(m.settings.Download.WorkDir, "audiobatch-")
	if err != nil {
		return nil, err
	}

	fetcher := NewFetcher(ws, m.downloader, m.transcoder,
		WithRetryPolicy(RetryPolicy{
			MaxAttempts: m.settings.Download.MaxAttempts,
			Cooldown:    m.settings.Download.RetryCooldownDuration(),
			Exponent:    m.settings.Download.RetryExponent,
		}),
		WithPostProcessor(m.post),
		WithFetcherLogger(m.logger),
	)
	sched := m.scheduler(fetcher, listener)

	plan, err := sched.Plan(ctx, refs)
	if err != nil {
		_ = ws.Release()
		return nil, err
	}
	result := sched.Execute(ctx, plan.Items, m.settings.Download.Concurrency)
	result.ResolutionFailures = plan.Failures

	batch := &Batch{
		ID:          history.NewID(),
		References:  refs,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Result:      result,
		Resolutions: plan.Resolutions,
		Recorder:    m.recorder,
		order:       m.order,
		playlist:    m.playlist,
		workspace:   ws,
		logger:      m.logger,
	}

	m.record(ctx, batch)
	return batch, nil
}

func (m *Manager) scheduler(fetcher ItemFetcher, listener Listener) *Scheduler {
	return NewScheduler(m.resolver, fetcher,
		WithListener(listener),
		WithSchedulerLogger(m.logger),
	)
}

func (m *Manager) record(ctx context.Context, b *Batch) {
	if m.recorder == nil {
		return
	}
	// the archive is recorded once it exists, see Batch.MarkArchived
	rec := history.NewRecord(b.ID, m.source, b.References, b.StartedAt, b.FinishedAt, b.Result)
	// history failures never fail the batch
	if err := m.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		m.logger.Warn("failed to record batch history", "batch", b.ID, "error", err)
	}
}

// Batch is a finished run whose artifacts are still on disk.
type Batch struct {
	ID          string
	References  []string
	StartedAt   time.Time
	FinishedAt  time.Time
	Result      *model.BatchResult
	Resolutions []*model.Resolution
	// Recorder receives the archive name once it was delivered. Optional.
	Recorder Recorder

	order     archive.Order
	playlist  *audio.PlaylistCreator
	workspace *ioutils.Workspace
	logger    *slog.Logger
}

// Entries returns the archive entries in their configured order.
func (b *Batch) Entries() []archive.Entry {
	return archive.Plan(archive.Arrange(b.Result.Successes, b.order))
}

// ArchiveName returns the file name for the batch archive: the container
// title when the batch was a single playlist, a timestamped name otherwise.
func (b *Batch) ArchiveName() string {
	if len(b.Resolutions) == 1 && b.Resolutions[0].IsContainer {
		if name := ioutils.SanitizeFileName(b.Resolutions[0].ContainerTitle); name != "" {
			return name + ".zip"
		}
	}
	return "audiobatch-" + b.StartedAt.Format("20060102-150405") + ".zip"
}

// WriteArchive streams the archive to w.
func (b *Batch) WriteArchive(w io.Writer) error {
	return archive.Write(w, archive.Arrange(b.Result.Successes, b.order))
}

// Playlist renders the playlist sidecar. ok is false when no playlist
// format is configured or nothing succeeded.
func (b *Batch) Playlist() (name string, content []byte, ok bool) {
	if b.playlist == nil || len(b.Result.Successes) == 0 {
		return "", nil, false
	}
	entries := b.Entries()
	items := make([]audio.PlaylistEntry, len(entries))
	for i, e := range entries {
		items[i] = audio.PlaylistEntry{
			FileName: e.Name,
			Title:    e.Item.Title,
			Artist:   e.Item.Artist,
			Duration: e.Item.Duration,
		}
	}
	title := strings.TrimSuffix(b.ArchiveName(), ".zip")
	name = title + b.playlist.Format().Extension()
	return name, []byte(b.playlist.CreatePlaylist(title, items)), true
}

// SaveArchive writes the archive to path and, when configured, the playlist
// sidecar next to it. It returns the paths written.
func (b *Batch) SaveArchive(path string) ([]string, error) {
	f, err := ioutils.CreateAtomic(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	if err := b.WriteArchive(f); err != nil {
		f.Abort()
		return nil, err
	}
	if err := f.Commit(); err != nil {
		return nil, fmt.Errorf("write archive: %w", err)
	}
	b.MarkArchived(context.Background(), path)
	written := []string{path}

	if name, content, ok := b.Playlist(); ok {
		sidecar := filepath.Join(filepath.Dir(path), name)
		if err := ioutils.WriteFileAtomic(sidecar, content); err != nil {
			return written, fmt.Errorf("write playlist: %w", err)
		}
		written = append(written, sidecar)
	}
	return written, nil
}

// MarkArchived stores archive as the delivered archive of the batch in
// history. Failures are logged only.
func (b *Batch) MarkArchived(ctx context.Context, archive string) {
	if b.Recorder == nil {
		return
	}
	if err := b.Recorder.SetArchive(context.WithoutCancel(ctx), b.ID, archive); err != nil && b.logger != nil {
		b.logger.Warn("failed to record batch archive", "batch", b.ID, "error", err)
	}
}

// Release deletes the batch workspace and its artifacts.
func (b *Batch) Release() error {
	if b.workspace == nil {
		return nil
	}
	return b.workspace.Release()
}

// Workspace returns the directory holding the artifacts.
func (b *Batch) Workspace() string {
	if b.workspace == nil {
		return ""
	}
	return b.workspace.Root()
}

// ensure the real components satisfy the interfaces
var (
	_ Downloader = (*ytdlp.Client)(nil)
	_ Transcoder = (*transcode.FFmpeg)(nil)
	_ Resolver   = (*source.Resolver)(nil)
	_ Recorder   = (*history.Store)(nil)
	_ ItemDirs   = (*ioutils.Workspace)(nil)
)
