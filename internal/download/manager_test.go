package download

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/handiism/audiobatch/internal/config"
	"github.com/handiism/audiobatch/internal/history"
	"github.com/handiism/audiobatch/internal/model"
)

type fakeRecorder struct {
	records  []history.Record
	archives map[string]string
	err      error
}

func (r *fakeRecorder) Record(ctx context.Context, rec history.Record) error {
	r.records = append(r.records, rec)
	return r.err
}

func (r *fakeRecorder) SetArchive(ctx context.Context, id, archive string) error {
	if r.archives == nil {
		r.archives = make(map[string]string)
	}
	r.archives[id] = archive
	return r.err
}

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	s := config.DefaultSettings()
	s.Download.WorkDir = t.TempDir()
	s.Download.RetryCooldown = 0.001
	s.Audio.ModifyTags = false
	s.Audio.EmbedArtwork = false
	return s
}

func TestManagerRun(t *testing.T) {
	settings := testSettings(t)
	settings.Archive.Order = "title"
	settings.Archive.Playlist = "m3u"

	resolver := &fakeResolver{results: map[string]*model.Resolution{
		"pl": container("Road Trip", "zulu", "alpha", "always-fail-x"),
	}}
	recorder := &fakeRecorder{}
	m, err := NewManager(settings, Deps{
		Resolver:   resolver,
		Downloader: newFakeDownloader(),
		Transcoder: &fakeTranscoder{},
		Recorder:   recorder,
		Source:     "test",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	batch, err := m.Run(context.Background(), []string{"pl"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer batch.Release()

	if len(batch.Result.Successes) != 2 || len(batch.Result.Failures) != 1 {
		t.Fatalf("successes/failures = %d/%d", len(batch.Result.Successes), len(batch.Result.Failures))
	}
	if batch.ArchiveName() != "Road Trip.zip" {
		t.Errorf("ArchiveName = %q", batch.ArchiveName())
	}

	entries := batch.Entries()
	if len(entries) != 2 || entries[0].Name != "alpha.mp3" || entries[1].Name != "zulu.mp3" {
		t.Errorf("entries not in title order: %+v", entries)
	}

	out := filepath.Join(t.TempDir(), batch.ArchiveName())
	written, err := batch.SaveArchive(out)
	if err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("written = %v, want archive and playlist", written)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) != 2 || zr.File[0].Name != "alpha.mp3" {
		t.Errorf("zip entries = %d, first %q", len(zr.File), zr.File[0].Name)
	}

	playlist, err := os.ReadFile(filepath.Join(filepath.Dir(out), "Road Trip.m3u"))
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	if !strings.Contains(string(playlist), "alpha.mp3\n") || !strings.HasPrefix(string(playlist), "#EXTM3U") {
		t.Errorf("playlist = %q", playlist)
	}

	if len(recorder.records) != 1 {
		t.Fatalf("recorded %d batches, want 1", len(recorder.records))
	}
	rec := recorder.records[0]
	if rec.ID != batch.ID || rec.Source != "test" || rec.Succeeded != 2 {
		t.Errorf("record = %+v", rec.Batch)
	}
	if rec.Archive != "" {
		t.Errorf("archive recorded before it was written: %q", rec.Archive)
	}
	if got := recorder.archives[batch.ID]; got != out {
		t.Errorf("archive after save = %q, want %q", got, out)
	}

	ws := batch.Workspace()
	if err := batch.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(ws); !os.IsNotExist(err) {
		t.Errorf("workspace still present after Release: %v", err)
	}
}

func TestManagerRunNoReferencesReleasesWorkspace(t *testing.T) {
	settings := testSettings(t)
	m, err := NewManager(settings, Deps{
		Resolver:   &fakeResolver{},
		Downloader: newFakeDownloader(),
		Transcoder: &fakeTranscoder{},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Run(context.Background(), nil, nil); !errors.Is(err, ErrNoReferences) {
		t.Fatalf("expected ErrNoReferences, got %v", err)
	}

	left, err := os.ReadDir(settings.Download.WorkDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("workspace leaked: %v", left)
	}
}

func TestFailedSaveRecordsNoArchive(t *testing.T) {
	recorder := &fakeRecorder{}
	m, err := NewManager(testSettings(t), Deps{
		Resolver:   &fakeResolver{results: map[string]*model.Resolution{"a": singleItem("a")}},
		Downloader: newFakeDownloader(),
		Transcoder: &fakeTranscoder{},
		Recorder:   recorder,
	})
	if err != nil {
		t.Fatal(err)
	}

	batch, err := m.Run(context.Background(), []string{"a"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer batch.Release()

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := batch.SaveArchive(filepath.Join(blocker, "out.zip")); err == nil {
		t.Fatal("expected SaveArchive to fail under a regular file")
	}
	if len(recorder.archives) != 0 {
		t.Errorf("archives = %v, want none", recorder.archives)
	}

	batch.MarkArchived(context.Background(), "sent.zip")
	if recorder.archives[batch.ID] != "sent.zip" {
		t.Errorf("archives = %v", recorder.archives)
	}
}

func TestManagerHistoryFailureIsNotFatal(t *testing.T) {
	m, err := NewManager(testSettings(t), Deps{
		Resolver:   &fakeResolver{results: map[string]*model.Resolution{"a": singleItem("a")}},
		Downloader: newFakeDownloader(),
		Transcoder: &fakeTranscoder{},
		Recorder:   &fakeRecorder{err: errors.New("disk full")},
	})
	if err != nil {
		t.Fatal(err)
	}

	batch, err := m.Run(context.Background(), []string{"a"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer batch.Release()
	if len(batch.Result.Successes) != 1 {
		t.Errorf("successes = %d", len(batch.Result.Successes))
	}
}

func TestBatchArchiveNameFallback(t *testing.T) {
	b := &Batch{
		StartedAt:   time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local),
		Result:      &model.BatchResult{},
		Resolutions: []*model.Resolution{singleItem("a"), singleItem("b")},
	}
	if got := b.ArchiveName(); got != "audiobatch-20260304-050607.zip" {
		t.Errorf("ArchiveName = %q", got)
	}
	if _, _, ok := b.Playlist(); ok {
		t.Error("Playlist should be disabled without a format")
	}
}

func TestBatchWriteArchiveNoSuccesses(t *testing.T) {
	b := &Batch{Result: &model.BatchResult{}}
	var sb strings.Builder
	if err := b.WriteArchive(&sb); err == nil {
		t.Error("expected an assembly error for an empty batch")
	}
}

func TestManagerPlan(t *testing.T) {
	m, err := NewManager(testSettings(t), Deps{
		Resolver: &fakeResolver{results: map[string]*model.Resolution{
			"pl": container("Mix", "one", "two"),
		}},
		Downloader: newFakeDownloader(),
		Transcoder: &fakeTranscoder{},
	})
	if err != nil {
		t.Fatal(err)
	}

	plan, err := m.Plan(context.Background(), []string{"pl", "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Items) != 2 || len(plan.Failures) != 1 || len(plan.Resolutions) != 1 {
		t.Errorf("plan = %d items, %d failures, %d resolutions", len(plan.Items), len(plan.Failures), len(plan.Resolutions))
	}
}

func TestNewManagerRejectsUnknownCodec(t *testing.T) {
	settings := testSettings(t)
	settings.Audio.Codec = "wav"
	if _, err := NewManager(settings, Deps{}); err == nil {
		t.Error("expected error for unknown codec")
	}
}
