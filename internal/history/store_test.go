package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/handiism/audiobatch/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult() *model.BatchResult {
	result := &model.BatchResult{}
	result.Add(model.Success(1, model.ItemDescriptor{Title: "B", FetchRef: "ref-b", Container: "Mix"}, "/work/item-0002/out/B.mp3", 2))
	result.Add(model.Failure(0, model.ItemDescriptor{Title: "A", FetchRef: "ref-a"}, "download failed: boom", 3))
	result.ResolutionFailures = []model.ResolutionFailure{
		{Reference: "bad-ref", Title: "bad-ref", Reason: "unsupported URL"},
	}
	return result
}

func TestRecordAndGet(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := NewRecord(NewID(), "cli", []string{"ref-a", "ref-b", "bad-ref"}, started, started.Add(time.Minute), sampleResult())
	rec.Archive = "batch.zip"

	if err := store.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.Items != 2 || got.Succeeded != 1 || got.Failed != 1 || got.Batch.Unresolved != 1 {
		t.Errorf("counts = %d/%d/%d/%d", got.Items, got.Succeeded, got.Failed, got.Batch.Unresolved)
	}
	if !got.StartedAt.Equal(started) || got.Duration() != time.Minute {
		t.Errorf("times = %v .. %v", got.StartedAt, got.FinishedAt)
	}
	if len(got.References) != 3 || got.References[2] != "bad-ref" {
		t.Errorf("References = %v", got.References)
	}
	if got.Archive != "batch.zip" {
		t.Errorf("Archive = %q", got.Archive)
	}

	if len(got.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(got.Outcomes))
	}
	first, second := got.Outcomes[0], got.Outcomes[1]
	if first.Title != "A" || first.Status != "failed" || first.Reason != "download failed: boom" || first.Attempts != 3 {
		t.Errorf("outcome 0 = %+v", first)
	}
	if second.Title != "B" || second.Status != "succeeded" || second.Artifact != "B.mp3" || second.Container != "Mix" {
		t.Errorf("outcome 1 = %+v", second)
	}

	if len(got.Unresolved) != 1 || got.Unresolved[0].Reason != "unsupported URL" {
		t.Errorf("Unresolved = %+v", got.Unresolved)
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		started := base.Add(time.Duration(i) * time.Hour)
		rec := NewRecord(NewID(), "http", []string{"ref"}, started, started, &model.BatchResult{})
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	batches, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if !batches[0].StartedAt.After(batches[1].StartedAt) {
		t.Errorf("batches not newest first: %v, %v", batches[0].StartedAt, batches[1].StartedAt)
	}

	all, err := store.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("List(0) = %d, %v", len(all), err)
	}
}

func TestGetUnknown(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetArchive(context.Background(), "missing", "x.zip"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetArchive: expected ErrNotFound, got %v", err)
	}
}

func TestOpenTwiceKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	rec := NewRecord(NewID(), "cli", []string{"ref"}, time.Now(), time.Now(), &model.BatchResult{})
	if err := store.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Get(ctx, rec.ID); err != nil {
		t.Errorf("record lost after reopen: %v", err)
	}
}

func TestNewIDIsTimeOrdered(t *testing.T) {
	a := NewID()
	time.Sleep(2 * time.Millisecond)
	b := NewID()
	if a >= b {
		t.Errorf("ids not increasing: %s >= %s", a, b)
	}
}
