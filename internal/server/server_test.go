package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/handiism/audiobatch/internal/download"
	"github.com/handiism/audiobatch/internal/history"
	"github.com/handiism/audiobatch/internal/model"
)

type fakeRunner struct {
	dir      string
	refs     []string
	err      error
	fail     bool
	recorder download.Recorder
}

func (r *fakeRunner) Run(ctx context.Context, refs []string, l download.Listener) (*download.Batch, error) {
	r.refs = refs
	if r.err != nil {
		return nil, r.err
	}

	result := &model.BatchResult{}
	for i, ref := range refs {
		item := model.ItemDescriptor{Title: ref, FetchRef: ref}
		if r.fail {
			result.Add(model.Failure(i, item, "download failed: gone", 3))
			continue
		}
		path := filepath.Join(r.dir, ref+".mp3")
		if err := os.WriteFile(path, []byte("audio:"+ref), 0o644); err != nil {
			return nil, err
		}
		result.Add(model.Success(i, item, path, 1))
	}
	result.ResolutionFailures = []model.ResolutionFailure{{Reference: "bad", Reason: "unsupported URL"}}

	return &download.Batch{
		ID:         "batch-1",
		References: refs,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Result:     result,
		Recorder:   r.recorder,
	}, nil
}

type archiveRecorder struct {
	archives map[string]string
}

func (r *archiveRecorder) Record(ctx context.Context, rec history.Record) error { return nil }

func (r *archiveRecorder) SetArchive(ctx context.Context, id, archive string) error {
	r.archives[id] = archive
	return nil
}

type fakeHistory struct {
	batches []history.Batch
	limit   int
}

func (h *fakeHistory) List(ctx context.Context, limit int) ([]history.Batch, error) {
	h.limit = limit
	return h.batches, nil
}

func do(t *testing.T, s *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateBatchAndCollectArchive(t *testing.T) {
	recorder := &archiveRecorder{archives: map[string]string{}}
	runner := &fakeRunner{dir: t.TempDir(), recorder: recorder}
	s := New(runner, Options{})

	rec := do(t, s, http.MethodPost, "/api/batches", "application/json", `{"references":["one","two"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var report BatchReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 2 || report.Items != 2 || len(report.Unresolved) != 1 {
		t.Errorf("report = %+v", report)
	}
	if !strings.HasSuffix(report.ArchiveURL, "/api/batches/batch-1/archive") || report.ExpiresAt == nil {
		t.Errorf("archive link = %q, expires %v", report.ArchiveURL, report.ExpiresAt)
	}

	if len(recorder.archives) != 0 {
		t.Errorf("archive recorded before collection: %v", recorder.archives)
	}

	rec = do(t, s, http.MethodGet, "/api/batches/batch-1/archive", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("archive status = %d", rec.Code)
	}
	if got := recorder.archives["batch-1"]; !strings.HasSuffix(got, ".zip") {
		t.Errorf("recorded archive = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".zip") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "one.mp3" {
		t.Errorf("zip entries = %d", len(zr.File))
	}

	// archives are handed out once
	rec = do(t, s, http.MethodGet, "/api/batches/batch-1/archive", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second download status = %d, want 404", rec.Code)
	}
}

func TestCreateBatchPlainText(t *testing.T) {
	runner := &fakeRunner{dir: t.TempDir()}
	s := New(runner, Options{})

	rec := do(t, s, http.MethodPost, "/api/batches", "text/plain; charset=utf-8", "a\n\n# skip\nb\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Join(runner.refs, ",") != "a,b" {
		t.Errorf("refs = %v", runner.refs)
	}
}

func TestCreateBatchKeepsCommasInReferences(t *testing.T) {
	runner := &fakeRunner{dir: t.TempDir()}
	s := New(runner, Options{})

	rec := do(t, s, http.MethodPost, "/api/batches", "application/json", `{"references":["t?v=1,2"," solo "],"text":"x,y"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if strings.Join(runner.refs, "|") != "t?v=1,2|solo|x,y" {
		t.Errorf("refs = %q", runner.refs)
	}
}

func TestCreateBatchAllFailed(t *testing.T) {
	s := New(&fakeRunner{dir: t.TempDir(), fail: true}, Options{})

	rec := do(t, s, http.MethodPost, "/api/batches", "application/json", `{"text":"x\ny"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report BatchReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.ArchiveURL != "" || len(report.Failed) != 2 {
		t.Errorf("report = %+v", report)
	}
	if report.Failed[0].Index != 0 || report.Failed[0].Reason != "download failed: gone" {
		t.Errorf("failed[0] = %+v", report.Failed[0])
	}
	if s.pendingCount() != 0 {
		t.Errorf("a batch without successes was held")
	}
}

func TestCreateBatchBadRequests(t *testing.T) {
	tests := []struct {
		name        string
		runnerErr   error
		contentType string
		body        string
		want        int
	}{
		{"empty body", nil, "application/json", "", http.StatusBadRequest},
		{"invalid json", nil, "application/json", "{", http.StatusBadRequest},
		{"blank references", nil, "application/json", `{"references":["  ","#x"]}`, http.StatusBadRequest},
		{"no references from runner", download.ErrNoReferences, "text/plain", "a", http.StatusBadRequest},
		{"runner failure", errors.New("disk full"), "text/plain", "a", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeRunner{dir: t.TempDir(), err: tt.runnerErr}, Options{})
			rec := do(t, s, http.MethodPost, "/api/batches", tt.contentType, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSweepInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{time.Nanosecond, time.Second},
		{time.Second, time.Second},
		{30 * time.Second, 15 * time.Second},
		{time.Hour, time.Minute},
	}
	for _, tt := range tests {
		if got := sweepInterval(tt.ttl); got != tt.want {
			t.Errorf("sweepInterval(%v) = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}

func TestRunWithTinyTTL(t *testing.T) {
	s := New(&fakeRunner{dir: t.TempDir()}, Options{ArchiveTTL: time.Nanosecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSweepDropsExpiredArchives(t *testing.T) {
	s := New(&fakeRunner{dir: t.TempDir()}, Options{ArchiveTTL: time.Minute})

	rec := do(t, s, http.MethodPost, "/api/batches", "text/plain", "a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if n := s.sweep(); n != 0 {
		t.Errorf("swept %d fresh archives", n)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if n := s.sweep(); n != 1 {
		t.Errorf("swept %d, want 1", n)
	}

	rec = do(t, s, http.MethodGet, "/api/batches/batch-1/archive", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expired archive status = %d, want 404", rec.Code)
	}
}

func TestListBatches(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h := &fakeHistory{batches: []history.Batch{{ID: "b1", Source: "http", StartedAt: started, Items: 3, Succeeded: 2, Failed: 1}}}
	s := New(&fakeRunner{}, Options{History: h})

	rec := do(t, s, http.MethodGet, "/api/batches?limit=5", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != "b1" || entries[0].Succeeded != 2 || h.limit != 5 {
		t.Errorf("entries = %+v, limit %d", entries, h.limit)
	}

	if rec := do(t, s, http.MethodGet, "/api/batches?limit=0", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d", rec.Code)
	}

	noHistory := New(&fakeRunner{}, Options{})
	if rec := do(t, noHistory, http.MethodGet, "/api/batches", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("disabled history status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, New(&fakeRunner{}, Options{}), http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body)
	}
}

func TestRunRefusesSecondServer(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "serve.lock")
	held := flock.New(lockPath)
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer held.Unlock()

	s := New(&fakeRunner{}, Options{LockPath: lockPath})
	err = s.Run(context.Background(), "127.0.0.1:0")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Run err = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(&fakeRunner{dir: t.TempDir()}, Options{LockPath: filepath.Join(t.TempDir(), "serve.lock")})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
