package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/handiism/audiobatch/internal/model"
	"github.com/handiism/audiobatch/internal/ytdlp"
)

// tempDirs hands out item directories under a test temp dir.
type tempDirs struct {
	root string
}

func (d tempDirs) ItemDir(index int) (string, error) {
	dir := filepath.Join(d.root, fmt.Sprintf("item-%04d", index+1))
	return dir, os.MkdirAll(dir, 0o755)
}

// fakeDownloader writes "<title>.webm" into dir. failures[ref] makes the
// first N calls for ref fail.
type fakeDownloader struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
	delay    time.Duration
	total    atomic.Int32
	running  atomic.Int32
	peak     atomic.Int32
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{failures: map[string]int{}, calls: map[string]int{}}
}

func (d *fakeDownloader) Download(ctx context.Context, ref, dir string, hook func(ytdlp.Progress)) (string, error) {
	d.total.Add(1)
	n := d.running.Add(1)
	defer d.running.Add(-1)
	for {
		peak := d.peak.Load()
		if n <= peak || d.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	d.mu.Lock()
	d.calls[ref]++
	call := d.calls[ref]
	fail := call <= d.failures[ref]
	d.mu.Unlock()

	if d.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(d.delay):
		}
	}

	hook(ytdlp.Progress{Percent: "50.0%", Speed: "2.0MiB/s"})
	hook(ytdlp.Progress{Percent: "N/A", Speed: "Unknown B/s"})

	if fail {
		return "", fmt.Errorf("boom %d", call)
	}
	if strings.HasPrefix(ref, "always-fail") {
		return "", errors.New("unavailable")
	}

	hook(ytdlp.Progress{Percent: "100%", Speed: "512KiB/s"})
	path := filepath.Join(dir, strings.ReplaceAll(ref, "/", "_")+".webm")
	return path, os.WriteFile(path, []byte("stream:"+ref), 0o644)
}

func (d *fakeDownloader) callsFor(ref string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[ref]
}

// fakeTranscoder copies the input into outDir as .mp3.
type fakeTranscoder struct {
	fail error
}

func (t *fakeTranscoder) Transcode(ctx context.Context, input, outDir string, onProgress func(float64)) (string, error) {
	if t.fail != nil {
		return "", t.fail
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	onProgress(0.5)
	onProgress(1)
	data, err := os.ReadFile(input)
	if err != nil {
		return "", err
	}
	out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))+".mp3")
	return out, os.WriteFile(out, data, 0o644)
}

// fakeResolver maps references to canned resolutions.
type fakeResolver struct {
	results map[string]*model.Resolution
	calls   []string
}

func (r *fakeResolver) Resolve(ctx context.Context, ref string) (*model.Resolution, error) {
	r.calls = append(r.calls, ref)
	res, ok := r.results[ref]
	if !ok {
		return nil, fmt.Errorf("resolve %s: unsupported URL", ref)
	}
	return res, nil
}

func singleItem(ref string) *model.Resolution {
	return &model.Resolution{
		Reference: ref,
		Items:     []model.ItemDescriptor{{Title: ref, FetchRef: ref}},
	}
}

func container(title string, refs ...string) *model.Resolution {
	res := &model.Resolution{IsContainer: true, ContainerTitle: title}
	for i, ref := range refs {
		res.Items = append(res.Items, model.ItemDescriptor{
			Title:     ref,
			FetchRef:  ref,
			Container: title,
			Position:  i + 1,
		})
	}
	return res
}

// recordingSink collects events.
type recordingSink struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (s *recordingSink) Report(ev model.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) snapshot() []model.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ProgressEvent(nil), s.events...)
}

// recordingListener is a Listener that remembers everything.
type recordingListener struct {
	recordingSink
	planned  []model.ItemDescriptor
	finished []model.Outcome
}

func (l *recordingListener) Planned(items []model.ItemDescriptor) {
	l.planned = items
}

func (l *recordingListener) Finished(o model.Outcome) {
	l.finished = append(l.finished, o)
}

type failingPost struct {
	calls atomic.Int32
}

func (p *failingPost) Process(ctx context.Context, path string, item model.ItemDescriptor) error {
	p.calls.Add(1)
	return errors.New("tagging exploded")
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Cooldown: time.Millisecond, Exponent: 1}
}
