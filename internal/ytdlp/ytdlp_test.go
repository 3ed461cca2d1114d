package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

const fakeProbe = `
if [ "$1" = "--flat-playlist" ]; then
  cat <<'EOF'
{"_type":"playlist","title":"Mix","entries":[{"_type":"url","ie_key":"Youtube","id":"abc","url":"https://www.youtube.com/watch?v=abc","title":"One"},{"_type":"url","ie_key":"Youtube","id":"def","title":""}]}
EOF
  exit 0
fi
exit 2
`

const fakeDownload = `
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
dir=$(dirname "$out")
echo "[progress]  50.0%|  1.00MiB/s|$dir/song.webm" >&2
echo "[download] noise" >&2
echo "[progress] 100.0%|  2.00MiB/s|$dir/song.webm" >&2
printf 'data' > "$dir/song.webm"
echo "$dir/song.webm"
`

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line   string
		ok     bool
		want   Progress
		frac   float64
		fracOK bool
	}{
		{"[progress] 42.0%|  1.50MiB/s|/tmp/a.webm", true, Progress{"42.0%", "1.50MiB/s", "/tmp/a.webm"}, 0.42, true},
		{"[progress]100%|Unknown B/s|x", true, Progress{"100%", "Unknown B/s", "x"}, 1, true},
		{"[progress]   N/A|N/A", true, Progress{"N/A", "N/A", ""}, 0, false},
		{"[download] 42.0% of 3MiB", false, Progress{}, 0, false},
		{"", false, Progress{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseProgressLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ParseProgressLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
			frac, fok := got.Fraction()
			if fok != tt.fracOK || (fok && (frac-tt.frac > 1e-9 || tt.frac-frac > 1e-9)) {
				t.Errorf("Fraction() = %v, %v; want %v, %v", frac, fok, tt.frac, tt.fracOK)
			}
		})
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		stderr string
		want   string
	}{
		{"", ""},
		{"WARNING: x\nERROR: [youtube] abc: Video unavailable\n", "[youtube] abc: Video unavailable"},
		{"something broke\n\n", "something broke"},
	}
	for _, tt := range tests {
		if got := Reason(tt.stderr); got != tt.want {
			t.Errorf("Reason(%q) = %q, want %q", tt.stderr, got, tt.want)
		}
	}
}

func TestTailKeepsLastLines(t *testing.T) {
	tl := newTail(2)
	_, _ = tl.Write([]byte("a\nb\nc\npartial"))
	if got := tl.String(); got != "b\nc\npartial" {
		t.Errorf("tail = %q", got)
	}
}

func TestProbe(t *testing.T) {
	c := New(writeScript(t, fakeProbe))

	info, err := c.Probe(context.Background(), "https://example.com/list")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !info.IsContainer() {
		t.Error("expected container")
	}
	if info.Title != "Mix" || len(info.Entries) != 2 {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Entries[1].ID != "def" {
		t.Errorf("entry id = %q", info.Entries[1].ID)
	}
}

func TestProbeFailure(t *testing.T) {
	c := New(writeScript(t, "echo 'ERROR: Unsupported URL: nope' >&2\nexit 1\n"))

	_, err := c.Probe(context.Background(), "nope")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unsupported URL") {
		t.Errorf("error = %q", err)
	}
}

func TestDownload(t *testing.T) {
	c := New(writeScript(t, fakeDownload))
	dir := t.TempDir()

	var mu sync.Mutex
	var got []Progress
	path, err := c.Download(context.Background(), "https://example.com/v", dir, func(p Progress) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if path != filepath.Join(dir, "song.webm") {
		t.Errorf("path = %q", path)
	}
	if len(got) != 2 {
		t.Fatalf("got %d progress events, want 2", len(got))
	}
	if got[1].Speed != "2.00MiB/s" {
		t.Errorf("speed = %q", got[1].Speed)
	}
}

func TestDownloadFailure(t *testing.T) {
	c := New(writeScript(t, "echo 'ERROR: Video unavailable' >&2\nexit 1\n"))

	_, err := c.Download(context.Background(), "x", t.TempDir(), nil)
	if err == nil || !strings.Contains(err.Error(), "Video unavailable") {
		t.Fatalf("err = %v", err)
	}
}

func TestDownloadNoOutput(t *testing.T) {
	c := New(writeScript(t, "exit 0\n"))

	if _, err := c.Download(context.Background(), "x", t.TempDir(), nil); err == nil {
		t.Fatal("expected error when no file is reported")
	}
}

func TestDownloadArgs(t *testing.T) {
	args := DownloadArgs("ref", "/w")
	joined := strings.Join(args, " ")
	for _, want := range []string{"-f bestaudio/best", "--no-playlist", "--print after_move:filepath", "-o /w/%(title)s.%(ext)s"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "ref" {
		t.Errorf("last arg = %q", args[len(args)-1])
	}
}
