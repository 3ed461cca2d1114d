package ytdlp

import (
	"fmt"
	"strings"
	"sync"
)

// ExitError is returned when the yt-dlp process fails.
type ExitError struct {
	Op     string
	Ref    string
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	if msg := Reason(e.Stderr); msg != "" {
		return fmt.Sprintf("yt-dlp %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("yt-dlp %s: %v", e.Op, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Reason picks the most useful line out of captured stderr: the last
// "ERROR:" line if there is one, otherwise the last non-empty line.
func Reason(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// tail keeps the last n lines written to it.
type tail struct {
	mu    sync.Mutex
	n     int
	lines []string
	part  strings.Builder
}

func newTail(n int) *tail {
	return &tail{n: n}
}

// Write implements io.Writer so a tail can be used as cmd.Stderr.
func (t *tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range p {
		if b == '\n' {
			t.push(strings.TrimRight(t.part.String(), "\r"))
			t.part.Reset()
			continue
		}
		t.part.WriteByte(b)
	}
	return len(p), nil
}

// WriteLine appends one complete line.
func (t *tail) WriteLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.push(line)
}

func (t *tail) push(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := strings.Join(t.lines, "\n")
	if t.part.Len() > 0 {
		if out != "" {
			out += "\n"
		}
		out += t.part.String()
	}
	return out
}
