package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/handiism/audiobatch/internal/ytdlp/dto"
)

// DefaultBinary is the executable looked up when none is configured.
const DefaultBinary = "yt-dlp"

// OutputTemplate names downloaded files after the item title.
const OutputTemplate = "%(title)s.%(ext)s"

const stderrTailLines = 20

// Client runs the yt-dlp executable.
//
// Client exposes the two capabilities the rest of the program needs:
//   - Probe: metadata-only inspection of a reference (no download)
//   - Download: fetch the best audio stream of a single item into a directory
//
// Example:
//
//	c := ytdlp.New("", ytdlp.WithLogger(logger))
//	info, err := c.Probe(ctx, "https://www.youtube.com/playlist?list=PL...")
//	path, err := c.Download(ctx, info.Entries[0].URL, dir, func(p ytdlp.Progress) {
//	    fmt.Println(p.Percent, p.Speed)
//	})
type Client struct {
	binary string
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client for binary. An empty binary means DefaultBinary.
func New(binary string, opts ...Option) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	c := &Client{
		binary: binary,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Binary returns the executable the client runs.
func (c *Client) Binary() string {
	return c.binary
}

// LookPath verifies that the executable can be found.
func (c *Client) LookPath() (string, error) {
	path, err := exec.LookPath(c.binary)
	if err != nil {
		return "", fmt.Errorf("%s not found: install yt-dlp or set tools.ytdlp: %w", c.binary, err)
	}
	return path, nil
}

// ProbeArgs returns the arguments for a metadata-only listing of ref. A
// watch URL that also names a playlist is treated as the single item.
func ProbeArgs(ref string) []string {
	return []string{
		"--flat-playlist",
		"--no-playlist",
		"--dump-single-json",
		"--no-warnings",
		"--",
		ref,
	}
}

// DownloadArgs returns the arguments for fetching the audio of ref into dir.
func DownloadArgs(ref, dir string) []string {
	return []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"--no-part",
		"--newline",
		"--progress",
		"--no-warnings",
		"--progress-template", ProgressTemplate,
		"--print", "after_move:filepath",
		"-o", filepath.Join(dir, OutputTemplate),
		"--",
		ref,
	}
}

// Probe returns the metadata document for ref without downloading media.
func (c *Client) Probe(ctx context.Context, ref string) (*dto.Info, error) {
	cmd := exec.CommandContext(ctx, c.binary, ProbeArgs(ref)...)

	var stdout bytes.Buffer
	stderr := newTail(stderrTailLines)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	c.logger.Debug("probing reference", "ref", ref)
	if err := cmd.Run(); err != nil {
		return nil, &ExitError{Op: "probe", Ref: ref, Stderr: stderr.String(), Err: contextErr(ctx, err)}
	}

	var info dto.Info
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", ref, err)
	}
	return &info, nil
}

// Download fetches the best audio stream of ref into dir and returns the
// path of the resulting file. hook, if non-nil, is called for every progress
// line; it runs on the calling goroutine or on the stderr reader goroutine,
// never on both at once.
func (c *Client) Download(ctx context.Context, ref, dir string, hook func(Progress)) (string, error) {
	cmd := exec.CommandContext(ctx, c.binary, DownloadArgs(ref, dir)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", c.binary, err)
	}

	var hookMu sync.Mutex
	report := func(p Progress) {
		if hook == nil {
			return
		}
		hookMu.Lock()
		defer hookMu.Unlock()
		hook(p)
	}

	stderr := newTail(stderrTailLines)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanLines(stderrPipe, func(line string) {
			if p, ok := ParseProgressLine(line); ok {
				report(p)
				return
			}
			stderr.WriteLine(line)
		})
	}()

	var outputPath string
	scanLines(stdout, func(line string) {
		if p, ok := ParseProgressLine(line); ok {
			report(p)
			return
		}
		if s := strings.TrimSpace(line); s != "" {
			outputPath = s
		}
	})
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return "", &ExitError{Op: "download", Ref: ref, Stderr: stderr.String(), Err: contextErr(ctx, err)}
	}
	if outputPath == "" {
		return "", fmt.Errorf("%s reported no output file for %s", c.binary, ref)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("downloaded file missing: %w", err)
	}

	c.logger.Debug("downloaded", "ref", ref, "path", outputPath)
	return outputPath, nil
}

func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(strings.TrimRight(scanner.Text(), "\r"))
	}
	// keep the pipe drained so the child never blocks on a full buffer
	_, _ = io.Copy(io.Discard, r)
}

func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
