package transcode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultFFmpeg      = "ffmpeg"
	DefaultFFprobe     = "ffprobe"
	DefaultCodec       = "mp3"
	DefaultBitrateKbps = 192

	progressTimePrefix = "out_time_us="
	progressEndLine    = "progress=end"
	stderrTailLines    = 20
)

// Config configures an FFmpeg transcoder.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	Codec       string
	BitrateKbps int
	Logger      *slog.Logger
}

// FFmpeg converts downloaded streams to the target audio codec.
//
// Progress is read from "-progress pipe:2" (out_time_us lines) and divided
// by the input duration reported by ffprobe. When the duration is unknown
// no intermediate progress is reported.
//
// Example:
//
//	t, err := transcode.New(transcode.Config{Codec: "mp3", BitrateKbps: 192})
//	out, err := t.Transcode(ctx, "/work/1/src/Song.webm", "/work/1/out", func(f float64) {
//	    fmt.Printf("%.0f%%\n", f*100)
//	})
//	// out == "/work/1/out/Song.mp3"
type FFmpeg struct {
	ffmpeg      string
	ffprobe     string
	codec       Codec
	bitrateKbps int
	logger      *slog.Logger
}

// New validates cfg and returns a transcoder.
func New(cfg Config) (*FFmpeg, error) {
	name := cfg.Codec
	if name == "" {
		name = DefaultCodec
	}
	codec, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	t := &FFmpeg{
		ffmpeg:      firstNonEmpty(cfg.FFmpegPath, DefaultFFmpeg),
		ffprobe:     firstNonEmpty(cfg.FFprobePath, DefaultFFprobe),
		codec:       codec,
		bitrateKbps: cfg.BitrateKbps,
		logger:      cfg.Logger,
	}
	if t.bitrateKbps <= 0 {
		t.bitrateKbps = DefaultBitrateKbps
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return t, nil
}

// Codec returns the target codec.
func (t *FFmpeg) Codec() Codec {
	return t.codec
}

// LookPath verifies that ffmpeg and ffprobe can be found.
func (t *FFmpeg) LookPath() error {
	for _, bin := range []string{t.ffmpeg, t.ffprobe} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: install ffmpeg or set tools.ffmpeg/tools.ffprobe: %w", bin, err)
		}
	}
	return nil
}

// OutputPath returns where Transcode writes the result for input.
func (t *FFmpeg) OutputPath(input, outDir string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(outDir, stem+t.codec.Extension)
}

// Args builds the ffmpeg command line.
func (t *FFmpeg) Args(input, output string) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", input,
		"-vn",
		"-map_metadata", "0",
		"-c:a", t.codec.Encoder,
	}
	if !t.codec.Lossless {
		args = append(args, "-b:a", fmt.Sprintf("%dk", t.bitrateKbps))
	}
	if t.codec.Name == "mp3" {
		args = append(args, "-id3v2_version", "3")
	}
	return append(args,
		"-progress", "pipe:2",
		"-nostats",
		output,
	)
}

// Transcode converts input into outDir and returns the output path.
// onProgress receives fractions in [0, 1]; it may be nil.
func (t *FFmpeg) Transcode(ctx context.Context, input, outDir string, onProgress func(float64)) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	output := t.OutputPath(input, outDir)

	duration, err := t.probeDuration(ctx, input)
	if err != nil {
		t.logger.Debug("duration unknown, transcode progress disabled", "input", input, "error", err)
	}

	cmd := exec.CommandContext(ctx, t.ffmpeg, t.Args(input, output)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", t.ffmpeg, err)
	}

	tail := monitorProgress(stderr, duration, onProgress)

	if err := cmd.Wait(); err != nil {
		_ = os.Remove(output)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &Error{Input: input, Stderr: strings.Join(tail, "\n"), Err: err}
	}
	if onProgress != nil {
		onProgress(1)
	}
	return output, nil
}

// monitorProgress consumes ffmpeg's stderr, reporting out_time_us progress
// and returning the last non-progress lines for error messages.
func monitorProgress(r io.Reader, duration float64, onProgress func(float64)) []string {
	var tail []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, progressTimePrefix):
			us, err := strconv.ParseInt(strings.TrimPrefix(line, progressTimePrefix), 10, 64)
			if err != nil || duration <= 0 || onProgress == nil {
				continue
			}
			fraction := float64(us) / 1e6 / duration
			if fraction < 0 {
				fraction = 0
			}
			if fraction > 1 {
				fraction = 1
			}
			onProgress(fraction)
		case line == progressEndLine:
			if onProgress != nil {
				onProgress(1)
			}
		case isProgressKey(line):
		default:
			if line == "" {
				continue
			}
			tail = append(tail, line)
			if len(tail) > stderrTailLines {
				tail = tail[len(tail)-stderrTailLines:]
			}
		}
	}
	_, _ = io.Copy(io.Discard, r)
	return tail
}

// isProgressKey matches the other key=value lines of -progress output.
func isProgressKey(line string) bool {
	key, _, ok := strings.Cut(line, "=")
	if !ok {
		return false
	}
	switch key {
	case "frame", "fps", "stream_0_0_q", "bitrate", "total_size", "out_time_ms",
		"out_time", "dup_frames", "drop_frames", "speed", "progress":
		return true
	}
	return false
}

func (t *FFmpeg) probeDuration(ctx context.Context, input string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		input,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
