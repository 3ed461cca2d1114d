package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/handiism/audiobatch/internal/model"
	"github.com/handiism/audiobatch/internal/speed"
	"github.com/handiism/audiobatch/internal/ytdlp"
)

// Fetcher defaults.
const (
	DefaultMaxAttempts   = 3
	DefaultRetryCooldown = time.Second
	DefaultRetryExponent = 1.0

	// downloadShare is the part of the progress bar owned by the download
	// phase; transcoding fills the rest.
	downloadShare = 0.8

	// transcodeCeiling keeps intermediate events below the terminal 1.0.
	transcodeCeiling = 0.999
)

// Downloader fetches the best audio stream of ref into dir.
// *ytdlp.Client implements it.
type Downloader interface {
	Download(ctx context.Context, ref, dir string, hook func(ytdlp.Progress)) (string, error)
}

// Transcoder converts a downloaded stream into the target codec.
// *transcode.FFmpeg implements it.
type Transcoder interface {
	Transcode(ctx context.Context, input, outDir string, onProgress func(float64)) (string, error)
}

// PostProcessor runs on a finished artifact. Its errors are logged and never
// fail the item.
type PostProcessor interface {
	Process(ctx context.Context, path string, item model.ItemDescriptor) error
}

// ItemDirs hands out one private directory per item.
// *ioutils.Workspace implements it.
type ItemDirs interface {
	ItemDir(index int) (string, error)
}

// RetryPolicy controls how often and how patiently an item is retried.
type RetryPolicy struct {
	MaxAttempts int
	Cooldown    time.Duration
	Exponent    float64
}

// DefaultRetryPolicy returns three attempts with a constant one second pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Cooldown:    DefaultRetryCooldown,
		Exponent:    DefaultRetryExponent,
	}
}

// Backoff returns the pause after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	exp := p.Exponent
	if exp <= 0 {
		exp = 1
	}
	return time.Duration(float64(p.Cooldown) * math.Pow(exp, float64(attempt-1)))
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Cooldown < 0 {
		p.Cooldown = 0
	}
	if p.Exponent <= 0 {
		p.Exponent = DefaultRetryExponent
	}
	return p
}

// Fetcher turns one item descriptor into one outcome.
//
// Each attempt downloads the item into <itemdir>/src and transcodes it into
// <itemdir>/out. Failed attempts are retried with backoff. Progress events
// map the download to [0, 0.8] and the transcode to [0.8, 1.0); a terminal
// event with Fraction 1.0 precedes every success.
//
// Example:
//
//	f := download.NewFetcher(ws, ytdlp.New(""), ffmpeg,
//	    download.WithRetryPolicy(download.DefaultRetryPolicy()),
//	    download.WithPostProcessor(tagger),
//	)
//	outcome := f.Fetch(ctx, 0, item, sink)
//	if !outcome.Succeeded() {
//	    fmt.Println(outcome.Reason)
//	}
type Fetcher struct {
	dirs       ItemDirs
	downloader Downloader
	transcoder Transcoder
	post       PostProcessor
	policy     RetryPolicy
	logger     *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) FetcherOption {
	return func(f *Fetcher) {
		f.policy = p.normalized()
	}
}

// WithPostProcessor adds a step that runs on every successful artifact.
func WithPostProcessor(p PostProcessor) FetcherOption {
	return func(f *Fetcher) {
		f.post = p
	}
}

// WithFetcherLogger sets the fetcher logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(dirs ItemDirs, downloader Downloader, transcoder Transcoder, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		dirs:       dirs,
		downloader: downloader,
		transcoder: transcoder,
		policy:     DefaultRetryPolicy(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads and transcodes item, retrying per the policy.
//
// It never returns an error: every problem ends up as a Failure outcome
// carrying the last attempt's message. A cancelled context stops further
// attempts and yields a "cancelled" failure.
func (f *Fetcher) Fetch(ctx context.Context, index int, item model.ItemDescriptor, sink model.ProgressSink) model.Outcome {
	if sink == nil {
		sink = model.Discard
	}
	display := item.DisplayTitle(index)
	logger := f.logger.With("item", display)

	var lastErr *AttemptError
	attempts := 0
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return model.Failure(index, item, cancelledReason(err), attempts)
		}
		attempts = attempt

		path, err := f.attempt(ctx, index, item, attempt, sink)
		if err == nil {
			f.postProcess(ctx, path, item, logger)
			sink.Report(model.ProgressEvent{
				ItemIndex:    index,
				Fraction:     1,
				DisplayTitle: display,
				Phase:        model.PhaseDone,
				Attempt:      attempt,
			})
			logger.Info("item finished", "attempt", attempt, "artifact", filepath.Base(path))
			return model.Success(index, item, path, attempt)
		}

		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Failure(index, item, cancelledReason(ctxErr), attempts)
		}
		if attempt == f.policy.MaxAttempts {
			break
		}

		wait := f.policy.Backoff(attempt)
		logger.Warn("attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", f.policy.MaxAttempts,
			"backoff", wait,
			"error", err,
		)
		sink.Report(model.ProgressEvent{
			ItemIndex:    index,
			Fraction:     0,
			DisplayTitle: display,
			Phase:        model.PhaseRetrying,
			Attempt:      attempt + 1,
		})
		if err := waitForRetry(ctx, wait); err != nil {
			return model.Failure(index, item, cancelledReason(err), attempts)
		}
	}

	logger.Error("item failed", "attempts", attempts, "error", lastErr)
	return model.Failure(index, item, lastErr.Reason(), attempts)
}

func (f *Fetcher) attempt(ctx context.Context, index int, item model.ItemDescriptor, attempt int, sink model.ProgressSink) (string, *AttemptError) {
	display := item.DisplayTitle(index)
	fail := func(phase string, err error) *AttemptError {
		return &AttemptError{Phase: phase, Attempt: attempt, Err: err}
	}

	dir, err := f.dirs.ItemDir(index)
	if err != nil {
		return "", fail(PhasePrepare, err)
	}
	srcDir := filepath.Join(dir, "src")
	outDir := filepath.Join(dir, "out")
	// leftovers of a failed attempt must not be mistaken for output
	for _, d := range []string{srcDir, outDir} {
		if err := os.RemoveAll(d); err != nil {
			return "", fail(PhasePrepare, err)
		}
	}
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return "", fail(PhasePrepare, err)
	}

	sink.Report(model.ProgressEvent{
		ItemIndex:    index,
		DisplayTitle: display,
		Phase:        model.PhaseDownloading,
		Attempt:      attempt,
	})

	input, err := f.downloader.Download(ctx, item.FetchRef, srcDir, func(p ytdlp.Progress) {
		frac, ok := p.Fraction()
		if !ok {
			return
		}
		sink.Report(model.ProgressEvent{
			ItemIndex:    index,
			Fraction:     model.Clamp01(frac) * downloadShare,
			SpeedMbps:    speed.Normalize(p.Speed),
			DisplayTitle: display,
			Phase:        model.PhaseDownloading,
			Attempt:      attempt,
		})
	})
	if err != nil {
		return "", fail(PhaseDownload, err)
	}

	output, err := f.transcoder.Transcode(ctx, input, outDir, func(frac float64) {
		sink.Report(model.ProgressEvent{
			ItemIndex:    index,
			Fraction:     math.Min(downloadShare+model.Clamp01(frac)*(1-downloadShare), transcodeCeiling),
			DisplayTitle: display,
			Phase:        model.PhaseTranscoding,
			Attempt:      attempt,
		})
	})
	if err != nil {
		return "", fail(PhaseTranscode, err)
	}
	return output, nil
}

func (f *Fetcher) postProcess(ctx context.Context, path string, item model.ItemDescriptor, logger *slog.Logger) {
	if f.post == nil {
		return
	}
	if err := f.post.Process(ctx, path, item); err != nil {
		logger.Warn("post-processing failed", "artifact", filepath.Base(path), "error", err)
	}
}

func waitForRetry(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cancelledReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "cancelled: deadline exceeded"
	}
	return fmt.Sprintf("cancelled: %v", err)
}
