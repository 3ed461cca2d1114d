// Package download provides the batch orchestration logic: fetching single
// items with retries, scheduling them on a bounded worker pool, and managing
// complete batches.
//
// # Fetcher
//
// The Fetcher turns one ItemDescriptor into one Outcome:
//
//  1. Download the best audio stream with yt-dlp into a private directory
//  2. Transcode it with ffmpeg to the target codec and bitrate
//  3. Run the post-processor (ID3 tags and cover art for mp3)
//
// Failed attempts are retried up to RetryPolicy.MaxAttempts times, waiting
// Cooldown * Exponent^(attempt-1) between attempts.
//
// # Scheduler
//
// The Scheduler resolves references in input order, concatenates their items
// into a flat work list and dispatches them to at most N concurrent workers.
// A single collector goroutine gathers outcomes, so every item ends up with
// exactly one Success or Failure.
//
// # Manager
//
//	manager, err := download.NewManager(settings, download.Deps{Logger: logger})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	batch, err := manager.Run(ctx, refs, listener)
//	if err != nil {
//	    log.Fatal(err) // only ErrNoReferences or a workspace error
//	}
//	defer batch.Release()
//
//	paths, err := batch.SaveArchive(filepath.Join(outDir, batch.ArchiveName()))
//
// # Progress Tracking
//
// Progress reaches the Listener as model.ProgressEvent values:
//
//	type ProgressEvent struct {
//	    ItemIndex    int
//	    Fraction     float64 // download 0..0.8, transcode 0.8..1
//	    SpeedMbps    float64
//	    DisplayTitle string  // "3. Song Title"
//	    Phase        Phase   // downloading, transcoding, retrying, done
//	    Attempt      int
//	}
package download
