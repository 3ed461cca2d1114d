package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/handiism/audiobatch/internal/config"
	"github.com/handiism/audiobatch/internal/download"
)

type getOptions struct {
	file        string
	output      string
	concurrency int
	codec       string
	bitrate     int
	order       string
	playlist    string
	noProgress  bool
}

func (o getOptions) apply(s *config.Settings) {
	if o.concurrency > 0 {
		s.Download.Concurrency = o.concurrency
	}
	if o.codec != "" {
		s.Audio.Codec = o.codec
	}
	if o.bitrate > 0 {
		s.Audio.BitrateKbps = o.bitrate
	}
	if o.order != "" {
		s.Archive.Order = o.order
	}
	if o.playlist != "" {
		s.Archive.Playlist = o.playlist
	}
}

func newGetCommand(ctx *commandContext) *cobra.Command {
	var opts getOptions

	cmd := &cobra.Command{
		Use:   "get [links...]",
		Short: "Download links and pack the audio into one zip archive",
		Long: `Download every link, transcode it and write a single zip archive.

Links may be single videos or tracks and whole playlists. They are read from
the arguments, from --file, or from stdin when it is not a terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := collectReferences(args, opts.file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				return download.ErrNoReferences
			}

			out := cmd.OutOrStdout()
			interactive := !opts.noProgress && isTerminal(out)

			// trackers own the terminal, so console logs are dropped
			var console io.Writer = cmd.ErrOrStderr()
			if interactive {
				console = io.Discard
			}

			sess, err := ctx.openSession(cmd.Context(), console, "cli", opts.apply)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.manager.CheckDependencies(); err != nil {
				return err
			}
			if err := os.MkdirAll(opts.output, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			var (
				listener download.Listener = newLineListener(out)
				trackers *trackerListener
			)
			if interactive {
				trackers = newTrackerListener(out)
				trackers.Start()
				listener = trackers
			}

			batch, err := sess.manager.Run(cmd.Context(), refs, listener)
			if trackers != nil {
				trackers.Stop()
			}
			if err != nil {
				return err
			}
			defer batch.Release()

			var written []string
			if len(batch.Result.Successes) > 0 {
				target := filepath.Join(opts.output, batch.ArchiveName())
				written, err = batch.SaveArchive(target)
				if err != nil {
					return err
				}
			}

			printSummary(out, batch, written)

			if cmd.Context().Err() != nil {
				return cmd.Context().Err()
			}
			if len(batch.Result.Successes) == 0 {
				return errors.New("no items downloaded; no archive written")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read links from a file, one per line (- for stdin)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", ".", "Directory for the archive")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", 0, "Concurrent downloads (overrides download.concurrency)")
	cmd.Flags().StringVar(&opts.codec, "codec", "", "Target codec (overrides audio.codec)")
	cmd.Flags().IntVar(&opts.bitrate, "bitrate", 0, "Target bitrate in kbps (overrides audio.bitrate_kbps)")
	cmd.Flags().StringVar(&opts.order, "order", "", "Archive order: input, title or completion")
	cmd.Flags().StringVar(&opts.playlist, "playlist", "", "Write a playlist next to the archive: m3u or pls")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Print plain lines instead of progress bars")

	return cmd
}

func printSummary(out io.Writer, batch *download.Batch, written []string) {
	result := batch.Result

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Downloaded %d/%d items in %s", len(result.Successes), result.Items(), formatDuration(batch.FinishedAt.Sub(batch.StartedAt)))
	if n := len(result.ResolutionFailures); n > 0 {
		fmt.Fprintf(out, " (%d unresolved)", n)
	}
	fmt.Fprintln(out)

	for i, path := range written {
		label := "Archive"
		if i > 0 {
			label = "Playlist"
		}
		fmt.Fprintf(out, "%s: %s (%s)\n", label, path, fileSize(path))
	}

	if len(result.Failures) > 0 {
		rows := make([][]string, 0, len(result.Failures))
		for _, f := range sortedFailures(result.Failures) {
			rows = append(rows, []string{fmt.Sprint(f.Index + 1), f.Title(), f.Item.FetchRef, f.Reason})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed to download:")
		fmt.Fprintln(out, renderTable([]string{"#", "Title", "Link", "Error"}, rows, []columnAlignment{alignRight}))
	}

	if len(result.ResolutionFailures) > 0 {
		rows := make([][]string, 0, len(result.ResolutionFailures))
		for _, f := range result.ResolutionFailures {
			rows = append(rows, []string{f.Reference, f.Title, f.Reason})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed to resolve:")
		fmt.Fprintln(out, renderTable([]string{"Link", "Entry", "Error"}, rows, nil))
	}
}
