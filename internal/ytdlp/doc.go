// Package ytdlp wraps the yt-dlp command-line tool.
//
// Only two invocations are used. Probe lists a reference without
// downloading anything:
//
//	yt-dlp --flat-playlist --no-playlist --dump-single-json --no-warnings -- <ref>
//
// Download fetches the best audio stream of one item and reports progress
// through a custom progress template, one line per tick:
//
//	[progress] 42.0%|  1.50MiB/s|/tmp/work/Song.webm
//
// The final file path is printed with --print after_move:filepath and read
// back from stdout. Progress lines may arrive on either stream; yt-dlp
// writes them to stderr when --print makes it quiet.
//
// Failures are returned as *ExitError, whose message is the last ERROR line
// yt-dlp printed.
package ytdlp
