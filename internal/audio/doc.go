// Package audio provides audio file post-processing: ID3 tag writing and
// playlist generation.
//
// # ID3 Tagging
//
// Use the Tagger to write ID3 tags to transcoded MP3 files:
//
//	tagger := audio.NewTagger(audio.DefaultTagConfig())
//	err := tagger.SaveTags(path, item, artworkBytes)
//
// The tagger supports:
//   - Track Title, Artist
//   - Album (the playlist title) and Track Number (the playlist position)
//   - Cover Art (embedded in MP3)
//
// # Playlist Generation
//
// Generate a playlist that matches the archive entry names:
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true) // extended M3U
//	content := creator.CreatePlaylist("Batch", entries)
//
// Supported formats:
//   - M3U (with optional extended info)
//   - PLS
//   - WPL (Windows Media Player)
package audio
