// Package transcode converts downloaded audio streams with ffmpeg.
//
// Supported targets are mp3 (libmp3lame), aac (.m4a), opus, vorbis (.ogg)
// and flac. Lossy codecs are encoded at a constant bitrate, 192 kbps unless
// configured otherwise.
package transcode
