package dto

import (
	"strings"
)

// JSONTrack represents a track from Bandcamp's JSON data.
type JSONTrack struct {
	Duration  float64      `json:"duration"`
	File      *JSONMp3File `json:"file"`
	Number    *int         `json:"track_num"`
	Title     string       `json:"title"`
	TitleLink string       `json:"title_link"`
}

// JSONMp3File represents the MP3 file info. It is null for tracks that
// cannot be streamed.
type JSONMp3File struct {
	URL string `json:"mp3-128"`
}

// Streamable reports whether the track has a public stream.
func (jt *JSONTrack) Streamable() bool {
	return jt.File != nil && jt.File.URL != ""
}

// StreamURL returns the mp3 stream URL with a scheme.
func (jt *JSONTrack) StreamURL() string {
	if !jt.Streamable() {
		return ""
	}
	if strings.HasPrefix(jt.File.URL, "//") {
		return "https:" + jt.File.URL
	}
	return jt.File.URL
}

// PageURL returns the track page under base, or "" when the track has no
// page of its own.
func (jt *JSONTrack) PageURL(base string) string {
	link := strings.TrimSpace(jt.TitleLink)
	switch {
	case link == "":
		return ""
	case strings.HasPrefix(link, "http://"), strings.HasPrefix(link, "https://"):
		return link
	default:
		return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(link, "/")
	}
}

// Position returns the 1-based track number, defaulting to fallback.
func (jt *JSONTrack) Position(fallback int) int {
	if jt.Number != nil && *jt.Number > 0 {
		return *jt.Number
	}
	return fallback
}
