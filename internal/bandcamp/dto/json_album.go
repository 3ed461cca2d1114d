package dto

import (
	"fmt"
	"strings"
)

const (
	artworkURLStart = "https://f4.bcbits.com/img/a"
	artworkURLEnd   = "_0.jpg"
)

// JSONAlbum is the data-tralbum object embedded in album and track pages.
type JSONAlbum struct {
	AlbumData *JSONAlbumData `json:"current"`
	ArtID     *int64         `json:"art_id"`
	Artist    string         `json:"artist"`
	ItemType  string         `json:"item_type"`
	URL       string         `json:"url"`
	Tracks    []JSONTrack    `json:"trackinfo"`
}

// JSONAlbumData contains album metadata.
type JSONAlbumData struct {
	AlbumTitle string `json:"title"`
}

// Title returns the release title.
func (ja *JSONAlbum) Title() string {
	if ja.AlbumData == nil {
		return ""
	}
	return strings.TrimSpace(ja.AlbumData.AlbumTitle)
}

// ArtworkURL returns the cover URL, empty when the release has none.
func (ja *JSONAlbum) ArtworkURL() string {
	if ja.ArtID == nil {
		return ""
	}
	return fmt.Sprintf("%s%010d%s", artworkURLStart, *ja.ArtID, artworkURLEnd)
}

// IsAlbum reports whether the data describes an album rather than a
// single track page.
func (ja *JSONAlbum) IsAlbum() bool {
	if ja.ItemType != "" {
		return ja.ItemType == "album"
	}
	return len(ja.Tracks) > 1
}
