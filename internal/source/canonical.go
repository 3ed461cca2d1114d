package source

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/handiism/audiobatch/internal/ytdlp/dto"
)

const (
	youTubeWatchTemplate     = "https://www.youtube.com/watch?v=%s"
	youTubeThumbnailTemplate = "https://i.ytimg.com/vi/%s/hqdefault.jpg"
	playlistParam            = "list"
)

var youTubeIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// CanonicalURL returns a reference the extraction tool can download for a
// flat-listed entry.
//
// Absolute http(s) URLs are used as-is. Bare identifiers are rebuilt into
// a watch URL when they come from YouTube (or from an unnamed extractor and
// look like a YouTube id). Anything else is reported as not fetchable.
//
// Example:
//
//	CanonicalURL(&dto.Entry{IEKey: "Youtube", ID: "dQw4w9WgXcQ"})
//	// "https://www.youtube.com/watch?v=dQw4w9WgXcQ", true
func CanonicalURL(entry *dto.Entry) (string, bool) {
	if isAbsoluteHTTP(entry.URL) {
		return entry.URL, true
	}
	if isAbsoluteHTTP(entry.WebpageURL) {
		return entry.WebpageURL, true
	}

	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = strings.TrimSpace(entry.URL)
	}
	if id == "" {
		return "", false
	}

	if isYouTube(entry.IEKey) || (entry.IEKey == "" && youTubeIDRe.MatchString(id)) {
		return fmt.Sprintf(youTubeWatchTemplate, url.QueryEscape(id)), true
	}
	return "", false
}

// PlaylistID extracts a YouTube playlist id from ref. It returns "" when
// ref names a single video inside a playlist, since that is resolved as the
// single item.
func PlaylistID(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	host = strings.TrimPrefix(host, "music.")
	if host != "youtube.com" {
		return ""
	}
	q := u.Query()
	if q.Get("v") != "" {
		return ""
	}
	return q.Get(playlistParam)
}

func isAbsoluteHTTP(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isYouTube(ieKey string) bool {
	return strings.EqualFold(ieKey, "Youtube")
}
