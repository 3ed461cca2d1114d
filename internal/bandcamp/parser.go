package bandcamp

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/handiism/audiobatch/internal/bandcamp/dto"
	"github.com/handiism/audiobatch/internal/model"
)

// ErrNoReleaseData is returned when a page carries no embedded release data.
var ErrNoReleaseData = errors.New("could not find release data in page")

var concatRe = regexp.MustCompile(`(url: ".+)" \+ "(.+",)`)

// ParseRelease turns an album or track page into a Resolution.
//
// Album pages become containers titled after the album. A track page
// becomes a single item. Tracks that cannot be streamed are listed as
// skipped. pageURL is used to build per-track page links.
func ParseRelease(page, pageURL string) (*model.Resolution, error) {
	album, err := decodeRelease(page)
	if err != nil {
		return nil, err
	}

	base := siteRoot(pageURL)
	artwork := album.ArtworkURL()

	if !album.IsAlbum() {
		if len(album.Tracks) == 0 {
			return nil, ErrNoReleaseData
		}
		t := &album.Tracks[0]
		if !t.Streamable() {
			return nil, fmt.Errorf("track %q is not streamable", t.Title)
		}
		title := strings.TrimSpace(t.Title)
		if title == "" {
			title = album.Title()
		}
		if title == "" {
			title = model.UntitledItem
		}
		return &model.Resolution{
			Reference: pageURL,
			Items: []model.ItemDescriptor{{
				Title:        title,
				Artist:       album.Artist,
				FetchRef:     pageURL,
				Duration:     t.Duration,
				ThumbnailURL: artwork,
			}},
		}, nil
	}

	title := album.Title()
	if title == "" {
		title = model.UntitledContainer
	}
	res := &model.Resolution{
		Reference:      pageURL,
		IsContainer:    true,
		ContainerTitle: title,
		Items:          make([]model.ItemDescriptor, 0, len(album.Tracks)),
	}
	for i := range album.Tracks {
		t := &album.Tracks[i]
		position := t.Position(i + 1)
		itemTitle := strings.TrimSpace(t.Title)
		if itemTitle == "" {
			itemTitle = model.PlaceholderTitle(position)
		}
		if !t.Streamable() {
			res.Skipped = append(res.Skipped, model.SkippedEntry{
				Position: position, Title: itemTitle, Reason: "track is not streamable",
			})
			continue
		}
		fetchRef := t.PageURL(base)
		if fetchRef == "" {
			fetchRef = t.StreamURL()
		}
		res.Items = append(res.Items, model.ItemDescriptor{
			Title:        itemTitle,
			Artist:       album.Artist,
			FetchRef:     fetchRef,
			Container:    title,
			Position:     position,
			Duration:     t.Duration,
			ThumbnailURL: artwork,
		})
	}
	return res, nil
}

func decodeRelease(page string) (*dto.JSONAlbum, error) {
	data, err := extractAlbumData(page)
	if err != nil {
		return nil, err
	}

	var album dto.JSONAlbum
	if err := json.Unmarshal([]byte(fixJSON(data)), &album); err != nil {
		return nil, fmt.Errorf("failed to parse release JSON: %w", err)
	}
	return &album, nil
}

// extractAlbumData returns the unescaped data-tralbum attribute:
//
//	<script ... data-tralbum="{...JSON...}">
func extractAlbumData(page string) (string, error) {
	const startString = `data-tralbum="{`
	const stopString = `}"`

	startIndex := strings.Index(page, startString)
	if startIndex == -1 {
		return "", ErrNoReleaseData
	}

	startIndex += len(startString) - 1
	remaining := page[startIndex:]

	endIndex := strings.Index(remaining, stopString)
	if endIndex == -1 {
		return "", fmt.Errorf("could not find end of release data")
	}

	return html.UnescapeString(remaining[:endIndex+1]), nil
}

// fixJSON removes JavaScript string concatenation that some pages carry:
//
//	url: "http://example.bandcamp.com" + "/album/name",
func fixJSON(data string) string {
	return concatRe.ReplaceAllString(data, "${1}${2}")
}
