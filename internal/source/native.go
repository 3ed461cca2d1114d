package source

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/handiism/audiobatch/internal/model"
	ytget "github.com/ytget/ytdlp/v2"
)

// ListedItem is one playlist entry returned by a Lister.
type ListedItem struct {
	VideoID string
	Title   string
}

// Listing is a playlist returned by a Lister. Title may be empty.
type Listing struct {
	Title string
	Items []ListedItem
}

// Lister lists a playlist by id without running yt-dlp.
type Lister interface {
	ListPlaylist(ctx context.Context, playlistID string) (*Listing, error)
}

// PageGetter fetches a page body. *http.Client from internal/http
// implements it.
type PageGetter interface {
	Get(ctx context.Context, url string, limit int64) ([]byte, string, error)
}

const (
	youTubePlaylistTemplate = "https://www.youtube.com/playlist?list=%s"
	maxPlaylistPageBytes    = 4 << 20
)

var ogTitleRe = regexp.MustCompile(`<meta\s+property="og:title"\s+content="([^"]*)"`)

// NativeLister lists YouTube playlists with the pure-Go ytget client. When
// Pages is set the playlist title is read from the playlist page.
type NativeLister struct {
	Pages PageGetter
}

// ListPlaylist fetches every item of the playlist.
func (l NativeLister) ListPlaylist(ctx context.Context, playlistID string) (*Listing, error) {
	items, err := ytget.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("list playlist %s: %w", playlistID, err)
	}
	listing := &Listing{Items: make([]ListedItem, 0, len(items))}
	for _, it := range items {
		listing.Items = append(listing.Items, ListedItem{VideoID: it.VideoID, Title: it.Title})
	}
	if l.Pages != nil {
		// best effort: the listing stands without a title
		if body, _, err := l.Pages.Get(ctx, fmt.Sprintf(youTubePlaylistTemplate, playlistID), maxPlaylistPageBytes); err == nil {
			listing.Title = PageTitle(body)
		}
	}
	return listing, nil
}

// PageTitle returns the og:title of an HTML page, or "" when it has none.
func PageTitle(page []byte) string {
	m := ogTitleRe.FindSubmatch(page)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(string(m[1])))
}

func (r *Resolver) resolveNative(ctx context.Context, ref, playlistID string) (*model.Resolution, error) {
	listing, err := r.lister.ListPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if listing == nil || len(listing.Items) == 0 {
		// an empty listing is indistinguishable from a failed scrape
		return nil, errors.New("native lister returned no items")
	}

	title := listing.Title
	if title == "" {
		title = "Playlist " + playlistID
	}
	res := &model.Resolution{
		Reference:      ref,
		IsContainer:    true,
		ContainerTitle: title,
		Items:          make([]model.ItemDescriptor, 0, len(listing.Items)),
	}
	for i, it := range listing.Items {
		position := i + 1
		itemTitle := strings.TrimSpace(it.Title)
		if itemTitle == "" {
			itemTitle = model.PlaceholderTitle(position)
		}
		id := strings.TrimSpace(it.VideoID)
		if id == "" {
			res.Skipped = append(res.Skipped, model.SkippedEntry{
				Position: position, Title: itemTitle, Reason: "entry has no video id",
			})
			continue
		}
		res.Items = append(res.Items, model.ItemDescriptor{
			ID:           id,
			Title:        itemTitle,
			FetchRef:     fmt.Sprintf(youTubeWatchTemplate, id),
			Container:    title,
			Position:     position,
			ThumbnailURL: fmt.Sprintf(youTubeThumbnailTemplate, id),
		})
	}
	return res, nil
}
