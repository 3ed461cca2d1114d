package bandcamp

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/handiism/audiobatch/internal/model"
)

// MaxPageBytes caps a fetched page.
const MaxPageBytes = 8 << 20

// PageGetter fetches a page body. *http.Client from internal/http
// implements it.
type PageGetter interface {
	Get(ctx context.Context, url string, limit int64) ([]byte, string, error)
}

// Resolver resolves bandcamp.com pages without running yt-dlp.
//
// Album and track pages are parsed directly. An artist root or /music page
// is expanded into one container holding every release's tracks in
// discography order.
type Resolver struct {
	pages  PageGetter
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil logger discards output.
func NewResolver(pages PageGetter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{pages: pages, logger: logger}
}

// Handles reports whether ref points at a bandcamp.com artist site.
func (r *Resolver) Handles(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), ".bandcamp.com")
}

// Resolve lists the items behind ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*model.Resolution, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	u.RawQuery, u.Fragment = "", ""
	pageURL := u.String()

	if isReleasePath(u.Path) {
		page, err := r.fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		res, err := ParseRelease(page, pageURL)
		if err != nil {
			return nil, err
		}
		res.Reference = ref
		return res, nil
	}
	return r.discography(ctx, ref, siteRoot(pageURL))
}

func (r *Resolver) discography(ctx context.Context, ref, root string) (*model.Resolution, error) {
	page, err := r.fetch(ctx, root+"/music")
	if err != nil {
		return nil, err
	}
	paths, err := ReleaseURLs(page)
	if err != nil {
		return nil, err
	}

	res := &model.Resolution{Reference: ref, IsContainer: true}
	offset := 0
	for _, p := range paths {
		releaseURL := root + p
		page, err := r.fetch(ctx, releaseURL)
		if err != nil {
			return nil, err
		}
		release, err := ParseRelease(page, releaseURL)
		if err != nil {
			r.logger.Warn("skipping release", "url", releaseURL, "error", err)
			offset++
			res.Skipped = append(res.Skipped, model.SkippedEntry{
				Position: offset, Title: p, Reason: err.Error(),
			})
			continue
		}
		if res.ContainerTitle == "" && len(release.Items) > 0 {
			res.ContainerTitle = release.Items[0].Artist
		}

		// album positions are shifted past the releases before it
		last := offset
		for _, s := range release.Skipped {
			s.Position += offset
			last = max(last, s.Position)
			res.Skipped = append(res.Skipped, s)
		}
		for _, item := range release.Items {
			item.Position = offset + max(item.Position, 1)
			last = max(last, item.Position)
			res.Items = append(res.Items, item)
		}
		offset = last
	}
	slices.SortFunc(res.Skipped, func(a, b model.SkippedEntry) int { return cmp.Compare(a.Position, b.Position) })

	if res.ContainerTitle == "" {
		res.ContainerTitle = model.UntitledContainer
	}
	for i := range res.Items {
		res.Items[i].Container = res.ContainerTitle
	}
	r.logger.Debug("discography resolved", "ref", ref, "releases", len(paths), "items", len(res.Items))
	return res, nil
}

func (r *Resolver) fetch(ctx context.Context, pageURL string) (string, error) {
	body, _, err := r.pages.Get(ctx, pageURL, MaxPageBytes)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	return string(body), nil
}

func isReleasePath(p string) bool {
	return strings.HasPrefix(p, "/album/") || strings.HasPrefix(p, "/track/")
}

// siteRoot returns scheme://host of pageURL.
func siteRoot(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
