package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/handiism/audiobatch/internal/model"
	"github.com/handiism/audiobatch/internal/ytdlp/dto"
)

// DefaultProbeTimeout bounds a single metadata call.
const DefaultProbeTimeout = 60 * time.Second

// ErrEmptyReference is returned for blank input.
var ErrEmptyReference = errors.New("empty reference")

// Prober inspects a reference without downloading media.
// *ytdlp.Client implements it.
type Prober interface {
	Probe(ctx context.Context, ref string) (*dto.Info, error)
}

// SiteResolver resolves references of one site without yt-dlp.
// *bandcamp.Resolver implements it.
type SiteResolver interface {
	Handles(ref string) bool
	Resolve(ctx context.Context, ref string) (*model.Resolution, error)
}

// ResolutionError reports a reference that could not be classified or
// listed. The batch continues without it.
type ResolutionError struct {
	Ref string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Resolver expands references into ordered item descriptors.
//
// A single-item reference yields one descriptor whose FetchRef is the
// reference itself. A container yields one descriptor per entry, in
// container order, with placeholders for missing titles.
//
// Example:
//
//	r := source.NewResolver(ytdlp.New(""), source.WithLogger(logger))
//	res, err := r.Resolve(ctx, "https://www.youtube.com/playlist?list=PL...")
//	if err != nil {
//	    var rerr *source.ResolutionError
//	    errors.As(err, &rerr)
//	}
//	fmt.Println(res.ContainerTitle, len(res.Items))
type Resolver struct {
	prober       Prober
	lister       Lister
	sites        []SiteResolver
	logger       *slog.Logger
	probeTimeout time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLister enables native playlist listing for references that carry a
// playlist id. Lister errors fall back to the prober.
func WithLister(lister Lister) Option {
	return func(r *Resolver) {
		r.lister = lister
	}
}

// WithSite adds a native resolver for one site. Site errors fall back to
// the prober.
func WithSite(site SiteResolver) Option {
	return func(r *Resolver) {
		if site != nil {
			r.sites = append(r.sites, site)
		}
	}
}

// WithProbeTimeout overrides DefaultProbeTimeout. Zero disables the limit.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.probeTimeout = d
	}
}

// NewResolver creates a Resolver backed by prober.
func NewResolver(prober Prober, opts ...Option) *Resolver {
	r := &Resolver{
		prober:       prober,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve classifies ref and lists its items. Surrounding whitespace is
// ignored for classification only: the Resolution and a single item's
// FetchRef carry ref unchanged. Errors are always *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, original string) (*model.Resolution, error) {
	ref := strings.TrimSpace(original)
	if ref == "" {
		return nil, &ResolutionError{Ref: original, Err: ErrEmptyReference}
	}

	for _, site := range r.sites {
		if !site.Handles(ref) {
			continue
		}
		res, err := site.Resolve(ctx, ref)
		if err == nil {
			res.Reference = original
			return res, nil
		}
		r.logger.Warn("native site resolution failed, falling back to yt-dlp",
			"ref", ref, "error", err)
		break
	}

	if r.lister != nil {
		if id := PlaylistID(ref); id != "" {
			res, err := r.resolveNative(ctx, original, id)
			if err == nil {
				return res, nil
			}
			r.logger.Warn("native playlist listing failed, falling back to yt-dlp",
				"ref", ref, "error", err)
		}
	}

	probeCtx := ctx
	if r.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, r.probeTimeout)
		defer cancel()
	}

	info, err := r.prober.Probe(probeCtx, ref)
	if err != nil {
		return nil, &ResolutionError{Ref: original, Err: err}
	}
	if info == nil {
		return nil, &ResolutionError{Ref: original, Err: errors.New("no metadata returned")}
	}

	if info.IsContainer() {
		return r.container(original, info), nil
	}
	return single(original, info), nil
}

func single(ref string, info *dto.Info) *model.Resolution {
	title := strings.TrimSpace(info.Title)
	if title == "" {
		title = model.UntitledItem
	}
	return &model.Resolution{
		Reference: ref,
		Items: []model.ItemDescriptor{{
			ID:           info.ID,
			Title:        title,
			Artist:       info.Artist(),
			FetchRef:     ref,
			Duration:     info.Duration,
			ThumbnailURL: info.Thumbnail,
		}},
	}
}

func (r *Resolver) container(ref string, info *dto.Info) *model.Resolution {
	title := strings.TrimSpace(info.Title)
	if title == "" {
		title = model.UntitledContainer
	}

	res := &model.Resolution{
		Reference:      ref,
		IsContainer:    true,
		ContainerTitle: title,
		Items:          make([]model.ItemDescriptor, 0, len(info.Entries)),
	}

	for i := range info.Entries {
		entry := &info.Entries[i]
		position := i + 1

		itemTitle := strings.TrimSpace(entry.Title)
		if itemTitle == "" {
			itemTitle = model.PlaceholderTitle(position)
		}

		if entry.IsNested() {
			res.Skipped = append(res.Skipped, model.SkippedEntry{
				Position: position, Title: itemTitle, Reason: "nested playlists are not expanded",
			})
			continue
		}

		fetchRef, ok := CanonicalURL(entry)
		if !ok {
			res.Skipped = append(res.Skipped, model.SkippedEntry{
				Position: position, Title: itemTitle, Reason: "entry has no fetchable reference",
			})
			continue
		}

		thumb := entry.BestThumbnail()
		if thumb == "" && isYouTube(entry.IEKey) && entry.ID != "" {
			thumb = fmt.Sprintf(youTubeThumbnailTemplate, entry.ID)
		}

		res.Items = append(res.Items, model.ItemDescriptor{
			ID:           entry.ID,
			Title:        itemTitle,
			Artist:       entry.Artist(),
			FetchRef:     fetchRef,
			Container:    title,
			Position:     position,
			Duration:     entry.Duration,
			ThumbnailURL: thumb,
		})
	}

	if len(res.Skipped) > 0 {
		r.logger.Warn("container entries skipped",
			"ref", ref, "skipped", len(res.Skipped), "kept", len(res.Items))
	}
	return res
}
