package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/handiism/audiobatch/internal/audio"
	"github.com/handiism/audiobatch/internal/http"
	ioutils "github.com/handiism/audiobatch/internal/io"
	"github.com/handiism/audiobatch/internal/model"
)

// ArtworkFetcher downloads cover art bytes. *http.Client implements it.
type ArtworkFetcher interface {
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

// TagProcessor writes ID3 tags and cover art to finished MP3 artifacts.
// Other codecs pass through untouched.
type TagProcessor struct {
	tagger       *audio.Tagger
	artwork      ArtworkFetcher
	images       *ioutils.ImageService
	embedArtwork bool
	maxSize      int
	logger       *slog.Logger
}

// TagOptions configures a TagProcessor.
type TagOptions struct {
	Config       *audio.TagConfig
	EmbedArtwork bool
	ArtworkSize  int
	Artwork      ArtworkFetcher
	Logger       *slog.Logger
}

// NewTagProcessor creates a TagProcessor. A nil Artwork fetcher uses a
// default HTTP client.
func NewTagProcessor(opts TagOptions) *TagProcessor {
	p := &TagProcessor{
		tagger:       audio.NewTagger(opts.Config),
		artwork:      opts.Artwork,
		images:       ioutils.NewImageService(),
		embedArtwork: opts.EmbedArtwork,
		maxSize:      opts.ArtworkSize,
		logger:       opts.Logger,
	}
	if p.artwork == nil {
		p.artwork = http.NewClient()
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// Process tags the artifact at path. A missing or broken thumbnail only
// drops the cover art; the text frames are still written.
func (p *TagProcessor) Process(ctx context.Context, path string, item model.ItemDescriptor) error {
	if !p.tagger.Supports(path) {
		return nil
	}

	var art []byte
	if p.embedArtwork && item.ThumbnailURL != "" {
		raw, err := p.artwork.DownloadImage(ctx, item.ThumbnailURL)
		if err != nil {
			p.logger.Warn("cover art download failed", "item", item.Title, "error", err)
		} else if art, err = p.images.CoverArt(ctx, raw, p.maxSize); err != nil {
			p.logger.Warn("cover art conversion failed", "item", item.Title, "error", err)
			art = nil
		}
	}

	if err := p.tagger.SaveTags(path, item, art); err != nil {
		return fmt.Errorf("tag %s: %w", item.Title, err)
	}
	return nil
}
