package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/handiism/audiobatch/internal/model"
)

// TagEditAction defines how to handle individual ID3 tags.
type TagEditAction int

const (
	// TagEmpty clears the tag value.
	TagEmpty TagEditAction = iota

	// TagModify updates the tag with the value from the item metadata.
	TagModify

	// TagDoNotModify leaves whatever ffmpeg copied from the source untouched.
	TagDoNotModify
)

// TagConfig holds tagging configuration for each ID3 field.
//
// Example:
//
//	cfg := &TagConfig{
//	    ModifyTags:  true,
//	    TrackTitle:  TagModify,      // item title
//	    Artist:      TagModify,      // uploader / channel
//	    Album:       TagModify,      // playlist title
//	    TrackNumber: TagModify,      // position in the playlist
//	    Comments:    TagEmpty,       // drop source descriptions
//	}
type TagConfig struct {
	// ModifyTags is a master switch. If false, no text frames are modified.
	ModifyTags bool

	// TrackTitle controls the TIT2 (Title) frame.
	TrackTitle TagEditAction

	// Artist controls the TPE1 (Lead artist) frame.
	Artist TagEditAction

	// Album controls the TALB (Album title) frame. Single items have no
	// container and leave the frame untouched.
	Album TagEditAction

	// TrackNumber controls the TRCK (Track number) frame.
	TrackNumber TagEditAction

	// Comments controls the COMM (Comments) frame.
	Comments TagEditAction
}

// DefaultTagConfig returns the default tag configuration.
//
// All fields are set to TagModify except comments, which are cleared because
// ffmpeg copies long video descriptions into them.
func DefaultTagConfig() *TagConfig {
	return &TagConfig{
		ModifyTags:  true,
		TrackTitle:  TagModify,
		Artist:      TagModify,
		Album:       TagModify,
		TrackNumber: TagModify,
		Comments:    TagEmpty,
	}
}

// Tagger writes ID3 tags to MP3 artifacts.
//
// Only MP3 files carry ID3v2; Supports reports whether a path can be tagged
// so callers can skip other codecs.
//
// Example:
//
//	tagger := NewTagger(DefaultTagConfig())
//	if tagger.Supports(path) {
//	    if err := tagger.SaveTags(path, item, artwork); err != nil {
//	        logger.Warn("tagging failed", "path", path, "error", err)
//	    }
//	}
type Tagger struct {
	config *TagConfig
}

// NewTagger creates a new Tagger with the given configuration.
//
// If config is nil, DefaultTagConfig() is used.
func NewTagger(config *TagConfig) *Tagger {
	if config == nil {
		config = DefaultTagConfig()
	}
	return &Tagger{config: config}
}

// Supports reports whether the file at path can carry ID3 tags.
func (t *Tagger) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}

// SaveTags writes ID3 tags for item to the MP3 file at path.
//
// This method:
//  1. Opens the existing MP3 file, parsing any tags ffmpeg wrote
//  2. Updates text frames based on TagConfig settings
//  3. Embeds cover art if artwork bytes are provided
//  4. Saves the modified tags to the file
func (t *Tagger) SaveTags(path string, item model.ItemDescriptor, artwork []byte) error {
	if !t.Supports(path) {
		return fmt.Errorf("cannot tag %s: not an mp3 file", filepath.Base(path))
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("open tags: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	if t.config.ModifyTags {
		t.updateTextFrames(tag, item)
	}
	if len(artwork) > 0 {
		t.updateArtwork(tag, artwork)
	}

	return tag.Save()
}

// updateTextFrames updates text-based ID3 frames based on configuration.
func (t *Tagger) updateTextFrames(tag *id3v2.Tag, item model.ItemDescriptor) {
	switch t.config.TrackTitle {
	case TagEmpty:
		tag.SetTitle("")
	case TagModify:
		tag.SetTitle(item.Title)
	}

	switch t.config.Artist {
	case TagEmpty:
		tag.SetArtist("")
	case TagModify:
		if item.Artist != "" {
			tag.SetArtist(item.Artist)
		}
	}

	switch t.config.Album {
	case TagEmpty:
		tag.SetAlbum("")
	case TagModify:
		if item.Container != "" {
			tag.SetAlbum(item.Container)
		}
	}

	switch t.config.TrackNumber {
	case TagEmpty:
		tag.DeleteFrames("TRCK")
	case TagModify:
		if item.Position > 0 {
			tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, fmt.Sprintf("%d", item.Position))
		}
	}

	if t.config.Comments == TagEmpty {
		tag.DeleteFrames(tag.CommonID("Comments"))
	}
}

// updateArtwork embeds cover art as an attached picture frame.
func (t *Tagger) updateArtwork(tag *id3v2.Tag, artwork []byte) {
	tag.DeleteFrames(tag.CommonID("Attached picture"))

	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     artwork,
	})
}
