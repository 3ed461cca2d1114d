package model

import (
	"fmt"
	"strings"
)

// ItemDescriptor is one downloadable audio item produced by the resolver.
//
// Title and FetchRef are always set: Title is either the item's own title or
// a placeholder, FetchRef is a reference the extraction tool can download
// directly. The remaining fields are informational and may be zero.
//
// Example:
//
//	item := ItemDescriptor{
//	    Title:     "Song Title",
//	    FetchRef:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
//	    Container: "My Playlist",
//	    Position:  3,
//	}
//	fmt.Println(item.DisplayTitle(2)) // "3. Song Title"
type ItemDescriptor struct {
	// ID is the extractor-specific identifier, if known.
	ID string

	// Title is the human-readable item title.
	Title string

	// Artist is the uploader or channel name, if known.
	Artist string

	// FetchRef is the reference handed to the extraction tool.
	FetchRef string

	// Container is the title of the playlist this item came from.
	// Empty for single items.
	Container string

	// Position is the 1-based position inside the container, 0 for single items.
	Position int

	// Duration is the item length in seconds, 0 if unknown.
	Duration float64

	// ThumbnailURL points at cover art for the item, if the source has one.
	ThumbnailURL string
}

// DisplayTitle returns the title prefixed with the 1-based flat-list number.
func (d ItemDescriptor) DisplayTitle(index int) string {
	return fmt.Sprintf("%d. %s", index+1, d.Title)
}

// PlaceholderTitle returns the title used for a container entry without one.
func PlaceholderTitle(position int) string {
	return fmt.Sprintf("Untitled item %d", position)
}

// UntitledItem is the title given to a single item that reports none.
const UntitledItem = "Untitled item"

// UntitledContainer is the title given to a container that reports none.
const UntitledContainer = "Untitled Playlist"

// SkippedEntry is a container entry the resolver could not turn into a
// fetchable descriptor.
type SkippedEntry struct {
	Position int
	Title    string
	Reason   string
}

// Resolution is the result of resolving one source reference.
type Resolution struct {
	// Reference is the input that was resolved.
	Reference string

	// IsContainer reports whether the reference was a playlist.
	IsContainer bool

	// ContainerTitle is set only for containers.
	ContainerTitle string

	// Items are the descriptors in container order.
	Items []ItemDescriptor

	// Skipped lists entries that were present but not resolvable.
	Skipped []SkippedEntry
}

// ParseReferences splits free text into references, one per line.
//
// Blank lines and lines starting with '#' are ignored. A line is never split
// further, so URLs containing commas stay whole.
func ParseReferences(input string) []string {
	return CleanReferences(strings.Split(input, "\n"))
}

// CleanReferences trims each element and drops blanks and '#' comments.
// Every remaining element is one reference.
func CleanReferences(lines []string) []string {
	var refs []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		refs = append(refs, line)
	}
	return refs
}
