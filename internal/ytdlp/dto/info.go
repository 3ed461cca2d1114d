package dto

// Info is the document printed by yt-dlp with --dump-single-json.
//
// With --flat-playlist a container reports its entries without resolving
// them, so Entry carries only what the listing page exposes.
type Info struct {
	Type         string  `json:"_type"`
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	WebpageURL   string  `json:"webpage_url"`
	ExtractorKey string  `json:"extractor_key"`
	Thumbnail    string  `json:"thumbnail"`
	Duration     float64 `json:"duration"`
	Uploader     string  `json:"uploader"`
	Channel      string  `json:"channel"`
	Entries      []Entry `json:"entries"`
}

// Entry is one element of Info.Entries.
type Entry struct {
	Type       string      `json:"_type"`
	IEKey      string      `json:"ie_key"`
	ID         string      `json:"id"`
	URL        string      `json:"url"`
	WebpageURL string      `json:"webpage_url"`
	Title      string      `json:"title"`
	Duration   float64     `json:"duration"`
	Uploader   string      `json:"uploader"`
	Channel    string      `json:"channel"`
	Thumbnails []Thumbnail `json:"thumbnails"`
}

// Thumbnail is one artwork candidate.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// IsContainer reports whether the document describes a playlist.
func (i *Info) IsContainer() bool {
	switch i.Type {
	case "playlist", "multi_video":
		return true
	case "":
		return i.Entries != nil
	default:
		return false
	}
}

// IsNested reports whether the entry is itself a container.
func (e *Entry) IsNested() bool {
	return e.Type == "playlist" || e.IEKey == "YoutubeTab"
}

// Artist returns the best available performer name.
func (i *Info) Artist() string {
	return firstNonEmpty(i.Channel, i.Uploader)
}

// Artist returns the best available performer name.
func (e *Entry) Artist() string {
	return firstNonEmpty(e.Channel, e.Uploader)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// BestThumbnail returns the widest thumbnail URL, or "".
func (e *Entry) BestThumbnail() string {
	best := ""
	width := -1
	for _, t := range e.Thumbnails {
		if t.URL != "" && t.Width > width {
			best, width = t.URL, t.Width
		}
	}
	return best
}
