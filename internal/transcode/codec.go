package transcode

import (
	"fmt"
	"sort"
	"strings"
)

// Codec describes a supported target format.
type Codec struct {
	Name      string
	Encoder   string
	Extension string
	Lossless  bool
}

var codecs = map[string]Codec{
	"mp3":    {Name: "mp3", Encoder: "libmp3lame", Extension: ".mp3"},
	"aac":    {Name: "aac", Encoder: "aac", Extension: ".m4a"},
	"opus":   {Name: "opus", Encoder: "libopus", Extension: ".opus"},
	"vorbis": {Name: "vorbis", Encoder: "libvorbis", Extension: ".ogg"},
	"flac":   {Name: "flac", Encoder: "flac", Extension: ".flac", Lossless: true},
}

// Lookup returns the codec registered under name (case-insensitive).
func Lookup(name string) (Codec, error) {
	c, ok := codecs[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Codec{}, fmt.Errorf("unsupported codec %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Names lists the supported codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Error is returned when ffmpeg exits with a failure.
type Error struct {
	Input  string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
		return fmt.Sprintf("ffmpeg: %s", last)
	}
	return fmt.Sprintf("ffmpeg: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
