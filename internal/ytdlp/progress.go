package ytdlp

import (
	"strconv"
	"strings"
)

// progressPrefix marks lines produced by ProgressTemplate.
const progressPrefix = "[progress]"

// ProgressTemplate makes yt-dlp print one parseable line per progress tick:
//
//	[progress] 42.0%|  1.50MiB/s|/tmp/work/Song.webm
const ProgressTemplate = "download:" + progressPrefix +
	"%(progress._percent_str)s|%(progress._speed_str)s|%(progress.filename)s"

// Progress is one raw progress tuple reported by yt-dlp.
type Progress struct {
	Percent  string
	Speed    string
	Filename string
}

// Fraction converts Percent ("42.0%") to [0, 1]. ok is false when the tool
// did not know the percentage ("N/A", "Unknown", empty).
func (p Progress) Fraction() (float64, bool) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p.Percent), "%"))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != v {
		return 0, false
	}
	v /= 100
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v, true
}

// ParseProgressLine parses a line printed via ProgressTemplate.
func ParseProgressLine(line string) (Progress, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, progressPrefix) {
		return Progress{}, false
	}
	parts := strings.SplitN(strings.TrimPrefix(line, progressPrefix), "|", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return Progress{
		Percent:  strings.TrimSpace(parts[0]),
		Speed:    strings.TrimSpace(parts[1]),
		Filename: strings.TrimSpace(parts[2]),
	}, true
}
