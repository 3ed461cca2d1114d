// Package speed converts human-readable transfer rates reported by the
// extraction tool into megabits per second.
//
// The extraction tool prints rates such as "2.0MiB/s" or "512.3KiB/s".
// Normalize turns those into a single float suitable for display:
//
//	speed.Normalize("2.0MiB/s")  // 16.0
//	speed.Normalize("512KiB/s")  // 4.0
//	speed.Normalize("Unknown")   // 0.0
//
// Units are binary (1024-based) and the result is expressed in "Mi-bits",
// that is bytesPerSecond * 8 / 1048576. Normalize never fails: anything it
// cannot interpret yields 0.
package speed

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const bitsPerMebibit = 1024 * 1024

var rateRe = regexp.MustCompile(`^([+-]?[0-9]*\.?[0-9]+(?:[eE][+-]?[0-9]+)?)\s*([a-zA-Z]*)$`)

var unitScale = map[string]float64{
	"":    1,
	"b":   1,
	"kib": 1024,
	"mib": 1024 * 1024,
	"gib": 1024 * 1024 * 1024,
}

// Normalize converts a rate string into megabits per second.
//
// Unparseable, empty, negative or non-finite input returns 0.
func Normalize(rate string) float64 {
	s := strings.TrimSpace(rate)
	if s == "" {
		return 0
	}
	lower := strings.ToLower(s)
	if strings.HasSuffix(lower, "/s") {
		s = strings.TrimSpace(s[:len(s)-2])
	}

	m := rateRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}

	scale, ok := unitScale[strings.ToLower(m[2])]
	if !ok {
		return 0
	}

	mbps := value * scale * 8 / bitsPerMebibit
	if math.IsNaN(mbps) || math.IsInf(mbps, 0) {
		return 0
	}
	return mbps
}
