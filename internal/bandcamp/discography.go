package bandcamp

import (
	"errors"
	"regexp"
	"slices"
	"strings"
)

// ErrNoAlbumFound is returned when no album or track URLs can be found on a page.
var ErrNoAlbumFound = errors.New("no album found on page")

var (
	releaseLinkRe = regexp.MustCompile(`(/(?:album|track)/.+?)(?:"|&quot;)`)
	albumHrefRe   = regexp.MustCompile(`href="(/album/.+?)"`)
)

// ReleaseURLs lists the relative release paths on an artist music page,
// sorted and without duplicates:
//
//	/album/my-album
//	/track/my-track
//
// Artists with a single album get redirected from /music to that album
// page, which is detected by its discography block.
func ReleaseURLs(musicPage string) ([]string, error) {
	if strings.Contains(musicPage, `div id="discography"`) {
		url, err := singleAlbumURL(musicPage)
		if err != nil {
			return nil, err
		}
		return []string{url}, nil
	}

	urls := uniqueMatches(releaseLinkRe, musicPage)
	if len(urls) == 0 {
		return nil, ErrNoAlbumFound
	}
	return urls, nil
}

func singleAlbumURL(page string) (string, error) {
	urls := uniqueMatches(albumHrefRe, page)
	switch len(urls) {
	case 0:
		return "", ErrNoAlbumFound
	case 1:
		return urls[0], nil
	}
	return "", errors.New("found multiple album URLs, expected exactly one")
}

func uniqueMatches(re *regexp.Regexp, page string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(page, -1) {
		out = append(out, m[1])
	}
	slices.Sort(out)
	return slices.Compact(out)
}
