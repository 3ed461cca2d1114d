package bandcamp

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const albumPage = `<html>
<script data-tralbum="{
	&quot;current&quot;:{&quot;title&quot;:&quot;Test Album&quot;,&quot;release_date&quot;:&quot;01 Jan 2023 00:00:00 GMT&quot;},
	&quot;artist&quot;:&quot;Test Artist&quot;,
	&quot;item_type&quot;:&quot;album&quot;,
	&quot;art_id&quot;:1234567890,
	&quot;trackinfo&quot;:[
		{&quot;track_num&quot;:1,&quot;title&quot;:&quot;First Track&quot;,&quot;title_link&quot;:&quot;/track/first-track&quot;,&quot;duration&quot;:180.5,&quot;file&quot;:{&quot;mp3-128&quot;:&quot;https://example.com/1.mp3&quot;}},
		{&quot;track_num&quot;:2,&quot;title&quot;:&quot;Locked&quot;,&quot;duration&quot;:10,&quot;file&quot;:null},
		{&quot;track_num&quot;:3,&quot;title&quot;:&quot;&quot;,&quot;duration&quot;:200.0,&quot;file&quot;:{&quot;mp3-128&quot;:&quot;//example.com/3.mp3&quot;}}
	]
}"></script>
</html>`

const trackPage = `<script data-tralbum="{&quot;artist&quot;:&quot;Solo&quot;,&quot;item_type&quot;:&quot;track&quot;,&quot;trackinfo&quot;:[{&quot;title&quot;:&quot;Lone&quot;,&quot;duration&quot;:61,&quot;file&quot;:{&quot;mp3-128&quot;:&quot;https://example.com/lone.mp3&quot;}}]}"></script>`

func TestReleaseURLs(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    []string
		wantErr bool
	}{
		{
			name: "single album link",
			html: `<html><body><a href="/album/test-album">Album</a></body></html>`,
			want: []string{"/album/test-album"},
		},
		{
			name: "albums and tracks sorted",
			html: `<a href="/track/single-track">x</a>
				<a href="/album/second-album">x</a>
				<li data-item="{&quot;page_url&quot;:&quot;/album/first-album&quot;}">`,
			want: []string{"/album/first-album", "/album/second-album", "/track/single-track"},
		},
		{
			name: "duplicates filtered",
			html: `<a href="/album/same-album">x</a><a href="/album/same-album">y</a>`,
			want: []string{"/album/same-album"},
		},
		{
			name:    "no albums found",
			html:    `<html><body>No music here</body></html>`,
			wantErr: true,
		},
		{
			name: "single album artist page",
			html: `<div id="discography"></div><a href="/album/only-album">Only Album</a>`,
			want: []string{"/album/only-album"},
		},
		{
			name:    "single album page with two albums",
			html:    `<div id="discography"></div><a href="/album/a">a</a><a href="/album/b">b</a>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReleaseURLs(tt.html)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseReleaseAlbum(t *testing.T) {
	res, err := ParseRelease(albumPage, "https://artist.bandcamp.com/album/test-album?from=x")
	if err != nil {
		t.Fatalf("ParseRelease: %v", err)
	}
	if !res.IsContainer || res.ContainerTitle != "Test Album" {
		t.Errorf("container = %v %q", res.IsContainer, res.ContainerTitle)
	}
	if len(res.Items) != 2 || len(res.Skipped) != 1 {
		t.Fatalf("items = %d, skipped = %d", len(res.Items), len(res.Skipped))
	}

	first := res.Items[0]
	if first.FetchRef != "https://artist.bandcamp.com/track/first-track" {
		t.Errorf("FetchRef = %q", first.FetchRef)
	}
	if first.Artist != "Test Artist" || first.Container != "Test Album" || first.Position != 1 {
		t.Errorf("first = %+v", first)
	}
	if first.ThumbnailURL != "https://f4.bcbits.com/img/a1234567890_0.jpg" {
		t.Errorf("ThumbnailURL = %q", first.ThumbnailURL)
	}

	third := res.Items[1]
	if third.Title != "Untitled item 3" || third.FetchRef != "https://example.com/3.mp3" {
		t.Errorf("third = %+v", third)
	}
	if s := res.Skipped[0]; s.Position != 2 || s.Reason != "track is not streamable" {
		t.Errorf("skipped = %+v", s)
	}
}

func TestParseReleaseTrack(t *testing.T) {
	res, err := ParseRelease(trackPage, "https://solo.bandcamp.com/track/lone")
	if err != nil {
		t.Fatalf("ParseRelease: %v", err)
	}
	if res.IsContainer || len(res.Items) != 1 {
		t.Fatalf("res = %+v", res)
	}
	if it := res.Items[0]; it.Title != "Lone" || it.FetchRef != "https://solo.bandcamp.com/track/lone" || it.ThumbnailURL != "" {
		t.Errorf("item = %+v", it)
	}

	if _, err := ParseRelease("<html></html>", "https://x.bandcamp.com/track/a"); !errors.Is(err, ErrNoReleaseData) {
		t.Errorf("err = %v, want ErrNoReleaseData", err)
	}
}

func TestFixJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "fix URL concatenation",
			input: `url: "http://example.bandcamp.com" + "/album/test",`,
			want:  `url: "http://example.bandcamp.com/album/test",`,
		},
		{
			name:  "no change needed",
			input: `url: "http://example.bandcamp.com/album/test",`,
			want:  `url: "http://example.bandcamp.com/album/test",`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fixJSON(tt.input); got != tt.want {
				t.Errorf("fixJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

type pageMap map[string]string

func (p pageMap) Get(ctx context.Context, url string, limit int64) ([]byte, string, error) {
	body, ok := p[url]
	if !ok {
		return nil, "", errors.New("HTTP 404: 404 Not Found")
	}
	return []byte(body), "text/html", nil
}

func TestResolverHandles(t *testing.T) {
	r := NewResolver(pageMap{}, nil)
	tests := []struct {
		ref  string
		want bool
	}{
		{"https://artist.bandcamp.com/album/x", true},
		{"http://Artist.Bandcamp.com", true},
		{"https://bandcamp.com/discover", false},
		{"https://www.youtube.com/watch?v=abc", false},
		{"artist.bandcamp.com", false},
	}
	for _, tt := range tests {
		if got := r.Handles(tt.ref); got != tt.want {
			t.Errorf("Handles(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestResolverDiscography(t *testing.T) {
	pages := pageMap{
		"https://artist.bandcamp.com/music":            `<a href="/album/test-album">a</a><a href="/track/lone">b</a><a href="/album/gone">c</a>`,
		"https://artist.bandcamp.com/album/test-album": albumPage,
		"https://artist.bandcamp.com/track/lone":       trackPage,
		"https://artist.bandcamp.com/album/gone":       "<html>removed</html>",
	}
	r := NewResolver(pages, nil)

	res, err := r.Resolve(context.Background(), "https://artist.bandcamp.com/")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ContainerTitle != "Test Artist" {
		t.Errorf("ContainerTitle = %q", res.ContainerTitle)
	}
	// gone, then the album's three tracks, then the lone track
	if len(res.Items) != 3 || len(res.Skipped) != 2 {
		t.Fatalf("items = %d, skipped = %d", len(res.Items), len(res.Skipped))
	}
	if res.Skipped[0].Position != 1 || res.Skipped[1].Position != 3 {
		t.Errorf("skipped = %+v", res.Skipped)
	}
	for i, want := range []int{2, 4, 5} {
		if res.Items[i].Position != want || res.Items[i].Container != "Test Artist" {
			t.Errorf("item %d = %+v", i, res.Items[i])
		}
	}

	if _, err := r.Resolve(context.Background(), "https://other.bandcamp.com/album/none"); err == nil {
		t.Error("expected fetch error")
	}
}
