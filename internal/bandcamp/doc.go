// Package bandcamp resolves Bandcamp pages natively.
//
// Bandcamp embeds release data as JSON in a data-tralbum attribute of every
// album and track page. Parsing it lists an album's tracks without running
// yt-dlp. Artist pages are expanded through their /music listing.
//
//	r := bandcamp.NewResolver(http.NewClient(), logger)
//	res, err := r.Resolve(ctx, "https://artist.bandcamp.com/album/name")
package bandcamp
