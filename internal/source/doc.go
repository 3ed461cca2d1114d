// Package source turns raw references into ordered item descriptors.
//
// Resolution is metadata-only: the yt-dlp probe runs with --flat-playlist so
// nothing is downloaded. Containers keep their entry order, missing titles
// become "Untitled item N", and a missing container title becomes
// "Untitled Playlist". Entries reported only by bare id are rebuilt into
// canonical URLs by CanonicalURL; entries that cannot be rebuilt are listed
// in Resolution.Skipped rather than dropped.
//
// Sites with a native resolver (WithSite) and YouTube playlists with a
// native lister (WithLister) skip the probe. Either one falls back to yt-dlp
// on error.
package source
