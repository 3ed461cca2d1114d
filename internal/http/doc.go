// Package http provides a small HTTP client for auxiliary downloads.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Size-limited GET requests
//   - Image downloads for cover art
//
// # Basic Usage
//
//	client := http.NewClient()
//	art, err := client.DownloadImage(ctx, "https://i.ytimg.com/vi/<id>/hqdefault.jpg")
package http
