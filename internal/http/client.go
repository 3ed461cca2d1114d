package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxImageBytes caps the size of downloaded artwork.
const MaxImageBytes = 10 << 20

// Client fetches small auxiliary resources: thumbnails for tagging and
// pages for native site resolution. Media itself is always downloaded by
// yt-dlp.
//
// Example usage:
//
//	client := NewClient()
//	art, err := client.DownloadImage(ctx, item.ThumbnailURL)
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new HTTP client.
//
// The client is configured with:
//   - 30 second timeout
//   - "audiobatch" User-Agent header
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: "audiobatch",
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Get performs a GET request and returns at most limit bytes of the body.
//
// Returns an error if:
//   - The request fails
//   - The response status is not 200 OK
//   - The body is larger than limit
func (c *Client) Get(ctx context.Context, url string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(body)) > limit {
		return nil, "", fmt.Errorf("response from %s exceeds %d bytes", url, limit)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// DownloadImage fetches an image and rejects non-image responses.
func (c *Client) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	body, contentType, err := c.Get(ctx, url, MaxImageBytes)
	if err != nil {
		return nil, err
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("unexpected content type %q for %s", contentType, url)
	}
	return body, nil
}
