// Package avatar resolves customer profile photos into data URLs through a
// bounded, time-evicting cache.
package avatar

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultSize = 512
	defaultTTL  = 15 * time.Minute
	maxPhotoLen = 2 << 20 // 2MB cap on a single avatar
)

// Fetcher retrieves raw photo bytes and their content type for a URL.
type Fetcher func(ctx context.Context, url string) ([]byte, string, error)

// Cache is a bounded LRU of resolved avatar data URLs keyed by dialog id.
type Cache struct {
	lru   *expirable.LRU[string, string]
	fetch Fetcher
}

// Opts holds cache construction parameters. Zero values use defaults.
type Opts struct {
	Size  int
	TTL   time.Duration
	Fetch Fetcher // defaults to an HTTP fetcher with a 10s timeout
}

// New creates an avatar cache.
func New(opts Opts) *Cache {
	size := opts.Size
	if size <= 0 {
		size = defaultSize
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	fetch := opts.Fetch
	if fetch == nil {
		fetch = httpFetch(&http.Client{Timeout: 10 * time.Second})
	}
	return &Cache{
		lru:   expirable.NewLRU[string, string](size, nil, ttl),
		fetch: fetch,
	}
}

// Resolve returns a data URL for the photo, fetching and caching on miss.
// An empty photoURL yields an empty result without an error.
func (c *Cache) Resolve(ctx context.Context, dialogID, photoURL string) (string, error) {
	if photoURL == "" {
		return "", nil
	}
	if v, ok := c.lru.Get(dialogID); ok {
		return v, nil
	}

	data, contentType, err := c.fetch(ctx, photoURL)
	if err != nil {
		return "", fmt.Errorf("avatar: fetch %s: %w", dialogID, err)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	c.lru.Add(dialogID, dataURL)
	return dataURL, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// httpFetch builds the default HTTP Fetcher.
func httpFetch(client *http.Client) Fetcher {
	return func(ctx context.Context, url string) ([]byte, string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoLen))
		if err != nil {
			return nil, "", err
		}
		return data, resp.Header.Get("Content-Type"), nil
	}
}
