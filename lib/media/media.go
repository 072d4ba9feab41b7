// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Package media downloads referenced photos for inclusion in the
// publish commit, degrading gracefully per item: a failed download
// keeps the original URL so the post still links the photo, it just
// is not hosted alongside it.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/forgewrite/forgewrite/lib/httpx"
	"github.com/forgewrite/forgewrite/lib/micropub"
	"github.com/forgewrite/forgewrite/lib/permalink"
)

// Item is one resolved photo reference. Content and UploadPath are set
// only when the download succeeded; PublicURL always holds the URL the
// rendered document should reference (the hosted path on success, the
// original source URL on fallback).
type Item struct {
	// URL is the original source URL.
	URL string

	// Alt is the photo's alternative text, possibly empty.
	Alt string

	// Content is the downloaded bytes, nil on fallback.
	Content []byte

	// UploadPath is the repository path the content commits to, ""
	// on fallback.
	UploadPath string

	// PublicURL is the URL to reference from the rendered document.
	PublicURL string
}

// Hosted reports whether the item carries content for the commit.
func (item *Item) Hosted() bool { return len(item.Content) > 0 }

// Target describes where a site hosts its images.
type Target struct {
	// SiteURL is the site's base URL.
	SiteURL string

	// ImageDir is the repository directory receiving image files.
	ImageDir string

	// AbsoluteURLs selects full site-URL-prefixed image references
	// instead of root-relative paths.
	AbsoluteURLs bool
}

// Config holds configuration for creating a Fetcher.
type Config struct {
	// Enabled turns downloading on. When false every photo passes
	// through as a bare reference.
	Enabled bool

	// Timeout bounds each download. Defaults to 30 seconds.
	Timeout time.Duration

	// HTTPClient is used for downloads. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Fetcher downloads photos referenced by a post.
type Fetcher struct {
	enabled    bool
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher from the given configuration.
func NewFetcher(config Config) *Fetcher {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		enabled:    config.Enabled,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Fetch resolves every photo reference against the target. Items are
// fetched concurrently; each outcome is attributed only to its own
// item, and no failure is ever fatal — the worst case is a slice of
// bare references. The returned slice preserves submission order.
func (fetcher *Fetcher) Fetch(ctx context.Context, target Target, photos []micropub.Photo) []Item {
	items := make([]Item, len(photos))

	var group sync.WaitGroup
	for index, photo := range photos {
		items[index] = Item{URL: photo.URL, Alt: photo.Alt, PublicURL: photo.URL}
		if !fetcher.enabled {
			continue
		}
		group.Add(1)
		go func(index int, photo micropub.Photo) {
			defer group.Done()
			fetcher.resolve(ctx, target, &items[index])
		}(index, photo)
	}
	group.Wait()

	return items
}

// resolve downloads one photo and fills in its hosted fields. On any
// failure the item is left as the bare reference it was initialized
// to.
func (fetcher *Fetcher) resolve(ctx context.Context, target Target, item *Item) {
	ctx, cancel := context.WithTimeout(ctx, fetcher.timeout)
	defer cancel()

	content, err := fetcher.download(ctx, item.URL)
	if err != nil {
		fetcher.logger.Warn("photo download failed, keeping source reference",
			"url", item.URL,
			"error", err,
		)
		return
	}

	filename := uploadFilename(item.URL, content)
	if filename == "" {
		fetcher.logger.Warn("photo URL yields no usable filename, keeping source reference",
			"url", item.URL,
		)
		return
	}

	item.Content = content
	item.UploadPath = path.Join(target.ImageDir, filename)
	item.PublicURL = "/" + item.UploadPath
	if target.AbsoluteURLs {
		item.PublicURL = permalink.Join(target.SiteURL, item.UploadPath)
	}
}

// download fetches the photo bytes, failing on transport errors,
// non-2xx statuses, and oversized bodies.
func (fetcher *Fetcher) download(ctx context.Context, sourceURL string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	response, err := fetcher.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", response.StatusCode)
	}

	return httpx.ReadLimited(response.Body, httpx.MaxMediaDownload)
}

// uploadFilename derives the repository filename from the source URL's
// last path segment. When the segment has no extension, one is sniffed
// from the content so the hosted file serves with a sensible type.
// Returns "" when no segment is usable.
func uploadFilename(sourceURL string, content []byte) string {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	filename := path.Base(parsed.Path)
	if filename == "." || filename == "/" || filename == "" {
		return ""
	}
	if path.Ext(filename) == "" {
		filename += mimetype.Detect(content).Extension()
	}
	return filename
}
