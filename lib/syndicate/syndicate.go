// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Package syndicate posts published entries to third-party relay
// destinations. Syndication is best-effort: it runs only after the
// primary publish has succeeded, and a destination's failure is
// logged and skipped, never unwinding the publish.
package syndicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/forgewrite/forgewrite/lib/httpx"
)

// Destination is one configured relay target.
type Destination struct {
	// UID is the stable identifier clients echo back in
	// syndicate-to.
	UID string

	// Name is the destination's display name.
	Name string

	// Endpoint is the relay URL.
	Endpoint string

	// Secret is the relay's bearer token.
	Secret string
}

// Entry is the published post as the relay sees it.
type Entry struct {
	// URL is the post's permalink on the primary site.
	URL string

	// Name is the post title, possibly empty for notes.
	Name string

	// Content is the post body in markdown; it is rendered to HTML
	// for the relay payload.
	Content string
}

// Config holds configuration for creating a syndication Client.
type Config struct {
	// HTTPClient is used for relay calls. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Client posts entries to relay destinations.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	markdown   goldmark.Markdown
}

// NewClient creates a syndication Client.
func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		markdown:   goldmark.New(),
	}
}

// Syndicate posts one entry to one destination and returns the
// syndicated copy's URL. Errors are returned for the caller to log;
// one destination's failure has no effect on the others.
func (client *Client) Syndicate(ctx context.Context, destination Destination, entry Entry) (string, error) {
	var rendered bytes.Buffer
	if err := client.markdown.Convert([]byte(entry.Content), &rendered); err != nil {
		return "", fmt.Errorf("syndicate: rendering content for %s: %w", destination.UID, err)
	}

	payload, err := json.Marshal(map[string]string{
		"url":     entry.URL,
		"name":    entry.Name,
		"content": rendered.String(),
	})
	if err != nil {
		return "", fmt.Errorf("syndicate: encoding payload for %s: %w", destination.UID, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, destination.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("syndicate: creating request for %s: %w", destination.UID, err)
	}
	request.Header.Set("Authorization", "Bearer "+destination.Secret)
	request.Header.Set("Content-Type", "application/json")

	response, err := client.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("syndicate: posting to %s: %w", destination.UID, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("syndicate: %s answered HTTP %d: %s",
			destination.UID, response.StatusCode, httpx.ErrorBody(response.Body))
	}

	var receipt struct {
		URL string `json:"url"`
	}
	if err := httpx.DecodeJSON(response.Body, &receipt); err != nil {
		return "", fmt.Errorf("syndicate: decoding %s receipt: %w", destination.UID, err)
	}
	if receipt.URL == "" {
		return "", fmt.Errorf("syndicate: %s receipt carries no url", destination.UID)
	}
	return receipt.URL, nil
}
