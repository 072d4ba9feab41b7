// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpx provides bounded HTTP response reading shared by every
// outbound client in the publisher (GitHub API, token introspection,
// media origins, syndication relays).
//
// All helpers cap the bytes read so a misbehaving or malicious server
// cannot exhaust memory. JSON API responses use the generous
// MaxAPIResponse cap; media downloads use MaxMediaDownload and fail
// loudly when exceeded, because a silently truncated photo would be
// committed corrupt.
package httpx

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxAPIResponse bounds JSON API response body reads: 8 MB. Legitimate
// API responses here (introspection claims, git object metadata,
// syndication receipts) are orders of magnitude smaller.
const MaxAPIResponse int64 = 8 << 20

// MaxMediaDownload bounds photo downloads: 64 MB.
const MaxMediaDownload int64 = 64 << 20

// maxErrorBody bounds diagnostic reads of error response bodies.
const maxErrorBody int64 = 64 << 10

// ReadLimited reads body to EOF, failing if it exceeds limit bytes.
// Use instead of io.ReadAll when the full content matters, such as a
// media download destined for a commit.
func ReadLimited(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response exceeds %d byte limit", limit)
	}
	return data, nil
}

// DecodeJSON reads a JSON API response body (up to MaxAPIResponse
// bytes) and decodes it into v. Replaces the io.ReadAll + json.Unmarshal
// pattern.
func DecodeJSON(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxAPIResponse))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an HTTP error response body for diagnostic error
// messages. Read errors are ignored; a partial or empty body is still
// useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return string(data)
}
