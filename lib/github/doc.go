// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Package github provides a typed Go client for the slice of the
// GitHub REST API the publisher uses: repository lookup and the git
// data endpoints (refs, commits, trees, blobs) that stage a
// multi-file commit.
//
// The client authenticates via a personal access token or GitHub App
// installation tokens (auto-rotated). It handles rate limiting
// (X-RateLimit-* headers with automatic backoff), conditional
// requests (ETags), and structured error mapping.
//
// All requests are made over HTTPS. The client refuses non-HTTPS base
// URLs; tests exercise it against httptest.NewTLSServer.
package github
