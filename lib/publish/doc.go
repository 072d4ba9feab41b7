// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Package publish orchestrates the publishing pipeline: classify the
// normalized post, derive its slug and permalink, resolve referenced
// media, render the document, and commit everything atomically to the
// site's repository via the git data API. After the primary publish
// succeeds, requested syndication targets are notified best-effort.
//
// The commit path is the five-step blobs → tree → commit → ref-update
// sequence. It is not transactional: the repository is unchanged
// until the final ref update lands, and concurrent publishes against
// the same ref race on that update. The builder retries from a fresh
// base tree on ref-update conflict, bounded.
package publish
