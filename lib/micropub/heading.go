// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package micropub

import (
	"regexp"
	"strings"
)

// leadingHeading matches a markdown ATX heading on the first line: one
// or more # markers, at least one space or tab, then the heading text.
// A bare "#tag" with no whitespace is a hashtag, not a heading.
var leadingHeading = regexp.MustCompile(`^#+[ \t]+(.+)\r?\n?`)

// SplitLeadingHeading extracts a heading from the first line of
// content, returning the heading text, the body with the heading line
// and any blank lines after it removed, and whether a heading was
// found.
//
// This is a best-effort title backfill, not a markdown parser: only
// the first line is examined, the split applies once, and the
// remainder is never re-scanned. Headings past the first line are
// body text.
func SplitLeadingHeading(content string) (title, body string, ok bool) {
	match := leadingHeading.FindStringSubmatch(content)
	if match == nil {
		return "", content, false
	}
	title = strings.TrimSpace(match[1])
	body = strings.TrimLeft(content[len(match[0]):], "\r\n")
	return title, body, true
}
