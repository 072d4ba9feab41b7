// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SplitFrontMatter splits a document into its front matter block and
// body. The document must open with a "---" line; the block ends at
// the next "---" line. Only the first delimiter pair is considered —
// a "---" inside the body is body text, and the split never recurses.
// Returns ok=false when the document has no front matter block, in
// which case body is the whole document.
func SplitFrontMatter(document string) (frontMatter, body string, ok bool) {
	normalized := strings.ReplaceAll(document, "\r\n", "\n")
	rest, found := strings.CutPrefix(normalized, "---\n")
	if !found {
		return "", document, false
	}
	frontMatter, body, found = strings.Cut(rest, "\n---\n")
	if !found {
		// Unterminated block: front matter running to EOF, with or
		// without a final newline.
		if trimmed, closed := strings.CutSuffix(rest, "\n---"); closed {
			return trimmed, "", true
		}
		return "", document, false
	}
	return frontMatter, strings.TrimLeft(body, "\n"), true
}

// ParseFrontMatter decodes a front matter block into a string-keyed
// map.
func ParseFrontMatter(frontMatter string) (map[string]any, error) {
	fields := make(map[string]any)
	if err := yaml.Unmarshal([]byte(frontMatter), &fields); err != nil {
		return nil, fmt.Errorf("render: parsing front matter: %w", err)
	}
	return fields, nil
}

// frontMatterAliases maps front matter field names back to their wire
// property names for source queries. Fields not listed pass through
// under their own (hyphenated) names; layout is rendering metadata
// and is dropped.
var frontMatterAliases = map[string]string{
	"title":      "name",
	"date":       "published",
	"categories": "category",
	"photos":     "photo",
}

// ToMicropub rebuilds the canonical structured-JSON form of a
// committed document: {"type": ["h-entry"], "properties": {...}} with
// every property value wrapped in an array, the body as content, and
// front matter fields mapped back to their wire names.
func ToMicropub(fields map[string]any, body string) map[string]any {
	properties := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		if key == "layout" {
			continue
		}
		if alias, ok := frontMatterAliases[key]; ok {
			key = alias
		}
		if list, ok := value.([]any); ok {
			properties[key] = stringKeyed(list)
		} else {
			properties[key] = []any{stringKeyed(value)}
		}
	}
	if body = strings.TrimRight(body, "\n"); body != "" {
		properties["content"] = []any{body}
	}
	return map[string]any{
		"type":       []any{"h-entry"},
		"properties": properties,
	}
}
