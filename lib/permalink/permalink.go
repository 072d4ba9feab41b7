// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Package permalink derives URL slugs and published permalinks from
// post fields and a per-site template string.
package permalink

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// disallowed matches every character outside the slug alphabet's raw
// material: word characters, whitespace, and hyphens.
var disallowed = regexp.MustCompile(`[^\w\s-]`)

// separators matches runs of whitespace, underscores, and hyphens,
// which collapse to a single hyphen in the final slug.
var separators = regexp.MustCompile(`[\s_-]+`)

// doubledSlash matches runs of path separators left behind by empty
// template substitutions (an empty :categories, for example).
var doubledSlash = regexp.MustCompile(`/{2,}`)

// Slugify lowers text into the slug alphabet: lowercase word
// characters and digits joined by single hyphens, with no leading or
// trailing hyphen. Idempotent, so a well-formed client slug passes
// through unchanged.
func Slugify(text string) string {
	text = strings.ToLower(text)
	text = disallowed.ReplaceAllString(text, "")
	text = separators.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	return strings.ReplaceAll(text, " ", "-")
}

// Slug derives the post's slug: the explicit client slug when present
// (slugified, which well-formed slugs survive unchanged), else the
// slugified name, else a timestamp-derived token.
//
// The timestamp fallback is the second count within the published
// day (seconds since midnight). It is unique within a day but
// collides across days; callers must not rely on day-level
// uniqueness.
func Slug(explicit, name string, published time.Time) string {
	if slug := Slugify(explicit); slug != "" {
		return slug
	}
	if slug := Slugify(name); slug != "" {
		return slug
	}
	return fmt.Sprintf("%d", published.Unix()%86400)
}

// Expand substitutes Jekyll-flavored tokens in a permalink template
// from the published timestamp, the slug, and the post's categories,
// then collapses any doubled path separators the substitution left
// behind. Deterministic for fixed inputs.
//
// Tokens: :year :short_year :month :i_month :day :i_day :hour :minute
// :second :title :categories.
func Expand(template string, published time.Time, slug string, categories []string) string {
	slugged := make([]string, 0, len(categories))
	for _, category := range categories {
		if s := Slugify(category); s != "" {
			slugged = append(slugged, s)
		}
	}

	// Longer token names first so :short_year is not consumed by a
	// bare ":year" replacement, and :i_month before :month for the
	// same reason.
	replacer := strings.NewReplacer(
		":short_year", published.Format("06"),
		":year", published.Format("2006"),
		":i_month", fmt.Sprintf("%d", int(published.Month())),
		":month", published.Format("01"),
		":i_day", fmt.Sprintf("%d", published.Day()),
		":day", published.Format("02"),
		":hour", published.Format("15"),
		":minute", published.Format("04"),
		":second", published.Format("05"),
		":title", slug,
		":categories", strings.Join(slugged, "/"),
	)

	return doubledSlash.ReplaceAllString(replacer.Replace(template), "/")
}

// Join attaches an expanded permalink path to the site URL without
// doubling the separator between them.
func Join(siteURL, path string) string {
	return strings.TrimRight(siteURL, "/") + "/" + strings.TrimLeft(path, "/")
}
