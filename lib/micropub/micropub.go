// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Package micropub implements the content-creation protocol surface:
// the canonical post representation, normalization of the two wire
// encodings (structured JSON and form), content-type classification,
// and the protocol error taxonomy.
package micropub

import (
	"time"
)

// Post is the canonical in-memory representation of a publication
// request, independent of the wire encoding it arrived in. It is built
// once by Normalize and thereafter read-only, except for the photo
// rewrite the pipeline performs after media resolution.
type Post struct {
	// H is the object vocabulary, "entry" for standard posts. A
	// non-entry value passes through classification as its own type.
	H string

	// Published is the publication timestamp: the client's value when
	// supplied, otherwise the server clock at normalization time.
	Published time.Time

	// Properties holds the remaining fields keyed by canonical name
	// (wire hyphens become underscores, so "in-reply-to" is stored as
	// "in_reply_to"). Values are strings or, for list-valued
	// properties, []any.
	Properties map[string]any
}

// Photo is one photo reference: a source URL plus optional alt text.
type Photo struct {
	URL string
	Alt string
}

// String returns the first string value for key, or "" if the property
// is absent or not a string.
func (post *Post) String(key string) string {
	switch v := post.Properties[key].(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				return s
			}
		}
	}
	return ""
}

// Strings returns every string value for key. A scalar property yields
// a single-element slice.
func (post *Post) Strings(key string) []string {
	var out []string
	for _, item := range asList(post.Properties[key]) {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether key carries a non-empty value.
func (post *Post) Has(key string) bool {
	switch v := post.Properties[key].(type) {
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	return false
}

// Set replaces key's value. The pipeline uses this to rewrite the photo
// property with resolved media records before rendering.
func (post *Post) Set(key string, value any) {
	if post.Properties == nil {
		post.Properties = make(map[string]any)
	}
	post.Properties[key] = value
}

// Photos parses the photo property into typed references. Items are
// either plain URL strings or objects carrying value/alt pairs.
func (post *Post) Photos() []Photo {
	var photos []Photo
	for _, item := range asList(post.Properties["photo"]) {
		switch v := item.(type) {
		case string:
			if v != "" {
				photos = append(photos, Photo{URL: v})
			}
		case map[string]any:
			url, _ := v["value"].(string)
			alt, _ := v["alt"].(string)
			if url != "" {
				photos = append(photos, Photo{URL: url, Alt: alt})
			}
		}
	}
	return photos
}

// RequestedSlug returns the client-supplied slug, preferring the
// protocol's mp_slug spelling over the bare slug property.
func (post *Post) RequestedSlug() string {
	if slug := post.String("mp_slug"); slug != "" {
		return slug
	}
	return post.String("slug")
}

// SyndicationTargets returns the destination uids the client asked to
// syndicate to, in submission order.
func (post *Post) SyndicationTargets() []string {
	targets := post.Strings("mp_syndicate_to")
	return append(targets, post.Strings("syndicate_to")...)
}

// asList views a property value as a sequence: list values are returned
// as-is, scalars become a one-element sequence.
func asList(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case nil:
		return nil
	default:
		return []any{v}
	}
}
