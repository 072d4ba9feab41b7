// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package micropub

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/forgewrite/forgewrite/lib/clock"
)

// publishedLayouts are the timestamp formats accepted for a
// client-supplied published property, tried in order. RFC3339 is the
// protocol's format; the fallbacks cover clients that omit the zone or
// send a bare date.
var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// listProperties are the form-encoded fields coerced to value slices
// even when a single value was submitted. Clients may send either a
// scalar or a repeated key for these.
var listProperties = map[string]bool{
	"photo":           true,
	"syndicate_to":    true,
	"mp_syndicate_to": true,
	"category":        true,
}

// Normalizer converts either wire encoding into the canonical Post.
// The clock stamps posts that arrive without a published date.
type Normalizer struct {
	Clock clock.Clock
}

// NewNormalizer returns a Normalizer using the given clock, or the
// real clock when nil.
func NewNormalizer(clk clock.Clock) *Normalizer {
	if clk == nil {
		clk = clock.Real()
	}
	return &Normalizer{Clock: clk}
}

// JSON normalizes a structured-JSON request body.
//
// The type array's single value has its "h-" prefix stripped to become
// the post's vocabulary; properties are hoisted to the top level with
// hyphenated keys canonicalized to underscores; a content property
// whose first element is an object exposes its html sub-field; name is
// unwrapped from its single-element array; photo keeps its full value
// list.
func (normalizer *Normalizer) JSON(body []byte) (*Post, error) {
	var request struct {
		Type       []string       `json:"type"`
		Properties map[string]any `json:"properties"`
		Action     string         `json:"action"`
	}
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, InvalidRequest(fmt.Sprintf("malformed JSON body: %v", err))
	}

	properties := make(map[string]any, len(request.Properties)+2)
	for key, value := range request.Properties {
		properties[canonicalKey(key)] = value
	}

	if len(request.Type) == 1 {
		properties["h"] = strings.TrimPrefix(request.Type[0], "h-")
	} else if len(request.Type) > 1 {
		return nil, InvalidRequest("type must hold exactly one value")
	}
	if request.Action != "" {
		properties["action"] = request.Action
	}

	// content may arrive as [{"html": ...}] or ["plain text"].
	if list, ok := properties["content"].([]any); ok && len(list) > 0 {
		switch first := list[0].(type) {
		case map[string]any:
			if html, ok := first["html"].(string); ok {
				properties["content"] = html
			}
		case string:
			properties["content"] = first
		}
	}

	// name arrives as a single-element array.
	if list, ok := properties["name"].([]any); ok && len(list) > 0 {
		if name, ok := list[0].(string); ok {
			properties["name"] = name
		}
	}

	return normalizer.finish(properties)
}

// Form normalizes a form-encoded request. Keys are canonicalized
// (hyphens to underscores, trailing "[]" stripped); photo, category,
// and syndication targets are coerced to value slices; every other
// field takes its first submitted value.
func (normalizer *Normalizer) Form(values url.Values) (*Post, error) {
	properties := make(map[string]any, len(values))
	for key, list := range values {
		key = canonicalKey(strings.TrimSuffix(key, "[]"))
		if key == "" || len(list) == 0 {
			continue
		}
		if listProperties[key] {
			items := make([]any, 0, len(list))
			for _, value := range list {
				if value != "" {
					items = append(items, value)
				}
			}
			properties[key] = items
			continue
		}
		properties[key] = list[0]
	}
	return normalizer.finish(properties)
}

// finish validates the hoisted property set, applies the markdown
// heading heuristic, and fills post-validation defaults.
func (normalizer *Normalizer) finish(properties map[string]any) (*Post, error) {
	// access_token is a credential, never a property. The server
	// strips it at bearer extraction; stripping again here keeps it
	// out of rendered documents even if a caller forgets.
	delete(properties, "access_token")

	if len(properties) == 0 {
		return nil, InvalidRequest("empty request")
	}

	hValue, hasH := properties["h"].(string)
	_, hasQuery := properties["q"]
	action, hasAction := properties["action"].(string)
	if !hasH && !hasQuery && !hasAction {
		return nil, InvalidRequest("no recognized control field (h, q, or action)")
	}
	if hasQuery {
		return nil, InvalidRequest("query operations use GET")
	}
	if hasAction {
		return nil, InvalidRequest(fmt.Sprintf("unsupported action %q: create is the only supported action", action))
	}

	post := &Post{H: hValue, Properties: properties}
	delete(properties, "h")
	if post.H == "" {
		post.H = "entry"
	}

	// Markdown heading heuristic: a leading "# Title" line backfills a
	// missing name and is removed from the content body.
	if !post.Has("name") {
		if content, ok := properties["content"].(string); ok {
			if title, body, found := SplitLeadingHeading(content); found {
				properties["name"] = title
				properties["content"] = body
			}
		}
	}

	published, err := normalizer.publishedTime(properties)
	if err != nil {
		return nil, err
	}
	post.Published = published
	delete(properties, "published")

	return post, nil
}

// publishedTime parses the client-supplied published property or
// defaults to the current clock time.
func (normalizer *Normalizer) publishedTime(properties map[string]any) (time.Time, error) {
	var raw string
	for _, item := range asList(properties["published"]) {
		if s, ok := item.(string); ok && s != "" {
			raw = s
			break
		}
	}
	if raw == "" {
		return normalizer.Clock.Now(), nil
	}
	for _, layout := range publishedLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, InvalidRequest(fmt.Sprintf("unparseable published timestamp %q", raw))
}

// canonicalKey maps a wire property name to its canonical spelling:
// hyphens become underscores, so "in-reply-to" is stored as
// "in_reply_to".
func canonicalKey(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}
