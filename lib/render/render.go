// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Package render turns canonical posts into committed documents: a
// YAML front matter block followed by the markdown body, through the
// template selected by the post's classified type. The reverse path
// (splitting and parsing an existing document for source queries)
// lives in frontmatter.go.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/forgewrite/forgewrite/lib/micropub"
)

//go:embed templates/*.md.tmpl
var templateFiles embed.FS

// dateLayout is the front matter date format, Jekyll's convention.
const dateLayout = "2006-01-02 15:04:05 -0700"

// Renderer renders posts through the embedded per-type templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates. The template set is
// fixed at build time, so an error here is a build defect.
func NewRenderer() (*Renderer, error) {
	templates, err := template.New("").Funcs(template.FuncMap{
		"yaml":    yamlFlow,
		"hyphens": func(key string) string { return strings.ReplaceAll(key, "_", "-") },
	}).ParseFS(templateFiles, "templates/*.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("render: parsing embedded templates: %w", err)
	}
	return &Renderer{templates: templates}, nil
}

// Render produces the document for a classified post. An unknown type
// (a non-entry vocabulary with no template of its own) falls through
// to the dump_all template, which emits every present field.
func (renderer *Renderer) Render(postType micropub.Type, post *micropub.Post) ([]byte, error) {
	name := string(postType) + ".md.tmpl"
	selected := renderer.templates.Lookup(name)
	if selected == nil {
		selected = renderer.templates.Lookup(string(micropub.TypeDumpAll) + ".md.tmpl")
	}

	var buffer bytes.Buffer
	if err := selected.Execute(&buffer, templateData(post)); err != nil {
		return nil, fmt.Errorf("render: executing %s template: %w", postType, err)
	}
	return buffer.Bytes(), nil
}

// templateData builds the template context: every property under its
// canonical key (values coerced to string-keyed form recursively),
// the formatted published date, and a "fields" map of everything but
// the body for the catch-all template to range over.
func templateData(post *micropub.Post) map[string]any {
	data := make(map[string]any, len(post.Properties)+2)
	fields := make(map[string]any)
	for key, value := range post.Properties {
		coerced := stringKeyed(value)
		data[key] = coerced
		if key != "content" {
			fields[key] = coerced
		}
	}
	data["published"] = post.Published.Format(dateLayout)
	data["fields"] = fields
	// Every template ends with the body; a post with no content (a
	// reply or repost that is only its target URL) renders an empty
	// body rather than a missing-value marker.
	if _, present := data["content"]; !present {
		data["content"] = ""
	}
	return data
}

// stringKeyed coerces a property value to string-keyed form
// recursively, so templates and the flow-style YAML encoder never see
// a non-string map key.
func stringKeyed(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = stringKeyed(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[fmt.Sprint(key)] = stringKeyed(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for index, item := range typed {
			out[index] = stringKeyed(item)
		}
		return out
	default:
		return value
	}
}

// yamlFlow encodes a value in YAML flow style via its JSON encoding
// (a YAML subset), keeping arbitrary titles, lists, and photo objects
// one-line safe inside front matter. Map keys are emitted in sorted
// order, which encoding/json guarantees.
func yamlFlow(value any) (string, error) {
	switch typed := value.(type) {
	case time.Time:
		value = typed.Format(dateLayout)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encoding front matter value: %w", err)
	}
	return string(encoded), nil
}
