// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"context"
	"encoding/base64"
	"reflect"
	"testing"

	"github.com/forgewrite/forgewrite/lib/github"
	"github.com/forgewrite/forgewrite/lib/micropub"
)

func TestSlugSegment(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://jane.example/2026/03/04/hello-world/", "hello-world"},
		{"https://jane.example/2026/03/04/hello-world", "hello-world"},
		{"https://jane.example/notes/quick-note/", "quick-note"},
		{"https://jane.example/", ""},
		{"https://jane.example", ""},
	}
	for _, test := range tests {
		if got := slugSegment(test.url); got != test.want {
			t.Errorf("slugSegment(%q) = %q, want %q", test.url, got, test.want)
		}
	}
}

func TestStripDateStem(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"2026-03-04-hello-world", "hello-world"},
		{"2026-03-04-12345", "12345"},
		{"hello-world", "hello-world"},
		{"26-3-4-short", "26-3-4-short"},
	}
	for _, test := range tests {
		if got := stripDateStem(test.filename); got != test.want {
			t.Errorf("stripDateStem(%q) = %q, want %q", test.filename, got, test.want)
		}
	}
}

func TestMatchPost(t *testing.T) {
	entries := []github.TreeEntry{
		{Path: "README.md", Type: "blob", SHA: "readme"},
		{Path: "_posts", Type: "tree", SHA: "dir"},
		{Path: "_posts/2026-01-01-hello.md", Type: "blob", SHA: "old-hello"},
		{Path: "_posts/2026-03-04-hello.md", Type: "blob", SHA: "new-hello"},
		{Path: "_posts/2026-02-02-hello-again.md", Type: "blob", SHA: "hello-again"},
		{Path: "_posts/2026-02-03-unrelated.md", Type: "blob", SHA: "unrelated"},
	}

	tests := []struct {
		slug string
		want string
	}{
		// Exact stem matches beat substring matches; the newest
		// (lexicographically last) exact match wins.
		{"hello", "new-hello"},
		{"hello-again", "hello-again"},
		// Substring-only matches still resolve.
		{"again", "hello-again"},
		{"nothing-here", ""},
	}
	for _, test := range tests {
		if got := matchPost(entries, "_posts", test.slug); got != test.want {
			t.Errorf("matchPost(%q) = %q, want %q", test.slug, got, test.want)
		}
	}
}

func TestSourceRebuildsCanonicalForm(t *testing.T) {
	document := "---\n" +
		"layout: post\n" +
		"title: Hello World\n" +
		"categories: [\"cats\"]\n" +
		"---\n" +
		"\n" +
		"Body text.\n"

	forge := newFakeForge()
	defer forge.Close()
	forge.treeEntries = []github.TreeEntry{
		{Path: "_posts/2026-03-04-hello-world.md", Type: "blob", SHA: "post-1"},
	}
	forge.blobs["post-1"] = base64.StdEncoding.EncodeToString([]byte(document))

	pipeline := testPipeline(t, forge, PipelineConfig{})

	source, err := pipeline.Source(context.Background(), testSite(), "https://jane.example/2026/03/04/hello-world/")
	if err != nil {
		t.Fatalf("Source: %v", err)
	}

	want := map[string]any{
		"type": []any{"h-entry"},
		"properties": map[string]any{
			"name":     []any{"Hello World"},
			"category": []any{"cats"},
			"content":  []any{"Body text."},
		},
	}
	if !reflect.DeepEqual(source, want) {
		t.Errorf("Source = %#v, want %#v", source, want)
	}
}

func TestSourceUnknownPost(t *testing.T) {
	forge := newFakeForge()
	defer forge.Close()

	pipeline := testPipeline(t, forge, PipelineConfig{})

	_, err := pipeline.Source(context.Background(), testSite(), "https://jane.example/2026/03/04/never-written/")
	mpErr, ok := micropub.AsError(err)
	if !ok || mpErr.Kind != micropub.KindNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}
}
