// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/forgewrite/forgewrite/lib/config"
	"github.com/forgewrite/forgewrite/lib/github"
	"github.com/forgewrite/forgewrite/lib/micropub"
	"github.com/forgewrite/forgewrite/lib/render"
)

// Source locates an existing post by its published URL and rebuilds
// its canonical structured-JSON representation from the committed
// document.
//
// The URL's last path segment is the post's slug; it is matched
// fuzzily against the posts directory: any document whose filename
// (past the date stem) equals the slug matches exactly, otherwise any
// filename containing the slug matches. Ambiguity resolves to the
// lexicographically last candidate, which for date-stemmed filenames
// is the most recent.
func (pipeline *Pipeline) Source(ctx context.Context, site config.SiteConfig, postURL string) (map[string]any, error) {
	slug := slugSegment(postURL)
	if slug == "" {
		return nil, micropub.InvalidRequest("url parameter carries no post slug")
	}

	client := pipeline.commits.github
	ref, err := client.GetRef(ctx, site.Owner(), site.RepoName(), "heads/"+site.Branch)
	if err != nil {
		return nil, fmt.Errorf("publish: resolving head for source query: %w", err)
	}
	headCommit, err := client.GetCommit(ctx, site.Owner(), site.RepoName(), ref.Object.SHA)
	if err != nil {
		return nil, fmt.Errorf("publish: resolving tree for source query: %w", err)
	}
	tree, err := client.GetTree(ctx, site.Owner(), site.RepoName(), headCommit.Tree.SHA, true)
	if err != nil {
		return nil, fmt.Errorf("publish: listing posts for source query: %w", err)
	}

	blobSHA := matchPost(tree.Entries, site.PostsDir, slug)
	if blobSHA == "" {
		return nil, micropub.NotFound(fmt.Sprintf("no post matching %q", slug))
	}

	blob, err := client.GetBlob(ctx, site.Owner(), site.RepoName(), blobSHA)
	if err != nil {
		return nil, fmt.Errorf("publish: fetching post for source query: %w", err)
	}
	document, err := decodeBlob(blob.Content, blob.Encoding)
	if err != nil {
		return nil, err
	}

	frontMatter, body, ok := render.SplitFrontMatter(string(document))
	if !ok {
		return nil, fmt.Errorf("publish: post document has no front matter block")
	}
	fields, err := render.ParseFrontMatter(frontMatter)
	if err != nil {
		return nil, err
	}
	return render.ToMicropub(fields, body), nil
}

// slugSegment extracts the last non-empty path segment of a post URL.
func slugSegment(postURL string) string {
	parsed, err := url.Parse(postURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for index := len(segments) - 1; index >= 0; index-- {
		if segments[index] != "" {
			return segments[index]
		}
	}
	return ""
}

// matchPost finds the blob SHA of the document matching slug under
// postsDir. Exact filename matches (date stem stripped) beat
// substring matches; within a class, the lexicographically last path
// wins.
func matchPost(entries []github.TreeEntry, postsDir, slug string) string {
	var exact, fuzzy []github.TreeEntry
	prefix := strings.TrimSuffix(postsDir, "/") + "/"
	for _, entry := range entries {
		if entry.Type != "blob" || !strings.HasPrefix(entry.Path, prefix) || !strings.HasSuffix(entry.Path, ".md") {
			continue
		}
		filename := strings.TrimSuffix(entry.Path[len(prefix):], ".md")
		if stemmed := stripDateStem(filename); stemmed == slug {
			exact = append(exact, entry)
		} else if strings.Contains(filename, slug) {
			fuzzy = append(fuzzy, entry)
		}
	}

	candidates := exact
	if len(candidates) == 0 {
		candidates = fuzzy
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Path < candidates[j].Path })
	return candidates[len(candidates)-1].SHA
}

// stripDateStem removes a leading YYYY-MM-DD- stem from a post
// filename.
func stripDateStem(filename string) string {
	if len(filename) > 11 && filename[4] == '-' && filename[7] == '-' && filename[10] == '-' {
		return filename[11:]
	}
	return filename
}

// decodeBlob decodes blob content per its declared encoding.
func decodeBlob(content, encoding string) ([]byte, error) {
	switch encoding {
	case "base64":
		// GitHub wraps base64 blob content in newlines.
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("publish: decoding blob content: %w", err)
		}
		return decoded, nil
	case "utf-8", "":
		return []byte(content), nil
	default:
		return nil, fmt.Errorf("publish: unsupported blob encoding %q", encoding)
	}
}
