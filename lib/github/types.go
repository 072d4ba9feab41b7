// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package github

// Repository is the subset of GitHub repository metadata the
// publisher needs: identity plus the default branch for sites that do
// not pin one.
type Repository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"` // "owner/name"
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
}

// Ref is a git reference (branch or tag).
type Ref struct {
	Ref    string    `json:"ref"` // "refs/heads/main"
	Object RefObject `json:"object"`
}

// RefObject is the object a ref points to.
type RefObject struct {
	SHA  string `json:"sha"`
	Type string `json:"type"` // "commit"
}

// Commit is a git commit object.
type Commit struct {
	SHA     string       `json:"sha"`
	Message string       `json:"message"`
	Tree    CommitTree   `json:"tree"`
	Parents []CommitRef  `json:"parents"`
	HTMLURL string       `json:"html_url"`
	Author  CommitAuthor `json:"author"`
}

// CommitTree is a reference to the tree in a commit.
type CommitTree struct {
	SHA string `json:"sha"`
}

// CommitRef is a reference to a parent commit.
type CommitRef struct {
	SHA string `json:"sha"`
}

// CommitAuthor is the author/committer metadata on a commit.
type CommitAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

// Tree is a git tree object.
type Tree struct {
	SHA       string      `json:"sha"`
	Truncated bool        `json:"truncated"`
	Entries   []TreeEntry `json:"tree"`
}

// TreeEntry is a single entry in a git tree.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"` // "100644", "100755", "120000", "160000", "040000"
	Type string `json:"type"` // "blob", "tree", "commit"
	SHA  string `json:"sha"`
	Size int64  `json:"size,omitempty"`
}

// Blob is a git blob object. Content is encoded per Encoding
// ("base64" or "utf-8").
type Blob struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
}

// BlobRef is the reference returned by blob creation.
type BlobRef struct {
	SHA string `json:"sha"`
	URL string `json:"url"`
}
