// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package micropub

// Type is a classified content type. The set is closed: entry posts
// classify into one of the named variants below with TypeDumpAll as
// the defined fallback, and a non-entry vocabulary passes through as
// its own type.
type Type string

const (
	// TypeArticle is an entry with a name (title).
	TypeArticle Type = "article"
	// TypeReply is an entry responding to another URL.
	TypeReply Type = "reply"
	// TypeRepost is an entry republishing another URL.
	TypeRepost Type = "repost"
	// TypeBookmark is an entry bookmarking another URL.
	TypeBookmark Type = "bookmark"
	// TypeNote is a bare content entry with no title.
	TypeNote Type = "note"
	// TypeDumpAll is the fallback for entries matching no rule; its
	// template renders every present field.
	TypeDumpAll Type = "dump_all"
)

// classificationRules is the fixed priority order: the first rule
// whose field is present wins. A post with both name and content is an
// article, never a note.
var classificationRules = []struct {
	field  string
	result Type
}{
	{"name", TypeArticle},
	{"in_reply_to", TypeReply},
	{"repost_of", TypeRepost},
	{"bookmark_of", TypeBookmark},
	{"content", TypeNote},
}

// Classify determines the post's content type. Deterministic; called
// exactly once per post by the pipeline. Non-entry vocabularies
// (h=event, h=review, ...) pass through unclassified as their own
// type.
func Classify(post *Post) Type {
	if post.H != "entry" {
		return Type(post.H)
	}
	for _, rule := range classificationRules {
		if post.Has(rule.field) {
			return rule.result
		}
	}
	return TypeDumpAll
}
