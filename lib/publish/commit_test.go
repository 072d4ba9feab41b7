// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/forgewrite/forgewrite/lib/clock"
	"github.com/forgewrite/forgewrite/lib/micropub"
)

func TestCommitSingleFile(t *testing.T) {
	forge := newFakeForge()
	defer forge.Close()

	builder := NewCommitBuilder(forge.client(t), clock.Real(), nil)

	var files FileSet
	files.Add("_posts/2026-03-04-hello.md", []byte("---\nlayout: post\n---\n\nHello.\n"))

	sha, err := builder.Commit(context.Background(), CommitRequest{
		Owner:   "jane",
		Repo:    "blog",
		Branch:  "master",
		Message: "New article: hello",
		Files:   files,
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	forge.mu.Lock()
	defer forge.mu.Unlock()

	if forge.headSHA != sha {
		t.Errorf("head = %q, want the new commit %q", forge.headSHA, sha)
	}
	if len(forge.blobs) != 1 {
		t.Fatalf("created %d blobs, want 1", len(forge.blobs))
	}
	for _, content := range forge.blobs {
		decoded, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			t.Fatalf("blob content is not base64: %v", err)
		}
		if !strings.Contains(string(decoded), "Hello.") {
			t.Errorf("blob content = %q, want the document body", decoded)
		}
	}
	if len(forge.trees) != 1 {
		t.Fatalf("created %d trees, want 1", len(forge.trees))
	}
	for _, tree := range forge.trees {
		if tree.BaseTree != "base-tree-1" {
			t.Errorf("tree base = %q, want prior base tree", tree.BaseTree)
		}
		if len(tree.Entries) != 1 || tree.Entries[0].Path != "_posts/2026-03-04-hello.md" {
			t.Errorf("tree entries = %+v, want the single document entry", tree.Entries)
		}
		if tree.Entries[0].Mode != "100644" || tree.Entries[0].Type != "blob" {
			t.Errorf("tree entry mode/type = %q/%q, want regular blob", tree.Entries[0].Mode, tree.Entries[0].Type)
		}
	}
	commit, ok := forge.commits[sha]
	if !ok {
		t.Fatalf("forge has no commit %q", sha)
	}
	if commit.Message != "New article: hello" {
		t.Errorf("commit message = %q", commit.Message)
	}
	if len(commit.Parents) != 1 || commit.Parents[0] != "head-1" {
		t.Errorf("commit parents = %v, want the prior head", commit.Parents)
	}
}

func TestCommitMissingRepository(t *testing.T) {
	forge := newFakeForge()
	defer forge.Close()
	forge.repoMissing = true

	builder := NewCommitBuilder(forge.client(t), clock.Real(), nil)

	var files FileSet
	files.Add("_posts/2026-03-04-hello.md", []byte("x"))

	_, err := builder.Commit(context.Background(), CommitRequest{
		Owner: "jane", Repo: "blog", Branch: "master", Message: "m", Files: files,
	})
	mpErr, ok := micropub.AsError(err)
	if !ok || mpErr.Kind != micropub.KindInvalidRepo {
		t.Fatalf("err = %v, want invalid_repo", err)
	}
}

func TestCommitEmptyFileSet(t *testing.T) {
	forge := newFakeForge()
	defer forge.Close()

	builder := NewCommitBuilder(forge.client(t), clock.Real(), nil)
	if _, err := builder.Commit(context.Background(), CommitRequest{
		Owner: "jane", Repo: "blog", Branch: "master", Message: "m",
	}); err == nil {
		t.Fatal("expected error for empty file set")
	}
}

// A rejected ref update restarts the sequence against the moved head:
// the second attempt's tree builds on the winner's base tree and its
// commit parents the winner's head.
func TestCommitRetriesOnRefConflict(t *testing.T) {
	forge := newFakeForge()
	defer forge.Close()
	forge.conflicts = 1

	fakeClock := clock.Fake(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC))
	builder := NewCommitBuilder(forge.client(t), fakeClock, nil)

	var files FileSet
	files.Add("_posts/2026-03-04-hello.md", []byte("x"))

	type outcome struct {
		sha string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sha, err := builder.Commit(context.Background(), CommitRequest{
			Owner: "jane", Repo: "blog", Branch: "master", Message: "m", Files: files,
		})
		done <- outcome{sha, err}
	}()

	fakeClock.WaitForTimers(1)
	fakeClock.Advance(500 * time.Millisecond)

	result := <-done
	if result.err != nil {
		t.Fatalf("Commit: %v", result.err)
	}

	forge.mu.Lock()
	defer forge.mu.Unlock()

	if forge.headSHA != result.sha {
		t.Errorf("head = %q, want the retried commit %q", forge.headSHA, result.sha)
	}
	commit, ok := forge.commits[result.sha]
	if !ok {
		t.Fatalf("forge has no commit %q", result.sha)
	}
	if len(commit.Parents) != 1 || !strings.HasPrefix(commit.Parents[0], "stolen-head-") {
		t.Errorf("retried commit parents = %v, want the moved head", commit.Parents)
	}
	tree := forge.trees[commit.Tree]
	if !strings.HasPrefix(tree.BaseTree, "stolen-tree-") {
		t.Errorf("retried tree base = %q, want the moved head's tree", tree.BaseTree)
	}
}

func TestCommitGivesUpAfterPersistentConflict(t *testing.T) {
	forge := newFakeForge()
	defer forge.Close()
	forge.conflicts = 100

	fakeClock := clock.Fake(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC))
	builder := NewCommitBuilder(forge.client(t), fakeClock, nil)

	var files FileSet
	files.Add("_posts/2026-03-04-hello.md", []byte("x"))

	done := make(chan error, 1)
	go func() {
		_, err := builder.Commit(context.Background(), CommitRequest{
			Owner: "jane", Repo: "blog", Branch: "master", Message: "m", Files: files,
		})
		done <- err
	}()

	// Three attempts, two backoffs between them; the final failure
	// reports immediately instead of arming a third timer.
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(500 * time.Millisecond)
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(time.Second)

	err := <-done
	if err == nil {
		t.Fatal("expected persistent conflict to fail")
	}
	if !strings.Contains(err.Error(), "conflict persisted") {
		t.Errorf("err = %v, want conflict exhaustion", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, should not be a cancellation", err)
	}
	if pending := fakeClock.PendingCount(); pending != 0 {
		t.Errorf("%d timers still pending after exhaustion, want none", pending)
	}
}
