// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgewrite/forgewrite/lib/clock"
	"github.com/forgewrite/forgewrite/lib/github"
	"github.com/forgewrite/forgewrite/lib/micropub"
)

// fileMode is the git mode for every committed file: regular,
// non-executable.
const fileMode = "100644"

// maxCommitAttempts bounds ref-update conflict retries. Each retry
// re-reads the base tree, so the loser of a concurrent publish lands
// on top of the winner rather than overwriting it.
const maxCommitAttempts = 3

// File is one entry of a commit file set: a repository path and
// base64-encoded content.
type File struct {
	Path    string
	Content string
}

// FileSet is the complete set of files for one publish commit: the
// rendered document plus any successfully fetched media. It
// accumulates before the commit builder runs and must not be mutated
// afterward.
type FileSet []File

// Add appends a file, encoding its content.
func (files *FileSet) Add(path string, content []byte) {
	*files = append(*files, File{
		Path:    path,
		Content: base64.StdEncoding.EncodeToString(content),
	})
}

// CommitRequest describes one publish commit.
type CommitRequest struct {
	// Owner and Repo identify the repository.
	Owner string
	Repo  string

	// Branch is the publishing branch (the ref "heads/<Branch>").
	Branch string

	// Message is the commit message.
	Message string

	// Files is the complete file set. Must be non-empty.
	Files FileSet
}

// CommitBuilder constructs multi-file commits against a repository's
// publishing ref.
type CommitBuilder struct {
	github *github.Client
	clock  clock.Clock
	logger *slog.Logger
}

// NewCommitBuilder creates a CommitBuilder over the given API client.
func NewCommitBuilder(client *github.Client, clk clock.Clock, logger *slog.Logger) *CommitBuilder {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommitBuilder{github: client, clock: clk, logger: logger}
}

// Commit performs the five-step sequence: verify the repository,
// resolve the head commit and base tree, create a blob per file,
// create the new tree and commit, and update the ref. Returns the new
// commit SHA.
//
// On ref-update conflict (another publish won the race) the sequence
// restarts from the head resolution with a fresh base tree, up to
// maxCommitAttempts times. All other failures propagate immediately.
func (builder *CommitBuilder) Commit(ctx context.Context, request CommitRequest) (string, error) {
	if len(request.Files) == 0 {
		return "", fmt.Errorf("publish: commit request has no files")
	}

	// Step 1: the repository must exist. A 404 is the client-visible
	// invalid_repo condition, everything else is a plain failure.
	if _, err := builder.github.GetRepository(ctx, request.Owner, request.Repo); err != nil {
		if github.IsNotFound(err) {
			return "", micropub.InvalidRepo(fmt.Sprintf("repository %s/%s not found", request.Owner, request.Repo))
		}
		return "", fmt.Errorf("publish: verifying repository: %w", err)
	}

	ref := "heads/" + request.Branch
	var lastErr error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		sha, err := builder.attempt(ctx, request, ref)
		if err == nil {
			return sha, nil
		}
		if !isRefConflict(err) {
			return "", err
		}

		lastErr = err
		if attempt == maxCommitAttempts {
			break
		}
		builder.logger.Info("ref update conflict, retrying from fresh base tree",
			"repo", request.Owner+"/"+request.Repo,
			"ref", ref,
			"attempt", attempt,
		)
		select {
		case <-builder.clock.After(time.Duration(attempt) * 500 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("publish: ref update conflict persisted after %d attempts: %w", maxCommitAttempts, lastErr)
}

// attempt runs steps 2-5 once against the current head.
func (builder *CommitBuilder) attempt(ctx context.Context, request CommitRequest, ref string) (string, error) {
	// Step 2: head commit and base tree.
	head, err := builder.github.GetRef(ctx, request.Owner, request.Repo, ref)
	if err != nil {
		return "", fmt.Errorf("publish: resolving head: %w", err)
	}
	headCommit, err := builder.github.GetCommit(ctx, request.Owner, request.Repo, head.Object.SHA)
	if err != nil {
		return "", fmt.Errorf("publish: resolving base tree: %w", err)
	}

	// Step 3: one blob per file.
	entries := make([]github.CreateTreeEntry, 0, len(request.Files))
	for _, file := range request.Files {
		blob, err := builder.github.CreateBlob(ctx, request.Owner, request.Repo, github.CreateBlobRequest{
			Content:  file.Content,
			Encoding: "base64",
		})
		if err != nil {
			return "", fmt.Errorf("publish: creating blob for %s: %w", file.Path, err)
		}
		sha := blob.SHA
		entries = append(entries, github.CreateTreeEntry{
			Path: file.Path,
			Mode: fileMode,
			Type: "blob",
			SHA:  &sha,
		})
	}

	// Step 4: new tree on top of the base tree.
	tree, err := builder.github.CreateTree(ctx, request.Owner, request.Repo, github.CreateTreeRequest{
		BaseTree: headCommit.Tree.SHA,
		Entries:  entries,
	})
	if err != nil {
		return "", fmt.Errorf("publish: creating tree: %w", err)
	}

	// Step 5: commit and ref update.
	commit, err := builder.github.CreateCommit(ctx, request.Owner, request.Repo, github.CreateCommitRequest{
		Message: request.Message,
		Tree:    tree.SHA,
		Parents: []string{head.Object.SHA},
	})
	if err != nil {
		return "", fmt.Errorf("publish: creating commit: %w", err)
	}
	if _, err := builder.github.UpdateRef(ctx, request.Owner, request.Repo, ref, commit.SHA, false); err != nil {
		return "", fmt.Errorf("publish: updating ref: %w", err)
	}
	return commit.SHA, nil
}

// isRefConflict reports whether err is a rejected non-fast-forward
// ref update. GitHub answers 409 for stale updates and 422 when the
// update fails fast-forward validation.
func isRefConflict(err error) bool {
	return github.IsConflict(err) || github.IsValidationFailed(err)
}
