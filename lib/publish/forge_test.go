// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/forgewrite/forgewrite/lib/clock"
	"github.com/forgewrite/forgewrite/lib/github"
)

// fakeForge is an in-memory GitHub git data API for owner "jane",
// repo "blog". It serves the endpoints the commit builder and source
// query touch, tracks created objects, and can be programmed to
// reject ref updates to simulate concurrent publishes.
type fakeForge struct {
	mu sync.Mutex

	repoMissing bool

	headSHA     string
	commitTrees map[string]string // commit SHA -> tree SHA

	blobs       map[string]string // blob SHA -> base64 content
	trees       map[string]github.CreateTreeRequest
	commits     map[string]github.CreateCommitRequest
	treeEntries []github.TreeEntry // recursive listing of the base tree

	// conflicts is how many ref updates to reject before accepting.
	// Each rejection moves the head, as a winning concurrent publish
	// would.
	conflicts int

	counter int
	server  *httptest.Server
}

func newFakeForge() *fakeForge {
	forge := &fakeForge{
		headSHA:     "head-1",
		commitTrees: map[string]string{"head-1": "base-tree-1"},
		blobs:       make(map[string]string),
		trees:       make(map[string]github.CreateTreeRequest),
		commits:     make(map[string]github.CreateCommitRequest),
	}
	forge.server = httptest.NewTLSServer(http.HandlerFunc(forge.handle))
	return forge
}

func (forge *fakeForge) Close() { forge.server.Close() }

// client returns a github.Client aimed at the fake.
func (forge *fakeForge) client(t *testing.T) *github.Client {
	t.Helper()
	client, err := github.NewClient(github.Config{
		BaseURL:    forge.server.URL,
		Token:      "test-token",
		HTTPClient: forge.server.Client(),
		Clock:      clock.Real(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func (forge *fakeForge) nextSHA(kind string) string {
	forge.counter++
	return fmt.Sprintf("%s-%d", kind, forge.counter)
}

func (forge *fakeForge) handle(writer http.ResponseWriter, request *http.Request) {
	forge.mu.Lock()
	defer forge.mu.Unlock()

	path := request.URL.Path
	writer.Header().Set("Content-Type", "application/json")

	switch {
	case path == "/repos/jane/blog" && request.Method == http.MethodGet:
		if forge.repoMissing {
			writer.WriteHeader(http.StatusNotFound)
			json.NewEncoder(writer).Encode(map[string]string{"message": "Not Found"})
			return
		}
		json.NewEncoder(writer).Encode(github.Repository{ID: 1, FullName: "jane/blog", DefaultBranch: "master"})

	case path == "/repos/jane/blog/git/ref/heads/master" && request.Method == http.MethodGet:
		json.NewEncoder(writer).Encode(github.Ref{
			Ref:    "refs/heads/master",
			Object: github.RefObject{SHA: forge.headSHA, Type: "commit"},
		})

	case strings.HasPrefix(path, "/repos/jane/blog/git/commits/") && request.Method == http.MethodGet:
		sha := strings.TrimPrefix(path, "/repos/jane/blog/git/commits/")
		treeSHA, known := forge.commitTrees[sha]
		if !known {
			writer.WriteHeader(http.StatusNotFound)
			json.NewEncoder(writer).Encode(map[string]string{"message": "Not Found"})
			return
		}
		json.NewEncoder(writer).Encode(github.Commit{SHA: sha, Tree: github.CommitTree{SHA: treeSHA}})

	case path == "/repos/jane/blog/git/blobs" && request.Method == http.MethodPost:
		var blobRequest github.CreateBlobRequest
		json.NewDecoder(request.Body).Decode(&blobRequest)
		sha := forge.nextSHA("blob")
		forge.blobs[sha] = blobRequest.Content
		writer.WriteHeader(http.StatusCreated)
		json.NewEncoder(writer).Encode(github.BlobRef{SHA: sha})

	case strings.HasPrefix(path, "/repos/jane/blog/git/blobs/") && request.Method == http.MethodGet:
		sha := strings.TrimPrefix(path, "/repos/jane/blog/git/blobs/")
		content, known := forge.blobs[sha]
		if !known {
			writer.WriteHeader(http.StatusNotFound)
			json.NewEncoder(writer).Encode(map[string]string{"message": "Not Found"})
			return
		}
		json.NewEncoder(writer).Encode(github.Blob{SHA: sha, Content: content, Encoding: "base64"})

	case path == "/repos/jane/blog/git/trees" && request.Method == http.MethodPost:
		var treeRequest github.CreateTreeRequest
		json.NewDecoder(request.Body).Decode(&treeRequest)
		sha := forge.nextSHA("tree")
		forge.trees[sha] = treeRequest
		writer.WriteHeader(http.StatusCreated)
		json.NewEncoder(writer).Encode(github.Tree{SHA: sha})

	case strings.HasPrefix(path, "/repos/jane/blog/git/trees/") && request.Method == http.MethodGet:
		sha := strings.TrimPrefix(path, "/repos/jane/blog/git/trees/")
		json.NewEncoder(writer).Encode(github.Tree{SHA: sha, Entries: forge.treeEntries})

	case path == "/repos/jane/blog/git/commits" && request.Method == http.MethodPost:
		var commitRequest github.CreateCommitRequest
		json.NewDecoder(request.Body).Decode(&commitRequest)
		sha := forge.nextSHA("commit")
		forge.commits[sha] = commitRequest
		forge.commitTrees[sha] = commitRequest.Tree
		writer.WriteHeader(http.StatusCreated)
		json.NewEncoder(writer).Encode(github.Commit{SHA: sha, Tree: github.CommitTree{SHA: commitRequest.Tree}})

	case path == "/repos/jane/blog/git/refs/heads/master" && request.Method == http.MethodPatch:
		if forge.conflicts > 0 {
			forge.conflicts--
			// A concurrent publish won: move the head.
			forge.headSHA = forge.nextSHA("stolen-head")
			forge.commitTrees[forge.headSHA] = forge.nextSHA("stolen-tree")
			writer.WriteHeader(http.StatusConflict)
			json.NewEncoder(writer).Encode(map[string]string{"message": "Update is not a fast forward"})
			return
		}
		var refRequest struct {
			SHA string `json:"sha"`
		}
		json.NewDecoder(request.Body).Decode(&refRequest)
		forge.headSHA = refRequest.SHA
		json.NewEncoder(writer).Encode(github.Ref{
			Ref:    "refs/heads/master",
			Object: github.RefObject{SHA: refRequest.SHA, Type: "commit"},
		})

	default:
		writer.WriteHeader(http.StatusNotFound)
		json.NewEncoder(writer).Encode(map[string]string{"message": "unhandled " + request.Method + " " + path})
	}
}
