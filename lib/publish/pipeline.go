// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/forgewrite/forgewrite/lib/config"
	"github.com/forgewrite/forgewrite/lib/media"
	"github.com/forgewrite/forgewrite/lib/micropub"
	"github.com/forgewrite/forgewrite/lib/permalink"
	"github.com/forgewrite/forgewrite/lib/render"
	"github.com/forgewrite/forgewrite/lib/syndicate"
)

// Result is the outcome of a successful publish.
type Result struct {
	// URL is the new post's permalink.
	URL string

	// CommitSHA is the publish commit.
	CommitSHA string

	// Syndications maps destination uid to the syndicated copy's
	// URL, for the destinations that succeeded. Failed destinations
	// are logged and absent.
	Syndications map[string]string
}

// PipelineConfig holds the collaborators a Pipeline orchestrates.
type PipelineConfig struct {
	// Normalizer converts wire encodings to canonical posts.
	// Required.
	Normalizer *micropub.Normalizer

	// Fetcher resolves photo references. Required.
	Fetcher *media.Fetcher

	// Renderer renders classified posts to documents. Required.
	Renderer *render.Renderer

	// Commits builds the publish commits. Required.
	Commits *CommitBuilder

	// Syndicator posts to relay destinations. Optional; without it
	// syndication requests are ignored.
	Syndicator *syndicate.Client

	// Destinations are the configured syndication targets.
	Destinations []syndicate.Destination

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Pipeline runs the publishing sequence for one site at a time:
// normalize, classify, derive slug and permalink, fetch media, render,
// commit, then syndicate best-effort.
type Pipeline struct {
	normalizer   *micropub.Normalizer
	fetcher      *media.Fetcher
	renderer     *render.Renderer
	commits      *CommitBuilder
	syndicator   *syndicate.Client
	destinations map[string]syndicate.Destination
	logger       *slog.Logger
}

// NewPipeline creates a Pipeline from the given configuration.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Normalizer == nil || cfg.Fetcher == nil || cfg.Renderer == nil || cfg.Commits == nil {
		return nil, fmt.Errorf("publish: Normalizer, Fetcher, Renderer, and Commits are all required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	destinations := make(map[string]syndicate.Destination, len(cfg.Destinations))
	for _, destination := range cfg.Destinations {
		destinations[destination.UID] = destination
	}
	return &Pipeline{
		normalizer:   cfg.Normalizer,
		fetcher:      cfg.Fetcher,
		renderer:     cfg.Renderer,
		commits:      cfg.Commits,
		syndicator:   cfg.Syndicator,
		destinations: destinations,
		logger:       logger,
	}, nil
}

// PublishJSON publishes a structured-JSON request body.
func (pipeline *Pipeline) PublishJSON(ctx context.Context, site config.SiteConfig, body []byte) (*Result, error) {
	post, err := pipeline.normalizer.JSON(body)
	if err != nil {
		return nil, err
	}
	return pipeline.publish(ctx, site, post)
}

// PublishForm publishes a form-encoded request.
func (pipeline *Pipeline) PublishForm(ctx context.Context, site config.SiteConfig, values url.Values) (*Result, error) {
	post, err := pipeline.normalizer.Form(values)
	if err != nil {
		return nil, err
	}
	return pipeline.publish(ctx, site, post)
}

// publish runs the pipeline for a normalized post.
func (pipeline *Pipeline) publish(ctx context.Context, site config.SiteConfig, post *micropub.Post) (*Result, error) {
	classified := micropub.Classify(post)
	slug := permalink.Slug(post.RequestedSlug(), post.String("name"), post.Published)

	template := site.PermalinkTemplate
	if style := post.String("permalink_style"); style != "" {
		template = style
	}
	path := permalink.Expand(template, post.Published, slug, post.Strings("category"))
	postURL := permalink.Join(site.URL, path)

	// Media resolution rewrites the photo property so the rendered
	// document references hosted copies (or, for failed downloads,
	// the original URLs). The file set accumulates here and is sealed
	// once handed to the commit builder.
	var files FileSet
	if photos := post.Photos(); len(photos) > 0 {
		items := pipeline.fetcher.Fetch(ctx, media.Target{
			SiteURL:      site.URL,
			ImageDir:     site.ImageDir,
			AbsoluteURLs: site.AbsoluteImageURLs,
		}, photos)

		rewritten := make([]any, len(items))
		for index, item := range items {
			photo := map[string]any{"value": item.PublicURL}
			if item.Alt != "" {
				photo["alt"] = item.Alt
			}
			rewritten[index] = photo
			if item.Hosted() {
				files.Add(item.UploadPath, item.Content)
			}
		}
		post.Set("photo", rewritten)
	}

	document, err := pipeline.renderer.Render(classified, post)
	if err != nil {
		return nil, err
	}
	documentPath := fmt.Sprintf("%s/%s-%s.md", site.PostsDir, post.Published.Format("2006-01-02"), slug)
	files.Add(documentPath, document)

	commitSHA, err := pipeline.commits.Commit(ctx, CommitRequest{
		Owner:   site.Owner(),
		Repo:    site.RepoName(),
		Branch:  site.Branch,
		Message: fmt.Sprintf("New %s: %s", classified, slug),
		Files:   files,
	})
	if err != nil {
		return nil, err
	}

	pipeline.logger.Info("published",
		"type", string(classified),
		"slug", slug,
		"url", postURL,
		"commit", commitSHA,
		"files", len(files),
	)

	return &Result{
		URL:          postURL,
		CommitSHA:    commitSHA,
		Syndications: pipeline.syndicate(ctx, post, postURL),
	}, nil
}

// syndicate posts the published entry to each requested destination.
// Best-effort by contract: unknown uids and relay failures are logged
// and skipped, never failing the publish they follow.
func (pipeline *Pipeline) syndicate(ctx context.Context, post *micropub.Post, postURL string) map[string]string {
	targets := post.SyndicationTargets()
	if len(targets) == 0 || pipeline.syndicator == nil {
		return nil
	}

	results := make(map[string]string)
	for _, uid := range targets {
		destination, known := pipeline.destinations[uid]
		if !known {
			pipeline.logger.Warn("unknown syndication target, skipping", "uid", uid)
			continue
		}
		copyURL, err := pipeline.syndicator.Syndicate(ctx, destination, syndicate.Entry{
			URL:     postURL,
			Name:    post.String("name"),
			Content: post.String("content"),
		})
		if err != nil {
			pipeline.logger.Warn("syndication failed, continuing", "uid", uid, "error", err)
			continue
		}
		results[uid] = copyURL
	}
	if len(results) == 0 {
		return nil
	}
	return results
}
