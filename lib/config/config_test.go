// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes a config file into a test temp dir and returns
// its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forgewrite.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validConfig = `
environment: development
listen: "127.0.0.1:8088"
auth:
  token_endpoint: https://tokens.indieauth.com/token
github:
  token: ghp_testtoken
media:
  download_enabled: true
  timeout: 10s
sites:
  blog:
    url: https://blog.example
    repo: jane/blog.example
syndication:
  - uid: news.example
    name: Example News
    endpoint: https://news.example/api/post
    secret: relay-secret
`

func TestLoadFile_Valid(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Listen != "127.0.0.1:8088" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Media.Timeout != 10*time.Second {
		t.Errorf("Media.Timeout = %v", cfg.Media.Timeout)
	}

	site := cfg.Sites["blog"]
	if site.Owner() != "jane" || site.RepoName() != "blog.example" {
		t.Errorf("repo halves = %q, %q", site.Owner(), site.RepoName())
	}
	// Per-site defaults applied.
	if site.Branch != "master" {
		t.Errorf("Branch default = %q", site.Branch)
	}
	if site.PostsDir != "_posts" || site.ImageDir != "images" {
		t.Errorf("dir defaults = %q, %q", site.PostsDir, site.ImageDir)
	}
	if site.PermalinkTemplate != "/:categories/:year/:month/:day/:title/" {
		t.Errorf("PermalinkTemplate default = %q", site.PermalinkTemplate)
	}

	if len(cfg.Syndication) != 1 || cfg.Syndication[0].UID != "news.example" {
		t.Errorf("Syndication = %+v", cfg.Syndication)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_RequiresEnvVar(t *testing.T) {
	t.Setenv("FORGEWRITE_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without FORGEWRITE_CONFIG")
	}
}

func TestValidate_JoinsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Environment = "chaos"
	cfg.Sites = map[string]SiteConfig{
		"broken": {URL: "", Repo: "no-slash"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	message := err.Error()
	for _, fragment := range []string{
		"environment must be",
		"token_endpoint is required",
		"no authentication configured",
		"url is required",
		"repo must be owner/name",
	} {
		if !strings.Contains(message, fragment) {
			t.Errorf("validation error missing %q:\n%s", fragment, message)
		}
	}
}

func TestValidate_DisableVerificationOutsideDevelopment(t *testing.T) {
	cfg := Default()
	cfg.Environment = Production
	cfg.Auth.DisableVerification = true
	cfg.GitHub.Token = "x"
	cfg.Sites = map[string]SiteConfig{"s": {URL: "https://s.example", Repo: "a/b"}}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "only honored in the development environment") {
		t.Fatalf("expected disable_verification refusal, got %v", err)
	}
}

func TestValidate_DuplicateSyndicationUID(t *testing.T) {
	cfg := Default()
	cfg.Auth.TokenEndpoint = "https://tokens.example/token"
	cfg.GitHub.Token = "x"
	cfg.Sites = map[string]SiteConfig{"s": {URL: "https://s.example", Repo: "a/b"}}
	cfg.Syndication = []DestinationConfig{
		{UID: "dup", Endpoint: "https://one.example"},
		{UID: "dup", Endpoint: "https://two.example"},
	}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate uid") {
		t.Fatalf("expected duplicate uid error, got %v", err)
	}
}

func TestValidate_GitHubAuthModes(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Auth.TokenEndpoint = "https://tokens.example/token"
		cfg.Sites = map[string]SiteConfig{"s": {URL: "https://s.example", Repo: "a/b"}}
		return cfg
	}

	cfg := base()
	cfg.GitHub.Token = "x"
	cfg.GitHub.AppID = 1
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "not both") {
		t.Errorf("expected mutual exclusion error, got %v", err)
	}

	cfg = base()
	cfg.GitHub.Token = "x"
	cfg.GitHub.TokenFile = "/path"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("expected token/token_file exclusion error, got %v", err)
	}

	cfg = base()
	cfg.GitHub.AppID = 1
	cfg.GitHub.PrivateKeyFile = "/key.pem"
	cfg.GitHub.InstallationID = 2
	if err := cfg.Validate(); err != nil {
		t.Errorf("App auth config should validate, got %v", err)
	}
}

func TestResolveGitHubToken_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("ghp_fromfile\n"), 0o600); err != nil {
		t.Fatalf("writing token file: %v", err)
	}

	cfg := Default()
	cfg.GitHub.TokenFile = path
	token, err := cfg.ResolveGitHubToken()
	if err != nil {
		t.Fatalf("ResolveGitHubToken: %v", err)
	}
	if token != "ghp_fromfile" {
		t.Errorf("token = %q", token)
	}
}
