// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the publishing server.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// Listen is the address the publishing API binds to.
	Listen string `yaml:"listen"`

	// MetricsListen is the address the Prometheus metrics endpoint
	// binds to, kept on a separate listener so metrics are never
	// exposed on the public surface.
	MetricsListen string `yaml:"metrics_listen"`

	// LogLevel is the slog level: debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// Auth configures token verification.
	Auth AuthConfig `yaml:"auth"`

	// GitHub configures the repository API client.
	GitHub GitHubConfig `yaml:"github"`

	// Media configures photo downloading.
	Media MediaConfig `yaml:"media"`

	// Sites maps site identifiers (the :site path parameter) to
	// publishing targets.
	Sites map[string]SiteConfig `yaml:"sites"`

	// Syndication lists the configured syndication destinations.
	Syndication []DestinationConfig `yaml:"syndication"`
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	// TokenEndpoint is the IndieAuth token introspection URL.
	TokenEndpoint string `yaml:"token_endpoint"`

	// DisableVerification skips token verification entirely. This is
	// a trust boundary: every request is treated as authorized. It is
	// only honored in the development environment — Validate refuses
	// it anywhere else.
	DisableVerification bool `yaml:"disable_verification"`
}

// GitHubConfig configures the repository API client. Exactly one
// authentication mode must be set: a token (inline or via file), or
// the App triple.
type GitHubConfig struct {
	// BaseURL overrides the API root, for GitHub Enterprise. Defaults
	// to https://api.github.com.
	BaseURL string `yaml:"base_url"`

	// Token is a personal access token. Prefer TokenFile so the
	// secret stays out of the config file.
	Token string `yaml:"token"`

	// TokenFile is a path to a file holding the token.
	TokenFile string `yaml:"token_file"`

	// AppID, PrivateKeyFile, and InstallationID select GitHub App
	// installation authentication instead of a token.
	AppID          int64  `yaml:"app_id"`
	PrivateKeyFile string `yaml:"private_key_file"`
	InstallationID int64  `yaml:"installation_id"`
}

// MediaConfig configures photo downloading.
type MediaConfig struct {
	// DownloadEnabled turns photo downloading on. When false, photos
	// are referenced at their source URLs and nothing is committed
	// for them.
	DownloadEnabled bool `yaml:"download_enabled"`

	// Timeout bounds each photo download. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`
}

// SiteConfig is one publishing target.
type SiteConfig struct {
	// URL is the site's public base URL.
	URL string `yaml:"url"`

	// Repo is the GitHub repository in "owner/name" form.
	Repo string `yaml:"repo"`

	// Branch is the publishing branch. Defaults to "master".
	Branch string `yaml:"branch"`

	// PostsDir is the repository directory receiving rendered
	// documents. Defaults to "_posts".
	PostsDir string `yaml:"posts_dir"`

	// ImageDir is the repository directory receiving downloaded
	// photos. Defaults to "images".
	ImageDir string `yaml:"image_dir"`

	// PermalinkTemplate is the Jekyll-style permalink template.
	// Defaults to "/:categories/:year/:month/:day/:title/". A
	// per-post permalink_style property overrides it.
	PermalinkTemplate string `yaml:"permalink_template"`

	// AbsoluteImageURLs selects full site-URL-prefixed image
	// references in rendered documents instead of root-relative
	// paths.
	AbsoluteImageURLs bool `yaml:"absolute_image_urls"`
}

// Owner returns the repository owner half of Repo.
func (site SiteConfig) Owner() string {
	owner, _, _ := strings.Cut(site.Repo, "/")
	return owner
}

// RepoName returns the repository name half of Repo.
func (site SiteConfig) RepoName() string {
	_, name, _ := strings.Cut(site.Repo, "/")
	return name
}

// DestinationConfig is one syndication destination.
type DestinationConfig struct {
	// UID is the stable identifier clients echo back in
	// syndicate-to.
	UID string `yaml:"uid"`

	// Name is the human-readable destination name advertised by the
	// syndicate-to query.
	Name string `yaml:"name"`

	// Endpoint is the relay URL posts are sent to.
	Endpoint string `yaml:"endpoint"`

	// Secret is the bearer token for the relay. Never advertised.
	Secret string `yaml:"secret"`
}

// Default returns the default configuration, used as the base before
// the config file is merged in. The file is still required — these
// exist so optional fields have sensible values, not as a substitute
// for configuration.
func Default() *Config {
	return &Config{
		Environment:   Development,
		Listen:        "127.0.0.1:8080",
		MetricsListen: "127.0.0.1:9090",
		LogLevel:      "info",
		Media: MediaConfig{
			DownloadEnabled: true,
			Timeout:         30 * time.Second,
		},
	}
}

// Load loads configuration from the FORGEWRITE_CONFIG environment
// variable. This is the only way to load configuration without an
// explicit path; if the variable is not set, Load fails rather than
// guessing.
func Load() (*Config, error) {
	configPath := os.Getenv("FORGEWRITE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("FORGEWRITE_CONFIG environment variable not set; " +
			"set it to the path of your forgewrite.yaml config file, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies
// per-site defaults, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.applySiteDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// applySiteDefaults fills optional per-site fields.
func (c *Config) applySiteDefaults() {
	for name, site := range c.Sites {
		if site.Branch == "" {
			site.Branch = "master"
		}
		if site.PostsDir == "" {
			site.PostsDir = "_posts"
		}
		if site.ImageDir == "" {
			site.ImageDir = "images"
		}
		if site.PermalinkTemplate == "" {
			site.PermalinkTemplate = "/:categories/:year/:month/:day/:title/"
		}
		c.Sites[name] = site
	}
}

// Validate checks the configuration for consistency, joining every
// failure so a broken file is reported in one pass.
func (c *Config) Validate() error {
	var problems []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		problems = append(problems, fmt.Errorf("environment must be development, staging, or production (got %q)", c.Environment))
	}

	if c.Auth.DisableVerification && c.Environment != Development {
		problems = append(problems, fmt.Errorf("auth.disable_verification is only honored in the development environment"))
	}
	if !c.Auth.DisableVerification && c.Auth.TokenEndpoint == "" {
		problems = append(problems, fmt.Errorf("auth.token_endpoint is required"))
	}

	hasToken := c.GitHub.Token != "" || c.GitHub.TokenFile != ""
	hasApp := c.GitHub.AppID != 0 || c.GitHub.PrivateKeyFile != "" || c.GitHub.InstallationID != 0
	if hasToken && hasApp {
		problems = append(problems, fmt.Errorf("github: configure either a token or App auth, not both"))
	}
	if !hasToken && !hasApp {
		problems = append(problems, fmt.Errorf("github: no authentication configured (set token, token_file, or the App fields)"))
	}
	if c.GitHub.Token != "" && c.GitHub.TokenFile != "" {
		problems = append(problems, fmt.Errorf("github: token and token_file are mutually exclusive"))
	}

	if len(c.Sites) == 0 {
		problems = append(problems, fmt.Errorf("at least one site is required"))
	}
	for name, site := range c.Sites {
		if site.URL == "" {
			problems = append(problems, fmt.Errorf("site %s: url is required", name))
		}
		if owner, repo, ok := strings.Cut(site.Repo, "/"); !ok || owner == "" || repo == "" {
			problems = append(problems, fmt.Errorf("site %s: repo must be owner/name (got %q)", name, site.Repo))
		}
	}

	seen := make(map[string]bool)
	for index, destination := range c.Syndication {
		if destination.UID == "" {
			problems = append(problems, fmt.Errorf("syndication[%d]: uid is required", index))
			continue
		}
		if seen[destination.UID] {
			problems = append(problems, fmt.Errorf("syndication: duplicate uid %q", destination.UID))
		}
		seen[destination.UID] = true
		if destination.Endpoint == "" {
			problems = append(problems, fmt.Errorf("syndication %s: endpoint is required", destination.UID))
		}
	}

	return errors.Join(problems...)
}

// ResolveGitHubToken returns the configured token, reading TokenFile
// when set. Returns "" when App auth is configured instead.
func (c *Config) ResolveGitHubToken() (string, error) {
	if c.GitHub.Token != "" {
		return c.GitHub.Token, nil
	}
	if c.GitHub.TokenFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.GitHub.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading github token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("github token file %s is empty", c.GitHub.TokenFile)
	}
	return token, nil
}
