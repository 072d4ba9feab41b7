// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the publishing
// server.
//
// Configuration is loaded from a single YAML file specified by:
//   - FORGEWRITE_CONFIG environment variable, or
//   - --config flag passed to the server binary
//
// There are no fallbacks, discovery paths, or environment variable
// overrides of individual values. This ensures deterministic,
// auditable configuration with no hidden state.
package config
