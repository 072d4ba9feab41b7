// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

// Package indieauth verifies bearer tokens against an IndieAuth token
// introspection endpoint.
package indieauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/forgewrite/forgewrite/lib/httpx"
	"github.com/forgewrite/forgewrite/lib/micropub"
)

// Claims is the result of token introspection.
type Claims struct {
	// Me is the subject identity URL the token was issued for.
	Me string

	// Scope is the space-separated scope list granted to the token.
	Scope string

	// ClientID identifies the client the token was issued to.
	ClientID string
}

// Config holds configuration for creating a Verifier.
type Config struct {
	// Endpoint is the token introspection URL. Required.
	Endpoint string

	// HTTPClient is used for the introspection call. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Verifier checks bearer tokens with the introspection endpoint and
// enforces presence of the required claims.
type Verifier struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewVerifier creates a Verifier from the given configuration.
func NewVerifier(config Config) (*Verifier, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("indieauth: Endpoint is required")
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		endpoint:   config.Endpoint,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Verify introspects the bearer token and returns its claims. A
// non-2xx introspection response means the token is not valid
// (unauthorized); a 2xx response missing the scope or me claim means
// the token grants too little (insufficient_scope). Transport
// failures propagate as generic errors.
func (verifier *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, verifier.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("indieauth: creating introspection request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Accept", "application/x-www-form-urlencoded")

	response, err := verifier.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("indieauth: introspection call: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		verifier.logger.Info("token introspection rejected",
			"status", response.StatusCode,
		)
		return nil, micropub.Unauthorized("token endpoint rejected the credential")
	}

	body, err := httpx.ReadLimited(response.Body, httpx.MaxAPIResponse)
	if err != nil {
		return nil, fmt.Errorf("indieauth: reading introspection response: %w", err)
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("indieauth: parsing introspection response: %w", err)
	}

	claims := &Claims{
		Me:       values.Get("me"),
		Scope:    values.Get("scope"),
		ClientID: values.Get("client_id"),
	}
	if claims.Scope == "" || claims.Me == "" {
		return nil, micropub.InsufficientScope("token is missing the scope or me claim")
	}
	return claims, nil
}
