// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/forgewrite/forgewrite/lib/clock"
	"github.com/forgewrite/forgewrite/lib/httpx"
)

// authenticator supplies the Authorization header for API requests.
// The token form is static; the App form mints short-lived
// installation tokens and replaces them before they expire.
type authenticator interface {
	AuthorizationHeader(ctx context.Context) (string, error)
}

// refreshMargin is how close to expiry an installation token may get
// before it is replaced. Installation tokens live an hour; replacing
// five minutes early keeps a token from expiring under an in-flight
// publish.
const refreshMargin = 5 * time.Minute

// appJWTLifetime is the validity window of the signed App assertion.
// The assertion exists only long enough to be traded for an
// installation token; ten minutes is the API's maximum.
const appJWTLifetime = 10 * time.Minute

// tokenAuth is the personal-access-token authenticator: one header
// value for the life of the process.
type tokenAuth struct {
	header string
}

func newTokenAuth(token string) *tokenAuth {
	return &tokenAuth{header: "Bearer " + token}
}

func (auth *tokenAuth) AuthorizationHeader(context.Context) (string, error) {
	return auth.header, nil
}

// appAuth authenticates as a GitHub App installation: it signs an
// RS256 assertion with the App's private key, trades it for an
// installation token, and caches that token until refreshMargin
// before expiry.
type appAuth struct {
	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey
	clock          clock.Clock

	// httpClient and baseURL serve the token exchange call. The
	// client wires them in after construction, since the exchange
	// rides the same transport the client uses for everything else.
	httpClient *http.Client
	baseURL    string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newAppAuth(appID, installationID int64, privateKeyPEM []byte, clk clock.Clock) (*appAuth, error) {
	privateKey, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return &appAuth{
		appID:          appID,
		installationID: installationID,
		privateKey:     privateKey,
		clock:          clk,
	}, nil
}

// parseRSAPrivateKey decodes a PEM-encoded RSA key. GitHub issues App
// keys in PKCS#1, but keys converted through other tooling arrive as
// PKCS#8, so both are accepted.
func parseRSAPrivateKey(privateKeyPEM []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, fmt.Errorf("github: private key is not PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("github: parsing private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("github: private key is %T, need RSA", parsed)
	}
	return key, nil
}

func (auth *appAuth) AuthorizationHeader(ctx context.Context) (string, error) {
	auth.mu.Lock()
	defer auth.mu.Unlock()

	if auth.token != "" && auth.clock.Now().Add(refreshMargin).Before(auth.expiresAt) {
		return "Bearer " + auth.token, nil
	}
	if err := auth.refresh(ctx); err != nil {
		return "", err
	}
	return "Bearer " + auth.token, nil
}

// refresh trades a fresh assertion for a new installation token.
// Caller holds auth.mu.
func (auth *appAuth) refresh(ctx context.Context) error {
	assertion, err := auth.signAssertion()
	if err != nil {
		return fmt.Errorf("github: signing App assertion: %w", err)
	}

	exchangeURL := fmt.Sprintf("%s/app/installations/%d/access_tokens", auth.baseURL, auth.installationID)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, exchangeURL, nil)
	if err != nil {
		return fmt.Errorf("github: creating token exchange request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+assertion)
	request.Header.Set("Accept", "application/vnd.github+json")

	response, err := auth.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("github: token exchange: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusCreated {
		return fmt.Errorf("github: token exchange answered HTTP %d: %s",
			response.StatusCode, httpx.ErrorBody(response.Body))
	}

	var grant struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := httpx.DecodeJSON(response.Body, &grant); err != nil {
		return fmt.Errorf("github: decoding token exchange response: %w", err)
	}
	if grant.Token == "" {
		return fmt.Errorf("github: token exchange granted an empty token")
	}

	auth.token = grant.Token
	auth.expiresAt = grant.ExpiresAt
	return nil
}

// signAssertion builds the RS256 App JWT: fixed header, iss/iat/exp
// claims, PKCS#1 v1.5 signature. iat is backdated a minute to absorb
// clock skew against GitHub's validators.
func (auth *appAuth) signAssertion() (string, error) {
	now := auth.clock.Now()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	claims := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(
		`{"iat":%d,"exp":%d,"iss":"%s"}`,
		now.Add(-time.Minute).Unix(),
		now.Add(appJWTLifetime).Unix(),
		strconv.FormatInt(auth.appID, 10),
	)))

	signingInput := header + "." + claims
	digest := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, auth.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}
