// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package indieauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forgewrite/forgewrite/lib/micropub"
)

func newTestVerifier(t *testing.T, server *httptest.Server) *Verifier {
	t.Helper()
	verifier, err := NewVerifier(Config{
		Endpoint:   server.URL,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return verifier
}

func TestVerify_ValidToken(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		receivedAuth = request.Header.Get("Authorization")
		writer.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		writer.Write([]byte("me=https%3A%2F%2Fjane.example%2F&scope=create+update&client_id=https%3A%2F%2Fapp.example%2F"))
	}))
	defer server.Close()

	claims, err := newTestVerifier(t, server).Verify(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if receivedAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", receivedAuth)
	}
	if claims.Me != "https://jane.example/" {
		t.Errorf("Me = %q", claims.Me)
	}
	if claims.Scope != "create update" {
		t.Errorf("Scope = %q", claims.Scope)
	}
	if claims.ClientID != "https://app.example/" {
		t.Errorf("ClientID = %q", claims.ClientID)
	}
}

func TestVerify_MissingScope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Write([]byte("me=https%3A%2F%2Fjane.example%2F"))
	}))
	defer server.Close()

	_, err := newTestVerifier(t, server).Verify(context.Background(), "tok")
	assertKind(t, err, micropub.KindInsufficientScope)
}

func TestVerify_MissingMe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Write([]byte("scope=create"))
	}))
	defer server.Close()

	_, err := newTestVerifier(t, server).Verify(context.Background(), "tok")
	assertKind(t, err, micropub.KindInsufficientScope)
}

func TestVerify_RejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestVerifier(t, server).Verify(context.Background(), "bad")
	assertKind(t, err, micropub.KindUnauthorized)
}

func TestVerify_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	verifier := newTestVerifier(t, server)
	server.Close()

	_, err := verifier.Verify(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if _, ok := micropub.AsError(err); ok {
		t.Fatalf("transport failure must not map to a protocol error: %v", err)
	}
}

func TestNewVerifier_RequiresEndpoint(t *testing.T) {
	if _, err := NewVerifier(Config{}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func assertKind(t *testing.T, err error, kind string) {
	t.Helper()
	protocolErr, ok := micropub.AsError(err)
	if !ok {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if protocolErr.Kind != kind {
		t.Fatalf("kind = %q, want %q", protocolErr.Kind, kind)
	}
}
