// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package micropub

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds in the protocol taxonomy. Each maps to a fixed HTTP
// status and is rendered to clients as
// {"error": kind, "error_description": description}.
const (
	KindInvalidRequest    = "invalid_request"
	KindUnauthorized      = "unauthorized"
	KindInsufficientScope = "insufficient_scope"
	KindInvalidRepo       = "invalid_repo"
	KindNotFound          = "not_found"
	KindServerError       = "server_error"
)

// Error is a terminal, client-visible protocol failure. Processing
// halts immediately when one is raised; there is no retry.
type Error struct {
	// Kind is one of the Kind constants.
	Kind string

	// Description is the human-readable detail, or "" when the kind
	// alone is the message.
	Description string

	// Status is the HTTP status the error renders with.
	Status int
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Kind
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// InvalidRequest reports a malformed or empty submission (400).
func InvalidRequest(description string) *Error {
	return &Error{Kind: KindInvalidRequest, Description: description, Status: http.StatusBadRequest}
}

// Unauthorized reports a missing credential (401).
func Unauthorized(description string) *Error {
	return &Error{Kind: KindUnauthorized, Description: description, Status: http.StatusUnauthorized}
}

// InsufficientScope reports a credential present but lacking required
// claims (401).
func InsufficientScope(description string) *Error {
	return &Error{Kind: KindInsufficientScope, Description: description, Status: http.StatusUnauthorized}
}

// InvalidRepo reports an absent target repository (422).
func InvalidRepo(description string) *Error {
	return &Error{Kind: KindInvalidRepo, Description: description, Status: http.StatusUnprocessableEntity}
}

// NotFound reports an unknown site, route, or source document (404).
func NotFound(description string) *Error {
	return &Error{Kind: KindNotFound, Description: description, Status: http.StatusNotFound}
}

// AsError extracts a protocol error from an error chain. Unclassified
// failures return (nil, false) and render as generic server errors.
func AsError(err error) (*Error, bool) {
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr, true
	}
	return nil, false
}
