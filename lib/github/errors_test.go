// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"fmt"
	"testing"
)

func TestAPIErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "plain",
			err:  &APIError{StatusCode: 409, Message: "Update is not a fast forward"},
			want: "github: HTTP 409: Update is not a fast forward",
		},
		{
			name: "validation detail",
			err: &APIError{
				StatusCode: 422,
				Message:    "Validation Failed",
				Errors: []ValidationError{
					{Resource: "Tree", Field: "base_tree", Message: "base_tree is not a valid tree oid"},
				},
			},
			want: "github: HTTP 422: Validation Failed; Tree.base_tree: base_tree is not a valid tree oid",
		},
		{
			name: "code only",
			err: &APIError{
				StatusCode: 422,
				Message:    "Validation Failed",
				Errors: []ValidationError{
					{Resource: "Blob", Field: "content", Code: "missing_field"},
				},
			},
			want: "github: HTTP 422: Validation Failed; Blob.content: missing_field",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.err.Error(); got != test.want {
				t.Errorf("Error() = %q, want %q", got, test.want)
			}
		})
	}
}

// The classification helpers drive the commit retry loop, so each must
// match exactly its own status family and see through error wrapping.
func TestErrorClassification(t *testing.T) {
	wrap := func(err *APIError) error {
		return fmt.Errorf("updating ref heads/master: %w", err)
	}

	tests := []struct {
		name       string
		err        error
		notFound   bool
		rateLimit  bool
		validation bool
		conflict   bool
	}{
		{
			name:     "missing repository",
			err:      wrap(&APIError{StatusCode: 404, Message: "Not Found"}),
			notFound: true,
		},
		{
			name:     "lost ref race",
			err:      wrap(&APIError{StatusCode: 409, Message: "Update is not a fast forward"}),
			conflict: true,
		},
		{
			name:       "stale base tree",
			err:        wrap(&APIError{StatusCode: 422, Message: "Validation Failed"}),
			validation: true,
		},
		{
			name:      "secondary rate limit",
			err:       wrap(&APIError{StatusCode: 429, Message: "Too Many Requests"}),
			rateLimit: true,
		},
		{
			name:      "primary rate limit as 403",
			err:       wrap(&APIError{StatusCode: 403, Message: "API rate limit exceeded for installation"}),
			rateLimit: true,
		},
		{
			name:      "abuse detection as 403",
			err:       wrap(&APIError{StatusCode: 403, Message: "You have triggered an abuse detection mechanism"}),
			rateLimit: true,
		},
		{
			name: "permission denied is not a rate limit",
			err:  wrap(&APIError{StatusCode: 403, Message: "Resource not accessible by integration"}),
		},
		{
			name: "not an API error",
			err:  fmt.Errorf("dial tcp: connection refused"),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsNotFound(test.err); got != test.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, test.notFound)
			}
			if got := IsRateLimited(test.err); got != test.rateLimit {
				t.Errorf("IsRateLimited = %v, want %v", got, test.rateLimit)
			}
			if got := IsValidationFailed(test.err); got != test.validation {
				t.Errorf("IsValidationFailed = %v, want %v", got, test.validation)
			}
			if got := IsConflict(test.err); got != test.conflict {
				t.Errorf("IsConflict = %v, want %v", got, test.conflict)
			}
		})
	}
}
