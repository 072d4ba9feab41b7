// Copyright 2026 The Forgewrite Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/forgewrite/forgewrite/lib/micropub"
	"github.com/forgewrite/forgewrite/lib/publish"
)

// handleQuery serves the GET query operations: q=config,
// q=syndicate-to, and q=source.
func (server *Server) handleQuery(c echo.Context) error {
	site, err := server.site(c)
	if err != nil {
		return err
	}
	if err := server.authorize(c); err != nil {
		return err
	}

	switch query := c.QueryParam("q"); query {
	case "config":
		return c.JSON(http.StatusOK, map[string]any{})

	case "syndicate-to":
		targets := make([]map[string]string, 0, len(server.destinations))
		for _, destination := range server.destinations {
			targets = append(targets, map[string]string{
				"uid":  destination.UID,
				"name": destination.Name,
			})
		}
		return c.JSON(http.StatusOK, map[string]any{"syndicate-to": targets})

	case "source":
		postURL := c.QueryParam("url")
		if postURL == "" {
			return micropub.InvalidRequest("source query requires a url parameter")
		}
		source, err := server.pipeline.Source(c.Request().Context(), site, postURL)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, source)

	case "":
		return micropub.InvalidRequest("missing query operation q")

	default:
		return micropub.InvalidRequest(fmt.Sprintf("unknown query operation %q", query))
	}
}

// handleCreate serves the POST create operation, branching on the
// request's content type.
func (server *Server) handleCreate(c echo.Context) error {
	site, err := server.site(c)
	if err != nil {
		return err
	}
	if err := server.authorize(c); err != nil {
		return err
	}

	var result *publish.Result
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(contentType, echo.MIMEApplicationJSON):
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return fmt.Errorf("reading request body: %w", err)
		}
		result, err = server.pipeline.PublishJSON(c.Request().Context(), site, body)
		if err != nil {
			return err
		}

	default:
		values, err := c.FormParams()
		if err != nil {
			return micropub.InvalidRequest(fmt.Sprintf("malformed form body: %v", err))
		}
		result, err = server.pipeline.PublishForm(c.Request().Context(), site, stripCredential(values))
		if err != nil {
			return err
		}
	}

	publishesTotal.WithLabelValues(c.Param("site")).Inc()

	response := map[string]any{"url": result.URL}
	if len(result.Syndications) > 0 {
		response["syndications"] = result.Syndications
	}
	c.Response().Header().Set(echo.HeaderLocation, result.URL)
	return c.JSON(http.StatusCreated, response)
}

// authorize extracts the bearer token and verifies it. A nil verifier
// means verification is disabled (development only); the token is
// still stripped from further processing.
func (server *Server) authorize(c echo.Context) error {
	token := bearerToken(c)
	if server.verifier == nil {
		return nil
	}
	if token == "" {
		return micropub.Unauthorized("request carries no bearer token")
	}
	if _, err := server.verifier.Verify(c.Request().Context(), token); err != nil {
		return err
	}
	return nil
}

// bearerToken pulls the credential from the Authorization header or,
// failing that, an access_token form or query parameter. FormValue
// covers both parameter spellings; for JSON bodies it falls through
// to the query string without consuming the body. stripCredential
// removes the form field before the body reaches the pipeline.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		return strings.TrimSpace(token)
	}
	if token := c.FormValue("access_token"); token != "" {
		return token
	}
	return c.QueryParam("access_token")
}

// stripCredential removes the access_token field from form values so
// the credential never reaches the pipeline as a property.
func stripCredential(values url.Values) url.Values {
	values.Del("access_token")
	return values
}

// handleError is the central error handler: protocol errors render
// their kind and status, echo's own errors (unknown routes, oversized
// bodies) map to the protocol taxonomy, and everything else is a
// generic server error with the detail logged rather than leaked.
func (server *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := map[string]any{"error": micropub.KindServerError, "error_description": nil}

	if protocolErr, ok := micropub.AsError(err); ok {
		status = protocolErr.Status
		body["error"] = protocolErr.Kind
		if protocolErr.Description != "" {
			body["error_description"] = protocolErr.Description
		}
	} else if httpErr, ok := err.(*echo.HTTPError); ok {
		status = httpErr.Code
		switch httpErr.Code {
		case http.StatusNotFound:
			body["error"] = micropub.KindNotFound
		case http.StatusRequestEntityTooLarge:
			body["error"] = micropub.KindInvalidRequest
			body["error_description"] = "request body too large"
		default:
			body["error"] = micropub.KindServerError
		}
	} else {
		server.logger.Error("request failed",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"error", err,
		)
	}

	if writeErr := c.JSON(status, body); writeErr != nil {
		server.logger.Error("writing error response", "error", writeErr)
	}
}
