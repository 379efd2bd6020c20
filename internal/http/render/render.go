// Package render centralizes response writing: JSON bodies, domain errors
// mapped to their HTTP status, and OAuth-style error bodies for the token
// endpoints.
package render

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/observability/logger"
)

// JSON writes a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// errorBody is the machine-stable error shape of the step endpoints.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Error maps a domain error to its status and writes the error body. Internal
// errors are logged and masked.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := autherr.StatusOf(err)
	kind := string(autherr.KindOf(err))
	msg := err.Error()
	if status >= 500 {
		logger.From(r.Context()).Error("internal_error", logger.Err(err), logger.Path(r.URL.Path))
		msg = "internal server error"
	}
	JSON(w, status, errorBody{Error: kind, Message: msg})
}

// oauthError is the RFC 6749 error shape for the token endpoints.
type oauthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// OAuthError writes the token-endpoint error body. The domain kind is folded
// into the closed set of OAuth error codes.
func OAuthError(w http.ResponseWriter, r *http.Request, err error) {
	status := autherr.StatusOf(err)
	code := "invalid_request"
	switch {
	case status == http.StatusUnauthorized:
		code = "invalid_client"
	case status == http.StatusForbidden:
		code = "invalid_grant"
	case status >= 500:
		code = "server_error"
	}
	desc := err.Error()
	if status >= 500 {
		logger.From(r.Context()).Error("internal_error", logger.Err(err), logger.Path(r.URL.Path))
		desc = ""
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	JSON(w, status, oauthError{Error: code, Description: desc})
}

// Token writes a successful token response with the mandatory no-store
// headers.
func Token(w http.ResponseWriter, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	JSON(w, http.StatusOK, v)
}
