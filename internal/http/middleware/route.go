package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routePattern devuelve el patrón chi del request ("/process-otp-mfa"), o el
// path crudo si el router todavía no resolvió.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
