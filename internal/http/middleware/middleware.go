// Package middleware contiene el plumbing transversal del router: scoping de
// request (request_id + logger + client ip), access log y métricas.
package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/janus/internal/observability/logger"
)

// statusWriter captura el status para el access log y las métricas.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	// 200 implícito si el handler nunca llama WriteHeader
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

// RequestScope inyecta request_id, client ip y un logger scoped en el
// contexto. Corre primero en la cadena.
func RequestScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ip := clientIP(r)

		l := logger.L().With(logger.RequestID(reqID), logger.ClientIP(ip))
		ctx := logger.ToContext(r.Context(), l)
		ctx = logger.WithClientIP(ctx, ip)

		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLog loguea una línea por request con método, path, status y duración.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := newStatusWriter(w)
		start := time.Now()
		next.ServeHTTP(sw, r)
		logger.From(r.Context()).Info("http_request",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(sw.status),
			logger.Duration(time.Since(start)))
	})
}

// clientIP resuelve la IP real: primero X-Forwarded-For, después RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
