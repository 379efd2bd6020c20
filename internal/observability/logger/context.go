package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ToContext inyecta un logger scoped en el contexto.
// Lo usa el middleware de request para propagar request_id y demás campos.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

type ipKey struct{}

// WithClientIP guarda la IP del request para los servicios que la necesitan
// (telemetría de sign-in, throttling). La setea el middleware de request.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// ClientIPFrom devuelve la IP guardada o vacío.
func ClientIPFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ipKey{}).(string); ok {
		return v
	}
	return ""
}

// From extrae el logger del contexto; si no hay, cae al singleton.
// Así From(ctx) funciona en cualquier parte sin importar si el middleware corrió.
func From(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return L()
}
