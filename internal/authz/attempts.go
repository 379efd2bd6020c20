package authz

import (
	"context"
	"strconv"
	"time"

	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
)

// MaxMfaAttempts: al quinto código errado el factor queda bloqueado para ese
// authorization code; el sexto intento ya devuelve el error Locked, no
// WrongMfaCode.
const MaxMfaAttempts = 5

// Attempts lleva los contadores de intentos fallidos sobre el state store.
// El incremento es atómico (Incr del backend); el umbral convierte el error
// genérico en su variante Locked.
type Attempts struct {
	store cache.Client
}

func NewAttempts(store cache.Client) *Attempts {
	return &Attempts{store: store}
}

func attemptKey(scope, id string) string { return "attempt:" + scope + ":" + id }

// Fail registra un intento fallido y reporta si el identificador quedó
// bloqueado (contador >= max). El TTL arranca con el primer fallo.
func (a *Attempts) Fail(ctx context.Context, scope, id string, max int64, window time.Duration) (locked bool, err error) {
	n, err := a.store.Incr(ctx, attemptKey(scope, id), window)
	if err != nil {
		return false, autherr.Internal(err)
	}
	return n >= max, nil
}

// Locked reporta si el identificador ya alcanzó el umbral, sin incrementar.
func (a *Attempts) Locked(ctx context.Context, scope, id string, max int64) (bool, error) {
	raw, err := a.store.Get(ctx, attemptKey(scope, id))
	if err != nil {
		if cache.IsNotFound(err) {
			return false, nil
		}
		return false, autherr.Internal(err)
	}
	n, _ := strconv.ParseInt(string(raw), 10, 64)
	return n >= max, nil
}

// Reset limpia el contador (post verificación exitosa).
func (a *Attempts) Reset(ctx context.Context, scope, id string) error {
	if err := a.store.Delete(ctx, attemptKey(scope, id)); err != nil {
		return autherr.Internal(err)
	}
	return nil
}
