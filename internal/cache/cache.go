// Package cache provee el state store efímero que respalda todo el flujo de
// autorización: authorization codes, refresh tokens, flags de MFA, contadores
// de intentos y material de firma.
//
// Backends:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// Toda clave lleva TTL explícito; no hay estado compartido fuera de acá.
package cache

import (
	"context"
	"time"
)

// Client define las operaciones del state store.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set guarda un valor con TTL. Si ttl es 0, no expira.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete elimina una key. No es error si no existe.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// GetDel obtiene y elimina atómicamente (tokens one-shot).
	// Retorna ErrNotFound si no existe.
	GetDel(ctx context.Context, key string) ([]byte, error)

	// SetNX setea solo si la key no existe. Retorna true si seteó.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Incr incrementa atómicamente un contador, creándolo con TTL si no existe.
	// El TTL solo se aplica en la creación; incrementos posteriores no lo renuevan.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error

	// Stats retorna estadísticas del backend.
	Stats(ctx context.Context) (Stats, error)
}

// Stats contiene estadísticas del store.
type Stats struct {
	Driver string
	Keys   int64
	Hits   int64
	Misses int64
}

// Config para crear un cliente.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // prefijo para todas las keys
}

// ErrNotFound indica que la key no existe o expiró.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es por key inexistente.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
