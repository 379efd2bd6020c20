package authz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
)

const codeKeyPrefix = "authcode:"

// Coordinator envuelve el state store con la semántica de dominio del
// authorization code: crear, leer, mutar con stamp de versión, invalidar.
type Coordinator struct {
	store cache.Client
}

func NewCoordinator(store cache.Client) *Coordinator {
	return &Coordinator{store: store}
}

// Create genera el code aleatorio de 128 chars y persiste el body con TTL.
// No hay retry de colisión: con ese espacio de claves la probabilidad se
// trata como despreciable.
func (c *Coordinator) Create(ctx context.Context, body *CodeBody, ttl time.Duration) (string, error) {
	code, err := tokens.GenerateAuthCode()
	if err != nil {
		return "", autherr.Internal(err)
	}
	body.Version = 1
	if body.CreatedAt.IsZero() {
		body.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", autherr.Internal(err)
	}
	if err := c.store.Set(ctx, codeKeyPrefix+code, raw, ttl); err != nil {
		return "", autherr.Internal(err)
	}
	return code, nil
}

// Get devuelve el body o ErrWrongAuthCode si no existe/expiró. Todo caller
// traduce ese error a "código expirado", nunca a un default silencioso.
func (c *Coordinator) Get(ctx context.Context, code string) (*CodeBody, error) {
	raw, err := c.store.Get(ctx, codeKeyPrefix+code)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, autherr.ErrWrongAuthCode
		}
		return nil, autherr.Internal(err)
	}
	var body CodeBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, autherr.Internal(err)
	}
	return &body, nil
}

// Mutate sobreescribe el body reseteando el TTL, con concurrencia optimista:
// si la versión persistida ya no es la que el caller leyó, otro request ganó
// la carrera y devolvemos ErrStaleCode para que reintente desde Get.
func (c *Coordinator) Mutate(ctx context.Context, code string, body *CodeBody, ttl time.Duration) error {
	current, err := c.Get(ctx, code)
	if err != nil {
		return err
	}
	if current.Version != body.Version {
		return autherr.ErrStaleCode
	}
	body.Version++
	raw, err := json.Marshal(body)
	if err != nil {
		return autherr.Internal(err)
	}
	if err := c.store.Set(ctx, codeKeyPrefix+code, raw, ttl); err != nil {
		return autherr.Internal(err)
	}
	return nil
}

// Invalidate borra el code. Se llama siempre después de un exchange exitoso:
// el replay no puede depender solo del TTL.
func (c *Coordinator) Invalidate(ctx context.Context, code string) error {
	if err := c.store.Delete(ctx, codeKeyPrefix+code); err != nil {
		return autherr.Internal(err)
	}
	return nil
}
