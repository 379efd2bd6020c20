package authz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
)

const refreshKeyPrefix = "refresh:"

// RefreshBody es el registro del refresh token en el state store. No se
// rota: el reuso reemite un access token pero devuelve el mismo refresh.
type RefreshBody struct {
	AuthID       string    `json:"authId"`
	ClientID     string    `json:"clientId"`
	Scope        string    `json:"scope"`
	Roles        []string  `json:"roles,omitempty"`
	Impersonated bool      `json:"impersonated,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RefreshStore maneja refresh tokens opacos con TTL propio.
type RefreshStore struct {
	store cache.Client
}

func NewRefreshStore(store cache.Client) *RefreshStore {
	return &RefreshStore{store: store}
}

// Create genera el token opaco y persiste el body.
func (s *RefreshStore) Create(ctx context.Context, body *RefreshBody, ttl time.Duration) (string, error) {
	token, err := tokens.GenerateOpaqueToken(48)
	if err != nil {
		return "", autherr.Internal(err)
	}
	if body.CreatedAt.IsZero() {
		body.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", autherr.Internal(err)
	}
	if err := s.store.Set(ctx, refreshKeyPrefix+token, raw, ttl); err != nil {
		return "", autherr.Internal(err)
	}
	return token, nil
}

// Get devuelve el body o ErrWrongRefreshToken.
func (s *RefreshStore) Get(ctx context.Context, token string) (*RefreshBody, error) {
	raw, err := s.store.Get(ctx, refreshKeyPrefix+token)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, autherr.ErrWrongRefreshToken
		}
		return nil, autherr.Internal(err)
	}
	var body RefreshBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, autherr.Internal(err)
	}
	return &body, nil
}

// Delete revoca el token. Idempotente.
func (s *RefreshStore) Delete(ctx context.Context, token string) error {
	if err := s.store.Delete(ctx, refreshKeyPrefix+token); err != nil {
		return autherr.Internal(err)
	}
	return nil
}
