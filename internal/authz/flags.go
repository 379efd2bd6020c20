package authz

import (
	"context"
	"time"

	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
)

// MfaKind identifica cada flag de verificación por-code. Se guardan como
// claves TTL separadas (no campos del body) a propósito: los endpoints de
// verificación son reintentables de forma independiente y no pueden arriesgar
// un lost update sobre el body grande.
type MfaKind string

const (
	MfaOtp          MfaKind = "otp"
	MfaSms          MfaKind = "sms"
	MfaEmail        MfaKind = "email"
	MfaPasswordless MfaKind = "passwordless"
)

// FlagStore maneja los flags de verificación y los códigos SMS/email de un
// authorization code. El nombre de clave sale SIEMPRE de acá; nadie más
// concatena strings de clave MFA.
type FlagStore struct {
	store cache.Client
}

func NewFlagStore(store cache.Client) *FlagStore {
	return &FlagStore{store: store}
}

func flagKey(kind MfaKind, code string) string    { return "mfaflag:" + string(kind) + ":" + code }
func mfaCodeKey(kind MfaKind, code string) string { return "mfacode:" + string(kind) + ":" + code }

// MarkVerified registra el pase del factor. Idempotente.
func (f *FlagStore) MarkVerified(ctx context.Context, kind MfaKind, code string, ttl time.Duration) error {
	if err := f.store.Set(ctx, flagKey(kind, code), []byte("1"), ttl); err != nil {
		return autherr.Internal(err)
	}
	return nil
}

// IsVerified reporta si el factor ya pasó para este code.
func (f *FlagStore) IsVerified(ctx context.Context, kind MfaKind, code string) (bool, error) {
	ok, err := f.store.Exists(ctx, flagKey(kind, code))
	if err != nil {
		return false, autherr.Internal(err)
	}
	return ok, nil
}

// StoreCode guarda el código de verificación SMS/email generado para este
// authorization code. Pisa el anterior si el usuario pidió reenvío.
func (f *FlagStore) StoreCode(ctx context.Context, kind MfaKind, code, verification string, ttl time.Duration) error {
	if err := f.store.Set(ctx, mfaCodeKey(kind, code), []byte(verification), ttl); err != nil {
		return autherr.Internal(err)
	}
	return nil
}

// GetCode devuelve el código enviado, o ErrMfaNotSent si nunca se generó.
func (f *FlagStore) GetCode(ctx context.Context, kind MfaKind, code string) (string, error) {
	raw, err := f.store.Get(ctx, mfaCodeKey(kind, code))
	if err != nil {
		if cache.IsNotFound(err) {
			return "", autherr.ErrMfaNotSent
		}
		return "", autherr.Internal(err)
	}
	return string(raw), nil
}

// DeleteCode descarta el código enviado (post verificación exitosa).
func (f *FlagStore) DeleteCode(ctx context.Context, kind MfaKind, code string) error {
	if err := f.store.Delete(ctx, mfaCodeKey(kind, code)); err != nil {
		return autherr.Internal(err)
	}
	return nil
}
