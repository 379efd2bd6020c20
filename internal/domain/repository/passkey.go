package repository

import (
	"context"
	"time"
)

// Passkey es una credencial WebAuthn registrada.
type Passkey struct {
	ID           string
	UserID       string
	CredentialID []byte
	PublicKey    []byte // credencial serializada (formato del stack webauthn)
	Counter      uint32
	CreatedAt    time.Time
}

// PasskeyRepository persiste credenciales WebAuthn.
type PasskeyRepository interface {
	// GetByUserID retorna la passkey del usuario. ErrNotFound si no enroló.
	GetByUserID(ctx context.Context, userID string) (*Passkey, error)

	// Create registra la credencial tras un enrollment verificado.
	Create(ctx context.Context, pk *Passkey) error

	// UpdateCounter persiste el signature counter tras una verificación.
	UpdateCounter(ctx context.Context, id string, counter uint32) error

	// Delete elimina la credencial (flujo manage-passkey).
	Delete(ctx context.Context, userID string) error
}

// RecoveryCode es el hash de un recovery code de un usuario.
type RecoveryCode struct {
	UserID    string
	Hash      string
	UsedAt    *time.Time
	CreatedAt time.Time
}

// RecoveryCodeRepository persiste recovery codes (hasheados).
type RecoveryCodeRepository interface {
	// Replace reemplaza el set completo de codes del usuario.
	Replace(ctx context.Context, userID string, hashes []string) error

	// Has indica si el usuario tiene recovery codes generados.
	Has(ctx context.Context, userID string) (bool, error)

	// Consume marca un code como usado. Retorna false si no existe o ya se usó.
	Consume(ctx context.Context, userID, hash string) (bool, error)
}
