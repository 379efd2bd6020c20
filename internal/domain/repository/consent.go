package repository

import (
	"context"
	"time"
)

// Consent registra la aprobación de un usuario para un app.
type Consent struct {
	UserID    string
	AppID     string
	CreatedAt time.Time
}

// ConsentRepository trackea consents por (user, app).
type ConsentRepository interface {
	// Exists verifica si el usuario ya consintió este app.
	Exists(ctx context.Context, userID, appID string) (bool, error)

	// Grant registra el consent. Idempotente.
	Grant(ctx context.Context, userID, appID string) error

	// Revoke borra el consent.
	Revoke(ctx context.Context, userID, appID string) error
}

// RoleRepository resuelve los roles de un usuario (van como claim en el access token).
type RoleRepository interface {
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
}

// SignInLog es una entrada de telemetría de sign-in.
type SignInLog struct {
	ID        string
	UserID    string
	IP        string
	Location  string // best-effort geolocation, puede quedar vacío
	CreatedAt time.Time
}

// SignInLogRepository persiste telemetría de sign-ins.
type SignInLogRepository interface {
	Create(ctx context.Context, log *SignInLog) error
}
