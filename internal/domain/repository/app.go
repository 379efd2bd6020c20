package repository

import (
	"context"
	"time"
)

// AppType distingue clientes browser (SPA) de machine-to-machine.
type AppType string

const (
	AppTypeSPA AppType = "spa"
	AppTypeS2S AppType = "s2s"
)

// App representa un cliente OAuth registrado.
type App struct {
	ID           string
	ClientID     string
	Name         string
	Type         AppType
	SecretHash   string // solo S2S
	RedirectURIs []string
	Scopes       []string // scopes permitidos para este app
	IsActive     bool

	// Override de MFA por app. Si UseSystemMfaConfig es true, los campos
	// Required* se ignoran y manda la config global.
	UseSystemMfaConfig bool
	RequireEmailMfa    bool
	RequireOtpMfa      bool
	RequireSmsMfa      bool

	CreatedAt time.Time
}

// HasRedirectURI verifica si la redirect URI está registrada.
func (a *App) HasRedirectURI(uri string) bool {
	for _, u := range a.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AllowedScopes filtra los scopes pedidos contra los permitidos del app,
// deduplicando. El orden de entrada se preserva.
func (a *App) AllowedScopes(requested []string) []string {
	allowed := make(map[string]bool, len(a.Scopes))
	for _, s := range a.Scopes {
		allowed[s] = true
	}
	seen := make(map[string]bool, len(requested))
	var out []string
	for _, s := range requested {
		if allowed[s] && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// AppRepository define el collaborator de persistencia de apps.
type AppRepository interface {
	// GetByClientID busca un app por client_id. Retorna ErrNotFound si no existe.
	GetByClientID(ctx context.Context, clientID string) (*App, error)
}
