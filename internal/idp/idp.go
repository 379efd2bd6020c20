// Package idp implementa el handshake de federación: cambiar un credencial
// de un proveedor externo (Google, Apple, GitHub, Discord, OIDC genérico,
// SAML) por una identidad local antes de re-entrar al state machine.
package idp

import (
	"context"
	"sort"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
)

// Identity es lo que devuelve cualquier proveedor después de verificar el
// credencial: subject scoped al provider + perfil mínimo.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	Locale        string
}

// Provider es un IdP externo por code-exchange.
type Provider interface {
	Name() string

	// AuthCodeURL arma la URL de autorización del provider. El state lo
	// genera el caller; los providers con PKCE de segundo salto guardan su
	// code_verifier keyed por state.
	AuthCodeURL(ctx context.Context, state string) (string, error)

	// Exchange cambia el code del callback por una Identity verificada.
	Exchange(ctx context.Context, state, code string) (*Identity, error)
}

// Registry resuelve providers por nombre.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get retorna el provider o FeatureNotEnabled si no está configurado.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, autherr.Forbidden("proveedor de federación %q no configurado", name)
	}
	return p, nil
}

// Names lista los providers configurados, para la vista de login.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FindOrCreateUser resuelve la identidad federada a un usuario local keyed
// por (provider, subject). Un usuario deshabilitado corta acá; un email ya
// tomado por una cuenta password no se vincula automáticamente.
func FindOrCreateUser(ctx context.Context, users repository.UserRepository, ident *Identity) (*repository.User, error) {
	u, err := users.GetBySocialAccount(ctx, ident.Provider, ident.Subject)
	if err == nil {
		if u.DisabledAt != nil {
			return nil, autherr.ErrUserDisabled
		}
		return u, nil
	}
	if !repository.IsNotFound(err) {
		return nil, autherr.Internal(err)
	}

	if ident.Email != "" {
		if _, err := users.GetByEmail(ctx, ident.Email); err == nil {
			return nil, autherr.ErrSocialNotSupported
		} else if !repository.IsNotFound(err) {
			return nil, autherr.Internal(err)
		}
	}

	created, err := users.Create(ctx, repository.CreateUserInput{
		Email:           ident.Email,
		FirstName:       ident.FirstName,
		LastName:        ident.LastName,
		Locale:          ident.Locale,
		SocialProvider:  ident.Provider,
		SocialAccountID: ident.Subject,
		EmailVerified:   ident.EmailVerified,
	})
	if err != nil {
		return nil, autherr.Internal(err)
	}
	return created, nil
}
