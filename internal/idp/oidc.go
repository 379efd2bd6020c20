package idp

import (
	"context"
	"fmt"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
)

const pkceKeyPrefix = "idp:pkce:"

// OIDCConfig configura un provider OIDC por discovery. Cubre Google, Apple
// y cualquier issuer genérico; Apple (y los genéricos que lo pidan) usan
// PKCE de segundo salto, con el code_verifier viajando por el state store
// porque el callback del provider es otro hop.
type OIDCConfig struct {
	Name         string
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	UsePKCE      bool
}

// OIDCProvider verifica el ID token del provider con su JWKS (vía go-oidc).
type OIDCProvider struct {
	name     string
	cfg      *oauth2.Config
	verifier *gooidc.IDTokenVerifier
	store    cache.Client
	usePKCE  bool
}

// NewOIDC descubre los endpoints del issuer y arma el provider.
func NewOIDC(ctx context.Context, cfg OIDCConfig, store cache.Client) (*OIDCProvider, error) {
	provider, err := gooidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("idp %s: discovery: %w", cfg.Name, err)
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}
	return &OIDCProvider{
		name: cfg.Name,
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     provider.Endpoint(),
		},
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		store:    store,
		usePKCE:  cfg.UsePKCE,
	}, nil
}

func (p *OIDCProvider) Name() string { return p.name }

func (p *OIDCProvider) AuthCodeURL(ctx context.Context, state string) (string, error) {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if p.usePKCE {
		verifier := oauth2.GenerateVerifier()
		if err := p.store.Set(ctx, pkceKeyPrefix+state, []byte(verifier), 10*time.Minute); err != nil {
			return "", autherr.Internal(err)
		}
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return p.cfg.AuthCodeURL(state, opts...), nil
}

func (p *OIDCProvider) Exchange(ctx context.Context, state, code string) (*Identity, error) {
	var opts []oauth2.AuthCodeOption
	if p.usePKCE {
		raw, err := p.store.GetDel(ctx, pkceKeyPrefix+state)
		if err != nil {
			if cache.IsNotFound(err) {
				return nil, autherr.Validation("state de federación desconocido o expirado")
			}
			return nil, autherr.Internal(err)
		}
		opts = append(opts, oauth2.VerifierOption(string(raw)))
	}

	tok, err := p.cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, autherr.ErrUnauthorized
	}
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, autherr.ErrUnauthorized
	}
	idToken, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, autherr.ErrUnauthorized
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Name          string `json:"name"`
		Locale        string `json:"locale"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, autherr.Internal(err)
	}
	first, last := claims.GivenName, claims.FamilyName
	if first == "" && claims.Name != "" {
		first, last = splitName(claims.Name)
	}
	return &Identity{
		Provider:      p.name,
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		FirstName:     first,
		LastName:      last,
		Locale:        claims.Locale,
	}, nil
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
