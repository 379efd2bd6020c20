// Package oidc serves the OIDC read surface: discovery, JWKS and userinfo.
package oidc

import (
	"context"
	"strings"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/jwt"
)

// Service resolves the OIDC metadata and userinfo responses.
type Service struct {
	signer    *jwt.Signer
	keystore  *jwt.Keystore
	da        repository.DataAccess
	publicURL string
}

func NewService(signer *jwt.Signer, keystore *jwt.Keystore, da repository.DataAccess, publicURL string) *Service {
	return &Service{
		signer:    signer,
		keystore:  keystore,
		da:        da,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Discovery is the /.well-known/openid-configuration document.
type Discovery struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	RevocationEndpoint               string   `json:"revocation_endpoint"`
	JwksURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	CodeChallengeMethodsSupported    []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
}

// DiscoveryDocument builds the static metadata from the public URL.
func (s *Service) DiscoveryDocument() Discovery {
	base := s.publicURL
	return Discovery{
		Issuer:                           s.signer.Issuer(),
		AuthorizationEndpoint:            base + "/authorize",
		TokenEndpoint:                    base + "/token",
		UserinfoEndpoint:                 base + "/userinfo",
		RevocationEndpoint:               base + "/revoke",
		JwksURI:                          base + "/.well-known/jwks.json",
		ResponseTypesSupported:           []string{"code"},
		GrantTypesSupported:              []string{"authorization_code", "refresh_token", "client_credentials"},
		ScopesSupported:                  []string{"openid", "profile", "email", "offline_access"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		CodeChallengeMethodsSupported:    []string{"plain", "S256"},
		TokenEndpointAuthMethods:         []string{"client_secret_basic", "client_secret_post", "none"},
	}
}

// JWKS returns the active + deprecated public keys.
func (s *Service) JWKS(ctx context.Context) (*jwt.JWKS, error) {
	return s.keystore.JWKS(ctx)
}

// UserInfo is the /userinfo response shape.
type UserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Locale        string `json:"locale,omitempty"`
}

// UserInfo verifies the bearer token and resolves the user profile.
func (s *Service) UserInfo(ctx context.Context, rawToken string) (*UserInfo, error) {
	claims, err := s.signer.VerifyAccess(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	user, err := s.da.Users().GetByAuthID(ctx, claims.Subject)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrUnauthorized
		}
		return nil, autherr.Internal(err)
	}
	if user.DisabledAt != nil {
		return nil, autherr.ErrUserDisabled
	}
	return &UserInfo{
		Sub:           user.AuthID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		GivenName:     user.FirstName,
		FamilyName:    user.LastName,
		Locale:        user.Locale,
	}, nil
}
