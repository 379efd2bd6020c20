// Package oauth contains the token endpoint services: authorization-code,
// refresh-token and client-credentials exchanges, plus revocation.
package oauth

import "context"

// TokenResponse is the standard OAuth token response body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// AuthCodeRequest carries the authorization_code grant fields.
type AuthCodeRequest struct {
	Code         string
	ClientID     string
	CodeVerifier string
}

// RefreshTokenRequest carries the refresh_token grant fields.
type RefreshTokenRequest struct {
	ClientID     string
	RefreshToken string
}

// ClientCredentialsRequest carries the client_credentials grant fields.
type ClientCredentialsRequest struct {
	ClientID     string
	ClientSecret string
	Scope        string
}

// RevokeRequest carries the revocation fields.
type RevokeRequest struct {
	ClientID      string
	Token         string
	TokenTypeHint string
}

// TokenService is the terminal step of the authorization flow.
type TokenService interface {
	ExchangeAuthorizationCode(ctx context.Context, req AuthCodeRequest) (*TokenResponse, error)
	ExchangeRefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	ExchangeClientCredentials(ctx context.Context, req ClientCredentialsRequest) (*TokenResponse, error)
	Revoke(ctx context.Context, req RevokeRequest) error
}
