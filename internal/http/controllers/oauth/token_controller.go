// Package oauth exposes the token endpoints: POST /token and POST /revoke.
package oauth

import (
	"net/http"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/http/render"
	svc "github.com/dropDatabas3/janus/internal/http/services/oauth"
	"github.com/dropDatabas3/janus/internal/observability/logger"
)

const maxFormBytes = 64 << 10

// TokenController handles the OAuth token surface.
type TokenController struct {
	tokens svc.TokenService
}

func NewTokenController(tokens svc.TokenService) *TokenController {
	return &TokenController{tokens: tokens}
}

// Token handles POST /token, dispatching on grant_type.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		render.OAuthError(w, r, autherr.Validation("malformed form body"))
		return
	}

	grantType := r.PostFormValue("grant_type")
	log.Debug("token_request", logger.Grant(grantType))

	switch grantType {
	case "authorization_code":
		resp, err := c.tokens.ExchangeAuthorizationCode(ctx, svc.AuthCodeRequest{
			Code:         r.PostFormValue("code"),
			ClientID:     r.PostFormValue("client_id"),
			CodeVerifier: r.PostFormValue("code_verifier"),
		})
		if err != nil {
			render.OAuthError(w, r, err)
			return
		}
		render.Token(w, resp)

	case "refresh_token":
		resp, err := c.tokens.ExchangeRefreshToken(ctx, svc.RefreshTokenRequest{
			ClientID:     r.PostFormValue("client_id"),
			RefreshToken: r.PostFormValue("refresh_token"),
		})
		if err != nil {
			render.OAuthError(w, r, err)
			return
		}
		render.Token(w, resp)

	case "client_credentials":
		clientID, clientSecret := clientCredentials(r)
		resp, err := c.tokens.ExchangeClientCredentials(ctx, svc.ClientCredentialsRequest{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scope:        r.PostFormValue("scope"),
		})
		if err != nil {
			render.OAuthError(w, r, err)
			return
		}
		render.Token(w, resp)

	default:
		render.OAuthError(w, r, autherr.Validation("unsupported grant_type %q", grantType))
	}
}

// Revoke handles POST /revoke.
func (c *TokenController) Revoke(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		render.OAuthError(w, r, autherr.Validation("malformed form body"))
		return
	}
	err := c.tokens.Revoke(r.Context(), svc.RevokeRequest{
		ClientID:      r.PostFormValue("client_id"),
		Token:         r.PostFormValue("token"),
		TokenTypeHint: r.PostFormValue("token_type_hint"),
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// clientCredentials reads the S2S credentials from Basic auth, falling back
// to form fields.
func clientCredentials(r *http.Request) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret
	}
	return r.PostFormValue("client_id"), r.PostFormValue("client_secret")
}
