// Package oidc exposes discovery, JWKS and userinfo.
package oidc

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/http/render"
	svc "github.com/dropDatabas3/janus/internal/http/services/oidc"
)

// Controller handles the OIDC read endpoints.
type Controller struct {
	oidc *svc.Service
}

func NewController(oidc *svc.Service) *Controller {
	return &Controller{oidc: oidc}
}

// Discovery handles GET /.well-known/openid-configuration.
func (c *Controller) Discovery(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, c.oidc.DiscoveryDocument())
}

// JWKS handles GET /.well-known/jwks.json.
func (c *Controller) JWKS(w http.ResponseWriter, r *http.Request) {
	keys, err := c.oidc.JWKS(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, keys)
}

// UserInfo handles GET /userinfo with a bearer access token.
func (c *Controller) UserInfo(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		render.Error(w, r, autherr.ErrUnauthorized)
		return
	}
	info, err := c.oidc.UserInfo(r.Context(), raw)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, info)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
