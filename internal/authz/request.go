package authz

import (
	"net/url"
	"strings"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/validation"
)

// AuthorizeRequest es el snapshot inmutable del request de /authorize.
// Se crea una vez, se valida una vez, y viaja embebido en el code body.
type AuthorizeRequest struct {
	ClientID            string   `json:"clientId"`
	RedirectURI         string   `json:"redirectUri"`
	ResponseType        string   `json:"responseType"`
	Scopes              []string `json:"scopes"`
	CodeChallenge       string   `json:"codeChallenge"`
	CodeChallengeMethod string   `json:"codeChallengeMethod"`
	State               string   `json:"state"`
	Nonce               string   `json:"nonce,omitempty"`
	Locale              string   `json:"locale,omitempty"`
	Policy              Policy   `json:"policy"`
	OrgSlug             string   `json:"org,omitempty"`
}

// ParseAuthorizeRequest valida los query params contra la app registrada.
// Los scopes se deduplican y filtran contra los permitidos de la app; pedir
// un scope que la app no tiene no es error acá (se sirve el subconjunto),
// pedir CERO scopes válidos sí.
func ParseAuthorizeRequest(q url.Values, app *repository.App) (*AuthorizeRequest, error) {
	clientID := strings.TrimSpace(q.Get("client_id"))
	if clientID == "" {
		return nil, autherr.Validation("client_id requerido")
	}
	redirectURI := strings.TrimSpace(q.Get("redirect_uri"))
	if redirectURI == "" {
		return nil, autherr.Validation("redirect_uri requerido")
	}
	if !app.HasRedirectURI(redirectURI) {
		return nil, autherr.Validation("redirect_uri no registrado para esta app")
	}
	if rt := q.Get("response_type"); rt != "code" {
		return nil, autherr.Validation("response_type no soportado: %q", rt)
	}

	challenge := q.Get("code_challenge")
	if challenge == "" {
		return nil, autherr.Validation("code_challenge requerido")
	}
	method := q.Get("code_challenge_method")
	if method == "" {
		method = "plain"
	}
	switch method {
	case "plain", "S256", "s256":
	default:
		return nil, autherr.Validation("code_challenge_method no soportado: %q", method)
	}

	scopes := app.AllowedScopes(splitScopes(q.Get("scope")))
	if len(scopes) == 0 {
		return nil, autherr.ErrUnknownScope
	}

	policy, err := ParsePolicy(q.Get("policy"))
	if err != nil {
		return nil, autherr.Validation("%s", err.Error())
	}

	return &AuthorizeRequest{
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		ResponseType:        "code",
		Scopes:              scopes,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		State:               q.Get("state"),
		Nonce:               q.Get("nonce"),
		Locale:              q.Get("locale"),
		Policy:              policy,
		OrgSlug:             q.Get("org"),
	}, nil
}

// HasScope busca un scope ya resuelto en el request.
func (r *AuthorizeRequest) HasScope(name string) bool {
	for _, s := range r.Scopes {
		if s == name {
			return true
		}
	}
	return false
}

// ScopeString arma el string space-separated que viaja en los tokens.
func (r *AuthorizeRequest) ScopeString() string {
	return strings.Join(r.Scopes, " ")
}

// splitScopes tokeniza el parámetro scope descartando nombres malformados;
// un scope inválido nunca llega al filtro de la app.
func splitScopes(raw string) []string {
	fields := strings.Fields(raw)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if validation.ValidScopeName(f) {
			out = append(out, f)
		}
	}
	return out
}
