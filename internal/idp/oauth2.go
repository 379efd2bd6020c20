package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
)

// Providers OAuth2 puros (sin ID token): GitHub y Discord. El perfil sale de
// un GET al user endpoint con el access token del exchange.

const (
	githubUserEndpoint  = "https://api.github.com/user"
	discordUserEndpoint = "https://discord.com/api/users/@me"
)

// discordEndpoint replica endpoints.Discord de golang.org/x/oauth2 v0.27.0,
// que requiere Go >= 1.23 y no está disponible con el toolchain local (1.21).
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

type restProvider struct {
	name         string
	cfg          *oauth2.Config
	userEndpoint string
	mapIdentity  func(name string, body []byte) (*Identity, error)
}

// NewGitHub arma el provider de GitHub.
func NewGitHub(clientID, clientSecret, redirectURL string) Provider {
	return &restProvider{
		name: "github",
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoints.GitHub,
		},
		userEndpoint: githubUserEndpoint,
		mapIdentity:  mapGitHub,
	}
}

// NewDiscord arma el provider de Discord.
func NewDiscord(clientID, clientSecret, redirectURL string) Provider {
	return &restProvider{
		name: "discord",
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint:     discordEndpoint,
		},
		userEndpoint: discordUserEndpoint,
		mapIdentity:  mapDiscord,
	}
}

func (p *restProvider) Name() string { return p.name }

func (p *restProvider) AuthCodeURL(ctx context.Context, state string) (string, error) {
	return p.cfg.AuthCodeURL(state), nil
}

func (p *restProvider) Exchange(ctx context.Context, state, code string) (*Identity, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, autherr.ErrUnauthorized
	}

	httpClient := p.cfg.Client(ctx, tok)
	httpClient.Timeout = 10 * time.Second
	resp, err := httpClient.Get(p.userEndpoint)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, autherr.Internal(fmt.Errorf("idp %s: user endpoint %d", p.name, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, autherr.Internal(err)
	}
	return p.mapIdentity(p.name, body)
}

func mapGitHub(name string, body []byte) (*Identity, error) {
	var u struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, autherr.Internal(err)
	}
	first, last := splitName(u.Name)
	if first == "" {
		first = u.Login
	}
	return &Identity{
		Provider:      name,
		Subject:       strconv.FormatInt(u.ID, 10),
		Email:         u.Email,
		EmailVerified: u.Email != "", // GitHub solo expone emails verificados por API
		FirstName:     first,
		LastName:      last,
	}, nil
}

func mapDiscord(name string, body []byte) (*Identity, error) {
	var u struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Verified bool   `json:"verified"`
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, autherr.Internal(err)
	}
	return &Identity{
		Provider:      name,
		Subject:       u.ID,
		Email:         u.Email,
		EmailVerified: u.Verified,
		FirstName:     u.Username,
	}, nil
}
