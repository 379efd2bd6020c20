package authz

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
)

func testApp() *repository.App {
	return &repository.App{
		ClientID:     "cli_abc",
		Name:         "Demo",
		Type:         "spa",
		RedirectURIs: []string{"https://app.example.com/cb"},
		Scopes:       []string{"openid", "profile", "offline_access"},
		IsActive:     true,
	}
}

func baseQuery() url.Values {
	return url.Values{
		"client_id":             {"cli_abc"},
		"redirect_uri":          {"https://app.example.com/cb"},
		"response_type":         {"code"},
		"scope":                 {"openid profile"},
		"code_challenge":        {"challenge"},
		"code_challenge_method": {"S256"},
		"state":                 {"xyz"},
	}
}

func TestParseAuthorizeRequest(t *testing.T) {
	req, err := ParseAuthorizeRequest(baseQuery(), testApp())
	require.NoError(t, err)
	assert.Equal(t, "cli_abc", req.ClientID)
	assert.Equal(t, []string{"openid", "profile"}, req.Scopes)
	assert.Equal(t, PolicySignInOrSignUp, req.Policy.Kind)
	assert.Equal(t, "openid profile", req.ScopeString())
}

func TestParseAuthorizeRequestFiltersScopes(t *testing.T) {
	q := baseQuery()
	q.Set("scope", "openid admin:write openid profile")

	req, err := ParseAuthorizeRequest(q, testApp())
	require.NoError(t, err)
	// deduplicado y filtrado contra los scopes de la app
	assert.Equal(t, []string{"openid", "profile"}, req.Scopes)
}

func TestParseAuthorizeRequestNoValidScopes(t *testing.T) {
	q := baseQuery()
	q.Set("scope", "admin:write otra:cosa")

	_, err := ParseAuthorizeRequest(q, testApp())
	assert.ErrorIs(t, err, autherr.ErrUnknownScope)
}

func TestParseAuthorizeRequestValidations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(url.Values)
	}{
		{"sin client_id", func(q url.Values) { q.Del("client_id") }},
		{"sin redirect_uri", func(q url.Values) { q.Del("redirect_uri") }},
		{"redirect no registrado", func(q url.Values) { q.Set("redirect_uri", "https://evil.example.com/cb") }},
		{"response_type token", func(q url.Values) { q.Set("response_type", "token") }},
		{"sin code_challenge", func(q url.Values) { q.Del("code_challenge") }},
		{"method desconocido", func(q url.Values) { q.Set("code_challenge_method", "S512") }},
		{"policy desconocida", func(q url.Values) { q.Set("policy", "yolo") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := baseQuery()
			tc.mutate(q)
			_, err := ParseAuthorizeRequest(q, testApp())
			assert.Equal(t, autherr.KindValidation, autherr.KindOf(err))
		})
	}
}

func TestParseAuthorizeRequestDefaultsPlainMethod(t *testing.T) {
	q := baseQuery()
	q.Del("code_challenge_method")

	req, err := ParseAuthorizeRequest(q, testApp())
	require.NoError(t, err)
	assert.Equal(t, "plain", req.CodeChallengeMethod)
}
