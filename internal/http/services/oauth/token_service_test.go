package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/janus/internal/authcfg"
	"github.com/dropDatabas3/janus/internal/authz"
	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/domain/repository/repotest"
	"github.com/dropDatabas3/janus/internal/jwt"
	"github.com/dropDatabas3/janus/internal/security/password"
)

type tokenFixture struct {
	da          *repotest.Store
	coordinator *authz.Coordinator
	flags       *authz.FlagStore
	refresh     *authz.RefreshStore
	signer      *jwt.Signer
	system      authcfg.System
	svc         TokenService
}

func newTokenFixture(t *testing.T, system authcfg.System) *tokenFixture {
	t.Helper()
	store := cache.NewMemory("test")
	ks := jwt.NewKeystore(store)
	require.NoError(t, ks.EnsureBootstrap(context.Background()))
	signer := jwt.NewSigner(ks, jwt.SignerConfig{Issuer: "https://auth.test"})

	da := repotest.New()
	coordinator := authz.NewCoordinator(store)
	flags := authz.NewFlagStore(store)
	f := &tokenFixture{
		da:          da,
		coordinator: coordinator,
		flags:       flags,
		refresh:     authz.NewRefreshStore(store),
		signer:      signer,
		system:      system,
	}
	f.svc = NewTokenService(da, coordinator, authz.NewMachine(coordinator, flags), f.refresh, signer, system, nil)
	return f
}

func baseSystem() authcfg.System {
	return authcfg.System{
		EnableSignUp:         true,
		EnablePasswordSignIn: true,
		AuthCodeTTL:          5 * time.Minute,
		RefreshTokenTTL:      24 * time.Hour,
		MfaCodeTTL:           5 * time.Minute,
		LockoutWindow:        10 * time.Minute,
	}
}

func (f *tokenFixture) seedCode(t *testing.T, mutate func(*repository.User, *repository.App, *authz.CodeBody)) (string, *repository.User) {
	t.Helper()
	user := f.da.AddUser(&repository.User{Email: "ana@example.com", EmailVerified: true, FirstName: "Ana"})
	app := f.da.AddApp(&repository.App{
		ClientID:           "spa-client",
		Name:               "SPA",
		Type:               repository.AppTypeSPA,
		RedirectURIs:       []string{"https://app.test/cb"},
		Scopes:             []string{"openid", "profile", "offline_access"},
		IsActive:           true,
		UseSystemMfaConfig: true,
	})
	body := &authz.CodeBody{
		AppID:   app.ID,
		AppName: app.Name,
		User:    authz.SnapshotUser(user, ""),
		Request: authz.AuthorizeRequest{
			ClientID:            app.ClientID,
			RedirectURI:         "https://app.test/cb",
			ResponseType:        "code",
			Scopes:              []string{"openid", "profile", "offline_access"},
			CodeChallenge:       "verifier-plano",
			CodeChallengeMethod: "plain",
			State:               "st",
		},
	}
	if mutate != nil {
		mutate(user, app, body)
	}
	code, err := f.coordinator.Create(context.Background(), body, 5*time.Minute)
	require.NoError(t, err)
	return code, user
}

func TestExchangeAuthCodeHappyPath(t *testing.T) {
	sys := baseSystem()
	sys.EnableSignInLog = true
	f := newTokenFixture(t, sys)
	code, user := f.seedCode(t, nil)

	resp, err := f.svc.ExchangeAuthorizationCode(context.Background(), AuthCodeRequest{
		Code:         code,
		ClientID:     "spa-client",
		CodeVerifier: "verifier-plano",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotEmpty(t, resp.IDToken)
	assert.Equal(t, "openid profile offline_access", resp.Scope)

	claims, err := f.signer.VerifyAccess(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.AuthID, claims.Subject)

	assert.Equal(t, 1, f.da.UsersByID[user.ID].LoginCount)
	require.Len(t, f.da.SignIns, 1)
}

func TestExchangeAuthCodeReplayFails(t *testing.T) {
	f := newTokenFixture(t, baseSystem())
	code, _ := f.seedCode(t, nil)

	req := AuthCodeRequest{Code: code, ClientID: "spa-client", CodeVerifier: "verifier-plano"}
	_, err := f.svc.ExchangeAuthorizationCode(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.ExchangeAuthorizationCode(context.Background(), req)
	assert.ErrorIs(t, err, autherr.ErrWrongAuthCode)
}

func TestExchangeAuthCodeWrongVerifier(t *testing.T) {
	f := newTokenFixture(t, baseSystem())
	code, _ := f.seedCode(t, nil)

	_, err := f.svc.ExchangeAuthorizationCode(context.Background(), AuthCodeRequest{
		Code:         code,
		ClientID:     "spa-client",
		CodeVerifier: "otro",
	})
	assert.ErrorIs(t, err, autherr.ErrWrongCodeVerifier)

	// el code sigue vivo: un verifier errado no lo quema
	_, err = f.coordinator.Get(context.Background(), code)
	require.NoError(t, err)
}

func TestExchangeAuthCodeGatePending(t *testing.T) {
	sys := baseSystem()
	sys.OtpMfaRequired = true
	f := newTokenFixture(t, sys)
	code, _ := f.seedCode(t, nil)

	_, err := f.svc.ExchangeAuthorizationCode(context.Background(), AuthCodeRequest{
		Code:         code,
		ClientID:     "spa-client",
		CodeVerifier: "verifier-plano",
	})
	assert.ErrorIs(t, err, autherr.ErrMfaNotVerified)
}

func TestExchangeAuthCodeSocialFastPath(t *testing.T) {
	sys := baseSystem()
	sys.EnableUserAppConsent = true
	sys.OtpMfaRequired = true
	f := newTokenFixture(t, sys)
	code, _ := f.seedCode(t, func(u *repository.User, _ *repository.App, body *authz.CodeBody) {
		u.SocialProvider = "google"
		u.SocialAccountID = "g-123"
		body.User = authz.SnapshotUser(u, "")
		body.IsFullyAuthorized = true
	})

	resp, err := f.svc.ExchangeAuthorizationCode(context.Background(), AuthCodeRequest{
		Code:         code,
		ClientID:     "spa-client",
		CodeVerifier: "verifier-plano",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestExchangeAuthCodeClientMismatch(t *testing.T) {
	f := newTokenFixture(t, baseSystem())
	code, _ := f.seedCode(t, nil)

	_, err := f.svc.ExchangeAuthorizationCode(context.Background(), AuthCodeRequest{
		Code:         code,
		ClientID:     "otro-client",
		CodeVerifier: "verifier-plano",
	})
	assert.ErrorIs(t, err, autherr.ErrWrongAuthCode)
}

func TestExchangeRefreshToken(t *testing.T) {
	f := newTokenFixture(t, baseSystem())
	code, user := f.seedCode(t, nil)

	resp, err := f.svc.ExchangeAuthorizationCode(context.Background(), AuthCodeRequest{
		Code:         code,
		ClientID:     "spa-client",
		CodeVerifier: "verifier-plano",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.RefreshToken)

	r1, err := f.svc.ExchangeRefreshToken(context.Background(), RefreshTokenRequest{
		ClientID:     "spa-client",
		RefreshToken: resp.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, r1.AccessToken)
	assert.Empty(t, r1.RefreshToken) // no se rota

	// el mismo refresh sirve de nuevo
	_, err = f.svc.ExchangeRefreshToken(context.Background(), RefreshTokenRequest{
		ClientID:     "spa-client",
		RefreshToken: resp.RefreshToken,
	})
	require.NoError(t, err)

	claims, err := f.signer.VerifyAccess(context.Background(), r1.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.AuthID, claims.Subject)
}

func TestExchangeRefreshTokenDisabledUser(t *testing.T) {
	f := newTokenFixture(t, baseSystem())
	code, user := f.seedCode(t, nil)

	resp, err := f.svc.ExchangeAuthorizationCode(context.Background(), AuthCodeRequest{
		Code:         code,
		ClientID:     "spa-client",
		CodeVerifier: "verifier-plano",
	})
	require.NoError(t, err)

	now := time.Now()
	f.da.UsersByID[user.ID].DisabledAt = &now

	_, err = f.svc.ExchangeRefreshToken(context.Background(), RefreshTokenRequest{
		ClientID:     "spa-client",
		RefreshToken: resp.RefreshToken,
	})
	assert.ErrorIs(t, err, autherr.ErrUserDisabled)
	assert.Equal(t, 401, autherr.StatusOf(err))
}

func TestExchangeRefreshTokenWrongClient(t *testing.T) {
	f := newTokenFixture(t, baseSystem())
	code, _ := f.seedCode(t, nil)

	resp, err := f.svc.ExchangeAuthorizationCode(context.Background(), AuthCodeRequest{
		Code:         code,
		ClientID:     "spa-client",
		CodeVerifier: "verifier-plano",
	})
	require.NoError(t, err)

	_, err = f.svc.ExchangeRefreshToken(context.Background(), RefreshTokenRequest{
		ClientID:     "otro",
		RefreshToken: resp.RefreshToken,
	})
	assert.ErrorIs(t, err, autherr.ErrWrongRefreshToken)
}

func TestClientCredentials(t *testing.T) {
	f := newTokenFixture(t, baseSystem())
	hash, err := password.Hash(password.Default, "s3cr3t")
	require.NoError(t, err)
	f.da.AddApp(&repository.App{
		ClientID:   "worker",
		Type:       repository.AppTypeS2S,
		SecretHash: hash,
		Scopes:     []string{"read:jobs", "write:jobs"},
		IsActive:   true,
	})

	resp, err := f.svc.ExchangeClientCredentials(context.Background(), ClientCredentialsRequest{
		ClientID:     "worker",
		ClientSecret: "s3cr3t",
		Scope:        "read:jobs otro",
	})
	require.NoError(t, err)
	assert.Equal(t, "read:jobs", resp.Scope)
	assert.Empty(t, resp.RefreshToken)

	_, err = f.svc.ExchangeClientCredentials(context.Background(), ClientCredentialsRequest{
		ClientID:     "worker",
		ClientSecret: "nope",
	})
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)
}

func TestClientCredentialsSpaRejected(t *testing.T) {
	f := newTokenFixture(t, baseSystem())
	f.da.AddApp(&repository.App{ClientID: "spa", Type: repository.AppTypeSPA, IsActive: true})

	_, err := f.svc.ExchangeClientCredentials(context.Background(), ClientCredentialsRequest{
		ClientID:     "spa",
		ClientSecret: "whatever",
	})
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)
}

func TestRevoke(t *testing.T) {
	f := newTokenFixture(t, baseSystem())
	code, _ := f.seedCode(t, nil)

	resp, err := f.svc.ExchangeAuthorizationCode(context.Background(), AuthCodeRequest{
		Code:         code,
		ClientID:     "spa-client",
		CodeVerifier: "verifier-plano",
	})
	require.NoError(t, err)

	err = f.svc.Revoke(context.Background(), RevokeRequest{
		ClientID:      "spa-client",
		Token:         resp.RefreshToken,
		TokenTypeHint: "access_token",
	})
	assert.ErrorIs(t, err, autherr.ErrWrongTokenTypeHint)
	assert.Equal(t, 403, autherr.StatusOf(err))

	err = f.svc.Revoke(context.Background(), RevokeRequest{
		ClientID:      "otro",
		Token:         resp.RefreshToken,
		TokenTypeHint: "refresh_token",
	})
	assert.ErrorIs(t, err, autherr.ErrWrongRefreshToken)

	err = f.svc.Revoke(context.Background(), RevokeRequest{
		ClientID:      "spa-client",
		Token:         resp.RefreshToken,
		TokenTypeHint: "refresh_token",
	})
	require.NoError(t, err)

	_, err = f.svc.ExchangeRefreshToken(context.Background(), RefreshTokenRequest{
		ClientID:     "spa-client",
		RefreshToken: resp.RefreshToken,
	})
	assert.ErrorIs(t, err, autherr.ErrWrongRefreshToken)
}
