package jwt

import (
	"context"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/types"
)

func newTestSigner(t *testing.T) (*Signer, *Keystore) {
	t.Helper()
	ks := NewKeystore(cache.NewMemory("test"))
	ks.cacheTTL = 0
	require.NoError(t, ks.EnsureBootstrap(context.Background()))
	s := NewSigner(ks, SignerConfig{Issuer: "https://auth.example.com"})
	return s, ks
}

func TestIssueAndVerifyAccess(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner(t)

	raw, ttl, err := s.IssueAccess(ctx, AccessTokenInput{
		Subject:  "usr_1",
		ClientID: "cli_abc",
		Scope:    "openid profile",
		Org:      "acme",
		Roles:    []string{"admin"},
		AppType:  "spa",
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, ttl)

	claims, err := s.VerifyAccess(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", claims.Subject)
	assert.Equal(t, "openid profile", claims.Scope)
	assert.Equal(t, "acme", claims.Org)
	assert.Equal(t, []string{"admin"}, claims.Roles)
}

func TestAccessTTLByAppType(t *testing.T) {
	s, _ := newTestSigner(t)
	assert.Equal(t, time.Hour, s.AccessTTL("s2s"))
	assert.Equal(t, 30*time.Minute, s.AccessTTL("spa"))
}

func TestVerifyRejectsExpired(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner(t)

	raw, _, err := s.IssueAccess(ctx, AccessTokenInput{Subject: "usr_1", ClientID: "cli", AppType: "spa"},
		time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = s.VerifyAccess(ctx, raw)
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	ctx := context.Background()
	s, ks := newTestSigner(t)
	other := NewSigner(ks, SignerConfig{Issuer: "https://otro.example.com"})

	raw, _, err := other.IssueAccess(ctx, AccessTokenInput{Subject: "usr_1", ClientID: "cli"}, time.Now())
	require.NoError(t, err)

	_, err = s.VerifyAccess(ctx, raw)
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)
}

// En modo path el issuer lleva la org del token y la verificación lo exige.
func TestIssuerPerOrgInPathMode(t *testing.T) {
	ctx := context.Background()
	_, ks := newTestSigner(t)
	s := NewSigner(ks, SignerConfig{Issuer: "https://auth.example.com", Mode: types.IssuerModePath})

	raw, _, err := s.IssueAccess(ctx, AccessTokenInput{Subject: "usr_1", ClientID: "cli", Org: "acme"}, time.Now())
	require.NoError(t, err)
	claims, err := s.VerifyAccess(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/t/acme", claims.Issuer)

	// sin org cae al issuer base
	raw, _, err = s.IssueAccess(ctx, AccessTokenInput{Subject: "usr_1", ClientID: "cli"}, time.Now())
	require.NoError(t, err)
	claims, err = s.VerifyAccess(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com", claims.Issuer)

	// un token global no pasa por el verificador en modo path para esa org
	global := NewSigner(ks, SignerConfig{Issuer: "https://auth.example.com"})
	raw, _, err = global.IssueAccess(ctx, AccessTokenInput{Subject: "usr_1", ClientID: "cli", Org: "acme"}, time.Now())
	require.NoError(t, err)
	_, err = s.VerifyAccess(ctx, raw)
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)
}

func TestVerifyRejectsAlgNone(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner(t)

	tok := gojwt.NewWithClaims(gojwt.SigningMethodNone, gojwt.RegisteredClaims{
		Issuer:    s.Issuer(),
		Subject:   "usr_1",
		ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := tok.SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.VerifyAccess(ctx, raw)
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)
}

// Un token emitido antes de rotar sigue verificando (la pública quedó
// deprecada) y deja de hacerlo después del cleanup.
func TestTokenSurvivesRotationUntilCleanup(t *testing.T) {
	ctx := context.Background()
	s, ks := newTestSigner(t)

	raw, _, err := s.IssueAccess(ctx, AccessTokenInput{Subject: "usr_1", ClientID: "cli"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, ks.Rotate(ctx))
	_, err = s.VerifyAccess(ctx, raw)
	require.NoError(t, err, "token pre-rotación debe verificar contra la clave deprecada")

	require.NoError(t, ks.CleanDeprecated(ctx))
	_, err = s.VerifyAccess(ctx, raw)
	assert.ErrorIs(t, err, autherr.ErrUnauthorized)
}

func TestIssueIDCarriesProfile(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner(t)

	authTime := time.Now().Add(-time.Minute)
	raw, err := s.IssueID(ctx, IDTokenInput{
		Subject:       "usr_1",
		ClientID:      "cli_abc",
		Email:         "ana@example.com",
		EmailVerified: true,
		FirstName:     "Ana",
		LastName:      "García",
		Nonce:         "n-0S6_WzA2Mj",
		AuthTime:      authTime,
	}, time.Now())
	require.NoError(t, err)

	claims := &IDClaims{}
	_, err = gojwt.ParseWithClaims(raw, claims, s.Keyfunc(ctx), gojwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, "n-0S6_WzA2Mj", claims.Nonce)
	assert.Equal(t, authTime.Unix(), claims.AuthTime)
}
