package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/types"
)

// AccessClaims son los claims del access token que emitimos.
type AccessClaims struct {
	Scope string   `json:"scope,omitempty"`
	Org   string   `json:"org,omitempty"`
	Roles []string `json:"roles,omitempty"`
	gojwt.RegisteredClaims
}

// IDClaims son los claims del ID token (OIDC core, perfil mínimo).
type IDClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	FirstName     string `json:"given_name,omitempty"`
	LastName      string `json:"family_name,omitempty"`
	Locale        string `json:"locale,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
	gojwt.RegisteredClaims
}

// Signer emite y verifica JWTs RS256 usando el material del Keystore.
type Signer struct {
	ks   *Keystore
	iss  string
	mode types.IssuerMode

	accessTTLSpa time.Duration
	accessTTLS2S time.Duration
	idTTL        time.Duration
}

// SignerConfig agrupa issuer, modo de issuer y TTLs por tipo de cliente.
type SignerConfig struct {
	Issuer       string
	Mode         types.IssuerMode
	AccessTTLSpa time.Duration
	AccessTTLS2S time.Duration
	IDTokenTTL   time.Duration
}

func NewSigner(ks *Keystore, cfg SignerConfig) *Signer {
	if cfg.AccessTTLSpa <= 0 {
		cfg.AccessTTLSpa = 30 * time.Minute
	}
	if cfg.AccessTTLS2S <= 0 {
		cfg.AccessTTLS2S = time.Hour
	}
	if cfg.IDTokenTTL <= 0 {
		cfg.IDTokenTTL = 30 * time.Minute
	}
	return &Signer{
		ks:           ks,
		iss:          cfg.Issuer,
		mode:         cfg.Mode,
		accessTTLSpa: cfg.AccessTTLSpa,
		accessTTLS2S: cfg.AccessTTLS2S,
		idTTL:        cfg.IDTokenTTL,
	}
}

func (s *Signer) Issuer() string { return s.iss }

// issuerFor aplica el modo de issuer sobre la base para una org.
func (s *Signer) issuerFor(org string) string { return s.mode.IssuerFor(s.iss, org) }

// AccessTTL devuelve el TTL según el tipo de app ("s2s" o "spa").
func (s *Signer) AccessTTL(appType string) time.Duration {
	if appType == "s2s" {
		return s.accessTTLS2S
	}
	return s.accessTTLSpa
}

func (s *Signer) IDTokenTTL() time.Duration { return s.idTTL }

// AccessTokenInput es lo mínimo para acuñar un access token.
type AccessTokenInput struct {
	Subject  string
	ClientID string
	Scope    string
	Org      string
	Roles    []string
	AppType  string // spa | s2s
}

// IssueAccess acuña un access token firmado con la clave activa.
func (s *Signer) IssueAccess(ctx context.Context, in AccessTokenInput, now time.Time) (string, time.Duration, error) {
	ttl := s.AccessTTL(in.AppType)
	claims := AccessClaims{
		Scope: in.Scope,
		Org:   in.Org,
		Roles: in.Roles,
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    s.issuerFor(in.Org),
			Subject:   in.Subject,
			Audience:  gojwt.ClaimStrings{in.ClientID},
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := s.signWithActive(ctx, claims)
	if err != nil {
		return "", 0, err
	}
	return signed, ttl, nil
}

// IDTokenInput describe al usuario autenticado para el ID token.
type IDTokenInput struct {
	Subject       string
	ClientID      string
	Org           string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
	Locale        string
	Nonce         string
	AuthTime      time.Time
}

// IssueID acuña el ID token OIDC.
func (s *Signer) IssueID(ctx context.Context, in IDTokenInput, now time.Time) (string, error) {
	claims := IDClaims{
		Email:         in.Email,
		EmailVerified: in.EmailVerified,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Locale:        in.Locale,
		Nonce:         in.Nonce,
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    s.issuerFor(in.Org),
			Subject:   in.Subject,
			Audience:  gojwt.ClaimStrings{in.ClientID},
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.idTTL)),
		},
	}
	if !in.AuthTime.IsZero() {
		claims.AuthTime = in.AuthTime.Unix()
	}
	return s.signWithActive(ctx, claims)
}

func (s *Signer) signWithActive(ctx context.Context, claims gojwt.Claims) (string, error) {
	kid, priv, _, err := s.ks.Active(ctx)
	if err != nil {
		return "", fmt.Errorf("jwt: sin clave activa: %w", err)
	}
	tok := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	return tok.SignedString(priv)
}

// Keyfunc resuelve la pública por el kid del header. Firma desconocida o
// alg distinto de RS256 cortan acá.
func (s *Signer) Keyfunc(ctx context.Context) gojwt.Keyfunc {
	return func(t *gojwt.Token) (any, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("jwt: alg inesperado %q", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("jwt: header sin kid")
		}
		return s.ks.PublicKeyByKID(ctx, kid)
	}
}

// VerifyAccess parsea y valida un access token (firma, exp, iss). El issuer
// esperado depende del claim org, así que se chequea después del parseo.
func (s *Signer) VerifyAccess(ctx context.Context, raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := gojwt.ParseWithClaims(raw, claims, s.Keyfunc(ctx),
		gojwt.WithValidMethods([]string{"RS256"}),
		gojwt.WithExpirationRequired(),
	)
	if err != nil || claims.Issuer != s.issuerFor(claims.Org) {
		return nil, autherr.ErrUnauthorized
	}
	return claims, nil
}
