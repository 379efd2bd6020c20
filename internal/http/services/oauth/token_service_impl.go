package oauth

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/janus/internal/authcfg"
	"github.com/dropDatabas3/janus/internal/authz"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/geo"
	"github.com/dropDatabas3/janus/internal/jwt"
	"github.com/dropDatabas3/janus/internal/metrics"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/security/password"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
)

// tokenService implements TokenService on top of the code coordinator, the
// refresh store and the signer. Every gate is re-verified here: the client
// could call token-exchange out of order, so isFullyAuthorized alone is only
// trusted for the social fast-path.
type tokenService struct {
	da          repository.DataAccess
	coordinator *authz.Coordinator
	machine     *authz.Machine
	refresh     *authz.RefreshStore
	signer      *jwt.Signer
	system      authcfg.System
	geo         geo.Resolver
}

// NewTokenService wires the token exchange service.
func NewTokenService(
	da repository.DataAccess,
	coordinator *authz.Coordinator,
	machine *authz.Machine,
	refresh *authz.RefreshStore,
	signer *jwt.Signer,
	system authcfg.System,
	geoResolver geo.Resolver,
) TokenService {
	return &tokenService{
		da:          da,
		coordinator: coordinator,
		machine:     machine,
		refresh:     refresh,
		signer:      signer,
		system:      system,
		geo:         geoResolver,
	}
}

func (s *tokenService) ExchangeAuthorizationCode(ctx context.Context, req AuthCodeRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.authcode"))

	if req.Code == "" || req.ClientID == "" || req.CodeVerifier == "" {
		return nil, autherr.Validation("code, client_id and code_verifier are required")
	}

	body, err := s.coordinator.Get(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if body.Request.ClientID != req.ClientID {
		return nil, autherr.ErrWrongAuthCode
	}

	// 1. PKCE
	if !tokens.VerifyPKCE(body.Request.CodeChallenge, req.CodeVerifier, body.Request.CodeChallengeMethod) {
		log.Warn("pkce_mismatch", logger.AppID(req.ClientID))
		return nil, autherr.ErrWrongCodeVerifier
	}

	app, err := s.da.Apps().GetByClientID(ctx, req.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrWrongAuthCode
		}
		return nil, autherr.Internal(err)
	}
	cfg := authcfg.Resolve(s.system, app, nil)

	// 2. defensa en profundidad: fast-path solo para social ya autorizado;
	// todo lo demás re-verifica cada gate contra los flags por-code
	if !(body.User.IsSocial() && body.IsFullyAuthorized) {
		if err := s.reverifyGates(ctx, cfg, req.Code, body); err != nil {
			return nil, err
		}
	}

	user, err := s.da.Users().GetByAuthID(ctx, body.User.AuthID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrNoUser
		}
		return nil, autherr.Internal(err)
	}
	if user.DisabledAt != nil {
		return nil, autherr.ErrUserDisabled
	}

	roles, err := s.da.Roles().GetUserRoles(ctx, user.ID)
	if err != nil {
		return nil, autherr.Internal(err)
	}

	// 3. acuñar tokens
	now := time.Now()
	scope := body.Request.ScopeString()
	accessToken, ttl, err := s.signer.IssueAccess(ctx, jwt.AccessTokenInput{
		Subject:  user.AuthID,
		ClientID: app.ClientID,
		Scope:    scope,
		Org:      user.OrgSlug,
		Roles:    roles,
		AppType:  string(app.Type),
	}, now)
	if err != nil {
		return nil, autherr.Internal(err)
	}

	resp := &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		Scope:       scope,
	}

	if body.Request.HasScope("offline_access") {
		refreshToken, err := s.refresh.Create(ctx, &authz.RefreshBody{
			AuthID:   user.AuthID,
			ClientID: app.ClientID,
			Scope:    scope,
			Roles:    roles,
		}, cfg.RefreshTokenTTL)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = refreshToken
	}

	if body.Request.HasScope("openid") {
		idToken, err := s.signer.IssueID(ctx, jwt.IDTokenInput{
			Subject:       user.AuthID,
			ClientID:      app.ClientID,
			Org:           user.OrgSlug,
			Email:         user.Email,
			EmailVerified: user.EmailVerified,
			FirstName:     user.FirstName,
			LastName:      user.LastName,
			Locale:        user.Locale,
			Nonce:         body.Request.Nonce,
			AuthTime:      body.CreatedAt,
		}, now)
		if err != nil {
			return nil, autherr.Internal(err)
		}
		resp.IDToken = idToken
	}

	// 4. telemetría + invalidación explícita del code (el replay no puede
	// depender del TTL)
	s.recordSignIn(ctx, cfg, user)
	if err := s.da.Users().IncrementLoginCount(ctx, user.ID); err != nil {
		log.Warn("login_count_increment_failed", logger.Err(err), logger.UserID(user.ID))
	}
	if err := s.coordinator.Invalidate(ctx, req.Code); err != nil {
		return nil, err
	}

	log.Info("auth_code_exchanged", logger.AppID(app.ClientID), logger.UserID(user.ID))
	metrics.TokensIssued.WithLabelValues("authorization_code").Inc()
	return resp, nil
}

// reverifyGates re-corre el state machine con los gates frescos; cualquier
// paso pendiente corta con MfaNotVerified.
func (s *tokenService) reverifyGates(ctx context.Context, cfg authcfg.Resolved, code string, body *authz.CodeBody) error {
	consented := true
	if cfg.EnableUserAppConsent && !body.Request.Policy.IsAccountManagement() {
		var err error
		consented, err = s.da.Consents().Exists(ctx, body.User.ID, body.AppID)
		if err != nil {
			return autherr.Internal(err)
		}
	}
	hasPasskey := body.PasskeyDeclined
	if !hasPasskey {
		if _, err := s.da.Passkeys().GetByUserID(ctx, body.User.ID); err == nil {
			hasPasskey = true
		} else if !repository.IsNotFound(err) {
			return autherr.Internal(err)
		}
	}
	hasRecovery := body.RecoveryCodesIssued
	if !hasRecovery && cfg.EnableRecoveryCode {
		var err error
		hasRecovery, err = s.da.RecoveryCodes().Has(ctx, body.User.ID)
		if err != nil {
			return autherr.Internal(err)
		}
	}

	gates, err := s.machine.CollectGates(ctx, code, consented, hasPasskey, hasRecovery)
	if err != nil {
		return err
	}
	if res := authz.NextStep(cfg, body, gates, code); !res.Done() {
		return autherr.ErrMfaNotVerified
	}
	return nil
}

func (s *tokenService) recordSignIn(ctx context.Context, cfg authcfg.Resolved, user *repository.User) {
	if !cfg.EnableSignInLog {
		return
	}
	log := logger.From(ctx)
	entry := &repository.SignInLog{UserID: user.ID, IP: logger.ClientIPFrom(ctx)}
	if entry.IP != "" && s.geo != nil {
		if loc, err := s.geo.Resolve(ctx, entry.IP); err == nil && loc != nil {
			parts := make([]string, 0, 2)
			if loc.City != "" {
				parts = append(parts, loc.City)
			}
			if loc.Country != "" {
				parts = append(parts, loc.Country)
			}
			entry.Location = strings.Join(parts, ", ")
		}
	}
	if err := s.da.SignInLogs().Create(ctx, entry); err != nil {
		// telemetría best-effort: se loguea, no corta el flujo
		log.Warn("sign_in_log_failed", logger.Err(err), logger.UserID(user.ID))
	}
}

func (s *tokenService) ExchangeRefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.refresh"))

	if req.RefreshToken == "" || req.ClientID == "" {
		return nil, autherr.Validation("refresh_token and client_id are required")
	}

	body, err := s.refresh.Get(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if body.ClientID != req.ClientID {
		return nil, autherr.ErrWrongRefreshToken
	}

	user, err := s.da.Users().GetByAuthID(ctx, body.AuthID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrWrongRefreshToken
		}
		return nil, autherr.Internal(err)
	}
	if user.DisabledAt != nil {
		return nil, autherr.ErrUserDisabled
	}

	app, err := s.da.Apps().GetByClientID(ctx, req.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrWrongRefreshToken
		}
		return nil, autherr.Internal(err)
	}

	// no se rota: mismo refresh, access nuevo con el scope/roles originales
	accessToken, ttl, err := s.signer.IssueAccess(ctx, jwt.AccessTokenInput{
		Subject:  user.AuthID,
		ClientID: app.ClientID,
		Scope:    body.Scope,
		Org:      user.OrgSlug,
		Roles:    body.Roles,
		AppType:  string(app.Type),
	}, time.Now())
	if err != nil {
		return nil, autherr.Internal(err)
	}

	log.Info("refresh_exchanged", logger.AppID(app.ClientID), logger.UserID(user.ID))
	metrics.TokensIssued.WithLabelValues("refresh_token").Inc()
	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		Scope:       body.Scope,
	}, nil
}

func (s *tokenService) ExchangeClientCredentials(ctx context.Context, req ClientCredentialsRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.client_credentials"))

	if req.ClientID == "" || req.ClientSecret == "" {
		return nil, autherr.Validation("client_id and client_secret are required")
	}

	app, err := s.da.Apps().GetByClientID(ctx, req.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrUnauthorized
		}
		return nil, autherr.Internal(err)
	}
	if !app.IsActive || app.Type != repository.AppTypeS2S || app.SecretHash == "" {
		return nil, autherr.ErrUnauthorized
	}
	if !password.Verify(req.ClientSecret, app.SecretHash) {
		return nil, autherr.ErrUnauthorized
	}

	scopes := app.AllowedScopes(strings.Fields(req.Scope))
	if len(scopes) == 0 {
		scopes = app.Scopes
	}
	scope := strings.Join(scopes, " ")

	accessToken, ttl, err := s.signer.IssueAccess(ctx, jwt.AccessTokenInput{
		Subject:  app.ClientID,
		ClientID: app.ClientID,
		Scope:    scope,
		AppType:  string(app.Type),
	}, time.Now())
	if err != nil {
		return nil, autherr.Internal(err)
	}

	log.Info("client_credentials_exchanged", logger.AppID(app.ClientID))
	metrics.TokensIssued.WithLabelValues("client_credentials").Inc()
	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		Scope:       scope,
	}, nil
}

func (s *tokenService) Revoke(ctx context.Context, req RevokeRequest) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.revoke"))

	if req.TokenTypeHint != "refresh_token" {
		return autherr.ErrWrongTokenTypeHint
	}
	if req.Token == "" || req.ClientID == "" {
		return autherr.ErrWrongRefreshToken
	}

	body, err := s.refresh.Get(ctx, req.Token)
	if err != nil {
		return err
	}
	if body.ClientID != req.ClientID {
		return autherr.ErrWrongRefreshToken
	}
	if err := s.refresh.Delete(ctx, req.Token); err != nil {
		return err
	}
	log.Info("refresh_revoked", logger.AppID(req.ClientID))
	return nil
}
