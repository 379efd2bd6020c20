package authorize

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/dropDatabas3/janus/internal/authcfg"
	"github.com/dropDatabas3/janus/internal/authz"
	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/idp"
	"github.com/dropDatabas3/janus/internal/metrics"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
)

const (
	fedRequestKeyPrefix = "fedreq:"
	fedRequestTTL       = 10 * time.Minute
)

// FederationRedirect validates the authorize params, stashes them keyed by a
// fresh state token and returns the provider's authorization URL. The local
// request has to survive the round-trip through the provider: the callback
// re-enters with nothing but state + provider code.
func (s *Service) FederationRedirect(ctx context.Context, providerName string, q url.Values) (string, error) {
	_, areq, _, err := s.parseRequest(ctx, q)
	if err != nil {
		return "", err
	}
	provider, err := s.Providers.Get(providerName)
	if err != nil {
		return "", err
	}

	state, err := tokens.GenerateOpaqueToken(24)
	if err != nil {
		return "", autherr.Internal(err)
	}
	raw, err := json.Marshal(areq)
	if err != nil {
		return "", autherr.Internal(err)
	}
	if err := s.Store.Set(ctx, fedRequestKeyPrefix+state, raw, fedRequestTTL); err != nil {
		return "", autherr.Internal(err)
	}
	return provider.AuthCodeURL(ctx, state)
}

// FederationCallback exchanges the provider credential, resolves the local
// user and re-enters the state machine. Social users skip the password MFA
// gates but still pass through consent.
func (s *Service) FederationCallback(ctx context.Context, providerName, state, providerCode string) (*StepResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("authorize.federation"))

	provider, err := s.Providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	raw, err := s.Store.GetDel(ctx, fedRequestKeyPrefix+state)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, autherr.ErrWrongAuthCode
		}
		return nil, autherr.Internal(err)
	}
	var areq authz.AuthorizeRequest
	if err := json.Unmarshal(raw, &areq); err != nil {
		return nil, autherr.Internal(err)
	}

	ident, err := provider.Exchange(ctx, state, providerCode)
	if err != nil {
		return nil, err
	}
	user, err := idp.FindOrCreateUser(ctx, s.DA.Users(), ident)
	if err != nil {
		return nil, err
	}
	log.Info("federated_sign_in",
		logger.UserID(user.ID),
		logger.String("provider", providerName),
		logger.AppID(areq.ClientID))
	metrics.SignIns.WithLabelValues("federation").Inc()

	app, err := s.DA.Apps().GetByClientID(ctx, areq.ClientID)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	cfg := authcfg.Resolve(s.System, app, nil)

	body := &authz.CodeBody{
		AppID:   app.ID,
		AppName: app.Name,
		User:    authz.SnapshotUser(user, ""),
		Request: areq,
	}
	code, err := s.Coordinator.Create(ctx, body, cfg.AuthCodeTTL)
	if err != nil {
		return nil, err
	}
	if err := s.DA.Users().IncrementLoginCount(ctx, user.ID); err != nil {
		log.Warn("login_count_increment_failed", logger.Err(err), logger.UserID(user.ID))
	}
	return s.advance(ctx, cfg, code, body)
}
