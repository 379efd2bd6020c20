package authorize

import (
	"context"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/observability/logger"
)

// ConsentView is what the consent screen renders.
type ConsentView struct {
	AppName string   `json:"appName"`
	Scopes  []string `json:"scopes"`
}

// GetConsent returns the data for the consent screen.
func (s *Service) GetConsent(ctx context.Context, code string) (*ConsentView, error) {
	body, _, _, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	return &ConsentView{AppName: body.AppName, Scopes: body.Request.Scopes}, nil
}

// GrantConsent persists the (user, app) grant and advances. The grant is
// durable: the next flow for the same pair skips the consent view entirely.
func (s *Service) GrantConsent(ctx context.Context, code string) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.DA.Consents().Grant(ctx, body.User.ID, body.AppID); err != nil {
		return nil, autherr.Internal(err)
	}
	logger.From(ctx).Info("consent_granted", logger.UserID(body.User.ID), logger.AppID(body.Request.ClientID))
	return s.advance(ctx, cfg, code, body)
}
