// Package authorize implements the step endpoints of the authorization flow:
// credentials, MFA enrollment and verification, passkeys, recovery codes,
// consent and federation. Every operation loads the code body, does its one
// step, and re-runs the state machine to compute the next view.
package authorize

import (
	"context"

	"github.com/dropDatabas3/janus/internal/authcfg"
	"github.com/dropDatabas3/janus/internal/authz"
	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/email"
	"github.com/dropDatabas3/janus/internal/idp"
	"github.com/dropDatabas3/janus/internal/rate"
	"github.com/dropDatabas3/janus/internal/security/passkey"
	"github.com/dropDatabas3/janus/internal/security/secretbox"
	"github.com/dropDatabas3/janus/internal/sms"
)

// StepResult is the uniform response of every step endpoint. Exactly one of
// the three shapes is populated: {success}, {code, nextPage}, or the terminal
// redirect payload {code, redirectUri, state, scopes}.
type StepResult struct {
	Success     bool       `json:"success,omitempty"`
	Code        string     `json:"code,omitempty"`
	NextPage    authz.Step `json:"nextPage,omitempty"`
	RedirectURI string     `json:"redirectUri,omitempty"`
	State       string     `json:"state,omitempty"`
	Scopes      []string   `json:"scopes,omitempty"`
}

func stepFrom(code string, res authz.NextStepResult) *StepResult {
	if res.Done() {
		return &StepResult{
			Code:        res.Redirect.Code,
			RedirectURI: res.Redirect.RedirectURI,
			State:       res.Redirect.State,
			Scopes:      res.Redirect.Scopes,
		}
	}
	return &StepResult{Code: code, NextPage: res.NextPage}
}

// Deps are the collaborators of the authorize service.
type Deps struct {
	DA           repository.DataAccess
	Coordinator  *authz.Coordinator
	Machine      *authz.Machine
	Flags        *authz.FlagStore
	Attempts     *authz.Attempts
	LoginLimiter rate.Limiter
	Box          *secretbox.Box
	Passkeys     *passkey.Service
	Providers    *idp.Registry
	Mailer       email.Sender
	Texter       sms.Sender
	Store        cache.Client
	System       authcfg.System
}

// Service implements the step endpoints.
type Service struct {
	Deps
}

func NewService(d Deps) *Service { return &Service{Deps: d} }

// loadStep resolves the triple every step needs: code body, owning app and
// the per-request resolved config.
func (s *Service) loadStep(ctx context.Context, code string) (*authz.CodeBody, *repository.App, authcfg.Resolved, error) {
	body, err := s.Coordinator.Get(ctx, code)
	if err != nil {
		return nil, nil, authcfg.Resolved{}, err
	}
	app, err := s.DA.Apps().GetByClientID(ctx, body.Request.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, authcfg.Resolved{}, autherr.ErrWrongAuthCode
		}
		return nil, nil, authcfg.Resolved{}, autherr.Internal(err)
	}
	return body, app, authcfg.Resolve(s.System, app, nil), nil
}

// collectGates assembles the full gate snapshot: ephemeral flags from the
// state store plus the persisted consent/passkey/recovery facts.
func (s *Service) collectGates(ctx context.Context, cfg authcfg.Resolved, code string, body *authz.CodeBody) (authz.Gates, error) {
	consented := true
	if cfg.EnableUserAppConsent && !body.Request.Policy.IsAccountManagement() {
		var err error
		consented, err = s.DA.Consents().Exists(ctx, body.User.ID, body.AppID)
		if err != nil {
			return authz.Gates{}, autherr.Internal(err)
		}
	}
	hasPasskey := false
	if _, err := s.DA.Passkeys().GetByUserID(ctx, body.User.ID); err == nil {
		hasPasskey = true
	} else if !repository.IsNotFound(err) {
		return authz.Gates{}, autherr.Internal(err)
	}
	hasRecovery := body.RecoveryCodesIssued
	if !hasRecovery && cfg.EnableRecoveryCode {
		var err error
		hasRecovery, err = s.DA.RecoveryCodes().Has(ctx, body.User.ID)
		if err != nil {
			return authz.Gates{}, autherr.Internal(err)
		}
	}
	return s.Machine.CollectGates(ctx, code, consented, hasPasskey, hasRecovery)
}

// advance re-runs the machine after a completed step and shapes the response.
func (s *Service) advance(ctx context.Context, cfg authcfg.Resolved, code string, body *authz.CodeBody) (*StepResult, error) {
	gates, err := s.collectGates(ctx, cfg, code, body)
	if err != nil {
		return nil, err
	}
	res, err := s.Machine.Advance(ctx, cfg, code, body, gates)
	if err != nil {
		return nil, err
	}
	return stepFrom(code, res), nil
}

// startFlow persists a fresh code body for an authenticated credential and
// computes the first post-authorize step.
func (s *Service) startFlow(ctx context.Context, cfg authcfg.Resolved, app *repository.App, user *repository.User, req *authz.AuthorizeRequest) (*StepResult, error) {
	otpCipher := user.OtpSecret
	body := &authz.CodeBody{
		AppID:   app.ID,
		AppName: app.Name,
		User:    authz.SnapshotUser(user, otpCipher),
		Request: *req,
	}
	code, err := s.Coordinator.Create(ctx, body, cfg.AuthCodeTTL)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, cfg, code, body)
}
