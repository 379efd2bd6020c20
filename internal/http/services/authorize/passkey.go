package authorize

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/dropDatabas3/janus/internal/authz"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/metrics"
	"github.com/dropDatabas3/janus/internal/observability/logger"
)

// BeginPasskeyEnroll issues the WebAuthn creation challenge for this code.
func (s *Service) BeginPasskeyEnroll(ctx context.Context, code string) (*protocol.CredentialCreation, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	if !cfg.AllowPasskeyEnrollment {
		return nil, autherr.Forbidden("passkey enrollment is not enabled")
	}
	return s.Passkeys.BeginRegistration(ctx, code, body.User.ID, body.User.Email, displayName(&body.User))
}

// FinishPasskeyEnroll validates the attestation response and persists the
// credential, then advances past the PasskeyEnroll gate.
func (s *Service) FinishPasskeyEnroll(ctx context.Context, code string, r *http.Request) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	pk, err := s.Passkeys.FinishRegistration(ctx, code, body.User.ID, body.User.Email, displayName(&body.User), r)
	if err != nil {
		return nil, err
	}
	if err := s.DA.Passkeys().Create(ctx, pk); err != nil {
		return nil, autherr.Internal(err)
	}
	logger.From(ctx).Info("passkey_enrolled", logger.UserID(body.User.ID))
	return s.advance(ctx, cfg, code, body)
}

// DeclinePasskey records the decline on the code body so the gate stops
// asking for this flow.
func (s *Service) DeclinePasskey(ctx context.Context, code string) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	if !body.PasskeyDeclined {
		body.PasskeyDeclined = true
		if err := s.Coordinator.Mutate(ctx, code, body, cfg.AuthCodeTTL); err != nil {
			return nil, err
		}
	}
	return s.advance(ctx, cfg, code, body)
}

// PasskeyLoginStart is the challenge plus the code that anchors the session.
type PasskeyLoginStart struct {
	Code    string                        `json:"code"`
	Options *protocol.CredentialAssertion `json:"options"`
}

// BeginPasskeyLogin starts a passkey sign-in: validates the authorize params,
// creates the code body and issues the assertion challenge keyed by it.
func (s *Service) BeginPasskeyLogin(ctx context.Context, q url.Values, emailAddr string) (*PasskeyLoginStart, error) {
	app, areq, cfg, err := s.parseRequest(ctx, q)
	if err != nil {
		return nil, err
	}
	user, err := s.DA.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(emailAddr)))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrNoUser
		}
		return nil, autherr.Internal(err)
	}
	if user.DisabledAt != nil {
		return nil, autherr.ErrUserDisabled
	}
	stored, err := s.DA.Passkeys().GetByUserID(ctx, user.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrInvalidPasskey
		}
		return nil, autherr.Internal(err)
	}

	body := &authz.CodeBody{
		AppID:   app.ID,
		AppName: app.Name,
		User:    authz.SnapshotUser(user, user.OtpSecret),
		Request: *areq,
	}
	code, err := s.Coordinator.Create(ctx, body, cfg.AuthCodeTTL)
	if err != nil {
		return nil, err
	}
	opts, err := s.Passkeys.BeginLogin(ctx, code, user.ID, user.Email, []repository.Passkey{*stored})
	if err != nil {
		return nil, err
	}
	return &PasskeyLoginStart{Code: code, Options: opts}, nil
}

// FinishPasskeyLogin validates the assertion, bumps the signature counter and
// enters the machine. A verified passkey stands in for the password factors,
// so the per-code factor flags are marked verified.
func (s *Service) FinishPasskeyLogin(ctx context.Context, code string, r *http.Request) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	stored, err := s.DA.Passkeys().GetByUserID(ctx, body.User.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrInvalidPasskey
		}
		return nil, autherr.Internal(err)
	}
	_, counter, err := s.Passkeys.FinishLogin(ctx, code, body.User.ID, body.User.Email, []repository.Passkey{*stored}, r)
	if err != nil {
		return nil, err
	}
	if err := s.DA.Passkeys().UpdateCounter(ctx, stored.ID, counter); err != nil {
		return nil, autherr.Internal(err)
	}

	for _, kind := range []authz.MfaKind{authz.MfaOtp, authz.MfaSms, authz.MfaEmail} {
		if err := s.Flags.MarkVerified(ctx, kind, code, cfg.AuthCodeTTL); err != nil {
			return nil, err
		}
	}
	logger.From(ctx).Info("passkey_sign_in", logger.UserID(body.User.ID))
	metrics.SignIns.WithLabelValues("passkey").Inc()
	return s.advance(ctx, cfg, code, body)
}

func displayName(u *authz.UserSnapshot) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
