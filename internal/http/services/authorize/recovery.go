package authorize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/dropDatabas3/janus/internal/authz"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/metrics"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
)

const recoveryCodeCount = 8

// RecoveryCodes is returned exactly once, at generation time. Only hashes
// are persisted.
type RecoveryCodes struct {
	Codes []string    `json:"codes"`
	Step  *StepResult `json:"step"`
}

// EnrollRecoveryCodes generates a fresh set, stores the hashes and marks the
// gate passed on the code body.
func (s *Service) EnrollRecoveryCodes(ctx context.Context, code string) (*RecoveryCodes, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	if !cfg.EnableRecoveryCode {
		return nil, autherr.Forbidden("recovery codes are not enabled")
	}

	codes := make([]string, 0, recoveryCodeCount)
	hashes := make([]string, 0, recoveryCodeCount)
	for i := 0; i < recoveryCodeCount; i++ {
		rc, err := tokens.GenerateOpaqueToken(5)
		if err != nil {
			return nil, autherr.Internal(err)
		}
		codes = append(codes, rc)
		hashes = append(hashes, hashRecoveryCode(rc))
	}
	if err := s.DA.RecoveryCodes().Replace(ctx, body.User.ID, hashes); err != nil {
		return nil, autherr.Internal(err)
	}

	body.RecoveryCodesIssued = true
	if err := s.Coordinator.Mutate(ctx, code, body, cfg.AuthCodeTTL); err != nil {
		return nil, err
	}
	step, err := s.advance(ctx, cfg, code, body)
	if err != nil {
		return nil, err
	}
	return &RecoveryCodes{Codes: codes, Step: step}, nil
}

// SignInRecoveryCode is the MFA fallback: a valid unused recovery code signs
// the user in and satisfies every factor gate for the new flow.
func (s *Service) SignInRecoveryCode(ctx context.Context, q url.Values, emailAddr, recoveryCode string) (*StepResult, error) {
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

	ok, err := s.DA.RecoveryCodes().Consume(ctx, user.ID, hashRecoveryCode(strings.TrimSpace(recoveryCode)))
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if !ok {
		return nil, autherr.ErrWrongMfaCode
	}
	logger.From(ctx).Info("recovery_code_sign_in", logger.UserID(user.ID))
	metrics.SignIns.WithLabelValues("recovery_code").Inc()

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
	for _, kind := range []authz.MfaKind{authz.MfaOtp, authz.MfaSms, authz.MfaEmail} {
		if err := s.Flags.MarkVerified(ctx, kind, code, cfg.AuthCodeTTL); err != nil {
			return nil, err
		}
	}
	return s.advance(ctx, cfg, code, body)
}

func hashRecoveryCode(rc string) string {
	sum := sha256.Sum256([]byte(rc))
	return hex.EncodeToString(sum[:])
}
