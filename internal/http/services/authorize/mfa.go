package authorize

import (
	"context"
	"time"

	"github.com/dropDatabas3/janus/internal/authcfg"
	"github.com/dropDatabas3/janus/internal/authz"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/email"
	"github.com/dropDatabas3/janus/internal/metrics"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/security/totp"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
)

// EnrollMfa records the factor the user picked on the MfaEnroll view. The
// choice must come from the enforced list.
func (s *Service) EnrollMfa(ctx context.Context, code, factor string) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	chosen := repository.MfaType(factor)
	allowed := false
	for _, t := range cfg.EnforceOneMfaEnrollment {
		if t == chosen {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, autherr.Validation("mfa type %q is not an enrollment option", factor)
	}

	if err := s.DA.Users().EnrollMfaType(ctx, body.User.ID, chosen); err != nil {
		return nil, autherr.Internal(err)
	}
	if !body.User.HasMfaType(chosen) {
		body.User.MfaTypes = append(body.User.MfaTypes, chosen)
	}
	// the resolver reads enrolled factors from the snapshot, persist it
	if err := s.Coordinator.Mutate(ctx, code, body, cfg.AuthCodeTTL); err != nil {
		return nil, err
	}
	return s.advance(ctx, cfg, code, body)
}

// OtpSetupInfo is what the OtpSetup view needs to render the QR.
type OtpSetupInfo struct {
	Secret     string `json:"secret"`
	OtpAuthURL string `json:"otpAuthUrl"`
}

// GetOtpSetup generates (or re-serves) the TOTP secret for the OtpSetup view.
// The secret is stored encrypted, both in the code body and on the user row,
// and only confirmed once a code verifies.
func (s *Service) GetOtpSetup(ctx context.Context, code string) (*OtpSetupInfo, error) {
	body, app, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	if body.User.OtpVerified {
		return nil, autherr.Forbidden("otp is already configured")
	}

	var secretB32 string
	if body.User.OtpSecretCipher != "" {
		secretB32, err = s.Box.Decrypt(body.User.OtpSecretCipher)
		if err != nil {
			return nil, autherr.Internal(err)
		}
	} else {
		_, b32, err := totp.GenerateSecret()
		if err != nil {
			return nil, autherr.Internal(err)
		}
		cipher, err := s.Box.Encrypt(b32)
		if err != nil {
			return nil, autherr.Internal(err)
		}
		if err := s.DA.Users().UpdateOtpSecret(ctx, body.User.ID, cipher); err != nil {
			return nil, autherr.Internal(err)
		}
		body.User.OtpSecretCipher = cipher
		if err := s.Coordinator.Mutate(ctx, code, body, cfg.AuthCodeTTL); err != nil {
			return nil, err
		}
		secretB32 = b32
	}

	return &OtpSetupInfo{
		Secret:     secretB32,
		OtpAuthURL: totp.OTPAuthURL(app.Name, body.User.Email, secretB32),
	}, nil
}

// ProcessOtpMfa verifies a 6-digit TOTP code. Five wrong codes lock OTP for
// this authorization code; the sixth attempt gets the locked error without
// touching the secret.
func (s *Service) ProcessOtpMfa(ctx context.Context, code, otpCode string) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}

	locked, err := s.Attempts.Locked(ctx, "otp", code, authz.MaxMfaAttempts)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, autherr.ErrOtpMfaLocked
	}

	cipher := body.User.OtpSecretCipher
	if cipher == "" {
		user, err := s.DA.Users().GetByAuthID(ctx, body.User.AuthID)
		if err != nil {
			return nil, autherr.Internal(err)
		}
		cipher = user.OtpSecret
	}
	if cipher == "" {
		return nil, autherr.Validation("otp is not configured for this user")
	}
	secretB32, err := s.Box.Decrypt(cipher)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	secretRaw, err := totp.DecodeSecret(secretB32)
	if err != nil {
		return nil, autherr.Internal(err)
	}

	if !totp.Verify(secretRaw, otpCode, time.Now(), 1) {
		if _, err := s.Attempts.Fail(ctx, "otp", code, authz.MaxMfaAttempts, cfg.AuthCodeTTL); err != nil {
			return nil, err
		}
		metrics.MfaFailures.WithLabelValues("otp").Inc()
		return nil, autherr.ErrWrongMfaCode
	}

	if err := s.Attempts.Reset(ctx, "otp", code); err != nil {
		return nil, err
	}
	if err := s.Flags.MarkVerified(ctx, authz.MfaOtp, code, cfg.AuthCodeTTL); err != nil {
		return nil, err
	}
	if !body.User.OtpVerified {
		if err := s.DA.Users().MarkOtpVerified(ctx, body.User.ID); err != nil {
			return nil, autherr.Internal(err)
		}
		if err := s.DA.Users().EnrollMfaType(ctx, body.User.ID, repository.MfaTypeOTP); err != nil {
			return nil, autherr.Internal(err)
		}
		body.User.OtpVerified = true
		if !body.User.HasMfaType(repository.MfaTypeOTP) {
			body.User.MfaTypes = append(body.User.MfaTypes, repository.MfaTypeOTP)
		}
		if err := s.Coordinator.Mutate(ctx, code, body, cfg.AuthCodeTTL); err != nil {
			return nil, err
		}
	}
	return s.advance(ctx, cfg, code, body)
}

// SendSmsMfa generates and texts the SMS code.
func (s *Service) SendSmsMfa(ctx context.Context, code string) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	if body.User.PhoneNumber == "" {
		return nil, autherr.Validation("user has no phone number on file")
	}
	verification, err := tokens.GenerateVerificationCode()
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if err := s.Flags.StoreCode(ctx, authz.MfaSms, code, verification, cfg.MfaCodeTTL); err != nil {
		return nil, err
	}
	if err := s.Texter.Send(ctx, body.User.PhoneNumber, "Your verification code is "+verification); err != nil {
		logger.From(ctx).Warn("sms_send_failed", logger.Err(err), logger.UserID(body.User.ID))
	}
	return &StepResult{Success: true}, nil
}

// ProcessSmsMfa verifies the texted code.
func (s *Service) ProcessSmsMfa(ctx context.Context, code, verification string) (*StepResult, error) {
	return s.processStoredCode(ctx, code, verification, authz.MfaSms, "sms", autherr.ErrSmsMfaLocked, repository.MfaTypeSMS)
}

// SendEmailMfa generates and emails the verification code. Serves both the
// email-verification gate and email-as-second-factor.
func (s *Service) SendEmailMfa(ctx context.Context, code string) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	user := &repository.User{ID: body.User.ID, Email: body.User.Email, EmailVerified: body.User.EmailVerified}
	s.sendEmailCode(ctx, cfg, code, body.AppName, user)
	return &StepResult{Success: true}, nil
}

func (s *Service) sendEmailCode(ctx context.Context, cfg authcfg.Resolved, code, appName string, user *repository.User) {
	verification, err := tokens.GenerateVerificationCode()
	if err != nil {
		logger.From(ctx).Error("email_code_generate_failed", logger.Err(err))
		return
	}
	if err := s.Flags.StoreCode(ctx, authz.MfaEmail, code, verification, cfg.MfaCodeTTL); err != nil {
		logger.From(ctx).Error("email_code_store_failed", logger.Err(err))
		return
	}
	var subject, html, text string
	if user.EmailVerified {
		subject, html, text = email.MfaCodeEmail(appName, verification)
	} else {
		subject, html, text = email.VerifyEmail(appName, verification)
	}
	if err := s.Mailer.Send(user.Email, subject, html, text); err != nil {
		// delivery failure is logged, not fatal: the user can ask for a resend
		logger.From(ctx).Warn("email_send_failed", logger.Err(err), logger.UserID(user.ID))
	}
}

// ProcessEmailMfa verifies the emailed code and, on first success, marks the
// address verified in the persistent record too.
func (s *Service) ProcessEmailMfa(ctx context.Context, code, verification string) (*StepResult, error) {
	res, err := s.processStoredCode(ctx, code, verification, authz.MfaEmail, "email", autherr.ErrEmailMfaLocked, repository.MfaTypeEmail)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// processStoredCode is the shared verify path for SMS and email codes.
func (s *Service) processStoredCode(ctx context.Context, code, verification string, kind authz.MfaKind, scope string, lockedErr error, factor repository.MfaType) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}

	locked, err := s.Attempts.Locked(ctx, scope, code, authz.MaxMfaAttempts)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, lockedErr
	}
	stored, err := s.Flags.GetCode(ctx, kind, code)
	if err != nil {
		return nil, err // MfaNotSent when nothing stored
	}
	if stored != verification {
		if _, err := s.Attempts.Fail(ctx, scope, code, authz.MaxMfaAttempts, cfg.AuthCodeTTL); err != nil {
			return nil, err
		}
		metrics.MfaFailures.WithLabelValues(scope).Inc()
		return nil, autherr.ErrWrongMfaCode
	}

	if err := s.Attempts.Reset(ctx, scope, code); err != nil {
		return nil, err
	}
	if err := s.Flags.DeleteCode(ctx, kind, code); err != nil {
		return nil, err
	}
	if err := s.Flags.MarkVerified(ctx, kind, code, cfg.AuthCodeTTL); err != nil {
		return nil, err
	}

	dirty := false
	if kind == authz.MfaEmail && !body.User.EmailVerified {
		if err := s.DA.Users().UpdateEmail(ctx, body.User.ID, body.User.Email); err != nil && !repository.IsConflict(err) {
			return nil, autherr.Internal(err)
		}
		body.User.EmailVerified = true
		dirty = true
	}
	// enroll only when the factor was demanded as MFA; verifying an address
	// for the email-verification gate must not turn email MFA on for good
	req := authz.ResolveMfa(cfg, &body.User)
	demanded := (kind == authz.MfaSms && req.RequireSmsMfa) || (kind == authz.MfaEmail && req.RequireEmailMfa)
	if demanded && !body.User.HasMfaType(factor) {
		if err := s.DA.Users().EnrollMfaType(ctx, body.User.ID, factor); err != nil {
			return nil, autherr.Internal(err)
		}
		body.User.MfaTypes = append(body.User.MfaTypes, factor)
		dirty = true
	}
	if dirty {
		if err := s.Coordinator.Mutate(ctx, code, body, cfg.AuthCodeTTL); err != nil {
			return nil, err
		}
	}
	return s.advance(ctx, cfg, code, body)
}
