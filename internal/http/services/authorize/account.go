package authorize

import (
	"context"
	"strings"

	"github.com/dropDatabas3/janus/internal/authcfg"
	"github.com/dropDatabas3/janus/internal/authz"
	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/email"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/security/password"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
)

const resetKeyPrefix = "pwreset:"

// ChangePassword serves the change_password policy flow. The caller already
// authenticated through the machine for this code.
func (s *Service) ChangePassword(ctx context.Context, code, newPassword string) (*StepResult, error) {
	body, _, _, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	if body.Request.Policy.Kind != authz.PolicyChangePassword {
		return nil, autherr.Forbidden("this flow does not allow a password change")
	}
	if newPassword == "" {
		return nil, autherr.Validation("password is required")
	}
	hash, err := password.Hash(password.Default, newPassword)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if err := s.DA.Users().UpdatePasswordHash(ctx, body.User.ID, hash); err != nil {
		return nil, autherr.Internal(err)
	}
	logger.From(ctx).Info("password_changed", logger.UserID(body.User.ID))
	return &StepResult{Success: true}, nil
}

// SendChangeEmailCode emails a verification code to the address the user
// wants to switch to. Sends are rate limited per user.
func (s *Service) SendChangeEmailCode(ctx context.Context, code, newEmail string) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	if body.Request.Policy.Kind != authz.PolicyChangeEmail {
		return nil, autherr.Forbidden("this flow does not allow an email change")
	}
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if newEmail == "" {
		return nil, autherr.Validation("email is required")
	}

	locked, err := s.Attempts.Locked(ctx, "change-email", body.User.ID, authz.MaxMfaAttempts)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, autherr.ErrChangeEmailLocked
	}
	verification, err := tokens.GenerateVerificationCode()
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if err := s.Flags.StoreCode(ctx, authz.MfaEmail, code, verification, cfg.MfaCodeTTL); err != nil {
		return nil, err
	}
	subject, html, text := email.VerifyEmail(body.AppName, verification)
	if err := s.Mailer.Send(newEmail, subject, html, text); err != nil {
		logger.From(ctx).Warn("change_email_send_failed", logger.Err(err), logger.UserID(body.User.ID))
	}
	return &StepResult{Success: true}, nil
}

// ChangeEmail verifies the emailed code and updates the address.
func (s *Service) ChangeEmail(ctx context.Context, code, newEmail, verification string) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	if body.Request.Policy.Kind != authz.PolicyChangeEmail {
		return nil, autherr.Forbidden("this flow does not allow an email change")
	}
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))

	locked, err := s.Attempts.Locked(ctx, "change-email", body.User.ID, authz.MaxMfaAttempts)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, autherr.ErrChangeEmailLocked
	}
	stored, err := s.Flags.GetCode(ctx, authz.MfaEmail, code)
	if err != nil {
		return nil, err
	}
	if stored != verification {
		if _, err := s.Attempts.Fail(ctx, "change-email", body.User.ID, authz.MaxMfaAttempts, cfg.LockoutWindow); err != nil {
			return nil, err
		}
		return nil, autherr.ErrWrongMfaCode
	}

	if err := s.DA.Users().UpdateEmail(ctx, body.User.ID, newEmail); err != nil {
		if repository.IsConflict(err) {
			return nil, autherr.Validation("email is already registered")
		}
		return nil, autherr.Internal(err)
	}
	if err := s.Flags.DeleteCode(ctx, authz.MfaEmail, code); err != nil {
		return nil, err
	}
	if err := s.Attempts.Reset(ctx, "change-email", body.User.ID); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("email_changed", logger.UserID(body.User.ID))
	return &StepResult{Success: true}, nil
}

// SendResetPasswordCode emails a password-reset code. Responds success even
// for unknown addresses so the endpoint does not leak account existence.
func (s *Service) SendResetPasswordCode(ctx context.Context, emailAddr string) (*StepResult, error) {
	cfg := s.resolveSystem()
	if !cfg.EnablePasswordReset {
		return nil, autherr.Forbidden("password reset is not enabled")
	}
	emailLower := strings.ToLower(strings.TrimSpace(emailAddr))
	if emailLower == "" {
		return nil, autherr.Validation("email is required")
	}

	user, err := s.DA.Users().GetByEmail(ctx, emailLower)
	if err != nil {
		if repository.IsNotFound(err) {
			return &StepResult{Success: true}, nil
		}
		return nil, autherr.Internal(err)
	}
	verification, err := tokens.GenerateVerificationCode()
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if err := s.Store.Set(ctx, resetKeyPrefix+emailLower, []byte(verification), cfg.MfaCodeTTL); err != nil {
		return nil, autherr.Internal(err)
	}
	subject, html, text := email.MfaCodeEmail("password reset", verification)
	if err := s.Mailer.Send(user.Email, subject, html, text); err != nil {
		logger.From(ctx).Warn("reset_email_send_failed", logger.Err(err), logger.UserID(user.ID))
	}
	return &StepResult{Success: true}, nil
}

// ResetPassword verifies the emailed code and replaces the password hash.
func (s *Service) ResetPassword(ctx context.Context, emailAddr, verification, newPassword string) (*StepResult, error) {
	cfg := s.resolveSystem()
	if !cfg.EnablePasswordReset {
		return nil, autherr.Forbidden("password reset is not enabled")
	}
	emailLower := strings.ToLower(strings.TrimSpace(emailAddr))
	if emailLower == "" || verification == "" || newPassword == "" {
		return nil, autherr.Validation("email, code and password are required")
	}

	locked, err := s.Attempts.Locked(ctx, "reset", emailLower, authz.MaxMfaAttempts)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, autherr.ErrPasswordResetLocked
	}
	stored, err := s.Store.Get(ctx, resetKeyPrefix+emailLower)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, autherr.ErrMfaNotSent
		}
		return nil, autherr.Internal(err)
	}
	if string(stored) != verification {
		if _, err := s.Attempts.Fail(ctx, "reset", emailLower, authz.MaxMfaAttempts, cfg.LockoutWindow); err != nil {
			return nil, err
		}
		return nil, autherr.ErrWrongMfaCode
	}

	user, err := s.DA.Users().GetByEmail(ctx, emailLower)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrNoUser
		}
		return nil, autherr.Internal(err)
	}
	hash, err := password.Hash(password.Default, newPassword)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if err := s.DA.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return nil, autherr.Internal(err)
	}
	if err := s.Store.Delete(ctx, resetKeyPrefix+emailLower); err != nil {
		return nil, autherr.Internal(err)
	}
	if err := s.Attempts.Reset(ctx, "reset", emailLower); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("password_reset", logger.UserID(user.ID))
	return &StepResult{Success: true}, nil
}

// RemovePasskey serves the manage_passkey policy flow.
func (s *Service) RemovePasskey(ctx context.Context, code string) (*StepResult, error) {
	body, _, _, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	if body.Request.Policy.Kind != authz.PolicyManagePasskey {
		return nil, autherr.Forbidden("this flow does not allow passkey management")
	}
	if err := s.DA.Passkeys().Delete(ctx, body.User.ID); err != nil {
		return nil, autherr.Internal(err)
	}
	logger.From(ctx).Info("passkey_removed", logger.UserID(body.User.ID))
	return &StepResult{Success: true}, nil
}

// resolveSystem resolves config with no app/org context, for the flows that
// run outside an authorization code (password reset).
func (s *Service) resolveSystem() authcfg.Resolved {
	return authcfg.Resolve(s.System, nil, nil)
}
