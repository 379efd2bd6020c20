package authorize

import (
	"context"
	"net/url"
	"strings"

	"github.com/dropDatabas3/janus/internal/authcfg"
	"github.com/dropDatabas3/janus/internal/authz"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/email"
	"github.com/dropDatabas3/janus/internal/metrics"
	"github.com/dropDatabas3/janus/internal/observability/logger"
	"github.com/dropDatabas3/janus/internal/security/password"
	tokens "github.com/dropDatabas3/janus/internal/security/token"
	"github.com/dropDatabas3/janus/internal/util"
)

// StepPasswordlessVerify is the view served after a passwordless code was
// sent. It is not a machine state: the machine only runs post-credential.
const StepPasswordlessVerify authz.Step = "PasswordlessVerify"

// View is the model for the initial authorize screen. The served flags are
// the resolved ones, so a passwordless deployment reports sign-up, reset,
// password sign-in and passkeys all off regardless of raw config.
type View struct {
	AppName                  string   `json:"appName"`
	Policy                   string   `json:"policy"`
	EnableSignUp             bool     `json:"enableSignUp"`
	EnablePasswordReset      bool     `json:"enablePasswordReset"`
	EnablePasswordSignIn     bool     `json:"enablePasswordSignIn"`
	EnablePasswordlessSignIn bool     `json:"enablePasswordlessSignIn"`
	AllowPasskeyEnrollment   bool     `json:"allowPasskeyEnrollment"`
	Providers                []string `json:"providers,omitempty"`
}

// parseRequest validates the raw authorize params against the registered app.
func (s *Service) parseRequest(ctx context.Context, q url.Values) (*repository.App, *authz.AuthorizeRequest, authcfg.Resolved, error) {
	app, err := s.DA.Apps().GetByClientID(ctx, strings.TrimSpace(q.Get("client_id")))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, authcfg.Resolved{}, autherr.Validation("unknown client_id")
		}
		return nil, nil, authcfg.Resolved{}, autherr.Internal(err)
	}
	if !app.IsActive {
		return nil, nil, authcfg.Resolved{}, autherr.Forbidden("app is disabled")
	}
	req, err := authz.ParseAuthorizeRequest(q, app)
	if err != nil {
		return nil, nil, authcfg.Resolved{}, err
	}
	return app, req, authcfg.Resolve(s.System, app, nil), nil
}

// Authorize handles GET /authorize: validates the request and returns the
// view model for the sign-in screen.
func (s *Service) Authorize(ctx context.Context, q url.Values) (*View, error) {
	app, req, cfg, err := s.parseRequest(ctx, q)
	if err != nil {
		return nil, err
	}
	var providers []string
	if s.Providers != nil {
		providers = s.Providers.Names()
	}
	return &View{
		AppName:                  app.Name,
		Policy:                   req.Policy.String(),
		EnableSignUp:             cfg.EnableSignUp,
		EnablePasswordReset:      cfg.EnablePasswordReset,
		EnablePasswordSignIn:     cfg.EnablePasswordSignIn,
		EnablePasswordlessSignIn: cfg.PasswordlessSignIn,
		AllowPasskeyEnrollment:   cfg.AllowPasskeyEnrollment,
		Providers:                providers,
	}, nil
}

// SignUpRequest carries the authorize params plus the new credentials.
type SignUpRequest struct {
	Query     url.Values
	Email     string
	Password  string
	FirstName string
	LastName  string
	Locale    string
}

// SignUp creates the account and enters the post-authorize machine.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*StepResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("authorize.signup"))

	app, areq, cfg, err := s.parseRequest(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	if !cfg.EnableSignUp {
		return nil, autherr.Forbidden("sign-up is not enabled")
	}
	if req.Email == "" || req.Password == "" {
		return nil, autherr.Validation("email and password are required")
	}

	hash, err := password.Hash(password.Default, req.Password)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	user, err := s.DA.Users().Create(ctx, repository.CreateUserInput{
		OrgSlug:      areq.OrgSlug,
		Email:        strings.ToLower(req.Email),
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Locale:       req.Locale,
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, autherr.Validation("email is already registered")
		}
		return nil, autherr.Internal(err)
	}
	log.Info("user_signed_up",
		logger.UserID(user.ID),
		logger.AppID(app.ClientID),
		logger.String("email", util.MaskEmail(user.Email)))

	res, err := s.startFlow(ctx, cfg, app, user, areq)
	if err != nil {
		return nil, err
	}
	// first verification email goes out proactively when the gate will ask
	if res.NextPage == authz.StepEmailMfa {
		s.sendEmailCode(ctx, cfg, res.Code, app.Name, user)
	}
	return res, nil
}

// SignInPasswordRequest carries the authorize params plus the credentials.
type SignInPasswordRequest struct {
	Query    url.Values
	Email    string
	Password string
	ClientIP string
}

// SignInPassword verifies the password and enters the post-authorize machine.
// Attempts are throttled per email+IP; repeated failures lock the account
// for the configured window.
func (s *Service) SignInPassword(ctx context.Context, req SignInPasswordRequest) (*StepResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("authorize.signin"))

	app, areq, cfg, err := s.parseRequest(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	if !cfg.EnablePasswordSignIn {
		return nil, autherr.Forbidden("password sign-in is not enabled")
	}
	emailLower := strings.ToLower(strings.TrimSpace(req.Email))
	if emailLower == "" || req.Password == "" {
		return nil, autherr.Validation("email and password are required")
	}

	if s.LoginLimiter != nil {
		res, err := s.LoginLimiter.Allow(ctx, emailLower+"|"+req.ClientIP)
		if err != nil {
			return nil, autherr.Internal(err)
		}
		if !res.Allowed {
			return nil, autherr.ErrAccountLocked
		}
	}
	locked, err := s.Attempts.Locked(ctx, "login", emailLower, authz.MaxMfaAttempts)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, autherr.ErrAccountLocked
	}

	user, err := s.DA.Users().GetByEmail(ctx, emailLower)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrNoUser
		}
		return nil, autherr.Internal(err)
	}
	if user.DisabledAt != nil {
		return nil, autherr.ErrUserDisabled
	}
	if user.PasswordHash == nil {
		// social account, no password to check
		return nil, autherr.ErrSocialNotSupported
	}
	if !password.Verify(req.Password, *user.PasswordHash) {
		if _, err := s.Attempts.Fail(ctx, "login", emailLower, authz.MaxMfaAttempts, cfg.LockoutWindow); err != nil {
			return nil, err
		}
		return nil, autherr.ErrWrongPassword
	}
	if err := s.Attempts.Reset(ctx, "login", emailLower); err != nil {
		return nil, err
	}

	log.Info("password_sign_in",
		logger.UserID(user.ID),
		logger.AppID(app.ClientID),
		logger.String("email", util.MaskEmail(user.Email)))
	metrics.SignIns.WithLabelValues("password").Inc()
	res, err := s.startFlow(ctx, cfg, app, user, areq)
	if err != nil {
		return nil, err
	}
	if res.NextPage == authz.StepEmailMfa {
		s.sendEmailCode(ctx, cfg, res.Code, app.Name, user)
	}
	return res, nil
}

// SendPasswordlessCode emails a one-time sign-in code. The code body is
// created up front: the verification flag and stored code are keyed by it.
func (s *Service) SendPasswordlessCode(ctx context.Context, q url.Values, emailAddr string) (*StepResult, error) {
	app, areq, cfg, err := s.parseRequest(ctx, q)
	if err != nil {
		return nil, err
	}
	if !cfg.PasswordlessSignIn {
		return nil, autherr.Forbidden("passwordless sign-in is not enabled")
	}
	emailLower := strings.ToLower(strings.TrimSpace(emailAddr))
	user, err := s.DA.Users().GetByEmail(ctx, emailLower)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, autherr.ErrNoUser
		}
		return nil, autherr.Internal(err)
	}
	if user.DisabledAt != nil {
		return nil, autherr.ErrUserDisabled
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

	verification, err := tokens.GenerateVerificationCode()
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if err := s.Flags.StoreCode(ctx, authz.MfaPasswordless, code, verification, cfg.MfaCodeTTL); err != nil {
		return nil, err
	}
	subject, html, text := email.MfaCodeEmail(app.Name, verification)
	if err := s.Mailer.Send(user.Email, subject, html, text); err != nil {
		logger.From(ctx).Warn("passwordless_email_failed", logger.Err(err), logger.UserID(user.ID))
	}
	return &StepResult{Code: code, NextPage: StepPasswordlessVerify}, nil
}

// VerifyPasswordlessCode checks the emailed code and enters the machine.
func (s *Service) VerifyPasswordlessCode(ctx context.Context, code, verification string) (*StepResult, error) {
	body, _, cfg, err := s.loadStep(ctx, code)
	if err != nil {
		return nil, err
	}
	if !cfg.PasswordlessSignIn {
		return nil, autherr.Forbidden("passwordless sign-in is not enabled")
	}

	locked, err := s.Attempts.Locked(ctx, "passwordless", code, authz.MaxMfaAttempts)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, autherr.ErrEmailMfaLocked
	}
	stored, err := s.Flags.GetCode(ctx, authz.MfaPasswordless, code)
	if err != nil {
		return nil, err
	}
	if stored != verification {
		if _, err := s.Attempts.Fail(ctx, "passwordless", code, authz.MaxMfaAttempts, cfg.MfaCodeTTL); err != nil {
			return nil, err
		}
		metrics.MfaFailures.WithLabelValues("passwordless").Inc()
		return nil, autherr.ErrWrongMfaCode
	}

	if err := s.Flags.DeleteCode(ctx, authz.MfaPasswordless, code); err != nil {
		return nil, err
	}
	if err := s.Flags.MarkVerified(ctx, authz.MfaPasswordless, code, cfg.AuthCodeTTL); err != nil {
		return nil, err
	}
	// the emailed code also proves ownership of the address
	if err := s.Flags.MarkVerified(ctx, authz.MfaEmail, code, cfg.AuthCodeTTL); err != nil {
		return nil, err
	}
	metrics.SignIns.WithLabelValues("passwordless").Inc()
	return s.advance(ctx, cfg, code, body)
}
