package authorize

import (
	"context"
	"encoding/base64"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/janus/internal/authcfg"
	"github.com/dropDatabas3/janus/internal/authz"
	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
	"github.com/dropDatabas3/janus/internal/domain/repository/repotest"
	"github.com/dropDatabas3/janus/internal/rate"
	"github.com/dropDatabas3/janus/internal/security/secretbox"
	"github.com/dropDatabas3/janus/internal/security/totp"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []string // recipients
}

func (m *fakeMailer) Send(to, subject, htmlBody, textBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

type fakeTexter struct {
	mu   sync.Mutex
	sent []string
}

func (t *fakeTexter) Send(ctx context.Context, phoneNumber, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, phoneNumber)
	return nil
}

type fixture struct {
	svc    *Service
	da     *repotest.Store
	mailer *fakeMailer
	texter *fakeTexter
	store  cache.Client
}

func newFixture(t *testing.T, system authcfg.System) *fixture {
	t.Helper()
	store := cache.NewMemory("test")
	coordinator := authz.NewCoordinator(store)
	flags := authz.NewFlagStore(store)
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	box, err := secretbox.New(key)
	require.NoError(t, err)

	da := repotest.New()
	mailer := &fakeMailer{}
	texter := &fakeTexter{}
	svc := NewService(Deps{
		DA:           da,
		Coordinator:  coordinator,
		Machine:      authz.NewMachine(coordinator, flags),
		Flags:        flags,
		Attempts:     authz.NewAttempts(store),
		LoginLimiter: rate.NewFixedWindow(store, "login", 50, time.Minute),
		Box:          box,
		Mailer:       mailer,
		Texter:       texter,
		Store:        store,
		System:       system,
	})
	return &fixture{svc: svc, da: da, mailer: mailer, texter: texter, store: store}
}

func (f *fixture) seedApp(t *testing.T) *repository.App {
	t.Helper()
	return f.da.AddApp(&repository.App{
		ClientID:           "spa-client",
		Name:               "Demo SPA",
		Type:               repository.AppTypeSPA,
		RedirectURIs:       []string{"https://app.test/cb"},
		Scopes:             []string{"openid", "profile", "offline_access"},
		IsActive:           true,
		UseSystemMfaConfig: true,
	})
}

func authorizeQuery() url.Values {
	q := url.Values{}
	q.Set("client_id", "spa-client")
	q.Set("redirect_uri", "https://app.test/cb")
	q.Set("response_type", "code")
	q.Set("scope", "profile openid offline_access")
	q.Set("state", "st-123")
	q.Set("code_challenge", "challenge-plano")
	q.Set("code_challenge_method", "plain")
	return q
}

func TestSignUpStraightToRedirect(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:  true,
		AuthCodeTTL:   5 * time.Minute,
		MfaCodeTTL:    5 * time.Minute,
		LockoutWindow: 10 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	res, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.NoError(t, err)
	assert.Empty(t, res.NextPage)
	assert.NotEmpty(t, res.Code)
	assert.Equal(t, "https://app.test/cb", res.RedirectURI)
	assert.Equal(t, "st-123", res.State)
	assert.Equal(t, []string{"profile", "openid", "offline_access"}, res.Scopes)
}

func TestSignUpOtpRequiredGetsOtpSetup(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:   true,
		OtpMfaRequired: true,
		AuthCodeTTL:    5 * time.Minute,
		MfaCodeTTL:     5 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	res, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.NoError(t, err)
	assert.Equal(t, authz.StepOtpSetup, res.NextPage)
	assert.Empty(t, res.RedirectURI)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	sys := authcfg.System{EnableSignUp: true, AuthCodeTTL: 5 * time.Minute}
	f := newFixture(t, sys)
	f.seedApp(t)
	f.da.AddUser(&repository.User{Email: "ana@example.com"})

	_, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.Error(t, err)
	assert.Equal(t, 400, autherr.StatusOf(err))
}

func TestSignUpDisabledByConfig(t *testing.T) {
	f := newFixture(t, authcfg.System{AuthCodeTTL: 5 * time.Minute})
	f.seedApp(t)

	_, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	assert.Equal(t, 403, autherr.StatusOf(err))
}

func TestPasswordlessViewForcesPasswordFlagsOff(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:             true,
		EnablePasswordReset:      true,
		EnablePasswordSignIn:     true,
		AllowPasskeyEnrollment:   true,
		EnablePasswordlessSignIn: true,
		AuthCodeTTL:              5 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	view, err := f.svc.Authorize(context.Background(), authorizeQuery())
	require.NoError(t, err)
	assert.True(t, view.EnablePasswordlessSignIn)
	assert.False(t, view.EnableSignUp)
	assert.False(t, view.EnablePasswordReset)
	assert.False(t, view.EnablePasswordSignIn)
	assert.False(t, view.AllowPasskeyEnrollment)
}

func TestSignInPassword(t *testing.T) {
	sys := authcfg.System{
		EnablePasswordSignIn: true,
		AuthCodeTTL:          5 * time.Minute,
		LockoutWindow:        10 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)
	signUpUser(t, f, "ana@example.com", "hunter2!")

	res, err := f.svc.SignInPassword(context.Background(), SignInPasswordRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
		ClientIP: "10.0.0.1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RedirectURI)
}

func TestSignInWrongPasswordThenLock(t *testing.T) {
	sys := authcfg.System{
		EnablePasswordSignIn: true,
		AuthCodeTTL:          5 * time.Minute,
		LockoutWindow:        10 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)
	signUpUser(t, f, "ana@example.com", "hunter2!")

	for i := 0; i < authz.MaxMfaAttempts; i++ {
		_, err := f.svc.SignInPassword(context.Background(), SignInPasswordRequest{
			Query:    authorizeQuery(),
			Email:    "ana@example.com",
			Password: "wrong",
			ClientIP: "10.0.0.1",
		})
		assert.ErrorIs(t, err, autherr.ErrWrongPassword)
	}
	_, err := f.svc.SignInPassword(context.Background(), SignInPasswordRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
		ClientIP: "10.0.0.1",
	})
	assert.ErrorIs(t, err, autherr.ErrAccountLocked)
}

func TestSignInUnknownAndDisabled(t *testing.T) {
	sys := authcfg.System{EnablePasswordSignIn: true, AuthCodeTTL: 5 * time.Minute, LockoutWindow: time.Minute}
	f := newFixture(t, sys)
	f.seedApp(t)

	_, err := f.svc.SignInPassword(context.Background(), SignInPasswordRequest{
		Query: authorizeQuery(), Email: "nadie@example.com", Password: "x", ClientIP: "1.1.1.1",
	})
	assert.ErrorIs(t, err, autherr.ErrNoUser)

	now := time.Now()
	hash := "$argon2id$fake"
	f.da.AddUser(&repository.User{Email: "off@example.com", PasswordHash: &hash, DisabledAt: &now})
	_, err = f.svc.SignInPassword(context.Background(), SignInPasswordRequest{
		Query: authorizeQuery(), Email: "off@example.com", Password: "x", ClientIP: "1.1.1.1",
	})
	assert.ErrorIs(t, err, autherr.ErrUserDisabled)
}

func signUpUser(t *testing.T, f *fixture, email, pass string) {
	t.Helper()
	sysBackup := f.svc.System
	f.svc.System.EnableSignUp = true
	_, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    email,
		Password: pass,
	})
	require.NoError(t, err)
	f.svc.System = sysBackup
}

func TestOtpSetupVerifyAndLock(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:   true,
		OtpMfaRequired: true,
		AuthCodeTTL:    5 * time.Minute,
		MfaCodeTTL:     5 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	res, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.NoError(t, err)
	require.Equal(t, authz.StepOtpSetup, res.NextPage)
	code := res.Code

	setup, err := f.svc.GetOtpSetup(context.Background(), code)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.OtpAuthURL, "otpauth://totp/")

	// same secret on a second render
	again, err := f.svc.GetOtpSetup(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, setup.Secret, again.Secret)

	// five wrong codes, then the locked error
	for i := 0; i < authz.MaxMfaAttempts; i++ {
		_, err := f.svc.ProcessOtpMfa(context.Background(), code, "000000")
		assert.ErrorIs(t, err, autherr.ErrWrongMfaCode)
	}
	_, err = f.svc.ProcessOtpMfa(context.Background(), code, "000000")
	assert.ErrorIs(t, err, autherr.ErrOtpMfaLocked)
}

func TestOtpVerifySucceedsAndRedirects(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:   true,
		OtpMfaRequired: true,
		AuthCodeTTL:    5 * time.Minute,
		MfaCodeTTL:     5 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	res, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.NoError(t, err)
	code := res.Code

	setup, err := f.svc.GetOtpSetup(context.Background(), code)
	require.NoError(t, err)
	raw, err := totp.DecodeSecret(setup.Secret)
	require.NoError(t, err)

	out, err := f.svc.ProcessOtpMfa(context.Background(), code, totp.Generate(raw, time.Now()))
	require.NoError(t, err)
	assert.NotEmpty(t, out.RedirectURI)

	user, err := f.da.Users().GetByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.True(t, user.OtpVerified)
	assert.True(t, user.HasMfaType(repository.MfaTypeOTP))
}

func TestEnforcedEnrollmentFlow(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:            true,
		EnforceOneMfaEnrollment: []repository.MfaType{repository.MfaTypeOTP, repository.MfaTypeEmail},
		AuthCodeTTL:             5 * time.Minute,
		MfaCodeTTL:              5 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	res, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.NoError(t, err)
	require.Equal(t, authz.StepMfaEnroll, res.NextPage)

	_, err = f.svc.EnrollMfa(context.Background(), res.Code, "sms")
	assert.Equal(t, 400, autherr.StatusOf(err))

	next, err := f.svc.EnrollMfa(context.Background(), res.Code, "otp")
	require.NoError(t, err)
	assert.Equal(t, authz.StepOtpSetup, next.NextPage)
}

func TestEmailMfaSendAndVerify(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:     true,
		EmailMfaRequired: true,
		AuthCodeTTL:      5 * time.Minute,
		MfaCodeTTL:       5 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	res, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.NoError(t, err)
	require.Equal(t, authz.StepEmailMfa, res.NextPage)

	_, err = f.svc.SendEmailMfa(context.Background(), res.Code)
	require.NoError(t, err)
	require.NotEmpty(t, f.mailer.sent)

	stored, err := f.svc.Flags.GetCode(context.Background(), authz.MfaEmail, res.Code)
	require.NoError(t, err)

	out, err := f.svc.ProcessEmailMfa(context.Background(), res.Code, stored)
	require.NoError(t, err)
	assert.NotEmpty(t, out.RedirectURI)
}

func TestEmailMfaWrongCodeThenLocked(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:     true,
		EmailMfaRequired: true,
		AuthCodeTTL:      5 * time.Minute,
		MfaCodeTTL:       5 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	res, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.NoError(t, err)
	_, err = f.svc.SendEmailMfa(context.Background(), res.Code)
	require.NoError(t, err)

	for i := 0; i < authz.MaxMfaAttempts; i++ {
		_, err := f.svc.ProcessEmailMfa(context.Background(), res.Code, "nope00")
		assert.ErrorIs(t, err, autherr.ErrWrongMfaCode)
	}
	_, err = f.svc.ProcessEmailMfa(context.Background(), res.Code, "nope00")
	assert.ErrorIs(t, err, autherr.ErrEmailMfaLocked)
}

func TestEmailMfaNotSent(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:     true,
		EmailMfaRequired: true,
		AuthCodeTTL:      5 * time.Minute,
		MfaCodeTTL:       5 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	res, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.NoError(t, err)

	_, err = f.svc.ProcessEmailMfa(context.Background(), res.Code, "123456")
	assert.ErrorIs(t, err, autherr.ErrMfaNotSent)
}

func TestConsentFlow(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:         true,
		EnableUserAppConsent: true,
		AuthCodeTTL:          5 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	res, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.NoError(t, err)
	require.Equal(t, authz.StepConsent, res.NextPage)

	view, err := f.svc.GetConsent(context.Background(), res.Code)
	require.NoError(t, err)
	assert.Equal(t, "Demo SPA", view.AppName)

	out, err := f.svc.GrantConsent(context.Background(), res.Code)
	require.NoError(t, err)
	assert.NotEmpty(t, out.RedirectURI)

	// a second flow for the same (user, app) skips consent
	res2, err := f.svc.SignInPassword(context.Background(), SignInPasswordRequest{
		Query: authorizeQuery(), Email: "ana@example.com", Password: "hunter2!", ClientIP: "1.1.1.1",
	})
	require.Error(t, err) // password sign-in disabled in this fixture
	_ = res2

	f.svc.System.EnablePasswordSignIn = true
	res2, err = f.svc.SignInPassword(context.Background(), SignInPasswordRequest{
		Query: authorizeQuery(), Email: "ana@example.com", Password: "hunter2!", ClientIP: "1.1.1.1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res2.RedirectURI)
}

func TestRecoveryCodeEnrollAndSignIn(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:       true,
		EnableRecoveryCode: true,
		AuthCodeTTL:        5 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	res, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.NoError(t, err)
	require.Equal(t, authz.StepRecoveryCodeEnroll, res.NextPage)

	rc, err := f.svc.EnrollRecoveryCodes(context.Background(), res.Code)
	require.NoError(t, err)
	require.Len(t, rc.Codes, recoveryCodeCount)
	assert.NotEmpty(t, rc.Step.RedirectURI)

	// one code signs in once
	out, err := f.svc.SignInRecoveryCode(context.Background(), authorizeQuery(), "ana@example.com", rc.Codes[0])
	require.NoError(t, err)
	assert.NotEmpty(t, out.RedirectURI)

	_, err = f.svc.SignInRecoveryCode(context.Background(), authorizeQuery(), "ana@example.com", rc.Codes[0])
	assert.ErrorIs(t, err, autherr.ErrWrongMfaCode)
}

func TestPasswordResetFlow(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:        true,
		EnablePasswordReset: true,
		AuthCodeTTL:         5 * time.Minute,
		MfaCodeTTL:          5 * time.Minute,
		LockoutWindow:       10 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)
	signUpUser(t, f, "ana@example.com", "hunter2!")

	// unknown address still answers success
	res, err := f.svc.SendResetPasswordCode(context.Background(), "nadie@example.com")
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = f.svc.SendResetPasswordCode(context.Background(), "ana@example.com")
	require.NoError(t, err)

	stored, err := f.store.Get(context.Background(), resetKeyPrefix+"ana@example.com")
	require.NoError(t, err)

	_, err = f.svc.ResetPassword(context.Background(), "ana@example.com", "wrong1", "newpass!")
	assert.ErrorIs(t, err, autherr.ErrWrongMfaCode)

	out, err := f.svc.ResetPassword(context.Background(), "ana@example.com", string(stored), "newpass!")
	require.NoError(t, err)
	assert.True(t, out.Success)

	f.svc.System.EnablePasswordSignIn = true
	_, err = f.svc.SignInPassword(context.Background(), SignInPasswordRequest{
		Query: authorizeQuery(), Email: "ana@example.com", Password: "newpass!", ClientIP: "1.1.1.1",
	})
	require.NoError(t, err)
}

func TestDeclinePasskeyAdvances(t *testing.T) {
	sys := authcfg.System{
		EnableSignUp:           true,
		AllowPasskeyEnrollment: true,
		AuthCodeTTL:            5 * time.Minute,
	}
	f := newFixture(t, sys)
	f.seedApp(t)

	res, err := f.svc.SignUp(context.Background(), SignUpRequest{
		Query:    authorizeQuery(),
		Email:    "ana@example.com",
		Password: "hunter2!",
	})
	require.NoError(t, err)
	require.Equal(t, authz.StepPasskeyEnroll, res.NextPage)

	out, err := f.svc.DeclinePasskey(context.Background(), res.Code)
	require.NoError(t, err)
	assert.NotEmpty(t, out.RedirectURI)
}

func TestUnknownCodeFailsClosed(t *testing.T) {
	f := newFixture(t, authcfg.System{AuthCodeTTL: 5 * time.Minute})
	f.seedApp(t)

	_, err := f.svc.GrantConsent(context.Background(), "no-such-code")
	assert.ErrorIs(t, err, autherr.ErrWrongAuthCode)
}
