// Package http wires the controllers into the chi router.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authorizectrl "github.com/dropDatabas3/janus/internal/http/controllers/authorize"
	oauthctrl "github.com/dropDatabas3/janus/internal/http/controllers/oauth"
	oidcctrl "github.com/dropDatabas3/janus/internal/http/controllers/oidc"
	"github.com/dropDatabas3/janus/internal/http/middleware"
)

// RouterDeps are the controllers plus the request-level settings.
type RouterDeps struct {
	Authorize          *authorizectrl.Controller
	Token              *oauthctrl.TokenController
	OIDC               *oidcctrl.Controller
	CORSAllowedOrigins []string
}

// NewRouter builds the full route table.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestScope,
		chimw.Recoverer,
		middleware.CORS(d.CORSAllowedOrigins),
		middleware.Metrics,
		middleware.AccessLog,
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// OIDC read surface
	r.Get("/.well-known/openid-configuration", d.OIDC.Discovery)
	r.Get("/.well-known/jwks.json", d.OIDC.JWKS)
	r.Get("/userinfo", d.OIDC.UserInfo)

	// token surface
	r.Post("/token", d.Token.Token)
	r.Post("/revoke", d.Token.Revoke)

	// authorize flow
	r.Get("/authorize", d.Authorize.Authorize)
	r.Post("/authorize-account", d.Authorize.Account)
	r.Post("/authorize-password", d.Authorize.Password)
	r.Post("/authorize-passwordless", d.Authorize.PasswordlessSend)
	r.Post("/process-passwordless", d.Authorize.PasswordlessVerify)

	// mfa
	r.Post("/authorize-mfa-enroll", d.Authorize.MfaEnroll)
	r.Get("/otp-setup", d.Authorize.OtpSetup)
	r.Post("/process-otp-mfa", d.Authorize.OtpMfa)
	r.Post("/send-sms-mfa", d.Authorize.SmsMfaSend)
	r.Post("/process-sms-mfa", d.Authorize.SmsMfa)
	r.Post("/send-email-mfa", d.Authorize.EmailMfaSend)
	r.Post("/process-email-mfa", d.Authorize.EmailMfa)

	// passkeys
	r.Get("/authorize-passkey-enroll", d.Authorize.PasskeyEnrollBegin)
	r.Post("/authorize-passkey-enroll", d.Authorize.PasskeyEnrollFinish)
	r.Post("/authorize-passkey-enroll-decline", d.Authorize.PasskeyEnrollDecline)
	r.Post("/authorize-passkey-verify", d.Authorize.PasskeyLoginBegin)
	r.Post("/process-passkey-verify", d.Authorize.PasskeyLoginFinish)

	// recovery codes
	r.Post("/authorize-recovery-code-enroll", d.Authorize.RecoveryCodeEnroll)
	r.Post("/authorize-recovery-code", d.Authorize.RecoveryCodeSignIn)

	// consent
	r.Get("/authorize-consent", d.Authorize.ConsentView)
	r.Post("/authorize-consent", d.Authorize.Consent)

	// federation
	r.Get("/federation/{provider}", d.Authorize.FederationRedirect)
	r.Get("/federation/{provider}/callback", d.Authorize.FederationCallback)
	r.Post("/federation/{provider}/callback", d.Authorize.FederationCallback)

	// account management policies
	r.Post("/change-password", d.Authorize.ChangePassword)
	r.Post("/change-email-code", d.Authorize.ChangeEmailSend)
	r.Post("/change-email", d.Authorize.ChangeEmail)
	r.Post("/reset-password-code", d.Authorize.ResetPasswordSend)
	r.Post("/reset-password", d.Authorize.ResetPassword)
	r.Post("/manage-passkey-remove", d.Authorize.ManagePasskeyRemove)

	return r
}
