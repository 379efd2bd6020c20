// Package authorize exposes the step endpoints of the authorization flow.
// Handlers stay thin: decode, call the service, render. All flow decisions
// live in the service and the state machine.
package authorize

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/http/render"
	svc "github.com/dropDatabas3/janus/internal/http/services/authorize"
)

const maxJSONBytes = 64 << 10

// Controller handles the authorize namespace.
type Controller struct {
	authz *svc.Service
}

func NewController(authz *svc.Service) *Controller {
	return &Controller{authz: authz}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return autherr.Validation("malformed json body")
	}
	return nil
}

// Authorize handles GET /authorize: serves the sign-in view model.
func (c *Controller) Authorize(w http.ResponseWriter, r *http.Request) {
	view, err := c.authz.Authorize(r.Context(), r.URL.Query())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, view)
}

type accountRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Locale    string `json:"locale"`
}

// Account handles POST /authorize-account: sign-up. The authorize params
// ride on the query string, the credentials in the body.
func (c *Controller) Account(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.SignUp(r.Context(), svc.SignUpRequest{
		Query:     r.URL.Query(),
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Locale:    req.Locale,
	})
	c.step(w, r, res, err)
}

type passwordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Password handles POST /authorize-password: password sign-in.
func (c *Controller) Password(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.SignInPassword(r.Context(), svc.SignInPasswordRequest{
		Query:    r.URL.Query(),
		Email:    req.Email,
		Password: req.Password,
		ClientIP: clientIP(r),
	})
	c.step(w, r, res, err)
}

type emailOnlyRequest struct {
	Email string `json:"email"`
}

// PasswordlessSend handles POST /authorize-passwordless: emails the one-time
// sign-in code.
func (c *Controller) PasswordlessSend(w http.ResponseWriter, r *http.Request) {
	var req emailOnlyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.SendPasswordlessCode(r.Context(), r.URL.Query(), req.Email)
	c.step(w, r, res, err)
}

type codeVerifyRequest struct {
	Code string `json:"code"`
	Mfa  string `json:"mfaCode"`
}

// PasswordlessVerify handles POST /process-passwordless.
func (c *Controller) PasswordlessVerify(w http.ResponseWriter, r *http.Request) {
	var req codeVerifyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.VerifyPasswordlessCode(r.Context(), req.Code, req.Mfa)
	c.step(w, r, res, err)
}

type mfaEnrollRequest struct {
	Code string `json:"code"`
	Type string `json:"type"`
}

// MfaEnroll handles POST /authorize-mfa-enroll.
func (c *Controller) MfaEnroll(w http.ResponseWriter, r *http.Request) {
	var req mfaEnrollRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.EnrollMfa(r.Context(), req.Code, req.Type)
	c.step(w, r, res, err)
}

// OtpSetup handles GET /otp-setup?code=: serves the TOTP secret + QR URL.
func (c *Controller) OtpSetup(w http.ResponseWriter, r *http.Request) {
	info, err := c.authz.GetOtpSetup(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, info)
}

// OtpMfa handles POST /process-otp-mfa.
func (c *Controller) OtpMfa(w http.ResponseWriter, r *http.Request) {
	var req codeVerifyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.ProcessOtpMfa(r.Context(), req.Code, req.Mfa)
	c.step(w, r, res, err)
}

type codeOnlyRequest struct {
	Code string `json:"code"`
}

// SmsMfaSend handles POST /send-sms-mfa.
func (c *Controller) SmsMfaSend(w http.ResponseWriter, r *http.Request) {
	var req codeOnlyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.SendSmsMfa(r.Context(), req.Code)
	c.step(w, r, res, err)
}

// SmsMfa handles POST /process-sms-mfa.
func (c *Controller) SmsMfa(w http.ResponseWriter, r *http.Request) {
	var req codeVerifyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.ProcessSmsMfa(r.Context(), req.Code, req.Mfa)
	c.step(w, r, res, err)
}

// EmailMfaSend handles POST /send-email-mfa.
func (c *Controller) EmailMfaSend(w http.ResponseWriter, r *http.Request) {
	var req codeOnlyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.SendEmailMfa(r.Context(), req.Code)
	c.step(w, r, res, err)
}

// EmailMfa handles POST /process-email-mfa.
func (c *Controller) EmailMfa(w http.ResponseWriter, r *http.Request) {
	var req codeVerifyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.ProcessEmailMfa(r.Context(), req.Code, req.Mfa)
	c.step(w, r, res, err)
}

// PasskeyEnrollBegin handles GET /authorize-passkey-enroll?code=.
func (c *Controller) PasskeyEnrollBegin(w http.ResponseWriter, r *http.Request) {
	opts, err := c.authz.BeginPasskeyEnroll(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, opts)
}

// PasskeyEnrollFinish handles POST /authorize-passkey-enroll?code=. The body
// is the raw WebAuthn attestation response, consumed by the webauthn stack.
func (c *Controller) PasskeyEnrollFinish(w http.ResponseWriter, r *http.Request) {
	res, err := c.authz.FinishPasskeyEnroll(r.Context(), r.URL.Query().Get("code"), r)
	c.step(w, r, res, err)
}

// PasskeyEnrollDecline handles POST /authorize-passkey-enroll-decline.
func (c *Controller) PasskeyEnrollDecline(w http.ResponseWriter, r *http.Request) {
	var req codeOnlyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.DeclinePasskey(r.Context(), req.Code)
	c.step(w, r, res, err)
}

// PasskeyLoginBegin handles POST /authorize-passkey-verify.
func (c *Controller) PasskeyLoginBegin(w http.ResponseWriter, r *http.Request) {
	var req emailOnlyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	start, err := c.authz.BeginPasskeyLogin(r.Context(), r.URL.Query(), req.Email)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, start)
}

// PasskeyLoginFinish handles POST /process-passkey-verify?code=. The body is
// the raw WebAuthn assertion response.
func (c *Controller) PasskeyLoginFinish(w http.ResponseWriter, r *http.Request) {
	res, err := c.authz.FinishPasskeyLogin(r.Context(), r.URL.Query().Get("code"), r)
	c.step(w, r, res, err)
}

// RecoveryCodeEnroll handles POST /authorize-recovery-code-enroll.
func (c *Controller) RecoveryCodeEnroll(w http.ResponseWriter, r *http.Request) {
	var req codeOnlyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	rc, err := c.authz.EnrollRecoveryCodes(r.Context(), req.Code)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, rc)
}

type recoverySignInRequest struct {
	Email        string `json:"email"`
	RecoveryCode string `json:"recoveryCode"`
}

// RecoveryCodeSignIn handles POST /authorize-recovery-code.
func (c *Controller) RecoveryCodeSignIn(w http.ResponseWriter, r *http.Request) {
	var req recoverySignInRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.SignInRecoveryCode(r.Context(), r.URL.Query(), req.Email, req.RecoveryCode)
	c.step(w, r, res, err)
}

// ConsentView handles GET /authorize-consent?code=.
func (c *Controller) ConsentView(w http.ResponseWriter, r *http.Request) {
	view, err := c.authz.GetConsent(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, view)
}

// Consent handles POST /authorize-consent.
func (c *Controller) Consent(w http.ResponseWriter, r *http.Request) {
	var req codeOnlyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.GrantConsent(r.Context(), req.Code)
	c.step(w, r, res, err)
}

type changePasswordRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

// ChangePassword handles POST /change-password.
func (c *Controller) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.ChangePassword(r.Context(), req.Code, req.Password)
	c.step(w, r, res, err)
}

type changeEmailRequest struct {
	Code             string `json:"code"`
	Email            string `json:"email"`
	VerificationCode string `json:"verificationCode"`
}

// ChangeEmailSend handles POST /change-email-code.
func (c *Controller) ChangeEmailSend(w http.ResponseWriter, r *http.Request) {
	var req changeEmailRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.SendChangeEmailCode(r.Context(), req.Code, req.Email)
	c.step(w, r, res, err)
}

// ChangeEmail handles POST /change-email.
func (c *Controller) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req changeEmailRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.ChangeEmail(r.Context(), req.Code, req.Email, req.VerificationCode)
	c.step(w, r, res, err)
}

type resetPasswordRequest struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verificationCode"`
	Password         string `json:"password"`
}

// ResetPasswordSend handles POST /reset-password-code.
func (c *Controller) ResetPasswordSend(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.SendResetPasswordCode(r.Context(), req.Email)
	c.step(w, r, res, err)
}

// ResetPassword handles POST /reset-password.
func (c *Controller) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.ResetPassword(r.Context(), req.Email, req.VerificationCode, req.Password)
	c.step(w, r, res, err)
}

// ManagePasskeyRemove handles POST /manage-passkey-remove.
func (c *Controller) ManagePasskeyRemove(w http.ResponseWriter, r *http.Request) {
	var req codeOnlyRequest
	if err := decode(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := c.authz.RemovePasskey(r.Context(), req.Code)
	c.step(w, r, res, err)
}

// FederationRedirect handles GET /federation/{provider}: 302 to the IdP.
func (c *Controller) FederationRedirect(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	target, err := c.authz.FederationRedirect(r.Context(), provider, r.URL.Query())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// FederationCallback handles GET/POST /federation/{provider}/callback. OAuth
// providers come back with query params; SAML posts a SAMLResponse form field.
func (c *Controller) FederationCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	state := r.URL.Query().Get("state")
	credential := r.URL.Query().Get("code")
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
		if err := r.ParseForm(); err != nil {
			render.Error(w, r, autherr.Validation("malformed form body"))
			return
		}
		if v := r.PostFormValue("SAMLResponse"); v != "" {
			// SAML posts the assertion base64-encoded
			decoded, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				render.Error(w, r, autherr.Validation("malformed SAMLResponse"))
				return
			}
			credential = string(decoded)
		}
		if v := r.PostFormValue("RelayState"); v != "" {
			state = v
		}
	}
	res, err := c.authz.FederationCallback(r.Context(), provider, state, credential)
	c.step(w, r, res, err)
}

// step renders a StepResult or its error. A WrongAuthCode here means the
// flow expired and the client restarts from /authorize.
func (c *Controller) step(w http.ResponseWriter, r *http.Request, res *svc.StepResult, err error) {
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, res)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
