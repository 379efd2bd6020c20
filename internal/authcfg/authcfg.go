// Package authcfg resuelve la configuración efectiva de un authorize request.
//
// Los flags de sistema se overlayean con el override por-app (y el org, si
// trae), UNA vez por request. El resultado es un value type inmutable que
// viaja explícito por el state machine: nadie lee config ambiente a mitad
// de un flujo.
package authcfg

import (
	"time"

	"github.com/dropDatabas3/janus/internal/domain/repository"
)

// System son los flags a nivel sistema, cargados al boot desde config.
type System struct {
	EnableSignUp             bool
	EnablePasswordReset      bool
	EnablePasswordSignIn     bool
	EnablePasswordlessSignIn bool
	AllowPasskeyEnrollment   bool
	EnableRecoveryCode       bool
	EnableUserAppConsent     bool
	EnableEmailVerification  bool
	EnableSignInLog          bool

	OtpMfaRequired   bool
	SmsMfaRequired   bool
	EmailMfaRequired bool

	// EnforceOneMfaEnrollment: si el usuario no tiene ningún factor enrolado
	// y ninguno es obligatorio por sí solo, se lo fuerza a enrolar uno de
	// esta lista antes de emitir tokens.
	EnforceOneMfaEnrollment []repository.MfaType

	AuthCodeTTL       time.Duration
	RefreshTokenTTL   time.Duration
	MfaCodeTTL        time.Duration
	LockoutWindow     time.Duration
	ConsentSessionTTL time.Duration
}

// OrgOverride son los overrides de política por organización. El branding
// (logo, colores) vive en el collaborator de org, acá solo lo que cambia
// control flow.
type OrgOverride struct {
	DisableSignUp   bool
	DisablePasskeys bool
}

// Resolved es la config efectiva e inmutable de UN request.
type Resolved struct {
	EnableSignUp            bool
	EnablePasswordReset     bool
	EnablePasswordSignIn    bool
	PasswordlessSignIn      bool
	AllowPasskeyEnrollment  bool
	EnableRecoveryCode      bool
	EnableUserAppConsent    bool
	EnableEmailVerification bool
	EnableSignInLog         bool

	RequireOtpMfa   bool
	RequireSmsMfa   bool
	RequireEmailMfa bool

	EnforceOneMfaEnrollment []repository.MfaType

	AuthCodeTTL       time.Duration
	RefreshTokenTTL   time.Duration
	MfaCodeTTL        time.Duration
	LockoutWindow     time.Duration
	ConsentSessionTTL time.Duration
}

// Resolve overlayea sistema ⊕ app ⊕ org y aplica el override passwordless.
//
// Reglas, en orden:
//  1. El override MFA por-app (useSystemMfaConfig=false) REEMPLAZA los tres
//     flags de sistema, no los mergea.
//  2. El org puede apagar sign-up y passkeys para su tenant.
//  3. Passwordless global gana sobre todo lo password-based: apaga sign-up,
//     reset, password sign-in y enrolamiento de passkeys. No es aditivo.
func Resolve(sys System, app *repository.App, org *OrgOverride) Resolved {
	r := Resolved{
		EnableSignUp:            sys.EnableSignUp,
		EnablePasswordReset:     sys.EnablePasswordReset,
		EnablePasswordSignIn:    sys.EnablePasswordSignIn,
		PasswordlessSignIn:      sys.EnablePasswordlessSignIn,
		AllowPasskeyEnrollment:  sys.AllowPasskeyEnrollment,
		EnableRecoveryCode:      sys.EnableRecoveryCode,
		EnableUserAppConsent:    sys.EnableUserAppConsent,
		EnableEmailVerification: sys.EnableEmailVerification,
		EnableSignInLog:         sys.EnableSignInLog,
		RequireOtpMfa:           sys.OtpMfaRequired,
		RequireSmsMfa:           sys.SmsMfaRequired,
		RequireEmailMfa:         sys.EmailMfaRequired,
		EnforceOneMfaEnrollment: sys.EnforceOneMfaEnrollment,
		AuthCodeTTL:             sys.AuthCodeTTL,
		RefreshTokenTTL:         sys.RefreshTokenTTL,
		MfaCodeTTL:              sys.MfaCodeTTL,
		LockoutWindow:           sys.LockoutWindow,
		ConsentSessionTTL:       sys.ConsentSessionTTL,
	}

	if app != nil && !app.UseSystemMfaConfig {
		r.RequireOtpMfa = app.RequireOtpMfa
		r.RequireSmsMfa = app.RequireSmsMfa
		r.RequireEmailMfa = app.RequireEmailMfa
	}

	if org != nil {
		if org.DisableSignUp {
			r.EnableSignUp = false
		}
		if org.DisablePasskeys {
			r.AllowPasskeyEnrollment = false
		}
	}

	if r.PasswordlessSignIn {
		r.EnableSignUp = false
		r.EnablePasswordReset = false
		r.EnablePasswordSignIn = false
		r.AllowPasskeyEnrollment = false
	}

	return r
}
