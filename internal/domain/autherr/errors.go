// Package autherr define la taxonomía de errores del flujo de autorización.
//
// Cada error lleva un Kind estable (lo que ven los SDKs) y el status HTTP con
// el que se sirve. Los verifiers y services devuelven estos errores sin
// envolverlos en retries: cada gate que falla tiene que ser visible en el borde.
package autherr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind es el identificador estable del error (va en el body de la respuesta).
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindWrongAuthCode       Kind = "WrongAuthCode"
	KindNoUser              Kind = "NoUser"
	KindUserDisabled        Kind = "UserDisabled"
	KindSocialNotSupported  Kind = "SocialAccountNotSupported"
	KindFeatureNotEnabled   Kind = "FeatureNotEnabled"
	KindUnknownScope        Kind = "UnknownScope"
	KindWrongCodeVerifier   Kind = "WrongCodeVerifier"
	KindWrongRefreshToken   Kind = "WrongRefreshToken"
	KindWrongTokenTypeHint  Kind = "WrongTokenTypeHint"
	KindMfaNotVerified      Kind = "MfaNotVerified"
	KindWrongMfaCode        Kind = "WrongMfaCode"
	KindMfaNotSent          Kind = "MfaCodeNotSent"
	KindOtpMfaLocked        Kind = "OtpMfaLocked"
	KindSmsMfaLocked        Kind = "SmsMfaLocked"
	KindEmailMfaLocked      Kind = "EmailMfaLocked"
	KindAccountLocked       Kind = "AccountLocked"
	KindChangeEmailLocked   Kind = "ChangeEmailLocked"
	KindPasswordResetLocked Kind = "PasswordResetLocked"
	KindWrongPassword       Kind = "WrongPassword"
	KindInvalidPasskey      Kind = "InvalidPasskeyRequest"
	KindUnauthorized        Kind = "UnAuthorized"
	KindNotFound            Kind = "NotFound"
	KindStaleCode           Kind = "StaleAuthCode"
	KindInternal            Kind = "InternalError"
)

// Error es un error de dominio con kind estable y status HTTP.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is permite errors.Is contra sentinels del mismo Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels. Comparar con errors.Is; el Status ya viene decidido.
var (
	ErrWrongAuthCode       = &Error{Kind: KindWrongAuthCode, Status: http.StatusBadRequest, Message: "authorization code inválido o expirado"}
	ErrNoUser              = &Error{Kind: KindNoUser, Status: http.StatusNotFound, Message: "usuario no encontrado"}
	ErrUserDisabled        = &Error{Kind: KindUserDisabled, Status: http.StatusUnauthorized, Message: "usuario deshabilitado"}
	ErrSocialNotSupported  = &Error{Kind: KindSocialNotSupported, Status: http.StatusForbidden, Message: "cuenta social no soportada para esta operación"}
	ErrUnknownScope        = &Error{Kind: KindUnknownScope, Status: http.StatusForbidden, Message: "scope desconocido"}
	ErrWrongCodeVerifier   = &Error{Kind: KindWrongCodeVerifier, Status: http.StatusForbidden, Message: "PKCE verifier no coincide"}
	ErrWrongRefreshToken   = &Error{Kind: KindWrongRefreshToken, Status: http.StatusForbidden, Message: "refresh token inválido"}
	ErrWrongTokenTypeHint  = &Error{Kind: KindWrongTokenTypeHint, Status: http.StatusForbidden, Message: "token_type_hint no soportado"}
	ErrMfaNotVerified      = &Error{Kind: KindMfaNotVerified, Status: http.StatusUnauthorized, Message: "MFA requerida y no verificada"}
	ErrWrongMfaCode        = &Error{Kind: KindWrongMfaCode, Status: http.StatusBadRequest, Message: "código MFA incorrecto"}
	ErrMfaNotSent          = &Error{Kind: KindMfaNotSent, Status: http.StatusBadRequest, Message: "todavía no se envió ningún código"}
	ErrOtpMfaLocked        = &Error{Kind: KindOtpMfaLocked, Status: http.StatusBadRequest, Message: "OTP bloqueada por demasiados intentos"}
	ErrSmsMfaLocked        = &Error{Kind: KindSmsMfaLocked, Status: http.StatusBadRequest, Message: "SMS MFA bloqueada por demasiados intentos"}
	ErrEmailMfaLocked      = &Error{Kind: KindEmailMfaLocked, Status: http.StatusBadRequest, Message: "Email MFA bloqueada por demasiados intentos"}
	ErrAccountLocked       = &Error{Kind: KindAccountLocked, Status: http.StatusBadRequest, Message: "cuenta bloqueada temporalmente por intentos fallidos"}
	ErrChangeEmailLocked   = &Error{Kind: KindChangeEmailLocked, Status: http.StatusBadRequest, Message: "cambio de email bloqueado por demasiados intentos"}
	ErrPasswordResetLocked = &Error{Kind: KindPasswordResetLocked, Status: http.StatusBadRequest, Message: "reset de password bloqueado por demasiados intentos"}
	ErrWrongPassword       = &Error{Kind: KindWrongPassword, Status: http.StatusForbidden, Message: "credenciales inválidas"}
	ErrInvalidPasskey      = &Error{Kind: KindInvalidPasskey, Status: http.StatusBadRequest, Message: "challenge de passkey inválido o reutilizado"}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: "no autorizado"}
	ErrNotFound            = &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: "recurso no encontrado"}
	ErrStaleCode           = &Error{Kind: KindStaleCode, Status: http.StatusConflict, Message: "el authorization code fue modificado por otro request"}
)

// Validation crea un ValidationError 400 con mensaje propio.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Forbidden crea un FeatureNotEnabled 403 (feature apagada por config).
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindFeatureNotEnabled, Status: http.StatusForbidden, Message: fmt.Sprintf(format, args...)}
}

// Internal envuelve un error inesperado como 500.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: err.Error()}
}

// KindOf extrae el Kind; errores desconocidos son InternalError.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusOf extrae el status HTTP; errores desconocidos son 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
