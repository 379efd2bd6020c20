package authz

import (
	"github.com/dropDatabas3/janus/internal/authcfg"
	"github.com/dropDatabas3/janus/internal/domain/repository"
)

// MfaRequirement es la salida del resolver: qué factores exige ESTE flujo
// para ESTE usuario. Función pura de (config resuelta, factores enrolados);
// mismos inputs, misma salida, sin estado escondido.
type MfaRequirement struct {
	RequireEmailMfa bool
	RequireOtpMfa   bool
	RequireSmsMfa   bool

	// EnforceEnrollment: el usuario no tiene ningún factor y la lista de
	// enforcement no está vacía; hay que bloquear la emisión hasta que
	// enrole uno de EnrollmentChoices.
	EnforceEnrollment bool
	EnrollmentChoices []repository.MfaType
}

// Required reporta si algún factor quedó exigido.
func (m MfaRequirement) Required() bool {
	return m.RequireEmailMfa || m.RequireOtpMfa || m.RequireSmsMfa
}

// ResolveMfa computa los factores exigidos.
//
// Reglas:
//  1. Un factor queda exigido si la config lo exige O si el usuario ya lo
//     tiene enrolado (un factor enrolado siempre se verifica).
//  2. EnforceOneMfaEnrollment solo aplica si el usuario tiene CERO factores
//     y ninguno de los tres quedó exigido de forma independiente.
//  3. Los usuarios sociales no tienen factores password-based que verificar:
//     su postura MFA es la que asevera el IdP federado.
//  4. Cuando hay más de un factor exigido se verifican TODOS (AND, no OR).
func ResolveMfa(cfg authcfg.Resolved, user *UserSnapshot) MfaRequirement {
	if user.IsSocial() {
		return MfaRequirement{}
	}

	req := MfaRequirement{
		RequireEmailMfa: cfg.RequireEmailMfa || user.HasMfaType(repository.MfaTypeEmail),
		RequireOtpMfa:   cfg.RequireOtpMfa || user.HasMfaType(repository.MfaTypeOTP),
		RequireSmsMfa:   cfg.RequireSmsMfa || user.HasMfaType(repository.MfaTypeSMS),
	}

	if len(cfg.EnforceOneMfaEnrollment) > 0 && len(user.MfaTypes) == 0 && !req.Required() {
		req.EnforceEnrollment = true
		req.EnrollmentChoices = cfg.EnforceOneMfaEnrollment
	}
	return req
}
