package authz

import (
	"time"

	"github.com/dropDatabas3/janus/internal/domain/repository"
)

// UserSnapshot es la foto del usuario dentro del code body. Es un snapshot,
// no una referencia viva: los pasos posteriores del flujo leen de acá, y el
// token exchange relee al usuario real recién al final.
type UserSnapshot struct {
	ID              string               `json:"id"`
	AuthID          string               `json:"authId"`
	Email           string               `json:"email"`
	EmailVerified   bool                 `json:"emailVerified"`
	FirstName       string               `json:"firstName,omitempty"`
	LastName        string               `json:"lastName,omitempty"`
	Locale          string               `json:"locale,omitempty"`
	OrgSlug         string               `json:"orgSlug,omitempty"`
	MfaTypes        []repository.MfaType `json:"mfaTypes"`
	OtpVerified     bool                 `json:"otpVerified"`
	OtpSecretCipher string               `json:"otpSecretCipher,omitempty"`
	SocialProvider  string               `json:"socialProvider,omitempty"`
	SocialAccountID string               `json:"socialAccountId,omitempty"`
	PhoneNumber     string               `json:"phoneNumber,omitempty"`
}

// IsSocial reporta si el sign-in vino por federación.
func (u *UserSnapshot) IsSocial() bool { return u.SocialProvider != "" }

// HasMfaType reporta si el usuario tiene el factor enrolado.
func (u *UserSnapshot) HasMfaType(t repository.MfaType) bool {
	for _, m := range u.MfaTypes {
		if m == t {
			return true
		}
	}
	return false
}

// SnapshotUser arma el snapshot desde el registro persistido. El secreto OTP
// viaja cifrado (secretbox) si existe.
func SnapshotUser(u *repository.User, otpSecretCipher string) UserSnapshot {
	return UserSnapshot{
		ID:              u.ID,
		AuthID:          u.AuthID,
		Email:           u.Email,
		EmailVerified:   u.EmailVerified,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Locale:          u.Locale,
		OrgSlug:         u.OrgSlug,
		MfaTypes:        append([]repository.MfaType(nil), u.MfaTypes...),
		OtpVerified:     u.OtpVerified,
		OtpSecretCipher: otpSecretCipher,
		SocialProvider:  u.SocialProvider,
		SocialAccountID: u.SocialAccountID,
		PhoneNumber:     u.PhoneNumber,
	}
}

// CodeBody es el registro central del flujo, keyed por el authorization code.
// Version es el stamp de concurrencia optimista del Coordinator: un Mutate
// con Version vieja pierde contra el que escribió primero.
type CodeBody struct {
	Version int `json:"version"`

	AppID   string `json:"appId"`
	AppName string `json:"appName"`

	User    UserSnapshot     `json:"user"`
	Request AuthorizeRequest `json:"request"`

	// IsFullyAuthorized lo setea SOLO el state machine cuando todos los
	// gates pasaron. Para logins no-sociales el token exchange re-verifica
	// cada gate igual; el flag solo habilita el fast-path social.
	IsFullyAuthorized bool `json:"isFullyAuthorized"`

	// PasskeyDeclined: el usuario vio la pantalla de enrolamiento y dijo
	// que no; no se le vuelve a ofrecer en este flujo.
	PasskeyDeclined bool `json:"passkeyDeclined,omitempty"`

	// RecoveryCodesIssued: ya se generaron códigos de recuperación en este
	// flujo (o el usuario ya los tenía).
	RecoveryCodesIssued bool `json:"recoveryCodesIssued,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
