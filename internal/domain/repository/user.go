package repository

import (
	"context"
	"time"
)

// MfaType identifica un factor de MFA enrolado.
type MfaType string

const (
	MfaTypeOTP   MfaType = "otp"
	MfaTypeSMS   MfaType = "sms"
	MfaTypeEmail MfaType = "email"
)

// User representa un usuario del sistema.
// AuthID es el subject estable que va en los tokens; ID es la PK interna.
type User struct {
	ID              string
	AuthID          string
	OrgSlug         string
	Email           string
	EmailVerified   bool
	FirstName       string
	LastName        string
	Locale          string
	PasswordHash    *string
	OtpSecret       string // secreto TOTP cifrado; vacío = nunca generado
	OtpVerified     bool
	MfaTypes        []MfaType // factores enrolados
	SocialProvider  string    // "google", "github", ... vacío = cuenta password
	SocialAccountID string
	PhoneNumber     string
	LoginCount      int
	CreatedAt       time.Time
	DisabledAt      *time.Time
}

// IsSocial indica si el usuario entró por federación.
func (u *User) IsSocial() bool { return u.SocialProvider != "" }

// HasMfaType verifica si el usuario tiene enrolado un factor.
func (u *User) HasMfaType(t MfaType) bool {
	for _, m := range u.MfaTypes {
		if m == t {
			return true
		}
	}
	return false
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	OrgSlug         string
	Email           string
	PasswordHash    string
	FirstName       string
	LastName        string
	Locale          string
	SocialProvider  string
	SocialAccountID string
	EmailVerified   bool
}

// UserRepository define el collaborator de persistencia de usuarios.
type UserRepository interface {
	// GetByEmail busca por email. Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByAuthID busca por auth id (subject). Retorna ErrNotFound si no existe.
	GetByAuthID(ctx context.Context, authID string) (*User, error)

	// GetBySocialAccount busca por (provider, subject id del provider).
	GetBySocialAccount(ctx context.Context, provider, accountID string) (*User, error)

	// Create crea un usuario. Retorna ErrConflict si el email ya existe.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// UpdateOtpSecret guarda el secreto TOTP (cifrado) del usuario.
	UpdateOtpSecret(ctx context.Context, userID, secretEnc string) error

	// MarkOtpVerified marca el TOTP como confirmado.
	MarkOtpVerified(ctx context.Context, userID string) error

	// EnrollMfaType agrega un factor al set enrolado del usuario.
	EnrollMfaType(ctx context.Context, userID string, t MfaType) error

	// UpdatePasswordHash actualiza el hash del password.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// UpdateEmail actualiza el email y lo deja marcado como verificado.
	// Lo usan change-email y el gate de verificación, que re-escribe la
	// misma dirección solo por ese side-effect.
	UpdateEmail(ctx context.Context, userID, newEmail string) error

	// IncrementLoginCount suma uno al contador de sign-ins.
	IncrementLoginCount(ctx context.Context, userID string) error
}
