package repository

import "context"

// Scope es un scope registrado en el sistema.
type Scope struct {
	ID   string
	Name string
	Note string
}

// ScopeRepository define lookups de scopes.
type ScopeRepository interface {
	// GetByName busca un scope. Retorna ErrNotFound si no existe.
	GetByName(ctx context.Context, name string) (*Scope, error)

	// List retorna todos los scopes registrados.
	List(ctx context.Context) ([]Scope, error)
}

// DataAccess agrupa todos los repositorios del collaborator relacional.
// Los services reciben esto en lugar de repos sueltos.
type DataAccess interface {
	Users() UserRepository
	Apps() AppRepository
	Scopes() ScopeRepository
	Consents() ConsentRepository
	Roles() RoleRepository
	Passkeys() PasskeyRepository
	RecoveryCodes() RecoveryCodeRepository
	SignInLogs() SignInLogRepository
}
