// Package repotest provee un DataAccess en memoria para tests de servicios.
// No simula SQL: implementa el contrato de cada repositorio (ErrNotFound,
// ErrConflict, idempotencia) sobre maps con mutex.
package repotest

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dropDatabas3/janus/internal/domain/repository"
)

// Store implementa repository.DataAccess en memoria.
type Store struct {
	mu sync.Mutex

	UsersByID map[string]*repository.User
	AppsByCID map[string]*repository.App
	ScopesMap map[string]*repository.Scope
	Grants    map[string]bool // userID|appID
	RolesMap  map[string][]string
	Passkey   map[string]*repository.Passkey // por userID
	Recovery  map[string]map[string]bool     // userID -> hash -> usado
	SignIns   []*repository.SignInLog
}

func New() *Store {
	return &Store{
		UsersByID: map[string]*repository.User{},
		AppsByCID: map[string]*repository.App{},
		ScopesMap: map[string]*repository.Scope{},
		Grants:    map[string]bool{},
		RolesMap:  map[string][]string{},
		Passkey:   map[string]*repository.Passkey{},
		Recovery:  map[string]map[string]bool{},
	}
}

func (s *Store) Users() repository.UserRepository                 { return (*userRepo)(s) }
func (s *Store) Apps() repository.AppRepository                   { return (*appRepo)(s) }
func (s *Store) Scopes() repository.ScopeRepository               { return (*scopeRepo)(s) }
func (s *Store) Consents() repository.ConsentRepository           { return (*consentRepo)(s) }
func (s *Store) Roles() repository.RoleRepository                 { return (*roleRepo)(s) }
func (s *Store) Passkeys() repository.PasskeyRepository           { return (*passkeyRepo)(s) }
func (s *Store) RecoveryCodes() repository.RecoveryCodeRepository { return (*recoveryRepo)(s) }
func (s *Store) SignInLogs() repository.SignInLogRepository       { return (*signInRepo)(s) }

// AddUser registra un usuario ya armado. Devuelve el mismo puntero.
func (s *Store) AddUser(u *repository.User) *repository.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.AuthID == "" {
		u.AuthID = uuid.NewString()
	}
	s.UsersByID[u.ID] = u
	return u
}

// AddApp registra un app.
func (s *Store) AddApp(a *repository.App) *repository.App {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.AppsByCID[a.ClientID] = a
	return a
}

// ---- users ----

type userRepo Store

func (r *userRepo) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.UsersByID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetByAuthID(_ context.Context, authID string) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.UsersByID {
		if u.AuthID == authID {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetBySocialAccount(_ context.Context, provider, accountID string) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.UsersByID {
		if u.SocialProvider == provider && u.SocialAccountID == accountID {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.UsersByID {
		if strings.EqualFold(u.Email, in.Email) {
			return nil, repository.ErrConflict
		}
	}
	u := &repository.User{
		ID:              uuid.NewString(),
		AuthID:          uuid.NewString(),
		OrgSlug:         in.OrgSlug,
		Email:           in.Email,
		EmailVerified:   in.EmailVerified,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Locale:          in.Locale,
		SocialProvider:  in.SocialProvider,
		SocialAccountID: in.SocialAccountID,
	}
	if in.PasswordHash != "" {
		h := in.PasswordHash
		u.PasswordHash = &h
	}
	r.UsersByID[u.ID] = u
	return u, nil
}

func (r *userRepo) UpdateOtpSecret(_ context.Context, userID, secretEnc string) error {
	return r.mutate(userID, func(u *repository.User) {
		u.OtpSecret = secretEnc
		u.OtpVerified = false
	})
}

func (r *userRepo) MarkOtpVerified(_ context.Context, userID string) error {
	return r.mutate(userID, func(u *repository.User) { u.OtpVerified = true })
}

func (r *userRepo) EnrollMfaType(_ context.Context, userID string, t repository.MfaType) error {
	return r.mutate(userID, func(u *repository.User) {
		if !u.HasMfaType(t) {
			u.MfaTypes = append(u.MfaTypes, t)
		}
	})
}

func (r *userRepo) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	return r.mutate(userID, func(u *repository.User) {
		h := newHash
		u.PasswordHash = &h
	})
}

func (r *userRepo) UpdateEmail(_ context.Context, userID, newEmail string) error {
	r.mu.Lock()
	for _, u := range r.UsersByID {
		if u.ID != userID && strings.EqualFold(u.Email, newEmail) {
			r.mu.Unlock()
			return repository.ErrConflict
		}
	}
	r.mu.Unlock()
	return r.mutate(userID, func(u *repository.User) {
		u.Email = newEmail
		u.EmailVerified = true
	})
}

func (r *userRepo) IncrementLoginCount(_ context.Context, userID string) error {
	return r.mutate(userID, func(u *repository.User) { u.LoginCount++ })
}

func (r *userRepo) mutate(userID string, fn func(*repository.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.UsersByID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

// ---- apps / scopes ----

type appRepo Store

func (r *appRepo) GetByClientID(_ context.Context, clientID string) (*repository.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.AppsByCID[clientID]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

type scopeRepo Store

func (r *scopeRepo) GetByName(_ context.Context, name string) (*repository.Scope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sc, ok := r.ScopesMap[name]; ok {
		return sc, nil
	}
	return nil, repository.ErrNotFound
}

func (r *scopeRepo) List(_ context.Context) ([]repository.Scope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repository.Scope, 0, len(r.ScopesMap))
	for _, sc := range r.ScopesMap {
		out = append(out, *sc)
	}
	return out, nil
}

// ---- consents / roles / telemetría ----

type consentRepo Store

func (r *consentRepo) Exists(_ context.Context, userID, appID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Grants[userID+"|"+appID], nil
}

func (r *consentRepo) Grant(_ context.Context, userID, appID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Grants[userID+"|"+appID] = true
	return nil
}

func (r *consentRepo) Revoke(_ context.Context, userID, appID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Grants, userID+"|"+appID)
	return nil
}

type roleRepo Store

func (r *roleRepo) GetUserRoles(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.RolesMap[userID], nil
}

type signInRepo Store

func (r *signInRepo) Create(_ context.Context, log *repository.SignInLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SignIns = append(r.SignIns, log)
	return nil
}

// ---- passkeys / recovery codes ----

type passkeyRepo Store

func (r *passkeyRepo) GetByUserID(_ context.Context, userID string) (*repository.Passkey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pk, ok := r.Passkey[userID]; ok {
		return pk, nil
	}
	return nil, repository.ErrNotFound
}

func (r *passkeyRepo) Create(_ context.Context, pk *repository.Passkey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pk.ID == "" {
		pk.ID = uuid.NewString()
	}
	r.Passkey[pk.UserID] = pk
	return nil
}

func (r *passkeyRepo) UpdateCounter(_ context.Context, id string, counter uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pk := range r.Passkey {
		if pk.ID == id {
			pk.Counter = counter
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *passkeyRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Passkey, userID)
	return nil
}

type recoveryRepo Store

func (r *recoveryRepo) Replace(_ context.Context, userID string, hashes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		set[h] = false
	}
	r.Recovery[userID] = set
	return nil
}

func (r *recoveryRepo) Has(_ context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, used := range r.Recovery[userID] {
		if !used {
			return true, nil
		}
	}
	return false, nil
}

func (r *recoveryRepo) Consume(_ context.Context, userID, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.Recovery[userID]
	if !ok {
		return false, nil
	}
	used, exists := set[hash]
	if !exists || used {
		return false, nil
	}
	set[hash] = true
	return true, nil
}
