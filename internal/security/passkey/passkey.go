// Package passkey envuelve go-webauthn para el enrolamiento y login con
// WebAuthn. El SessionData del challenge viaja por el state store keyed por
// authorization code: un challenge cambiado o reusado falla con
// InvalidPasskeyRequest, nunca con un error genérico.
package passkey

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
)

const sessionKeyPrefix = "passkey:session:"

// Config identifica el relying party.
type Config struct {
	RPDisplayName string
	RPID          string
	RPOrigins     []string
	SessionTTL    time.Duration
}

// Service maneja los cuatro pasos del ceremonial WebAuthn.
type Service struct {
	wa         *webauthn.WebAuthn
	store      cache.Client
	sessionTTL time.Duration
}

func NewService(cfg Config, store cache.Client) (*Service, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, err
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{wa: wa, store: store, sessionTTL: ttl}, nil
}

// waUser adapta nuestro usuario + credenciales al contrato de go-webauthn.
type waUser struct {
	id          string
	email       string
	displayName string
	creds       []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte                         { return []byte(u.id) }
func (u *waUser) WebAuthnName() string                       { return u.email }
func (u *waUser) WebAuthnDisplayName() string                { return u.displayName }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

// WebAuthnIcon lo exige la interfaz webauthn.User en go-webauthn v0.10.x
// (la v0.11+ que lo elimina requiere Go >= 1.22). Está deprecado y vacío.
func (u *waUser) WebAuthnIcon() string { return "" }

func adaptUser(userID, email, displayName string, stored []repository.Passkey) *waUser {
	u := &waUser{id: userID, email: email, displayName: displayName}
	for _, p := range stored {
		u.creds = append(u.creds, webauthn.Credential{
			ID:        p.CredentialID,
			PublicKey: p.PublicKey,
			Authenticator: webauthn.Authenticator{
				SignCount: p.Counter,
			},
		})
	}
	return u
}

// BeginRegistration genera el challenge de enrolamiento y guarda la sesión
// atada al authorization code.
func (s *Service) BeginRegistration(ctx context.Context, code, userID, email, displayName string) (*protocol.CredentialCreation, error) {
	user := adaptUser(userID, email, displayName, nil)
	creation, session, err := s.wa.BeginRegistration(user)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if err := s.saveSession(ctx, code, session); err != nil {
		return nil, err
	}
	return creation, nil
}

// FinishRegistration valida challenge/origen/firma y devuelve la credencial
// a persistir. La sesión se consume atómicamente: un segundo intento con el
// mismo challenge falla con InvalidPasskeyRequest.
func (s *Service) FinishRegistration(ctx context.Context, code, userID, email, displayName string, r *http.Request) (*repository.Passkey, error) {
	session, err := s.takeSession(ctx, code)
	if err != nil {
		return nil, err
	}
	user := adaptUser(userID, email, displayName, nil)
	cred, err := s.wa.FinishRegistration(user, *session, r)
	if err != nil {
		return nil, autherr.ErrInvalidPasskey
	}
	return &repository.Passkey{
		UserID:       userID,
		CredentialID: cred.ID,
		PublicKey:    cred.PublicKey,
		Counter:      cred.Authenticator.SignCount,
	}, nil
}

// BeginLogin genera el assertion challenge contra las credenciales enroladas.
func (s *Service) BeginLogin(ctx context.Context, code, userID, email string, stored []repository.Passkey) (*protocol.CredentialAssertion, error) {
	if len(stored) == 0 {
		return nil, autherr.ErrInvalidPasskey
	}
	user := adaptUser(userID, email, email, stored)
	assertion, session, err := s.wa.BeginLogin(user)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if err := s.saveSession(ctx, code, session); err != nil {
		return nil, err
	}
	return assertion, nil
}

// FinishLogin valida la assertion y devuelve el sign count nuevo para
// persistir junto con la credencial usada.
func (s *Service) FinishLogin(ctx context.Context, code, userID, email string, stored []repository.Passkey, r *http.Request) (credentialID []byte, newCounter uint32, err error) {
	session, err := s.takeSession(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	user := adaptUser(userID, email, email, stored)
	cred, err := s.wa.FinishLogin(user, *session, r)
	if err != nil {
		return nil, 0, autherr.ErrInvalidPasskey
	}
	return cred.ID, cred.Authenticator.SignCount, nil
}

func (s *Service) saveSession(ctx context.Context, code string, session *webauthn.SessionData) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return autherr.Internal(err)
	}
	if err := s.store.Set(ctx, sessionKeyPrefix+code, raw, s.sessionTTL); err != nil {
		return autherr.Internal(err)
	}
	return nil
}

// takeSession lee y borra la sesión en una operación: el challenge es one-shot.
func (s *Service) takeSession(ctx context.Context, code string) (*webauthn.SessionData, error) {
	raw, err := s.store.GetDel(ctx, sessionKeyPrefix+code)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, autherr.ErrInvalidPasskey
		}
		return nil, autherr.Internal(err)
	}
	var session webauthn.SessionData
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, autherr.ErrInvalidPasskey
	}
	return &session, nil
}
