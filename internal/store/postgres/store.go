// Package postgres implementa el collaborator de persistencia sobre pgx.
// El schema relacional no se rediseña acá: tablas app_user, app, scope,
// consent, user_role, passkey, recovery_code y sign_in_log.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/janus/internal/domain/repository"
)

// Store agrupa los repositorios pgx y satisface repository.DataAccess.
type Store struct {
	pool *pgxpool.Pool

	users         *userRepo
	apps          *appRepo
	scopes        *scopeRepo
	consents      *consentRepo
	roles         *roleRepo
	passkeys      *passkeyRepo
	recoveryCodes *recoveryCodeRepo
	signInLogs    *signInLogRepo
}

// New abre el pool y verifica conectividad.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{
		pool:          pool,
		users:         &userRepo{pool: pool},
		apps:          &appRepo{pool: pool},
		scopes:        &scopeRepo{pool: pool},
		consents:      &consentRepo{pool: pool},
		roles:         &roleRepo{pool: pool},
		passkeys:      &passkeyRepo{pool: pool},
		recoveryCodes: &recoveryCodeRepo{pool: pool},
		signInLogs:    &signInLogRepo{pool: pool},
	}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Users() repository.UserRepository                 { return s.users }
func (s *Store) Apps() repository.AppRepository                   { return s.apps }
func (s *Store) Scopes() repository.ScopeRepository               { return s.scopes }
func (s *Store) Consents() repository.ConsentRepository           { return s.consents }
func (s *Store) Roles() repository.RoleRepository                 { return s.roles }
func (s *Store) Passkeys() repository.PasskeyRepository           { return s.passkeys }
func (s *Store) RecoveryCodes() repository.RecoveryCodeRepository { return s.recoveryCodes }
func (s *Store) SignInLogs() repository.SignInLogRepository       { return s.signInLogs }
