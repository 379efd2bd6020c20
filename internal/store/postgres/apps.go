package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/janus/internal/domain/repository"
)

type appRepo struct {
	pool *pgxpool.Pool
}

func (r *appRepo) GetByClientID(ctx context.Context, clientID string) (*repository.App, error) {
	const query = `
		SELECT id, client_id, name, type, secret_hash, redirect_uris, scopes,
		       is_active, use_system_mfa_config, require_email_mfa,
		       require_otp_mfa, require_sms_mfa, created_at
		FROM app WHERE client_id = $1`

	var a repository.App
	var appType string
	err := r.pool.QueryRow(ctx, query, clientID).Scan(
		&a.ID, &a.ClientID, &a.Name, &appType, &a.SecretHash,
		&a.RedirectURIs, &a.Scopes, &a.IsActive,
		&a.UseSystemMfaConfig, &a.RequireEmailMfa, &a.RequireOtpMfa, &a.RequireSmsMfa,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Type = repository.AppType(appType)
	return &a, nil
}

type scopeRepo struct {
	pool *pgxpool.Pool
}

func (r *scopeRepo) GetByName(ctx context.Context, name string) (*repository.Scope, error) {
	var s repository.Scope
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, note FROM scope WHERE name = $1`, name).
		Scan(&s.ID, &s.Name, &s.Note)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scopeRepo) List(ctx context.Context) ([]repository.Scope, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, note FROM scope ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Scope
	for rows.Next() {
		var s repository.Scope
		if err := rows.Scan(&s.ID, &s.Name, &s.Note); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
