package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/janus/internal/domain/repository"
)

type passkeyRepo struct {
	pool *pgxpool.Pool
}

func (r *passkeyRepo) GetByUserID(ctx context.Context, userID string) (*repository.Passkey, error) {
	var p repository.Passkey
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, credential_id, public_key, counter, created_at
		FROM passkey WHERE user_id = $1`, userID).
		Scan(&p.ID, &p.UserID, &p.CredentialID, &p.PublicKey, &p.Counter, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *passkeyRepo) Create(ctx context.Context, pk *repository.Passkey) error {
	if pk.ID == "" {
		pk.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO passkey (id, user_id, credential_id, public_key, counter)
		VALUES ($1, $2, $3, $4, $5)`,
		pk.ID, pk.UserID, pk.CredentialID, pk.PublicKey, pk.Counter)
	return err
}

func (r *passkeyRepo) UpdateCounter(ctx context.Context, id string, counter uint32) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE passkey SET counter = $2 WHERE id = $1`, id, counter)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *passkeyRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM passkey WHERE user_id = $1`, userID)
	return err
}

type recoveryCodeRepo struct {
	pool *pgxpool.Pool
}

func (r *recoveryCodeRepo) Replace(ctx context.Context, userID string, hashes []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM recovery_code WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, h := range hashes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO recovery_code (user_id, hash) VALUES ($1, $2)`, userID, h); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *recoveryCodeRepo) Has(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM recovery_code WHERE user_id = $1 AND used_at IS NULL)`,
		userID).Scan(&exists)
	return exists, err
}

func (r *recoveryCodeRepo) Consume(ctx context.Context, userID, hash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE recovery_code SET used_at = NOW()
		WHERE user_id = $1 AND hash = $2 AND used_at IS NULL`,
		userID, hash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
