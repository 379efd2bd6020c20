package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/janus/internal/domain/repository"
)

type consentRepo struct {
	pool *pgxpool.Pool
}

func (r *consentRepo) Exists(ctx context.Context, userID, appID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM consent WHERE user_id = $1 AND app_id = $2)`,
		userID, appID).Scan(&exists)
	return exists, err
}

func (r *consentRepo) Grant(ctx context.Context, userID, appID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO consent (user_id, app_id) VALUES ($1, $2)
		ON CONFLICT (user_id, app_id) DO NOTHING`,
		userID, appID)
	return err
}

func (r *consentRepo) Revoke(ctx context.Context, userID, appID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM consent WHERE user_id = $1 AND app_id = $2`, userID, appID)
	return err
}

type roleRepo struct {
	pool *pgxpool.Pool
}

func (r *roleRepo) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ro.name FROM user_role ur
		JOIN role ro ON ro.id = ur.role_id
		WHERE ur.user_id = $1 ORDER BY ro.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

type signInLogRepo struct {
	pool *pgxpool.Pool
}

func (r *signInLogRepo) Create(ctx context.Context, log *repository.SignInLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sign_in_log (id, user_id, ip, location) VALUES ($1, $2, $3, $4)`,
		log.ID, log.UserID, log.IP, log.Location)
	return err
}
