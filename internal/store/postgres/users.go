package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/janus/internal/domain/repository"
)

type userRepo struct {
	pool *pgxpool.Pool
}

const userColumns = `
	id, auth_id, org_slug, email, email_verified, first_name, last_name, locale,
	password_hash, otp_secret, otp_verified, mfa_types, social_provider,
	social_account_id, phone_number, login_count, created_at, disabled_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	var mfaTypes []string
	err := row.Scan(
		&u.ID, &u.AuthID, &u.OrgSlug, &u.Email, &u.EmailVerified,
		&u.FirstName, &u.LastName, &u.Locale,
		&u.PasswordHash, &u.OtpSecret, &u.OtpVerified, &mfaTypes,
		&u.SocialProvider, &u.SocialAccountID, &u.PhoneNumber,
		&u.LoginCount, &u.CreatedAt, &u.DisabledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	for _, t := range mfaTypes {
		u.MfaTypes = append(u.MfaTypes, repository.MfaType(t))
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *userRepo) GetByAuthID(ctx context.Context, authID string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE auth_id = $1`, authID)
	return scanUser(row)
}

func (r *userRepo) GetBySocialAccount(ctx context.Context, provider, accountID string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE social_provider = $1 AND social_account_id = $2`,
		provider, accountID)
	return scanUser(row)
}

func (r *userRepo) Create(ctx context.Context, input repository.CreateUserInput) (*repository.User, error) {
	id := uuid.NewString()
	authID := uuid.NewString()

	var passwordHash *string
	if input.PasswordHash != "" {
		passwordHash = &input.PasswordHash
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO app_user (
			id, auth_id, org_slug, email, email_verified, first_name, last_name,
			locale, password_hash, social_provider, social_account_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING `+userColumns,
		id, authID, input.OrgSlug, strings.ToLower(input.Email), input.EmailVerified,
		input.FirstName, input.LastName, input.Locale, passwordHash,
		input.SocialProvider, input.SocialAccountID,
	)
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepo) UpdateOtpSecret(ctx context.Context, userID, secretEnc string) error {
	return r.exec(ctx,
		`UPDATE app_user SET otp_secret = $2, otp_verified = false WHERE id = $1`,
		userID, secretEnc)
}

func (r *userRepo) MarkOtpVerified(ctx context.Context, userID string) error {
	return r.exec(ctx, `UPDATE app_user SET otp_verified = true WHERE id = $1`, userID)
}

func (r *userRepo) EnrollMfaType(ctx context.Context, userID string, t repository.MfaType) error {
	// idempotente: si el factor ya está, 0 filas afectadas no es error
	_, err := r.pool.Exec(ctx, `
		UPDATE app_user SET mfa_types = array_append(mfa_types, $2)
		WHERE id = $1 AND NOT ($2 = ANY(mfa_types))`,
		userID, string(t))
	return err
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return r.exec(ctx, `UPDATE app_user SET password_hash = $2 WHERE id = $1`, userID, newHash)
}

func (r *userRepo) UpdateEmail(ctx context.Context, userID, newEmail string) error {
	err := r.exec(ctx,
		`UPDATE app_user SET email = $2, email_verified = true WHERE id = $1`,
		userID, strings.ToLower(newEmail))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	return err
}

func (r *userRepo) IncrementLoginCount(ctx context.Context, userID string) error {
	return r.exec(ctx, `UPDATE app_user SET login_count = login_count + 1 WHERE id = $1`, userID)
}

func (r *userRepo) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
