// Package accountstore persists users and their API keys in Postgres for
// the bearer-key authentication model: a users table plus an api_keys
// table keyed by a hashed secret.
package accountstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/auth"
)

// PostgresRepository persists users and API keys.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateUser(ctx context.Context, email, passwordHash string) (auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, email, password_hash, created_at
	`, email, passwordHash)
	user, err := scanUser(row)
	if err != nil {
		if isDuplicateError(err) {
			return auth.User{}, auth.ErrEmailExists
		}
		return auth.User{}, err
	}
	return user, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (auth.User, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE email = $1 LIMIT 1
	`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, false, nil
		}
		return auth.User{}, false, err
	}
	return user, true, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (auth.User, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE id = $1 LIMIT 1
	`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, false, nil
		}
		return auth.User{}, false, err
	}
	return user, true, nil
}

func (r *PostgresRepository) CreateAPIKey(ctx context.Context, key auth.APIKey) (auth.APIKey, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, scopes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, key.ID, key.UserID, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt)
	if err != nil {
		return auth.APIKey{}, err
	}
	return key, nil
}

func (r *PostgresRepository) FindAPIKeysByPrefix(ctx context.Context, prefix string) ([]auth.APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, key_hash, key_prefix, scopes, created_at, last_used_at
		FROM api_keys WHERE key_prefix = $1 AND revoked_at IS NULL
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) TouchAPIKeyLastUsed(ctx context.Context, keyID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, keyID)
	return err
}

func (r *PostgresRepository) RevokeAPIKey(ctx context.Context, keyID uuid.UUID, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`, keyID, userID)
	return err
}

func scanUser(row pgx.Row) (auth.User, error) {
	var u auth.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func scanAPIKey(row pgx.Row) (auth.APIKey, error) {
	var (
		k          auth.APIKey
		lastUsedAt *time.Time
	)
	if err := row.Scan(&k.ID, &k.UserID, &k.KeyHash, &k.KeyPrefix, &k.Scopes, &k.CreatedAt, &lastUsedAt); err != nil {
		return auth.APIKey{}, err
	}
	k.LastUsedAt = lastUsedAt
	return k, nil
}

func isDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ auth.Repository = (*PostgresRepository)(nil)
