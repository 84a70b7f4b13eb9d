package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/splax/todos/internal/domain"
)

const userColumns = `id, username, password_hash, created_at`

// CreateUserWithToken inserts a user together with its token.
func (r *Repository) CreateUserWithToken(ctx context.Context, user *domain.User, token *domain.Token) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertUser = `INSERT INTO users (id, username, password_hash, created_at)
			VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, insertUser, user.ID, user.Username, user.PasswordHash, user.CreatedAt); err != nil {
			return err
		}
		const insertToken = `INSERT INTO auth_tokens (user_id, digest, sealed, created_at)
			VALUES ($1, $2, $3, $4)`
		_, err := tx.Exec(ctx, insertToken, token.UserID, token.Digest, token.Sealed, token.CreatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("create user: %w", mapError(err))
	}
	return nil
}

// GetUserByUsername fetches a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// CreateToken stores a token for a user that has none.
func (r *Repository) CreateToken(ctx context.Context, token *domain.Token) error {
	const query = `INSERT INTO auth_tokens (user_id, digest, sealed, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.pool.Exec(ctx, query, token.UserID, token.Digest, token.Sealed, token.CreatedAt); err != nil {
		return fmt.Errorf("create token: %w", mapError(err))
	}
	return nil
}

// GetTokenByUser returns the token issued to userID.
func (r *Repository) GetTokenByUser(ctx context.Context, userID string) (*domain.Token, error) {
	const query = `SELECT user_id, digest, sealed, created_at FROM auth_tokens WHERE user_id = $1`
	var t domain.Token
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&t.UserID, &t.Digest, &t.Sealed, &t.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

// GetUserByTokenDigest resolves a token digest to its owner.
func (r *Repository) GetUserByTokenDigest(ctx context.Context, digest string) (*domain.User, error) {
	const query = `SELECT u.id, u.username, u.password_hash, u.created_at
		FROM auth_tokens t
		INNER JOIN users u ON u.id = t.user_id
		WHERE t.digest = $1`
	return scanUser(r.pool.QueryRow(ctx, query, digest))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}
