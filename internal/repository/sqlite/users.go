package sqlite

import (
	"context"
	"fmt"

	"github.com/splax/todos/internal/domain"
)

const userColumns = `id, username, password_hash, created_at`

type scanner interface {
	Scan(dest ...any) error
}

// CreateUserWithToken inserts a user together with its token.
func (r *Repository) CreateUserWithToken(ctx context.Context, user *domain.User, token *domain.Token) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const insertUser = `INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertUser, user.ID, user.Username, user.PasswordHash, toUnix(user.CreatedAt)); err != nil {
		return fmt.Errorf("create user: %w", mapError(err))
	}
	const insertToken = `INSERT INTO auth_tokens (user_id, digest, sealed, created_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertToken, token.UserID, token.Digest, token.Sealed, toUnix(token.CreatedAt)); err != nil {
		return fmt.Errorf("create token: %w", mapError(err))
	}
	return tx.Commit()
}

// GetUserByUsername fetches a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// CreateToken stores a token for a user that has none.
func (r *Repository) CreateToken(ctx context.Context, token *domain.Token) error {
	const query = `INSERT INTO auth_tokens (user_id, digest, sealed, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, token.UserID, token.Digest, token.Sealed, toUnix(token.CreatedAt)); err != nil {
		return fmt.Errorf("create token: %w", mapError(err))
	}
	return nil
}

// GetTokenByUser returns the token issued to userID.
func (r *Repository) GetTokenByUser(ctx context.Context, userID string) (*domain.Token, error) {
	const query = `SELECT user_id, digest, sealed, created_at FROM auth_tokens WHERE user_id = ?`
	var (
		t       domain.Token
		created int64
	)
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&t.UserID, &t.Digest, &t.Sealed, &created); err != nil {
		return nil, mapError(err)
	}
	t.CreatedAt = fromUnix(created)
	return &t, nil
}

// GetUserByTokenDigest resolves a token digest to its owner.
func (r *Repository) GetUserByTokenDigest(ctx context.Context, digest string) (*domain.User, error) {
	const query = `SELECT u.id, u.username, u.password_hash, u.created_at
		FROM auth_tokens t
		INNER JOIN users u ON u.id = t.user_id
		WHERE t.digest = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, digest))
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		u       domain.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created); err != nil {
		return nil, mapError(err)
	}
	u.CreatedAt = fromUnix(created)
	return &u, nil
}
