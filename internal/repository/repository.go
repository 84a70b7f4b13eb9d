package repository

import (
	"context"

	"github.com/splax/todos/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	// CreateUserWithToken stores the user and its token in one transaction.
	// A taken username yields ErrConflict.
	CreateUserWithToken(ctx context.Context, user *domain.User, token *domain.Token) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// TokenRepository manages the one-per-user bearer tokens.
type TokenRepository interface {
	// CreateToken yields ErrConflict when the user already has a token.
	CreateToken(ctx context.Context, token *domain.Token) error
	GetTokenByUser(ctx context.Context, userID string) (*domain.Token, error)
	GetUserByTokenDigest(ctx context.Context, digest string) (*domain.User, error)
}

// TodoRepository stores todos. Every method is scoped by owner; rows of other
// owners behave exactly like missing rows.
type TodoRepository interface {
	ListTodos(ctx context.Context, ownerID string) ([]domain.Todo, error)
	CreateTodo(ctx context.Context, todo *domain.Todo) error
	GetTodo(ctx context.Context, ownerID string, id int64) (*domain.Todo, error)
	UpdateTodo(ctx context.Context, ownerID string, id int64, patch domain.TodoPatch) (*domain.Todo, error)
	DeleteTodo(ctx context.Context, ownerID string, id int64) error
	// ToggleTodo negates completed in a single statement and returns the updated row.
	ToggleTodo(ctx context.Context, ownerID string, id int64) (*domain.Todo, error)
}

// Store bundles every repository a backend implements.
type Store interface {
	UserRepository
	TokenRepository
	TodoRepository
}
