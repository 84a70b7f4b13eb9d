package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/splax/todos/internal/domain"
	"github.com/splax/todos/internal/repository"
)

const todoColumns = `id, owner_id, title, memo, completed, created_at`

// ListTodos returns the owner's todos, newest first.
func (r *Repository) ListTodos(ctx context.Context, ownerID string) ([]domain.Todo, error) {
	const query = `SELECT ` + todoColumns + ` FROM todos
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]domain.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, *todo)
	}
	return todos, rows.Err()
}

// CreateTodo inserts a todo and fills in the store-assigned id.
func (r *Repository) CreateTodo(ctx context.Context, todo *domain.Todo) error {
	const query = `INSERT INTO todos (owner_id, title, memo, completed, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	row := r.pool.QueryRow(ctx, query, todo.OwnerID, todo.Title, todo.Memo, todo.Completed, todo.CreatedAt)
	if err := row.Scan(&todo.ID); err != nil {
		return fmt.Errorf("create todo: %w", mapError(err))
	}
	return nil
}

// GetTodo fetches a todo owned by ownerID.
func (r *Repository) GetTodo(ctx context.Context, ownerID string, id int64) (*domain.Todo, error) {
	const query = `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND owner_id = $2`
	return scanTodo(r.pool.QueryRow(ctx, query, id, ownerID))
}

// UpdateTodo applies the non-nil fields of patch.
func (r *Repository) UpdateTodo(ctx context.Context, ownerID string, id int64, patch domain.TodoPatch) (*domain.Todo, error) {
	const query = `UPDATE todos
		SET title = COALESCE($3, title), memo = COALESCE($4, memo)
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + todoColumns
	return scanTodo(r.pool.QueryRow(ctx, query, id, ownerID, patch.Title, patch.Memo))
}

// DeleteTodo removes a todo owned by ownerID.
func (r *Repository) DeleteTodo(ctx context.Context, ownerID string, id int64) error {
	const query = `DELETE FROM todos WHERE id = $1 AND owner_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ToggleTodo flips completed in place.
func (r *Repository) ToggleTodo(ctx context.Context, ownerID string, id int64) (*domain.Todo, error) {
	const query = `UPDATE todos
		SET completed = NOT completed
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + todoColumns
	return scanTodo(r.pool.QueryRow(ctx, query, id, ownerID))
}

func scanTodo(row pgx.Row) (*domain.Todo, error) {
	var t domain.Todo
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Memo, &t.Completed, &t.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}
