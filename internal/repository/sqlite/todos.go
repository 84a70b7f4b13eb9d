package sqlite

import (
	"context"
	"fmt"

	"github.com/splax/todos/internal/domain"
	"github.com/splax/todos/internal/repository"
)

const todoColumns = `id, owner_id, title, memo, completed, created_at`

// ListTodos returns the owner's todos, newest first.
func (r *Repository) ListTodos(ctx context.Context, ownerID string) ([]domain.Todo, error) {
	const query = `SELECT ` + todoColumns + ` FROM todos
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
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
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`
	row := r.db.QueryRowContext(ctx, query, todo.OwnerID, todo.Title, todo.Memo, todo.Completed, toUnix(todo.CreatedAt))
	if err := row.Scan(&todo.ID); err != nil {
		return fmt.Errorf("create todo: %w", mapError(err))
	}
	return nil
}

// GetTodo fetches a todo owned by ownerID.
func (r *Repository) GetTodo(ctx context.Context, ownerID string, id int64) (*domain.Todo, error) {
	const query = `SELECT ` + todoColumns + ` FROM todos WHERE id = ? AND owner_id = ?`
	return scanTodo(r.db.QueryRowContext(ctx, query, id, ownerID))
}

// UpdateTodo applies the non-nil fields of patch.
func (r *Repository) UpdateTodo(ctx context.Context, ownerID string, id int64, patch domain.TodoPatch) (*domain.Todo, error) {
	const query = `UPDATE todos
		SET title = COALESCE(?, title), memo = COALESCE(?, memo)
		WHERE id = ? AND owner_id = ?
		RETURNING ` + todoColumns
	return scanTodo(r.db.QueryRowContext(ctx, query, patch.Title, patch.Memo, id, ownerID))
}

// DeleteTodo removes a todo owned by ownerID.
func (r *Repository) DeleteTodo(ctx context.Context, ownerID string, id int64) error {
	const query = `DELETE FROM todos WHERE id = ? AND owner_id = ?`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ToggleTodo flips completed in place.
func (r *Repository) ToggleTodo(ctx context.Context, ownerID string, id int64) (*domain.Todo, error) {
	const query = `UPDATE todos
		SET completed = NOT completed
		WHERE id = ? AND owner_id = ?
		RETURNING ` + todoColumns
	return scanTodo(r.db.QueryRowContext(ctx, query, id, ownerID))
}

func scanTodo(row scanner) (*domain.Todo, error) {
	var (
		t       domain.Todo
		created int64
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Memo, &t.Completed, &created); err != nil {
		return nil, mapError(err)
	}
	t.CreatedAt = fromUnix(created)
	return &t, nil
}
