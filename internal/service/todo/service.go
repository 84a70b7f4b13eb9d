package todo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"log/slog"

	"github.com/splax/todos/internal/domain"
	"github.com/splax/todos/internal/repository"
)

// MaxTitleLength bounds titles, counted in characters.
const MaxTitleLength = 100

// ErrNotFound is returned when a todo does not exist or belongs to someone else.
var ErrNotFound = errors.New("not found")

var errMissingOwner = errors.New("todo: owner id required")

// CreateInput carries client-supplied fields for a new todo.
type CreateInput struct {
	Title string
	Memo  string
}

// UpdateInput carries the mutable fields; nil fields are left untouched.
type UpdateInput struct {
	Title *string
	Memo  *string
}

// Service implements owner-scoped todo operations.
type Service struct {
	todos  repository.TodoRepository
	logger *slog.Logger
	now    func() time.Time
}

// New returns a todo service.
func New(todos repository.TodoRepository, logger *slog.Logger) Service {
	return Service{todos: todos, logger: logger, now: time.Now}
}

// List returns the owner's todos, newest first.
func (s Service) List(ctx context.Context, ownerID string) ([]domain.Todo, error) {
	if ownerID == "" {
		return nil, errMissingOwner
	}
	return s.todos.ListTodos(ctx, ownerID)
}

// Create validates input and stores a new, incomplete todo for ownerID.
func (s Service) Create(ctx context.Context, ownerID string, input CreateInput) (*domain.Todo, error) {
	if ownerID == "" {
		return nil, errMissingOwner
	}
	title, err := normalizeTitle(input.Title)
	if err != nil {
		return nil, err
	}
	todo := &domain.Todo{
		OwnerID:   ownerID,
		Title:     title,
		Memo:      input.Memo,
		Completed: false,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.todos.CreateTodo(ctx, todo); err != nil {
		return nil, err
	}
	s.logger.Info("todo created", "todo_id", todo.ID, "user_id", ownerID)
	return todo, nil
}

// Get returns one of the owner's todos.
func (s Service) Get(ctx context.Context, ownerID string, id int64) (*domain.Todo, error) {
	if ownerID == "" {
		return nil, errMissingOwner
	}
	todo, err := s.todos.GetTodo(ctx, ownerID, id)
	return todo, mapNotFound(err)
}

// Update applies the fields present in input.
func (s Service) Update(ctx context.Context, ownerID string, id int64, input UpdateInput) (*domain.Todo, error) {
	if ownerID == "" {
		return nil, errMissingOwner
	}
	var patch domain.TodoPatch
	if input.Title != nil {
		title, err := normalizeTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if input.Memo != nil {
		patch.Memo = input.Memo
	}
	todo, err := s.todos.UpdateTodo(ctx, ownerID, id, patch)
	if err != nil {
		return nil, mapNotFound(err)
	}
	s.logger.Info("todo updated", "todo_id", id, "user_id", ownerID)
	return todo, nil
}

// Replace overwrites every mutable field: title is required and a missing memo
// clears it.
func (s Service) Replace(ctx context.Context, ownerID string, id int64, input UpdateInput) (*domain.Todo, error) {
	if input.Title == nil {
		return nil, domain.Invalid("title", "this field is required")
	}
	if input.Memo == nil {
		empty := ""
		input.Memo = &empty
	}
	return s.Update(ctx, ownerID, id, input)
}

// Delete removes one of the owner's todos.
func (s Service) Delete(ctx context.Context, ownerID string, id int64) error {
	if ownerID == "" {
		return errMissingOwner
	}
	if err := s.todos.DeleteTodo(ctx, ownerID, id); err != nil {
		return mapNotFound(err)
	}
	s.logger.Info("todo deleted", "todo_id", id, "user_id", ownerID)
	return nil
}

// ToggleComplete flips completed. The new value is computed by the store, never
// taken from the client.
func (s Service) ToggleComplete(ctx context.Context, ownerID string, id int64) (*domain.Todo, error) {
	if ownerID == "" {
		return nil, errMissingOwner
	}
	todo, err := s.todos.ToggleTodo(ctx, ownerID, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	s.logger.Info("todo toggled", "todo_id", id, "user_id", ownerID, "completed", todo.Completed)
	return todo, nil
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", domain.Invalid("title", "this field may not be blank")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", domain.Invalid("title", fmt.Sprintf("ensure this field has no more than %d characters", MaxTitleLength))
	}
	return title, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
