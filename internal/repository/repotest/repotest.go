// Package repotest holds the behaviour every repository.Store backend must share.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/splax/todos/internal/domain"
	"github.com/splax/todos/internal/repository"
)

// Harness builds stores for the contract tests.
type Harness struct {
	// New returns an empty, migrated store.
	New func(t *testing.T) repository.Store
	// DeleteUser removes a user row directly, the way an administrator would.
	DeleteUser func(t *testing.T, id string)
}

// Run executes the contract against h.
func Run(t *testing.T, h Harness) {
	t.Run("CreateUserRejectsDuplicateUsername", func(t *testing.T) { testDuplicateUsername(t, h) })
	t.Run("TokenLookups", func(t *testing.T) { testTokenLookups(t, h) })
	t.Run("TodosAreOwnerScoped", func(t *testing.T) { testOwnerScoping(t, h) })
	t.Run("ListOrdersNewestFirst", func(t *testing.T) { testListOrdering(t, h) })
	t.Run("UpdateAppliesPatch", func(t *testing.T) { testUpdatePatch(t, h) })
	t.Run("ToggleFlipsCompleted", func(t *testing.T) { testToggle(t, h) })
	t.Run("DeletingUserCascades", func(t *testing.T) { testCascade(t, h) })
}

// NewUser stores a user with a token and returns both.
func NewUser(t *testing.T, store repository.Store, username string) (*domain.User, *domain.Token) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &domain.User{ID: uuid.NewString(), Username: username, PasswordHash: []byte("hash"), CreatedAt: now}
	token := &domain.Token{UserID: user.ID, Digest: uuid.NewString() + uuid.NewString()[:28], Sealed: []byte("sealed"), CreatedAt: now}
	if err := store.CreateUserWithToken(context.Background(), user, token); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user, token
}

func newTodo(t *testing.T, store repository.Store, ownerID, title string, created time.Time) domain.Todo {
	t.Helper()
	todo := &domain.Todo{OwnerID: ownerID, Title: title, CreatedAt: created}
	if err := store.CreateTodo(context.Background(), todo); err != nil {
		t.Fatalf("create todo %q: %v", title, err)
	}
	if todo.ID == 0 {
		t.Fatalf("expected store-assigned id for %q", title)
	}
	return *todo
}

func testDuplicateUsername(t *testing.T, h Harness) {
	store := h.New(t)
	ctx := context.Background()
	NewUser(t, store, "alice")

	dup := &domain.User{ID: uuid.NewString(), Username: "alice", PasswordHash: []byte("x"), CreatedAt: time.Now().UTC()}
	tok := &domain.Token{UserID: dup.ID, Digest: "digest-dup", Sealed: []byte("s"), CreatedAt: time.Now().UTC()}
	err := store.CreateUserWithToken(ctx, dup, tok)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := store.GetUserByID(ctx, dup.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("duplicate signup must not leave a user behind, got %v", err)
	}
	if _, err := store.GetTokenByUser(ctx, dup.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("duplicate signup must not leave a token behind, got %v", err)
	}
}

func testTokenLookups(t *testing.T, h Harness) {
	store := h.New(t)
	ctx := context.Background()
	user, token := NewUser(t, store, "alice")

	got, err := store.GetTokenByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if got.Digest != token.Digest || string(got.Sealed) != string(token.Sealed) {
		t.Fatalf("unexpected token %+v", got)
	}

	owner, err := store.GetUserByTokenDigest(ctx, token.Digest)
	if err != nil {
		t.Fatalf("resolve digest: %v", err)
	}
	if owner.ID != user.ID || owner.Username != "alice" {
		t.Fatalf("unexpected owner %+v", owner)
	}
	if _, err := store.GetUserByTokenDigest(ctx, "unknown"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown digest, got %v", err)
	}

	second := &domain.Token{UserID: user.ID, Digest: "another-digest", Sealed: []byte("s"), CreatedAt: time.Now().UTC()}
	if err := store.CreateToken(ctx, second); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for second token, got %v", err)
	}

	byName, err := store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != user.ID || string(byName.PasswordHash) != "hash" {
		t.Fatalf("unexpected user %+v", byName)
	}
}

func testOwnerScoping(t *testing.T, h Harness) {
	store := h.New(t)
	ctx := context.Background()
	alice, _ := NewUser(t, store, "alice")
	bob, _ := NewUser(t, store, "bob")
	todo := newTodo(t, store, alice.ID, "buy milk", time.Now().UTC())

	list, err := store.ListTodos(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("bob must not see alice's todos, got %d", len(list))
	}
	if _, err := store.GetTodo(ctx, bob.ID, todo.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	title := "stolen"
	if _, err := store.UpdateTodo(ctx, bob.ID, todo.ID, domain.TodoPatch{Title: &title}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	if _, err := store.ToggleTodo(ctx, bob.ID, todo.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("toggle: expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteTodo(ctx, bob.ID, todo.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}

	got, err := store.GetTodo(ctx, alice.ID, todo.ID)
	if err != nil {
		t.Fatalf("alice get: %v", err)
	}
	if got.Title != "buy milk" || got.Completed {
		t.Fatalf("cross-owner calls must not mutate, got %+v", got)
	}
}

func testListOrdering(t *testing.T, h Harness) {
	store := h.New(t)
	ctx := context.Background()
	alice, _ := NewUser(t, store, "alice")
	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	newTodo(t, store, alice.ID, "middle", base.Add(time.Minute))
	newTodo(t, store, alice.ID, "oldest", base)
	newTodo(t, store, alice.ID, "newest", base.Add(2*time.Minute))

	list, err := store.ListTodos(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"newest", "middle", "oldest"}
	if len(list) != len(want) {
		t.Fatalf("expected %d todos, got %d", len(want), len(list))
	}
	for i, title := range want {
		if list[i].Title != title {
			t.Fatalf("position %d: expected %q, got %q", i, title, list[i].Title)
		}
	}
	if !list[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("created timestamp not preserved: %s", list[0].CreatedAt)
	}
}

func testUpdatePatch(t *testing.T, h Harness) {
	store := h.New(t)
	ctx := context.Background()
	alice, _ := NewUser(t, store, "alice")
	created := time.Now().UTC().Truncate(time.Microsecond)
	todo := newTodo(t, store, alice.ID, "draft", created)

	memo := "two litres"
	updated, err := store.UpdateTodo(ctx, alice.ID, todo.ID, domain.TodoPatch{Memo: &memo})
	if err != nil {
		t.Fatalf("update memo: %v", err)
	}
	if updated.Title != "draft" || updated.Memo != memo {
		t.Fatalf("memo-only patch changed title: %+v", updated)
	}

	title := "final"
	updated, err = store.UpdateTodo(ctx, alice.ID, todo.ID, domain.TodoPatch{Title: &title})
	if err != nil {
		t.Fatalf("update title: %v", err)
	}
	if updated.Title != "final" || updated.Memo != memo {
		t.Fatalf("title-only patch changed memo: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created) {
		t.Fatalf("created must be immutable, was %s now %s", created, updated.CreatedAt)
	}
}

func testToggle(t *testing.T, h Harness) {
	store := h.New(t)
	ctx := context.Background()
	alice, _ := NewUser(t, store, "alice")
	todo := newTodo(t, store, alice.ID, "flip", time.Now().UTC())

	first, err := store.ToggleTodo(ctx, alice.ID, todo.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !first.Completed {
		t.Fatalf("expected completed after first toggle")
	}
	second, err := store.ToggleTodo(ctx, alice.ID, todo.ID)
	if err != nil {
		t.Fatalf("toggle again: %v", err)
	}
	if second.Completed {
		t.Fatalf("expected toggle to be its own inverse")
	}
	if _, err := store.ToggleTodo(ctx, alice.ID, todo.ID+1000); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing todo, got %v", err)
	}
}

func testCascade(t *testing.T, h Harness) {
	store := h.New(t)
	ctx := context.Background()
	alice, token := NewUser(t, store, "alice")
	todo := newTodo(t, store, alice.ID, "orphan?", time.Now().UTC())

	h.DeleteUser(t, alice.ID)

	if _, err := store.GetTodo(ctx, alice.ID, todo.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected todo removed with its owner, got %v", err)
	}
	if _, err := store.GetUserByTokenDigest(ctx, token.Digest); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected token removed with its owner, got %v", err)
	}
}
