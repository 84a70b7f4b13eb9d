// Package sqlite stores users and todos in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/splax/todos/internal/repository"
)

// Repository implements persistence interfaces on SQLite.
type Repository struct {
	db *sql.DB
}

var _ repository.Store = (*Repository)(nil)

// Open connects to the database at dsn with foreign keys enforced, which the
// todo cascade relies on.
func Open(dsn string) (*sql.DB, error) {
	if !strings.Contains(dsn, "_foreign_keys") && !strings.Contains(dsn, "_fk") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers
	db.SetMaxOpenConns(1)
	return db, nil
}

// New constructs a Repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks connectivity for health reporting.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the underlying handle.
func (r *Repository) Close() {
	_ = r.db.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch sqErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return repository.ErrConflict
		}
	}
	return err
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
