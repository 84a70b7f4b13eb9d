package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/splax/todos/db"
	"github.com/splax/todos/pkg/config"
)

// Runner wraps database migration capabilities.
type Runner struct {
	driverName string
	dialect    string
	dsn        string
	fsys       fs.FS
	dir        string
	log        *slog.Logger
}

// New returns a migration runner backed by goose. When migrationsDir is empty
// the migrations embedded in the binary are used.
func New(driver, dsn, migrationsDir string, log *slog.Logger) (Runner, error) {
	if dsn == "" {
		return Runner{}, errors.New("empty database dsn")
	}
	if log == nil {
		log = slog.Default()
	}
	r := Runner{dsn: dsn, log: log}
	switch driver {
	case config.DriverPostgres:
		r.driverName, r.dialect = "pgx", "postgres"
	case config.DriverSQLite:
		r.driverName, r.dialect = "sqlite3", "sqlite3"
	default:
		return Runner{}, fmt.Errorf("unsupported database driver %q", driver)
	}

	if migrationsDir != "" {
		if _, err := os.Stat(migrationsDir); err != nil {
			return Runner{}, fmt.Errorf("locate migrations dir: %w", err)
		}
		r.dir = migrationsDir
		return r, nil
	}
	embedded, err := db.Migrations(driver)
	if err != nil {
		return Runner{}, err
	}
	r.fsys, r.dir = embedded, "."
	return r, nil
}

// Ensure applies pending migrations.
func (r Runner) Ensure(ctx context.Context) error {
	return r.withDB(func(conn *sql.DB) error {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		r.log.Info("applying migrations", "dialect", r.dialect, "dir", r.source())
		if err := goose.UpContext(runCtx, conn, r.dir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		r.log.Info("migrations applied")
		return nil
	})
}

// Status reports applied and pending migrations.
func (r Runner) Status(ctx context.Context) error {
	return r.withDB(func(conn *sql.DB) error {
		r.log.Info("migration status", "dialect", r.dialect, "dir", r.source())
		if err := goose.StatusContext(ctx, conn, r.dir); err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
		return nil
	})
}

// Version returns the currently applied schema version.
func (r Runner) Version(ctx context.Context) (int64, error) {
	var version int64
	err := r.withDB(func(conn *sql.DB) error {
		v, err := goose.GetDBVersionContext(ctx, conn)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// Down rolls back migrations either to the previous version or a specific target version.
func (r Runner) Down(ctx context.Context, targetVersion int64) error {
	return r.withDB(func(conn *sql.DB) error {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		if targetVersion > 0 {
			r.log.Info("rolling back migrations", "target", targetVersion)
			if err := goose.DownToContext(runCtx, conn, r.dir, targetVersion); err != nil {
				return fmt.Errorf("rollback to version %d: %w", targetVersion, err)
			}
		} else {
			r.log.Info("rolling back latest migration")
			if err := goose.DownContext(runCtx, conn, r.dir); err != nil {
				return fmt.Errorf("rollback latest migration: %w", err)
			}
		}

		r.log.Info("rollback complete")
		return nil
	})
}

// Ping ensures the database is reachable.
func (r Runner) Ping(ctx context.Context) error {
	return r.withDB(func(conn *sql.DB) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := conn.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		return nil
	})
}

func (r Runner) source() string {
	if r.fsys != nil {
		return "embedded"
	}
	return r.dir
}

// withDB configures goose for this runner; goose keeps its dialect and base
// filesystem in package state, so it is set on every call.
func (r Runner) withDB(fn func(*sql.DB) error) error {
	goose.SetBaseFS(r.fsys)
	if err := goose.SetDialect(r.dialect); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}

	conn, err := sql.Open(r.driverName, r.dsn)
	if err != nil {
		return fmt.Errorf("open sql connection: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(); err != nil {
		return fmt.Errorf("ping sql connection: %w", err)
	}

	return fn(conn)
}
