// Package db ships the schema migrations for every supported dialect.
package db

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Migrations returns the goose migration files for dialect ("postgres" or "sqlite").
func Migrations(dialect string) (fs.FS, error) {
	switch dialect {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
	return fs.Sub(migrations, "migrations/"+dialect)
}
