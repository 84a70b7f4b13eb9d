package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadAPIConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadAPIConfig()
	if cfg.DBDriver != DriverSQLite {
		t.Fatalf("unexpected driver %q", cfg.DBDriver)
	}
	if cfg.DatabaseURL != defaultDatabaseURL(DriverSQLite) {
		t.Fatalf("expected sqlite default dsn, got %q", cfg.DatabaseURL)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("unexpected request timeout %s", cfg.RequestTimeout)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected log level %v", cfg.LogLevel)
	}
	if !cfg.AutoMigrate {
		t.Fatalf("expected auto migrate enabled by default")
	}
}

func TestGetIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TODOS_TEST_INT", "nope")
	if got := GetInt("TODOS_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback, got %d", got)
	}
}

func TestGetSecondsRejectsNegative(t *testing.T) {
	t.Setenv("TODOS_TEST_SECONDS", "-4")
	if got := GetSeconds("TODOS_TEST_SECONDS", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
}
