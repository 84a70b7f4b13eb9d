package config

import (
	"log/slog"
	"time"
)

// Supported values for APIConfig.DBDriver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment     string
	Addr            string
	LogLevel        slog.Level
	DBDriver        string
	DatabaseURL     string
	MigrationsDir   string
	AutoMigrate     bool
	TokenSecret     string
	BcryptCost      int
	RequestTimeout  time.Duration
	TokenCacheAddr  string
	TokenCachePass  string
	TokenCacheDB    int
	TokenCacheTTL   time.Duration
	ShutdownTimeout time.Duration
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	driver := GetString("DB_DRIVER", DriverPostgres)
	return APIConfig{
		Environment:     GetString("APP_ENV", "development"),
		Addr:            GetString("API_ADDR", ":8000"),
		LogLevel:        GetLevel("LOG_LEVEL", slog.LevelInfo),
		DBDriver:        driver,
		DatabaseURL:     GetString("DATABASE_URL", defaultDatabaseURL(driver)),
		MigrationsDir:   GetString("DB_MIGRATIONS_DIR", ""),
		AutoMigrate:     GetBool("DB_AUTO_MIGRATE", true),
		TokenSecret:     GetString("TOKEN_SECRET", "supersecuresecret"),
		BcryptCost:      GetInt("BCRYPT_COST", 0),
		RequestTimeout:  GetSeconds("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
		TokenCacheAddr:  GetString("TOKEN_CACHE_REDIS_ADDR", ""),
		TokenCachePass:  GetString("TOKEN_CACHE_REDIS_PASSWORD", ""),
		TokenCacheDB:    GetInt("TOKEN_CACHE_REDIS_DB", 0),
		TokenCacheTTL:   GetSeconds("TOKEN_CACHE_TTL_SECONDS", 10*time.Minute),
		ShutdownTimeout: GetSeconds("SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
	}
}

func defaultDatabaseURL(driver string) string {
	if driver == DriverSQLite {
		return "file:todos.db?_foreign_keys=on&_busy_timeout=5000"
	}
	return "postgres://todos:todos@db:5432/todos?sslmode=disable"
}
