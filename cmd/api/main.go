package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/todos/internal/app/migrate"
	httpx "github.com/splax/todos/internal/http"
	"github.com/splax/todos/internal/repository"
	"github.com/splax/todos/internal/repository/postgres"
	"github.com/splax/todos/internal/repository/sqlite"
	"github.com/splax/todos/internal/service/auth"
	"github.com/splax/todos/internal/service/todo"
	"github.com/splax/todos/pkg/config"
	"github.com/splax/todos/pkg/logger"
)

type store interface {
	repository.Store
	Ping(context.Context) error
	Close()
}

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		runner, err := migrate.New(cfg.DBDriver, cfg.DatabaseURL, cfg.MigrationsDir, log)
		if err != nil {
			log.Error("failed to configure migrations", "error", err)
			os.Exit(1)
		}
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	repo, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	if err := repo.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	var cache auth.TokenCache
	if addr := strings.TrimSpace(cfg.TokenCacheAddr); addr != "" {
		redisCache, err := auth.NewRedisTokenCache(addr, cfg.TokenCachePass, cfg.TokenCacheDB, cfg.TokenCacheTTL, log)
		if err != nil {
			log.Warn("redis token cache unavailable", "error", err)
		} else {
			cache = redisCache
		}
	}

	authSvc, err := auth.New(repo, repo, cache, log, cfg)
	if err != nil {
		log.Error("failed to configure auth", "error", err)
		os.Exit(1)
	}
	defer authSvc.Close()
	todoSvc := todo.New(repo, log)

	router := httpx.NewRouter(log, authSvc, todoSvc, repo.Ping, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "driver", cfg.DBDriver, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func openStore(ctx context.Context, cfg config.APIConfig) (store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return postgres.New(pool), nil
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return sqlite.New(db), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
