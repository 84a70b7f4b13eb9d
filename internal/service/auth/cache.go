package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/splax/todos/internal/domain"
)

// TokenCache remembers which user a token digest resolves to. Failures are
// treated as misses.
type TokenCache interface {
	Get(ctx context.Context, digest string) (*domain.User, bool)
	Set(ctx context.Context, digest string, user domain.User)
	Close() error
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*domain.User, bool) { return nil, false }
func (noopCache) Set(context.Context, string, domain.User)         {}
func (noopCache) Close() error                                     { return nil }

type redisCache struct {
	client  *redis.Client
	logger  *slog.Logger
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

type cachedUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// NewRedisTokenCache constructs a Redis backed TokenCache. Entries never
// include password hashes.
func NewRedisTokenCache(addr, password string, db int, ttl time.Duration, logger *slog.Logger) (TokenCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisCache{
		client:  client,
		logger:  logger,
		prefix:  "todos:token:",
		ttl:     ttl,
		timeout: 250 * time.Millisecond,
	}, nil
}

func (c *redisCache) Get(ctx context.Context, digest string) (*domain.User, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	raw, err := c.client.Get(ctx, c.prefix+digest).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logRedisError("get", err)
		}
		return nil, false
	}
	var entry cachedUser
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logRedisError("decode", err)
		return nil, false
	}
	if entry.ID == "" {
		return nil, false
	}
	return &domain.User{ID: entry.ID, Username: entry.Username}, true
}

func (c *redisCache) Set(ctx context.Context, digest string, user domain.User) {
	payload, err := json.Marshal(cachedUser{ID: user.ID, Username: user.Username})
	if err != nil {
		c.logRedisError("encode", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.Set(ctx, c.prefix+digest, payload, c.ttl).Err(); err != nil {
		c.logRedisError("set", err)
	}
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

func (c *redisCache) logRedisError(op string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Error("redis token cache error", "op", op, "error", err)
}
