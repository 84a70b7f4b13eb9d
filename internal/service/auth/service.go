package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/todos/internal/domain"
	"github.com/splax/todos/internal/repository"
	"github.com/splax/todos/pkg/config"
	"github.com/splax/todos/pkg/crypto"
)

// MaxUsernameLength bounds usernames, counted in characters.
const MaxUsernameLength = 150

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var (
	// ErrDuplicateUsername is returned by Signup when the username is taken.
	ErrDuplicateUsername = errors.New("a user with that username already exists")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("unable to log in with provided credentials")
	// ErrUnauthenticated is returned by Resolve for absent, malformed or unknown tokens.
	ErrUnauthenticated = errors.New("invalid token")
)

// Service handles signup, login and token resolution.
type Service struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	cache  TokenCache
	sealer *crypto.Sealer
	logger *slog.Logger
	cfg    config.APIConfig
	// compared against for unknown usernames
	dummyHash []byte
}

// New constructs a Service. cache may be nil.
func New(users repository.UserRepository, tokens repository.TokenRepository, cache TokenCache, logger *slog.Logger, cfg config.APIConfig) (Service, error) {
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return Service{}, errors.New("token secret is required")
	}
	sealer, err := crypto.NewSealer(cfg.TokenSecret)
	if err != nil {
		return Service{}, err
	}
	dummy, err := crypto.HashPassword(uuid.NewString(), cfg.BcryptCost)
	if err != nil {
		return Service{}, fmt.Errorf("prepare dummy hash: %w", err)
	}
	if cache == nil {
		cache = noopCache{}
	}
	return Service{
		users:     users,
		tokens:    tokens,
		cache:     cache,
		sealer:    sealer,
		logger:    logger,
		cfg:       cfg,
		dummyHash: dummy,
	}, nil
}

// Signup registers a new user and returns its freshly issued token.
func (s Service) Signup(ctx context.Context, username, password string) (string, *domain.User, error) {
	username, err := validateCredentials(username, password)
	if err != nil {
		return "", nil, err
	}
	hash, err := crypto.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	raw, token, err := s.newToken(user.ID, now)
	if err != nil {
		return "", nil, err
	}
	if err := s.users.CreateUserWithToken(ctx, user, token); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return "", nil, ErrDuplicateUsername
		}
		return "", nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return raw, user, nil
}

// Login verifies credentials and returns the user's token, issuing one if
// the user has none yet.
func (s Service) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = crypto.ComparePassword(s.dummyHash, password)
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("compare password: %w", err)
	}

	raw, err := s.existingToken(ctx, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		raw, err = s.issueToken(ctx, user.ID)
	}
	if err != nil {
		return "", nil, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return raw, user, nil
}

// Resolve maps a bearer token to its owner.
func (s Service) Resolve(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if !crypto.WellFormedToken(token) {
		return nil, ErrUnauthenticated
	}
	digest := crypto.TokenDigest(s.cfg.TokenSecret, token)
	if user, ok := s.cache.Get(ctx, digest); ok {
		return user, nil
	}
	user, err := s.tokens.GetUserByTokenDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	s.cache.Set(ctx, digest, *user)
	return user, nil
}

// Close releases the token cache.
func (s Service) Close() error {
	return s.cache.Close()
}

func (s Service) existingToken(ctx context.Context, userID string) (string, error) {
	stored, err := s.tokens.GetTokenByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	raw, err := s.sealer.Open(stored.Sealed)
	if err != nil {
		return "", fmt.Errorf("open stored token: %w", err)
	}
	return raw, nil
}

func (s Service) issueToken(ctx context.Context, userID string) (string, error) {
	raw, token, err := s.newToken(userID, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if err := s.tokens.CreateToken(ctx, token); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// a concurrent login issued it first
			return s.existingToken(ctx, userID)
		}
		return "", err
	}
	s.logger.Info("token issued", "user_id", userID)
	return raw, nil
}

func (s Service) newToken(userID string, now time.Time) (string, *domain.Token, error) {
	raw, err := crypto.NewToken()
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	sealed, err := s.sealer.Seal(raw)
	if err != nil {
		return "", nil, fmt.Errorf("seal token: %w", err)
	}
	return raw, &domain.Token{
		UserID:    userID,
		Digest:    crypto.TokenDigest(s.cfg.TokenSecret, raw),
		Sealed:    sealed,
		CreatedAt: now,
	}, nil
}

func validateCredentials(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", domain.Invalid("username", "this field is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return "", domain.Invalid("username", fmt.Sprintf("must be at most %d characters", MaxUsernameLength))
	}
	if password == "" {
		return "", domain.Invalid("password", "this field is required")
	}
	if len(password) > MaxPasswordBytes {
		return "", domain.Invalid("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}
	return username, nil
}
