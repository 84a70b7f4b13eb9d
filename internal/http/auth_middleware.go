package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/splax/todos/internal/domain"
)

type authContextKey string

const contextKeyUser authContextKey = "todos-auth-user"

type contextSetter interface {
	SetContext(context.Context)
}

// authedHandler receives the owner resolved from the request token.
type authedHandler func(w http.ResponseWriter, req *http.Request, user domain.User)

// requireAuth resolves the bearer token before invoking next. Failures answer
// 401 and next never runs.
func (r *Router) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token, err := bearerToken(req.Header.Get("Authorization"))
		if err != nil {
			r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
			r.recordAuthEvent("resolve", "failure")
			writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
			return
		}
		user, err := r.auth.Resolve(req.Context(), token)
		if err != nil {
			r.recordAuthEvent("resolve", "failure")
			r.writeServiceError(w, req, err)
			return
		}
		r.recordAuthEvent("resolve", "success")
		ctx := context.WithValue(req.Context(), contextKeyUser, *user)
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx), *user)
	}
}

// userFromContext returns the user stored by requireAuth.
func userFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(contextKeyUser).(domain.User)
	return user, ok
}

// bearerToken accepts "Bearer <token>" and "Token <token>".
func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", errors.New("invalid authorization header format")
	}
	if !strings.EqualFold(parts[0], "Bearer") && !strings.EqualFold(parts[0], "Token") {
		return "", errors.New("unsupported authorization scheme")
	}
	return parts[1], nil
}
