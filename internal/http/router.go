package httpx

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/todos/internal/domain"
	"github.com/splax/todos/internal/service/auth"
	"github.com/splax/todos/internal/service/todo"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux            *http.ServeMux
	logger         *slog.Logger
	auth           auth.Service
	todos          todo.Service
	dbHealth       func(context.Context) error
	requestTimeout time.Duration

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	authEvents         *prometheus.CounterVec
}

const healthCheckTimeout = 2 * time.Second

// NewRouter assembles routes with dependencies. A zero requestTimeout disables
// the per-request deadline.
func NewRouter(logger *slog.Logger, authSvc auth.Service, todoSvc todo.Service, dbHealth func(context.Context) error, requestTimeout time.Duration) *Router {
	r := &Router{
		mux:            http.NewServeMux(),
		logger:         logger,
		auth:           authSvc,
		todos:          todoSvc,
		dbHealth:       dbHealth,
		requestTimeout: requestTimeout,
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/signup", r.audit("/signup", r.handleSignup))
	r.mux.HandleFunc("/login", r.audit("/login", r.handleLogin))
	r.mux.HandleFunc("/todos", r.audit("/todos", r.requireAuth(r.handleTodos)))
	r.mux.HandleFunc("/todos/", r.audit("/todos/{id}", r.requireAuth(r.handleTodoSubroutes)))
}

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentialsPayload
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, _, err := r.auth.Signup(req.Context(), payload.Username, payload.Password)
	if err != nil {
		r.recordAuthEvent("signup", "failure")
		r.writeServiceError(w, req, err)
		return
	}
	r.recordAuthEvent("signup", "success")
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentialsPayload
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, _, err := r.auth.Login(req.Context(), payload.Username, payload.Password)
	if err != nil {
		r.recordAuthEvent("login", "failure")
		r.writeServiceError(w, req, err)
		return
	}
	r.recordAuthEvent("login", "success")
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

func (r *Router) handleTodos(w http.ResponseWriter, req *http.Request, user domain.User) {
	switch req.Method {
	case http.MethodGet:
		todos, err := r.todos.List(req.Context(), user.ID)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, marshalTodos(todos))
	case http.MethodPost:
		var payload struct {
			Title string `json:"title"`
			Memo  string `json:"memo"`
		}
		if err := decodeJSON(w, req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := r.todos.Create(req.Context(), user.ID, todo.CreateInput{Title: payload.Title, Memo: payload.Memo})
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, marshalTodo(*created))
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTodoSubroutes(w http.ResponseWriter, req *http.Request, user domain.User) {
	rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/todos/"), "/")
	if rest == "" {
		r.handleTodos(w, req, user)
		return
	}
	parts := strings.Split(rest, "/")
	id, ok := parseTodoID(parts[0])
	if !ok {
		r.notFound(w)
		return
	}
	switch {
	case len(parts) == 1:
		r.handleTodo(w, req, user, id)
	case len(parts) == 2 && parts[1] == "complete":
		r.handleToggle(w, req, user, id)
	default:
		r.notFound(w)
	}
}

// parseTodoID accepts only positive decimal ids made of ASCII digits.
func parseTodoID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (r *Router) handleTodo(w http.ResponseWriter, req *http.Request, user domain.User, id int64) {
	switch req.Method {
	case http.MethodGet:
		item, err := r.todos.Get(req.Context(), user.ID, id)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, marshalTodo(*item))
	case http.MethodPut, http.MethodPatch:
		var payload struct {
			Title *string `json:"title"`
			Memo  *string `json:"memo"`
		}
		if err := decodeJSON(w, req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		input := todo.UpdateInput{Title: payload.Title, Memo: payload.Memo}
		var (
			item *domain.Todo
			err  error
		)
		if req.Method == http.MethodPut {
			item, err = r.todos.Replace(req.Context(), user.ID, id, input)
		} else {
			item, err = r.todos.Update(req.Context(), user.ID, id, input)
		}
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, marshalTodo(*item))
	case http.MethodDelete:
		if err := r.todos.Delete(req.Context(), user.ID, id); err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		r.methodNotAllowed(w)
	}
}

// handleToggle ignores the request body; the new state comes from the store.
func (r *Router) handleToggle(w http.ResponseWriter, req *http.Request, user domain.User, id int64) {
	if req.Method != http.MethodPatch {
		r.methodNotAllowed(w)
		return
	}
	item, err := r.todos.ToggleComplete(req.Context(), user.ID, id)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{ID: item.ID})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// audit logs each request, records metrics under route, and bounds the handler
// with the configured request timeout.
func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		if r.requestTimeout > 0 {
			ctx, cancel := context.WithTimeout(req.Context(), r.requestTimeout)
			defer cancel()
			req = req.WithContext(ctx)
		}
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if user, ok := userFromContext(ctx); ok {
			fields = append(fields, "user_id", user.ID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		if ip, _, _ := strings.Cut(forwarded, ","); strings.TrimSpace(ip) != "" {
			return strings.TrimSpace(ip)
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
