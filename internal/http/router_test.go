package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/splax/todos/internal/app/migrate"
	"github.com/splax/todos/internal/repository/sqlite"
	"github.com/splax/todos/internal/service/auth"
	"github.com/splax/todos/internal/service/todo"
	"github.com/splax/todos/pkg/config"
	"github.com/splax/todos/pkg/logger"
)

func newTestRouter(t *testing.T, dbHealth func(context.Context) error) *Router {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "todos.db")
	runner, err := migrate.New(config.DriverSQLite, dsn, "", logger.Discard())
	if err != nil {
		t.Fatalf("migrate runner: %v", err)
	}
	if err := runner.Ensure(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := sqlite.Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := sqlite.New(db)

	cfg := config.APIConfig{TokenSecret: "router-test-secret", BcryptCost: 4}
	authSvc, err := auth.New(store, store, nil, logger.Discard(), cfg)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	if dbHealth == nil {
		dbHealth = store.Ping
	}
	return NewRouter(logger.Discard(), authSvc, todo.New(store, logger.Discard()), dbHealth, 5*time.Second)
}

func do(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return out
}

func signup(t *testing.T, router http.Handler, username string) string {
	t.Helper()
	rr := do(t, router, http.MethodPost, "/signup", "", `{"username":"`+username+`","password":"pw-`+username+`"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup %s: expected 201, got %d: %s", username, rr.Code, rr.Body.String())
	}
	return decode[tokenResponse](t, rr).Token
}

func createTodo(t *testing.T, router http.Handler, token, body string) todoResponse {
	t.Helper()
	rr := do(t, router, http.MethodPost, "/todos", token, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create todo: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	return decode[todoResponse](t, rr)
}

func TestSignupAndLoginReturnSameToken(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "alice")
	if len(token) != 40 {
		t.Fatalf("expected 40 char token, got %q", token)
	}

	rr := do(t, router, http.MethodPost, "/login", "", `{"username":"alice","password":"pw-alice"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("login: expected 201, got %d", rr.Code)
	}
	if got := decode[tokenResponse](t, rr).Token; got != token {
		t.Fatalf("login returned %q, want %q", got, token)
	}
}

func TestSignupAndLoginFailures(t *testing.T) {
	router := newTestRouter(t, nil)
	signup(t, router, "alice")

	cases := []struct {
		name string
		path string
		body string
		want string
	}{
		{"duplicate", "/signup", `{"username":"alice","password":"other"}`, auth.ErrDuplicateUsername.Error()},
		{"blank username", "/signup", `{"username":"  ","password":"x"}`, ""},
		{"password too long", "/signup", `{"username":"carol","password":"` + strings.Repeat("p", 73) + `"}`, "password: must be at most 72 bytes"},
		{"wrong password", "/login", `{"username":"alice","password":"nope"}`, auth.ErrInvalidCredentials.Error()},
		{"oversized password", "/login", `{"username":"alice","password":"` + strings.Repeat("p", 73) + `"}`, auth.ErrInvalidCredentials.Error()},
		{"unknown user", "/login", `{"username":"mallory","password":"pw"}`, auth.ErrInvalidCredentials.Error()},
		{"malformed json", "/login", `{"username":`, "invalid JSON body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, router, http.MethodPost, tc.path, "", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			body := decode[map[string]string](t, rr)
			if body["error"] == "" {
				t.Fatalf("expected error body, got %v", body)
			}
			if tc.want != "" && body["error"] != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, body["error"])
			}
		})
	}

	if rr := do(t, router, http.MethodGet, "/signup", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /signup: expected 405, got %d", rr.Code)
	}
}

func TestTodosRequireAuthentication(t *testing.T) {
	router := newTestRouter(t, nil)
	paths := []struct{ method, path string }{
		{http.MethodGet, "/todos"},
		{http.MethodPost, "/todos"},
		{http.MethodGet, "/todos/1"},
		{http.MethodDelete, "/todos/1"},
		{http.MethodPatch, "/todos/1/complete"},
	}
	for _, p := range paths {
		if rr := do(t, router, p.method, p.path, "", ""); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token: expected 401, got %d", p.method, p.path, rr.Code)
		}
		if rr := do(t, router, p.method, p.path, strings.Repeat("0", 40), ""); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s with unknown token: expected 401, got %d", p.method, p.path, rr.Code)
		}
	}
}

func TestTokenSchemeIsAccepted(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "alice")
	req := httptest.NewRequest(http.MethodGet, "/todos", nil)
	req.Header.Set("Authorization", "Token "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestAliceAndBobScenario(t *testing.T) {
	router := newTestRouter(t, nil)
	alice := signup(t, router, "alice")
	bob := signup(t, router, "bob")

	item := createTodo(t, router, alice, `{"title":"buy milk","memo":"2l"}`)
	if item.ID == 0 || item.Title != "buy milk" || item.Memo != "2l" || item.Completed {
		t.Fatalf("unexpected created todo: %+v", item)
	}
	if _, err := time.Parse(time.RFC3339Nano, item.Created); err != nil {
		t.Fatalf("created is not RFC3339: %q", item.Created)
	}
	path := "/todos/" + strconv.FormatInt(item.ID, 10)

	list := decode[[]todoResponse](t, do(t, router, http.MethodGet, "/todos", bob, ""))
	if len(list) != 0 {
		t.Fatalf("bob sees %d todos", len(list))
	}
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		if rr := do(t, router, method, path, bob, ""); rr.Code != http.StatusNotFound {
			t.Fatalf("bob %s: expected 404, got %d", method, rr.Code)
		}
	}
	if rr := do(t, router, http.MethodPatch, path, bob, `{"title":"hijack"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("bob PATCH: expected 404, got %d", rr.Code)
	}
	if rr := do(t, router, http.MethodPatch, path+"/complete", bob, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("bob toggle: expected 404, got %d", rr.Code)
	}

	rr := do(t, router, http.MethodGet, path, alice, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("alice GET: expected 200, got %d", rr.Code)
	}
	got := decode[todoResponse](t, rr)
	if got != item {
		t.Fatalf("bob's attempts changed the todo: %+v vs %+v", got, item)
	}
}

func TestCreateRejectsInvalidTitle(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "alice")
	for _, body := range []string{`{"title":""}`, `{"memo":"no title"}`, `{"title":"` + strings.Repeat("x", 101) + `"}`, `not json`} {
		if rr := do(t, router, http.MethodPost, "/todos", token, body); rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rr.Code)
		}
	}
	list := decode[[]todoResponse](t, do(t, router, http.MethodGet, "/todos", token, ""))
	if len(list) != 0 {
		t.Fatalf("rejected creates persisted %d rows", len(list))
	}
}

func TestListIsNewestFirst(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "alice")
	var ids []int64
	for i := 0; i < 4; i++ {
		ids = append(ids, createTodo(t, router, token, `{"title":"item `+strconv.Itoa(i)+`"}`).ID)
	}

	list := decode[[]todoResponse](t, do(t, router, http.MethodGet, "/todos", token, ""))
	if len(list) != len(ids) {
		t.Fatalf("expected %d todos, got %d", len(ids), len(list))
	}
	for i, item := range list {
		if want := ids[len(ids)-1-i]; item.ID != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, item.ID)
		}
	}
}

func TestPutAndPatch(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "alice")
	item := createTodo(t, router, token, `{"title":"draft","memo":"keep"}`)
	path := "/todos/" + strconv.FormatInt(item.ID, 10)

	rr := do(t, router, http.MethodPatch, path, token, `{"title":"edited","completed":true,"id":999}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PATCH: expected 200, got %d", rr.Code)
	}
	patched := decode[todoResponse](t, rr)
	if patched.Title != "edited" || patched.Memo != "keep" || patched.Completed || patched.ID != item.ID || patched.Created != item.Created {
		t.Fatalf("PATCH touched more than title: %+v", patched)
	}

	if rr := do(t, router, http.MethodPut, path, token, `{"memo":"only"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("PUT without title: expected 400, got %d", rr.Code)
	}
	rr = do(t, router, http.MethodPut, path, token, `{"title":"replaced"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT: expected 200, got %d", rr.Code)
	}
	if put := decode[todoResponse](t, rr); put.Title != "replaced" || put.Memo != "" {
		t.Fatalf("PUT must replace memo: %+v", put)
	}
}

func TestToggleTwiceRestores(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "alice")
	item := createTodo(t, router, token, `{"title":"flip"}`)
	path := "/todos/" + strconv.FormatInt(item.ID, 10)

	for i, want := range []bool{true, false} {
		rr := do(t, router, http.MethodPatch, path+"/complete", token, `{"completed":false}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("toggle %d: expected 200, got %d", i, rr.Code)
		}
		body := decode[map[string]any](t, rr)
		if len(body) != 1 || body["id"] != float64(item.ID) {
			t.Fatalf("toggle response must only carry id: %v", body)
		}
		current := decode[todoResponse](t, do(t, router, http.MethodGet, path, token, ""))
		if current.Completed != want {
			t.Fatalf("toggle %d: expected completed=%v", i, want)
		}
	}

	if rr := do(t, router, http.MethodPost, path+"/complete", token, ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST toggle: expected 405, got %d", rr.Code)
	}
}

func TestDeleteThenNotFound(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "alice")
	item := createTodo(t, router, token, `{"title":"gone"}`)
	path := "/todos/" + strconv.FormatInt(item.ID, 10)

	rr := do(t, router, http.MethodDelete, path, token, "")
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("DELETE: expected empty 204, got %d %q", rr.Code, rr.Body.String())
	}
	if rr := do(t, router, http.MethodGet, path, token, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("GET after delete: expected 404, got %d", rr.Code)
	}
	if rr := do(t, router, http.MethodDelete, path, token, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second DELETE: expected 404, got %d", rr.Code)
	}
}

func TestTodoPathEdgeCases(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "alice")
	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/todos/abc", http.StatusNotFound},
		{http.MethodGet, "/todos/-1", http.StatusNotFound},
		{http.MethodGet, "/todos/0x1", http.StatusNotFound},
		{http.MethodGet, "/todos/1/extra", http.StatusNotFound},
		{http.MethodGet, "/todos/", http.StatusOK},
		{http.MethodDelete, "/todos", http.StatusMethodNotAllowed},
		{http.MethodPost, "/todos/1", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		if rr := do(t, router, tc.method, tc.path, token, ""); rr.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, rr.Code)
		}
	}
}

func TestSignedIDIsNotFound(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "alice")
	item := createTodo(t, router, token, `{"title":"real"}`)
	id := strconv.FormatInt(item.ID, 10)

	if rr := do(t, router, http.MethodGet, "/todos/"+id, token, ""); rr.Code != http.StatusOK {
		t.Fatalf("GET /todos/%s: expected 200, got %d", id, rr.Code)
	}
	if rr := do(t, router, http.MethodGet, "/todos/+"+id, token, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("GET /todos/+%s: expected 404, got %d", id, rr.Code)
	}
	if rr := do(t, router, http.MethodPatch, "/todos/+"+id+"/complete", token, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("PATCH /todos/+%s/complete: expected 404, got %d", id, rr.Code)
	}
	current := decode[todoResponse](t, do(t, router, http.MethodGet, "/todos/"+id, token, ""))
	if current.Completed {
		t.Fatalf("toggle through a signed id must not run")
	}
}

func TestParseTodoID(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"1", 1, true},
		{"42", 42, true},
		{"", 0, false},
		{"0", 0, false},
		{"+1", 0, false},
		{"-1", 0, false},
		{" 1", 0, false},
		{"1e3", 0, false},
		{"٣", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseTodoID(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseTodoID(%q) = %d, %v", tc.raw, got, ok)
		}
	}
}

func TestHealthzReportsDatabase(t *testing.T) {
	router := newTestRouter(t, nil)
	rr := do(t, router, http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	down := newTestRouter(t, func(context.Context) error { return errors.New("connection refused") })
	rr = do(t, down, http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if body := decode[map[string]any](t, rr); body["status"] != "degraded" {
		t.Fatalf("unexpected payload %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)
	signup(t, router, "alice")
	rr := do(t, router, http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "todos_api_http_requests_total") {
		t.Fatalf("request counter missing from /metrics output")
	}
}

func TestWriteServiceErrorMapsDeadline(t *testing.T) {
	router := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/todos", nil)
	rr := httptest.NewRecorder()
	router.writeServiceError(rr, req, context.DeadlineExceeded)
	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	router.writeServiceError(rr, req, errors.New("boom: secret detail"))
	if rr.Code != http.StatusInternalServerError || strings.Contains(rr.Body.String(), "secret detail") {
		t.Fatalf("unexpected 500 handling: %d %s", rr.Code, rr.Body.String())
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer abc", "abc", false},
		{"Token abc", "abc", false},
		{"", "", true},
		{"Bearer", "", true},
		{"Basic abc", "", true},
		{"Bearer a b", "", true},
	}
	for _, tc := range cases {
		got, err := bearerToken(tc.header)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("bearerToken(%q) = %q, %v", tc.header, got, err)
		}
	}
}
