package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is used when no API address is configured.
const DefaultBaseURL = "http://localhost:8000"

// Client provides typed access to the todos API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithToken authenticates every request with token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Signup registers a user and returns its token.
func (c *Client) Signup(ctx context.Context, username, password string) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/signup", credentials{username, password}, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Login exchanges credentials for the user's token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/login", credentials{username, password}, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Todo mirrors the API's todo payload.
type Todo struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Memo      string    `json:"memo"`
	Created   time.Time `json:"created"`
	Completed bool      `json:"completed"`
}

// TodoUpdate carries the fields to change; nil fields are omitted.
type TodoUpdate struct {
	Title *string `json:"title,omitempty"`
	Memo  *string `json:"memo,omitempty"`
}

func todoPath(id int64) string {
	return "/todos/" + strconv.FormatInt(id, 10)
}

// ListTodos returns the caller's todos, newest first.
func (c *Client) ListTodos(ctx context.Context) ([]Todo, error) {
	var todos []Todo
	if err := c.do(ctx, http.MethodGet, "/todos", nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// CreateTodo adds a todo for the caller.
func (c *Client) CreateTodo(ctx context.Context, title, memo string) (Todo, error) {
	body := map[string]string{"title": title, "memo": memo}
	var todo Todo
	if err := c.do(ctx, http.MethodPost, "/todos", body, &todo); err != nil {
		return Todo{}, err
	}
	return todo, nil
}

// GetTodo fetches one todo.
func (c *Client) GetTodo(ctx context.Context, id int64) (Todo, error) {
	var todo Todo
	if err := c.do(ctx, http.MethodGet, todoPath(id), nil, &todo); err != nil {
		return Todo{}, err
	}
	return todo, nil
}

// UpdateTodo applies a partial update.
func (c *Client) UpdateTodo(ctx context.Context, id int64, update TodoUpdate) (Todo, error) {
	var todo Todo
	if err := c.do(ctx, http.MethodPatch, todoPath(id), update, &todo); err != nil {
		return Todo{}, err
	}
	return todo, nil
}

// DeleteTodo removes a todo.
func (c *Client) DeleteTodo(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, todoPath(id), nil, nil)
}

// ToggleTodo flips the completed flag and returns the updated todo.
func (c *Client) ToggleTodo(ctx context.Context, id int64) (Todo, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPatch, todoPath(id)+"/complete", nil, &resp); err != nil {
		return Todo{}, err
	}
	return c.GetTodo(ctx, resp.ID)
}
