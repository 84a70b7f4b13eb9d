package httpx

import (
	"time"

	"github.com/splax/todos/internal/domain"
)

type tokenResponse struct {
	Token string `json:"token"`
}

type todoResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Memo      string `json:"memo"`
	Created   string `json:"created"`
	Completed bool   `json:"completed"`
}

type toggleResponse struct {
	ID int64 `json:"id"`
}

func marshalTodo(t domain.Todo) todoResponse {
	return todoResponse{
		ID:        t.ID,
		Title:     t.Title,
		Memo:      t.Memo,
		Created:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		Completed: t.Completed,
	}
}

func marshalTodos(todos []domain.Todo) []todoResponse {
	out := make([]todoResponse, 0, len(todos))
	for _, t := range todos {
		out = append(out, marshalTodo(t))
	}
	return out
}
