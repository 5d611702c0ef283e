package api

import (
	"context"

	"todo-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	CreateTodo(ctx context.Context, title string, completed bool, updatedAt string) (domain.Todo, error)
	FetchTodos(ctx context.Context) ([]domain.Todo, error)
	UpdateTodo(ctx context.Context, id string, upd domain.TodoUpdate) (domain.Todo, error)
	DeleteTodo(ctx context.Context, id string) error
}

// errorResponse is the uniform error body. Messages are short and
// machine-oriented; store internals never leak through it.
type errorResponse struct {
	Error string `json:"error"`
}

const (
	errServerError   = "server_error"
	errTitleRequired = "title is required"
	errNotFound      = "not found"
	errInvalidBody   = "invalid body"
)
