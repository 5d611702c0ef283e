package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todo-api/domain"
)

// todoMaxBodySize caps request bodies; todo payloads are tiny.
const todoMaxBodySize = 64 << 10

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, logger *log.Logger) {
	e.GET("/api/todos", listTodos(store, logger))
	e.POST("/api/todos", createTodo(store, logger), GzipRequestMiddleware())
	e.PUT("/api/todos/:id", updateTodo(store, logger), GzipRequestMiddleware())
	e.DELETE("/api/todos/:id", deleteTodo(store, logger))
	e.GET("/healthz", healthz(store))
}

// todoPayload keeps title and completed in their raw JSON form so the
// coercion rules can distinguish absent, non-string and falsy values.
type todoPayload struct {
	Title     sonic.NoCopyRawMessage `json:"title"`
	Completed sonic.NoCopyRawMessage `json:"completed"`
	UpdatedAt string                 `json:"updatedAt"`
}

// decodeTodoPayload reads a request body leniently: unknown fields are
// ignored and an empty body decodes to the zero payload, same as an empty
// JSON object.
func decodeTodoPayload(r *http.Request) (todoPayload, error) {
	lr := io.LimitReader(r.Body, todoMaxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)

	var p todoPayload
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return todoPayload{}, nil
		}
		return todoPayload{}, err
	}
	return p, nil
}

func healthz(_ Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		//TODO: implement healthcheck
		return c.NoContent(http.StatusOK)
	}
}

func listTodos(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTodoRequestMetrics(ctx, logger, "/api/todos", "todos.list")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		fetchStart := time.Now()
		todos, fetchErr := store.FetchTodos(ctx)
		metrics.ObserveStore(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: errServerError})
			return err
		}
		metrics.SetTodosReturned(len(todos))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, todos)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func createTodo(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTodoRequestMetrics(ctx, logger, "/api/todos", "todos.create")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		decodeStart := time.Now()
		payload, decodeErr := decodeTodoPayload(c.Request())
		metrics.ObserveDecode(time.Since(decodeStart))
		if decodeErr != nil {
			metrics.SetErrorStage("decode_body")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: errInvalidBody})
			return err
		}

		rawTitle, isString := domain.StringValue(payload.Title)
		title, hasTitle := domain.NormalizeTitle(rawTitle)
		if !isString || !hasTitle {
			metrics.SetErrorStage("invalid_title")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: errTitleRequired})
			return err
		}
		completed := domain.Truthy(payload.Completed)
		updatedAt := payload.UpdatedAt
		if updatedAt == "" {
			updatedAt = nowISO()
		}

		storeStart := time.Now()
		todo, createErr := store.CreateTodo(ctx, title, completed, updatedAt)
		metrics.ObserveStore(time.Since(storeStart))
		if createErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(createErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: errServerError})
			return err
		}

		encodeStart := time.Now()
		err = c.JSON(http.StatusCreated, todo)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func updateTodo(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTodoRequestMetrics(ctx, logger, "/api/todos/:id", "todos.update")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		id := c.Param("id")

		decodeStart := time.Now()
		payload, decodeErr := decodeTodoPayload(c.Request())
		metrics.ObserveDecode(time.Since(decodeStart))
		if decodeErr != nil {
			metrics.SetErrorStage("decode_body")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: errInvalidBody})
			return err
		}

		// Sparse merge: only explicitly supplied fields are written. A
		// non-string title is ignored rather than rejected; the timestamp is
		// refreshed on every update.
		upd := domain.TodoUpdate{}
		if raw, ok := domain.StringValue(payload.Title); ok {
			if title, hasTitle := domain.NormalizeTitle(raw); hasTitle {
				upd.Title = &title
			}
		}
		if len(payload.Completed) > 0 {
			completed := domain.Truthy(payload.Completed)
			upd.Completed = &completed
		}
		upd.UpdatedAt = payload.UpdatedAt
		if upd.UpdatedAt == "" {
			upd.UpdatedAt = nowISO()
		}

		storeStart := time.Now()
		todo, updateErr := store.UpdateTodo(ctx, id, upd)
		metrics.ObserveStore(time.Since(storeStart))
		if updateErr != nil {
			if errors.Is(updateErr, domain.ErrNotFound) {
				metrics.SetErrorStage("not_found")
				err = c.JSON(http.StatusNotFound, errorResponse{Error: errNotFound})
				return err
			}
			metrics.SetErrorStage("storage")
			c.Logger().Error(updateErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: errServerError})
			return err
		}

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, todo)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func deleteTodo(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTodoRequestMetrics(ctx, logger, "/api/todos/:id", "todos.delete")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		id := c.Param("id")

		storeStart := time.Now()
		deleteErr := store.DeleteTodo(ctx, id)
		metrics.ObserveStore(time.Since(storeStart))
		if deleteErr != nil {
			// A missing record is the normal terminal state of a repeated
			// delete, not a fault.
			if errors.Is(deleteErr, domain.ErrNotFound) {
				metrics.SetErrorStage("not_found")
				err = c.JSON(http.StatusNotFound, errorResponse{Error: errNotFound})
				return err
			}
			metrics.SetErrorStage("storage")
			c.Logger().Error(deleteErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: errServerError})
			return err
		}

		err = c.NoContent(http.StatusNoContent)
		return err
	}
}
