package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cirocosta/todorest/internal/authz"
	"github.com/cirocosta/todorest/internal/identity"
	"github.com/cirocosta/todorest/internal/model"
	"github.com/cirocosta/todorest/internal/query"
	"github.com/cirocosta/todorest/internal/repository"
	"github.com/cirocosta/todorest/internal/validation"
)

// maxBodyBytes bounds the size of request payloads
const maxBodyBytes = 1 << 20

// TodoHandler handles HTTP requests for todo operations
type TodoHandler struct {
	todoService TodoService
	logger      *slog.Logger
}

// NewTodoHandler creates a new todo handler with the given service
func NewTodoHandler(todoService TodoService, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{
		todoService: todoService,
		logger:      logger,
	}
}

// ListTodos handles GET /todos
func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request, who identity.Identity) {
	params, err := query.ParseParams(r.URL.Query())
	if err != nil {
		h.handleError(w, r, err, "error listing todos")
		return
	}

	todos, err := h.todoService.ListTodos(r.Context(), who, params)
	if err != nil {
		h.handleError(w, r, err, "error listing todos")
		return
	}

	if todos == nil {
		todos = []model.Todo{}
	}

	writeJSON(w, model.TodoListResponse(todos), http.StatusOK)
}

// GetTodo handles GET /todos/{id}
func (h *TodoHandler) GetTodo(w http.ResponseWriter, r *http.Request, who identity.Identity) {
	id, ok := todoID(r)
	if !ok {
		writeError(w, "todo not found", http.StatusNotFound)
		return
	}

	todo, err := h.todoService.GetTodo(r.Context(), who, id)
	if err != nil {
		h.handleError(w, r, err, "error getting todo")
		return
	}

	writeJSON(w, todo, http.StatusOK)
}

// CreateTodo handles POST /todos
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request, who identity.Identity) {
	body, err := readBody(w, r)
	if err != nil {
		h.handleError(w, r, err, "error creating todo")
		return
	}

	req, err := validation.CreateTodo(body)
	if err != nil {
		h.handleError(w, r, err, "error creating todo")
		return
	}

	todo, err := h.todoService.CreateTodo(r.Context(), who, req)
	if err != nil {
		h.handleError(w, r, err, "error creating todo")
		return
	}

	writeJSON(w, todo, http.StatusCreated)
}

// ReplaceTodo handles PUT /todos/{id}
func (h *TodoHandler) ReplaceTodo(w http.ResponseWriter, r *http.Request, who identity.Identity) {
	h.update(w, r, who, false)
}

// UpdateTodo handles PATCH /todos/{id}
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request, who identity.Identity) {
	h.update(w, r, who, true)
}

func (h *TodoHandler) update(w http.ResponseWriter, r *http.Request, who identity.Identity, partial bool) {
	id, ok := todoID(r)
	if !ok {
		writeError(w, "todo not found", http.StatusNotFound)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		h.handleError(w, r, err, "error updating todo")
		return
	}

	// the payload is checked once the todo is found and owned by who
	decode := func() (model.UpdateTodoRequest, error) {
		return validation.UpdateTodo(body, partial)
	}

	todo, err := h.todoService.UpdateTodo(r.Context(), who, id, decode)
	if err != nil {
		h.handleError(w, r, err, "error updating todo")
		return
	}

	writeJSON(w, todo, http.StatusOK)
}

// DeleteTodo handles DELETE /todos/{id}
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request, who identity.Identity) {
	id, ok := todoID(r)
	if !ok {
		writeError(w, "todo not found", http.StatusNotFound)
		return
	}

	if err := h.todoService.DeleteTodo(r.Context(), who, id); err != nil {
		h.handleError(w, r, err, "error deleting todo")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleError maps err to a response. Unexpected errors are logged and
// answered with msg so internals never leak to clients.
func (h *TodoHandler) handleError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var (
		validationErr validation.Errors
		notFoundErr   repository.ErrTodoNotFound
		tooLargeErr   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validationErr):
		writeValidationError(w, validationErr)
	case errors.As(err, &notFoundErr):
		writeError(w, "todo not found", http.StatusNotFound)
	case errors.Is(err, authz.ErrForbidden):
		writeError(w, "you do not have permission to perform this action", http.StatusForbidden)
	case errors.As(err, &tooLargeErr):
		writeError(w, "request body too large", http.StatusRequestEntityTooLarge)
	default:
		h.logger.Error(msg,
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
		)
		writeError(w, msg, http.StatusInternalServerError)
	}
}

// todoID parses the id path value. Anything but a positive integer can't
// name a todo.
func todoID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
	}
}

// writeError writes an error response with the given status code
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, model.ErrorResponse{Error: message}, statusCode)
}

// writeValidationError writes a 400 listing the rejected fields
func writeValidationError(w http.ResponseWriter, errs validation.Errors) {
	writeJSON(w, model.ErrorResponse{
		Error:  "validation failed",
		Fields: errs,
	}, http.StatusBadRequest)
}
