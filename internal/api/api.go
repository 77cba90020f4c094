// package api provides the HTTP API for the application
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cirocosta/todorest/internal/auth"
	"github.com/cirocosta/todorest/internal/identity"
	"github.com/cirocosta/todorest/internal/model"
	"github.com/cirocosta/todorest/internal/query"
	"github.com/cirocosta/todorest/pkg/router"
)

// TodoService defines the minimal interface needed by the API. Every call
// carries the identity the request was authenticated as.
type TodoService interface {
	// ListTodos returns the todos owned by who that match params
	ListTodos(ctx context.Context, who identity.Identity, params query.Params) ([]model.Todo, error)

	// GetTodo returns a todo by ID
	GetTodo(ctx context.Context, who identity.Identity, id int64) (model.Todo, error)

	// CreateTodo creates a new todo owned by who
	CreateTodo(ctx context.Context, who identity.Identity, req model.CreateTodoRequest) (model.Todo, error)

	// UpdateTodo updates an existing todo. decode yields the requested
	// changes and is only called once the todo is found and owned by who.
	UpdateTodo(ctx context.Context, who identity.Identity, id int64, decode func() (model.UpdateTodoRequest, error)) (model.Todo, error)

	// DeleteTodo deletes a todo
	DeleteTodo(ctx context.Context, who identity.Identity, id int64) error
}

// API holds the components needed to register routes
type API struct {
	router        *router.DocRouter
	todoHandler   *TodoHandler
	authenticator auth.Authenticator
	logger        *slog.Logger
}

// NewRouter creates a new router with all routes configured
func NewRouter(todoService TodoService, authenticator auth.Authenticator, logger *slog.Logger) *router.DocRouter {
	r := router.NewDocRouter("Todo API",
		"Per-user todo lists. Every todo is private to the account that created it.",
		"1.0.0",
	)

	r.Use(
		requestIDMiddleware,
		recovererMiddleware(logger),
		loggerMiddleware(logger),
	)

	api := &API{
		router:        r,
		todoHandler:   NewTodoHandler(todoService, logger),
		authenticator: authenticator,
		logger:        logger,
	}

	api.registerRoutes()

	return r
}

// registerRoutes configures all API routes with documentation
func (api *API) registerRoutes() {
	errSchema := &model.ErrorResponse{}

	api.router.WithServer("http://localhost:8080", "Local server").
		WithTag("Todos", "Operations on the requester's todo items").
		WithTag("Core", "Core API endpoints").
		WithBearerAuth()

	api.router.RegisterResponse("Unauthorized", map[string]any{
		"description": "Missing or invalid bearer token",
		"headers": map[string]any{
			"WWW-Authenticate": map[string]any{"schema": map[string]any{"type": "string"}},
		},
	})

	api.router.Route("GET", "/{$}", homeHandler).
		WithName("Home").
		WithDescription("Home page").
		WithTags("Core").
		Register()

	api.router.Route("GET", "/health", healthHandler).
		WithName("Health Check").
		WithDescription("API health check endpoint").
		WithTags("Core").
		Register()

	api.router.Route("GET", "/openapi.json", api.router.ServeOpenAPI).
		WithName("OpenAPI Document").
		WithDescription("This document").
		WithTags("Core").
		Register()

	idParam := func(rc *router.RouteConfig) *router.RouteConfig {
		return rc.WithPathParam("id", "Todo identifier", router.ParamType("integer", "int64"))
	}

	api.router.Route("GET", "/todos", api.authenticated(api.todoHandler.ListTodos)).
		WithName("List Todos").
		WithDescription("List the requester's todo items").
		WithResponse(model.TodoListResponse{}).
		WithQueryParam(query.ParamDone, "Only todos with this done flag", router.ParamType("boolean", "")).
		WithQueryParam(query.ParamCreated, "Only todos created at exactly this instant", router.ParamType("string", "date-time")).
		WithQueryParam(query.ParamCreatedAfter, "Only todos created at or after this instant", router.ParamType("string", "date-time")).
		WithQueryParam(query.ParamCreatedBefore, "Only todos created at or before this instant", router.ParamType("string", "date-time")).
		WithQueryParam(query.ParamOrdering, "Comma separated fields, prefix with - for descending: name, date_created").
		WithErrorResponse("400", "Bad Request", errSchema,
			router.Example{
				Name:  "invalid filter",
				Value: `{"error": "validation failed", "fields": {"done": ["\"maybe\" is not a valid boolean"]}}`,
			}).
		WithErrorResponse("500", "Internal Server Error", errSchema).
		WithTags("Todos").
		WithSecurity().
		Register()

	api.router.Route("POST", "/todos", api.authenticated(api.todoHandler.CreateTodo)).
		WithName("Create Todo").
		WithDescription("Create a todo item owned by the requester").
		WithRequest(&model.CreateTodoRequest{}).
		WithResponse(&model.Todo{}).
		WithSuccessStatus(http.StatusCreated).
		WithErrorResponse("400", "Bad Request", errSchema,
			router.Example{
				Name:  "missing name",
				Value: `{"error": "validation failed", "fields": {"name": ["This field is required."]}}`,
			}).
		WithErrorResponse("500", "Internal Server Error", errSchema).
		WithTags("Todos").
		WithSecurity().
		Register()

	idParam(api.router.Route("GET", "/todos/{id}", api.authenticated(api.todoHandler.GetTodo))).
		WithName("Get Todo").
		WithDescription("Get a todo item by ID").
		WithResponse(&model.Todo{}).
		WithErrorResponse("403", "Forbidden", errSchema).
		WithErrorResponse("404", "Not Found", errSchema,
			router.Example{
				Name:  "unknown id",
				Value: `{"error": "todo not found"}`,
			}).
		WithTags("Todos").
		WithSecurity().
		Register()

	idParam(api.router.Route("PUT", "/todos/{id}", api.authenticated(api.todoHandler.ReplaceTodo))).
		WithName("Replace Todo").
		WithDescription("Replace the name and done flag of a todo item").
		WithRequest(&model.CreateTodoRequest{}).
		WithResponse(&model.Todo{}).
		WithErrorResponse("400", "Bad Request", errSchema).
		WithErrorResponse("403", "Forbidden", errSchema).
		WithErrorResponse("404", "Not Found", errSchema).
		WithTags("Todos").
		WithSecurity().
		Register()

	idParam(api.router.Route("PATCH", "/todos/{id}", api.authenticated(api.todoHandler.UpdateTodo))).
		WithName("Update Todo").
		WithDescription("Update some fields of a todo item").
		WithRequest(&model.UpdateTodoRequest{}).
		WithResponse(&model.Todo{}).
		WithErrorResponse("400", "Bad Request", errSchema).
		WithErrorResponse("403", "Forbidden", errSchema).
		WithErrorResponse("404", "Not Found", errSchema).
		WithTags("Todos").
		WithSecurity().
		Register()

	idParam(api.router.Route("DELETE", "/todos/{id}", api.authenticated(api.todoHandler.DeleteTodo))).
		WithName("Delete Todo").
		WithDescription("Delete a todo item").
		WithSuccessStatus(http.StatusNoContent).
		WithErrorResponse("403", "Forbidden", errSchema).
		WithErrorResponse("404", "Not Found", errSchema).
		WithTags("Todos").
		WithSecurity().
		Register()

	for _, route := range api.router.Routes() {
		if route.Secured {
			api.router.RegisterRouteResponse(route.Path, route.Method, "401", "Unauthorized")
		}
	}
}

// homeHandler handles the home page
func homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("Welcome to the Todo API"))
}

// healthHandler handles the health check endpoint
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
