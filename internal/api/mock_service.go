package api

import (
	"context"
	"time"

	"github.com/cirocosta/todorest/internal/auth"
	"github.com/cirocosta/todorest/internal/identity"
	"github.com/cirocosta/todorest/internal/model"
	"github.com/cirocosta/todorest/internal/query"
)

// MockTodoService is a mock implementation of TodoService that does nothing
// and is used solely for OpenAPI documentation generation
type MockTodoService struct{}

// NewMockTodoService creates a new mock todo service
func NewMockTodoService() *MockTodoService {
	return &MockTodoService{}
}

// ListTodos implements TodoService
func (s *MockTodoService) ListTodos(ctx context.Context, who identity.Identity, params query.Params) ([]model.Todo, error) {
	return []model.Todo{}, nil
}

// GetTodo implements TodoService
func (s *MockTodoService) GetTodo(ctx context.Context, who identity.Identity, id int64) (model.Todo, error) {
	return sampleTodo(who, id), nil
}

// CreateTodo implements TodoService
func (s *MockTodoService) CreateTodo(ctx context.Context, who identity.Identity, req model.CreateTodoRequest) (model.Todo, error) {
	todo := sampleTodo(who, 1)
	todo.Name = req.Name
	todo.Done = req.Done
	return todo, nil
}

// UpdateTodo implements TodoService
func (s *MockTodoService) UpdateTodo(ctx context.Context, who identity.Identity, id int64, decode func() (model.UpdateTodoRequest, error)) (model.Todo, error) {
	if _, err := decode(); err != nil {
		return model.Todo{}, err
	}
	return sampleTodo(who, id), nil
}

// DeleteTodo implements TodoService
func (s *MockTodoService) DeleteTodo(ctx context.Context, who identity.Identity, id int64) error {
	return nil
}

func sampleTodo(who identity.Identity, id int64) model.Todo {
	return model.Todo{
		ID:          id,
		Name:        "sample",
		DateCreated: time.Unix(0, 0).UTC(),
		Owner:       model.Owner{ID: who.ID, Username: who.Username},
	}
}

// MockAuthenticator rejects every credential. It backs routers that are only
// built to render documentation.
type MockAuthenticator struct{}

// Authenticate implements auth.Authenticator
func (MockAuthenticator) Authenticate(ctx context.Context, credential string) (identity.Identity, error) {
	return identity.Identity{}, auth.ErrUnauthenticated
}
