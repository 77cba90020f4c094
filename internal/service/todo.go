// package service implements business logic for the application
package service

import (
	"context"
	"time"

	"github.com/cirocosta/todorest/internal/authz"
	"github.com/cirocosta/todorest/internal/identity"
	"github.com/cirocosta/todorest/internal/model"
	"github.com/cirocosta/todorest/internal/query"
	"github.com/cirocosta/todorest/internal/repository"
	"github.com/cirocosta/todorest/internal/validation"
)

// TodoService handles business logic for todo operations. Every operation
// acts on behalf of an explicit identity.
type TodoService struct {
	repo repository.TodoRepository
	now  func() time.Time
}

// Option configures a TodoService
type Option func(*TodoService)

// WithClock replaces the clock used to stamp new todos
func WithClock(now func() time.Time) Option {
	return func(s *TodoService) {
		s.now = now
	}
}

// NewTodoService creates a new todo service with the given repository
func NewTodoService(repo repository.TodoRepository, opts ...Option) *TodoService {
	s := &TodoService{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListTodos returns the todos owned by who that match params
func (s *TodoService) ListTodos(ctx context.Context, who identity.Identity, params query.Params) ([]model.Todo, error) {
	return s.repo.List(ctx, query.Compose(who, params))
}

// GetTodo returns a todo by ID if who owns it
func (s *TodoService) GetTodo(ctx context.Context, who identity.Identity, id int64) (model.Todo, error) {
	todo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.Todo{}, err
	}

	if err := authz.Authorize(who, todo); err != nil {
		return model.Todo{}, err
	}

	return todo, nil
}

// CreateTodo creates a new todo owned by who
func (s *TodoService) CreateTodo(ctx context.Context, who identity.Identity, req model.CreateTodoRequest) (model.Todo, error) {
	// validate input
	name, err := validation.Name(req.Name)
	if err != nil {
		return model.Todo{}, err
	}
	req.Name = name

	// postgres keeps microseconds
	now := s.now().UTC().Truncate(time.Microsecond)

	return s.repo.Create(ctx, query.ComposeCreate(who, req, now))
}

// UpdateTodo applies the update produced by decode to a todo owned by who.
// decode runs only after the todo is found and who is authorized.
func (s *TodoService) UpdateTodo(ctx context.Context, who identity.Identity, id int64, decode func() (model.UpdateTodoRequest, error)) (model.Todo, error) {
	return s.repo.Update(ctx, id, func(current model.Todo) (model.Todo, error) {
		if err := authz.Authorize(who, current); err != nil {
			return model.Todo{}, err
		}

		req, err := decode()
		if err != nil {
			return model.Todo{}, err
		}

		// apply updates
		if req.Name != nil {
			name, err := validation.Name(*req.Name)
			if err != nil {
				return model.Todo{}, err
			}
			current.Name = name
		}
		if req.Done != nil {
			current.Done = *req.Done
		}

		return current, nil
	})
}

// Payload adapts an already decoded update for UpdateTodo
func Payload(req model.UpdateTodoRequest) func() (model.UpdateTodoRequest, error) {
	return func() (model.UpdateTodoRequest, error) {
		return req, nil
	}
}

// DeleteTodo deletes a todo owned by who
func (s *TodoService) DeleteTodo(ctx context.Context, who identity.Identity, id int64) error {
	return s.repo.Delete(ctx, id, func(current model.Todo) error {
		return authz.Authorize(who, current)
	})
}
