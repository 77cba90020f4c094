// package repository provides data access interfaces and implementations
package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/cirocosta/todorest/internal/model"
	"github.com/cirocosta/todorest/internal/query"
)

// MutateFunc inspects the current todo and returns the version to persist.
// Returning an error aborts the update.
type MutateFunc func(current model.Todo) (model.Todo, error)

// CheckFunc inspects the current todo before it is deleted. Returning an error
// aborts the deletion.
type CheckFunc func(current model.Todo) error

// TodoRepository defines the interface for todo data access
type TodoRepository interface {
	// List returns the todos matching q in q's order
	List(ctx context.Context, q query.Query) ([]model.Todo, error)

	// FindByID returns a specific todo by ID
	FindByID(ctx context.Context, id int64) (model.Todo, error)

	// Create adds a new todo and assigns its ID
	Create(ctx context.Context, todo model.Todo) (model.Todo, error)

	// Update loads a todo, passes it to fn and stores name and done from the
	// result, all as one atomic step
	Update(ctx context.Context, id int64, fn MutateFunc) (model.Todo, error)

	// Delete loads a todo, passes it to fn and removes it if fn allows, all as
	// one atomic step
	Delete(ctx context.Context, id int64, fn CheckFunc) error
}

// InMemoryTodoRepository implements TodoRepository with an in-memory map
type InMemoryTodoRepository struct {
	todos  map[int64]model.Todo
	nextID int64
	mutex  sync.RWMutex
}

// NewInMemoryTodoRepository creates a new, empty in-memory todo repository
func NewInMemoryTodoRepository() *InMemoryTodoRepository {
	return &InMemoryTodoRepository{
		todos:  make(map[int64]model.Todo),
		nextID: 1,
	}
}

// List returns the todos matching q in q's order
func (r *InMemoryTodoRepository) List(ctx context.Context, q query.Query) ([]model.Todo, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	todos := make([]model.Todo, 0)
	for _, todo := range r.todos {
		if q.Matches(todo) {
			todos = append(todos, todo)
		}
	}
	slices.SortFunc(todos, q.Compare)

	return todos, nil
}

// FindByID returns a specific todo by ID
func (r *InMemoryTodoRepository) FindByID(ctx context.Context, id int64) (model.Todo, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	todo, exists := r.todos[id]
	if !exists {
		return model.Todo{}, ErrTodoNotFound{ID: id}
	}

	return todo, nil
}

// Create adds a new todo and assigns its ID
func (r *InMemoryTodoRepository) Create(ctx context.Context, todo model.Todo) (model.Todo, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	todo.ID = r.nextID
	r.nextID++
	r.todos[todo.ID] = todo

	return todo, nil
}

// Update runs fn against the stored todo while holding the write lock
func (r *InMemoryTodoRepository) Update(ctx context.Context, id int64, fn MutateFunc) (model.Todo, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	current, exists := r.todos[id]
	if !exists {
		return model.Todo{}, ErrTodoNotFound{ID: id}
	}

	next, err := fn(current)
	if err != nil {
		return model.Todo{}, err
	}

	// only name and done are mutable
	current.Name = next.Name
	current.Done = next.Done
	r.todos[id] = current

	return current, nil
}

// Delete runs fn against the stored todo and removes it while holding the
// write lock
func (r *InMemoryTodoRepository) Delete(ctx context.Context, id int64, fn CheckFunc) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	current, exists := r.todos[id]
	if !exists {
		return ErrTodoNotFound{ID: id}
	}

	if err := fn(current); err != nil {
		return err
	}

	delete(r.todos, id)
	return nil
}
