// package model contains the data models for the todo API
package model

import (
	"time"
)

// Owner is the public view of the account owning a todo
type Owner struct {
	ID       int64  `json:"id" doc:"Account identifier of the owner" example:"1"`
	Username string `json:"username" doc:"Display name of the owner" example:"username1"`
}

// Todo represents a todo item in the system
type Todo struct {
	ID          int64     `json:"id" doc:"Unique identifier for the todo item" example:"42"`
	Name        string    `json:"name" doc:"Name of the todo item" example:"Buy groceries"`
	DateCreated time.Time `json:"date_created" doc:"When the todo item was created" example:"2022-01-02T12:00:00Z"`
	Done        bool      `json:"done" doc:"Whether the todo item is done" example:"false"`
	Owner       Owner     `json:"owner" doc:"Account owning the todo item"`
}

// CreateTodoRequest is used when creating a new todo item. The owner is always
// the requester; an owner supplied in the body is ignored.
type CreateTodoRequest struct {
	Name string `json:"name" doc:"Name of the todo item" example:"Buy groceries"`
	Done bool   `json:"done,omitempty" doc:"Whether the todo item is done" example:"false"`
}

// UpdateTodoRequest is used when updating an existing todo item. Nil fields are
// left untouched.
type UpdateTodoRequest struct {
	Name *string `json:"name,omitempty" doc:"Name of the todo item" example:"Buy groceries"`
	Done *bool   `json:"done,omitempty" doc:"Whether the todo item is done" example:"true"`
}

// TodoListResponse is used for responses with multiple todo items
type TodoListResponse []Todo

// ErrorResponse represents an error returned by the API
type ErrorResponse struct {
	Error  string              `json:"error" doc:"Error message" example:"todo not found"`
	Fields map[string][]string `json:"fields,omitempty" doc:"Messages keyed by the offending field"`
}
