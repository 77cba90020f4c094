// package authz holds the ownership rule guarding single-todo operations
package authz

import (
	"errors"

	"github.com/cirocosta/todorest/internal/identity"
	"github.com/cirocosta/todorest/internal/model"
)

// ErrForbidden is returned when the requester does not own the todo
var ErrForbidden = errors.New("not the owner of this todo")

// Owns reports whether who owns todo
func Owns(who identity.Identity, todo model.Todo) bool {
	owner := identity.Identity{ID: todo.Owner.ID, Username: todo.Owner.Username}
	return !who.IsZero() && who.Equal(owner)
}

// Authorize returns nil when who may read, change or delete todo and
// ErrForbidden otherwise. It must run before every single-todo operation.
func Authorize(who identity.Identity, todo model.Todo) error {
	if !Owns(who, todo) {
		return ErrForbidden
	}
	return nil
}
