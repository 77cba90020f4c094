package query

import (
	"cmp"
	"strings"
	"time"

	"github.com/cirocosta/todorest/internal/identity"
	"github.com/cirocosta/todorest/internal/model"
)

// Query is a list query always restricted to a single owner. The owner can
// only be set through Compose.
type Query struct {
	owner  int64
	params Params
	order  []OrderTerm
}

// Compose scopes params to the todos owned by who. Requested ordering is
// followed by id ascending so that ties resolve the same way every time.
func Compose(who identity.Identity, params Params) Query {
	order := make([]OrderTerm, 0, len(params.Ordering)+1)
	order = append(order, params.Ordering...)
	order = append(order, OrderTerm{Field: OrderByID})

	return Query{
		owner:  who.ID,
		params: params,
		order:  order,
	}
}

// Owner returns the account id every result must belong to
func (q Query) Owner() int64 { return q.owner }

// Done returns the done filter, if any
func (q Query) Done() (bool, bool) {
	if q.params.Done == nil {
		return false, false
	}
	return *q.params.Done, true
}

// Created returns the exact creation time filter, if any
func (q Query) Created() (time.Time, bool) { return deref(q.params.Created) }

// CreatedAfter returns the inclusive lower creation bound, if any
func (q Query) CreatedAfter() (time.Time, bool) { return deref(q.params.CreatedAfter) }

// CreatedBefore returns the inclusive upper creation bound, if any
func (q Query) CreatedBefore() (time.Time, bool) { return deref(q.params.CreatedBefore) }

// Order returns the complete ordering, tie-break included
func (q Query) Order() []OrderTerm {
	return append([]OrderTerm(nil), q.order...)
}

func deref(t *time.Time) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// Matches reports whether todo satisfies every clause of q
func (q Query) Matches(todo model.Todo) bool {
	if todo.Owner.ID != q.owner || q.owner == 0 {
		return false
	}
	if done, ok := q.Done(); ok && todo.Done != done {
		return false
	}
	if ts, ok := q.Created(); ok && !todo.DateCreated.Equal(ts) {
		return false
	}
	if ts, ok := q.CreatedAfter(); ok && todo.DateCreated.Before(ts) {
		return false
	}
	if ts, ok := q.CreatedBefore(); ok && todo.DateCreated.After(ts) {
		return false
	}
	return true
}

// Compare orders a and b according to q, suitable for slices.SortFunc
func (q Query) Compare(a, b model.Todo) int {
	for _, term := range q.order {
		var c int
		switch term.Field {
		case OrderByName:
			c = strings.Compare(a.Name, b.Name)
		case OrderByDateCreated:
			c = a.DateCreated.Compare(b.DateCreated)
		case OrderByID:
			c = cmp.Compare(a.ID, b.ID)
		}
		if term.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// ComposeCreate builds the todo created by who. The owner is always who,
// whatever the payload carried.
func ComposeCreate(who identity.Identity, req model.CreateTodoRequest, now time.Time) model.Todo {
	return model.Todo{
		Name:        req.Name,
		DateCreated: now,
		Done:        req.Done,
		Owner: model.Owner{
			ID:       who.ID,
			Username: who.Username,
		},
	}
}
