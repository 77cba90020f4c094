package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cirocosta/todorest/internal/model"
	"github.com/cirocosta/todorest/internal/query"
)

// DB is the part of *pgxpool.Pool the PostgreSQL repository relies on
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id       BIGINT PRIMARY KEY,
	username TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS todos (
	id           BIGSERIAL PRIMARY KEY,
	name         VARCHAR(128) NOT NULL,
	date_created TIMESTAMPTZ NOT NULL DEFAULT now(),
	done         BOOLEAN NOT NULL DEFAULT false,
	owner_id     BIGINT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS todos_owner_date_created_idx ON todos (owner_id, date_created);
`

const (
	selectTodos = `SELECT t.id, t.name, t.date_created, t.done, a.id, a.username FROM todos t JOIN accounts a ON a.id = t.owner_id`

	upsertAccount = `INSERT INTO accounts (id, username) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username`

	insertTodo = `INSERT INTO todos (name, date_created, done, owner_id) VALUES ($1, $2, $3, $4) RETURNING id`
)

// orderColumns maps every orderable field to its SQL expression. Names are
// compared bytewise so the order matches the in-memory store.
var orderColumns = map[query.OrderField]string{
	query.OrderByID:          "t.id",
	query.OrderByName:        `t.name COLLATE "C"`,
	query.OrderByDateCreated: "t.date_created",
}

// OpenPostgres connects a pool to dsn and checks it is reachable
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate creates the tables used by PostgresTodoRepository if missing
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PostgresTodoRepository implements TodoRepository on PostgreSQL
type PostgresTodoRepository struct {
	db DB
}

// NewPostgresTodoRepository creates a repository backed by db
func NewPostgresTodoRepository(db DB) *PostgresTodoRepository {
	return &PostgresTodoRepository{db: db}
}

// List returns the todos matching q in q's order
func (r *PostgresTodoRepository) List(ctx context.Context, q query.Query) ([]model.Todo, error) {
	sql, args, err := listSQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}

	todos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Todo, error) {
		return scanTodo(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan todos: %w", err)
	}

	return todos, nil
}

// FindByID returns a specific todo by ID
func (r *PostgresTodoRepository) FindByID(ctx context.Context, id int64) (model.Todo, error) {
	todo, err := scanTodo(r.db.QueryRow(ctx, selectTodos+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Todo{}, ErrTodoNotFound{ID: id}
	}
	if err != nil {
		return model.Todo{}, fmt.Errorf("find todo %d: %w", id, err)
	}

	return todo, nil
}

// Create records the owner's account and inserts the todo in one transaction
func (r *PostgresTodoRepository) Create(ctx context.Context, todo model.Todo) (model.Todo, error) {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertAccount, todo.Owner.ID, todo.Owner.Username); err != nil {
			return fmt.Errorf("upsert account: %w", err)
		}

		err := tx.QueryRow(ctx, insertTodo, todo.Name, todo.DateCreated, todo.Done, todo.Owner.ID).Scan(&todo.ID)
		if err != nil {
			return fmt.Errorf("insert todo: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Todo{}, err
	}

	return todo, nil
}

// Update locks the row, runs fn and writes name and done back
func (r *PostgresTodoRepository) Update(ctx context.Context, id int64, fn MutateFunc) (model.Todo, error) {
	var updated model.Todo

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		current, err := lockTodo(ctx, tx, id)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		current.Name = next.Name
		current.Done = next.Done

		if _, err := tx.Exec(ctx, `UPDATE todos SET name = $2, done = $3 WHERE id = $1`, id, current.Name, current.Done); err != nil {
			return fmt.Errorf("update todo %d: %w", id, err)
		}

		updated = current
		return nil
	})
	if err != nil {
		return model.Todo{}, err
	}

	return updated, nil
}

// Delete locks the row, runs fn and removes the todo
func (r *PostgresTodoRepository) Delete(ctx context.Context, id int64, fn CheckFunc) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		current, err := lockTodo(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := fn(current); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM todos WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete todo %d: %w", id, err)
		}
		return nil
	})
}

func lockTodo(ctx context.Context, tx pgx.Tx, id int64) (model.Todo, error) {
	todo, err := scanTodo(tx.QueryRow(ctx, selectTodos+` WHERE t.id = $1 FOR UPDATE OF t`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Todo{}, ErrTodoNotFound{ID: id}
	}
	if err != nil {
		return model.Todo{}, fmt.Errorf("lock todo %d: %w", id, err)
	}
	return todo, nil
}

func scanTodo(row pgx.Row) (model.Todo, error) {
	var todo model.Todo
	err := row.Scan(
		&todo.ID,
		&todo.Name,
		&todo.DateCreated,
		&todo.Done,
		&todo.Owner.ID,
		&todo.Owner.Username,
	)
	todo.DateCreated = todo.DateCreated.UTC()
	return todo, err
}

// listSQL renders q as a parameterized statement. Only whitelisted columns are
// written into the SQL text; every value travels as an argument.
func listSQL(q query.Query) (string, []any, error) {
	var b strings.Builder
	args := []any{q.Owner()}

	b.WriteString(selectTodos)
	b.WriteString(" WHERE t.owner_id = $1")

	where := func(clause string, v any) {
		args = append(args, v)
		b.WriteString(" AND " + clause + " $" + strconv.Itoa(len(args)))
	}

	if done, ok := q.Done(); ok {
		where("t.done =", done)
	}
	if ts, ok := q.Created(); ok {
		where("t.date_created =", ts)
	}
	if ts, ok := q.CreatedAfter(); ok {
		where("t.date_created >=", ts)
	}
	if ts, ok := q.CreatedBefore(); ok {
		where("t.date_created <=", ts)
	}

	b.WriteString(" ORDER BY ")
	for i, term := range q.Order() {
		column, ok := orderColumns[term.Field]
		if !ok {
			return "", nil, fmt.Errorf("no column for ordering field %q", term.Field)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(column)
		if term.Descending {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}

	return b.String(), args, nil
}
