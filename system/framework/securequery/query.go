package securequery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/R3E-Network/modrun/pkg/storage"
)

// handle is the subset of *sqlx.DB / *sqlx.Tx that securequery needs to run
// a compiled query. Both satisfy it without modification; sqlstore.go wires
// the concrete Postgres implementations, and the tests wrap a go-sqlmock
// connection in *sqlx.DB so they never touch a real database.
type handle interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// UnscopedQuery is the unscoped typestate: it carries an entity descriptor
// and an optional additional predicate, but exposes no terminal verb. The
// only way to obtain a runnable query is ScopeWith.
type UnscopedQuery[T any] struct {
	db       handle
	entity   ScopableEntity
	compiler Compiler
	where    string
	whereArg []any
}

// NewQuery starts an unscoped query over entity using db.
func NewQuery[T any](db handle, entity ScopableEntity) UnscopedQuery[T] {
	return UnscopedQuery[T]{db: db, entity: entity, compiler: NewCompiler()}
}

// WithCompiler overrides the predicate compiler (and its tenant-filtering
// strategy) for this query.
func (q UnscopedQuery[T]) WithCompiler(c Compiler) UnscopedQuery[T] {
	q.compiler = c
	return q
}

// Where attaches an additional raw predicate (using "?" placeholders),
// conjoined with the compiled scope predicate once ScopeWith runs.
func (q UnscopedQuery[T]) Where(clause string, args ...any) UnscopedQuery[T] {
	q.where = clause
	q.whereArg = args
	return q
}

// ScopeWith is the sole transition from the unscoped to the scoped
// typestate. It compiles scope against the entity descriptor immediately;
// the resulting predicate is what every terminal verb on the returned
// ScopedQuery applies.
func (q UnscopedQuery[T]) ScopeWith(scope AccessScope) ScopedQuery[T] {
	clause, args := q.compiler.Compile(q.entity, scope)
	return ScopedQuery[T]{
		db:          q.db,
		entity:      q.entity,
		scope:       scope,
		where:       q.where,
		whereArg:    q.whereArg,
		scopeClause: clause,
		scopeArgs:   args,
	}
}

// ScopedQuery is the scoped typestate. Only it exposes terminal verbs; a
// value of this type cannot be constructed except via
// UnscopedQuery.ScopeWith, so no terminal verb can run without a compiled
// scope predicate attached.
type ScopedQuery[T any] struct {
	db          handle
	entity      ScopableEntity
	scope       AccessScope
	where       string
	whereArg    []any
	scopeClause string
	scopeArgs   []any
}

func (q ScopedQuery[T]) fullPredicate() (string, []any) {
	if q.where == "" {
		return q.scopeClause, q.scopeArgs
	}
	args := append(append([]any{}, q.scopeArgs...), q.whereArg...)
	return fmt.Sprintf("(%s) AND (%s)", q.scopeClause, q.where), args
}

// All returns every row matching the scoped predicate, ordered by
// pagination. Page.Limit/Offset of zero mean storage.DefaultPagination.
func (q ScopedQuery[T]) All(ctx context.Context, page storage.Pagination) ([]T, error) {
	page = page.Normalize(500)
	clause, args := q.fullPredicate()
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT ? OFFSET ?", q.entity.Table, clause)
	args = append(args, page.Limit, page.Offset)

	var out []T
	if err := q.db.SelectContext(ctx, &out, q.db.Rebind(query), args...); err != nil {
		return nil, &InfraError{Op: "select", Err: err}
	}
	return out, nil
}

// One returns the single row matching the scoped predicate, or ErrNotFound.
func (q ScopedQuery[T]) One(ctx context.Context) (T, error) {
	var zero T
	clause, args := q.fullPredicate()
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT 1", q.entity.Table, clause)

	var out T
	if err := q.db.GetContext(ctx, &out, q.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, &InfraError{Op: "select_one", Err: err}
	}
	return out, nil
}

// Insert writes values as a new row, after checking them against the
// scope's insert policy: the scope must be root, or, when the entity has a
// tenant column, values must carry a tenant column value present in the
// scope's tenant IDs. Entities without a tenant column are not checked. A
// failing check returns a ScopeViolationError and leaves the row unpersisted.
func (q ScopedQuery[T]) Insert(ctx context.Context, values map[string]any) error {
	if err := q.checkInsertPolicy(values); err != nil {
		return err
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = "?"
		args[i] = values[col]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		q.entity.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := q.db.ExecContext(ctx, q.db.Rebind(query), args...); err != nil {
		return &InfraError{Op: "insert", Err: err}
	}
	return nil
}

func (q ScopedQuery[T]) checkInsertPolicy(values map[string]any) error {
	if q.scope.IsRoot {
		return nil
	}
	if !q.entity.HasTenant() {
		return nil
	}
	tenantVal, ok := values[q.entity.TenantColumn]
	if !ok {
		return &ScopeViolationError{Entity: q.entity.Table, Reason: "insert omits the tenant column"}
	}
	tenantStr := fmt.Sprintf("%v", tenantVal)
	if !containsString(q.scope.TenantIDs, tenantStr) {
		return &ScopeViolationError{
			Entity: q.entity.Table,
			Reason: fmt.Sprintf("tenant %q is outside the scope's tenant IDs", tenantStr),
		}
	}
	return nil
}

// Update applies values to the row identified by id, restricted to the
// scoped predicate. It reports ErrNotFound if no row in scope matched id.
func (q ScopedQuery[T]) Update(ctx context.Context, id any, values map[string]any) error {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	assignments := make([]string, len(cols))
	args := make([]any, 0, len(cols)+2)
	for i, col := range cols {
		assignments[i] = col + " = ?"
		args = append(args, values[col])
	}
	args = append(args, id)

	clause, scopeArgs := q.fullPredicate()
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ? AND (%s)",
		q.entity.Table, strings.Join(assignments, ", "), q.entity.PrimaryKey, clause)
	args = append(args, scopeArgs...)

	result, err := q.db.ExecContext(ctx, q.db.Rebind(query), args...)
	if err != nil {
		return &InfraError{Op: "update", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &InfraError{Op: "update_rows_affected", Err: err}
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row identified by id, restricted to the scoped
// predicate. It reports ErrNotFound if no row in scope matched id.
func (q ScopedQuery[T]) Delete(ctx context.Context, id any) error {
	clause, scopeArgs := q.fullPredicate()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND (%s)", q.entity.Table, q.entity.PrimaryKey, clause)
	args := append([]any{id}, scopeArgs...)

	result, err := q.db.ExecContext(ctx, q.db.Rebind(query), args...)
	if err != nil {
		return &InfraError{Op: "delete", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &InfraError{Op: "delete_rows_affected", Err: err}
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
