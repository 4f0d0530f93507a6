package securequery

import (
	"context"
	"database/sql"
)

// TxResult is the result of a with_transaction callback: either a domain
// value, a domain error the callback returned deliberately, or an
// infrastructure error the store itself reported. Keeping the two error
// kinds distinct lets callers fold "my domain said no" and "the database
// broke" into their own error taxonomy however they see fit.
type TxResult[T any] struct {
	Value     T
	DomainErr error
	InfraErr  error
}

// Ok wraps a successful domain value.
func Ok[T any](v T) TxResult[T] {
	return TxResult[T]{Value: v}
}

// DomainFail wraps a deliberate domain failure.
func DomainFail[T any](err error) TxResult[T] {
	return TxResult[T]{DomainErr: err}
}

// infraFail wraps an infrastructure failure.
func infraFail[T any](err error) TxResult[T] {
	return TxResult[T]{InfraErr: &InfraError{Op: "transaction", Err: err}}
}

// IsOk reports whether the transaction produced neither kind of failure.
func (r TxResult[T]) IsOk() bool {
	return r.DomainErr == nil && r.InfraErr == nil
}

// txBeginner is satisfied by *Store.
type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (handle, error)
}

// WithTransaction begins a transaction on db, runs fn inside it, and
// commits or rolls back depending on the outcome. A DomainErr or InfraErr
// returned by fn rolls the transaction back without altering the result;
// a failure to begin or commit is reported as an InfraErr of its own.
func WithTransaction[T any](ctx context.Context, db txBeginner, fn func(tx handle) TxResult[T]) TxResult[T] {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return infraFail[T](err)
	}

	result := fn(tx)

	if txc, ok := tx.(interface{ Rollback() error }); ok && !result.IsOk() {
		_ = txc.Rollback()
		return result
	}

	if txc, ok := tx.(interface{ Commit() error }); ok {
		if err := txc.Commit(); err != nil {
			return infraFail[T](err)
		}
	}
	return result
}
