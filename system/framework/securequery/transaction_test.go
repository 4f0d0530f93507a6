package securequery

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestWithTransactionCommitsOnDomainSuccess(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	store := NewStore(sqlxDB)

	mock.ExpectBegin()
	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result := WithTransaction(context.Background(), store, func(tx handle) TxResult[string] {
		if _, err := tx.ExecContext(context.Background(), "INSERT INTO widgets DEFAULT VALUES"); err != nil {
			return infraFail[string](err)
		}
		return Ok("created")
	})

	if !result.IsOk() || result.Value != "created" {
		t.Fatalf("result = %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWithTransactionRollsBackOnDomainError(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	store := NewStore(sqlxDB)

	mock.ExpectBegin()
	mock.ExpectRollback()

	domainErr := errors.New("insufficient balance")
	result := WithTransaction(context.Background(), store, func(tx handle) TxResult[string] {
		return DomainFail[string](domainErr)
	})

	if result.IsOk() {
		t.Fatal("result.IsOk() = true, want false")
	}
	if !errors.Is(result.DomainErr, domainErr) {
		t.Fatalf("DomainErr = %v, want %v", result.DomainErr, domainErr)
	}
	if result.InfraErr != nil {
		t.Fatalf("InfraErr = %v, want nil", result.InfraErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWithTransactionSurfacesInfraFailureSeparately(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	store := NewStore(sqlxDB)

	mock.ExpectBegin()
	mock.ExpectExec(".*").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	result := WithTransaction(context.Background(), store, func(tx handle) TxResult[string] {
		if _, err := tx.ExecContext(context.Background(), "INSERT INTO widgets DEFAULT VALUES"); err != nil {
			return infraFail[string](err)
		}
		return Ok("created")
	})

	if result.DomainErr != nil {
		t.Fatalf("DomainErr = %v, want nil", result.DomainErr)
	}
	if !IsInfraError(result.InfraErr) {
		t.Fatalf("InfraErr = %v, want InfraError", result.InfraErr)
	}
}

func TestWithTransactionBeginFailureReturnsInfraError(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	store := NewStore(sqlxDB)

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	result := WithTransaction(context.Background(), store, func(tx handle) TxResult[string] {
		t.Fatal("callback should not run when Begin fails")
		return Ok("unreachable")
	})

	if !IsInfraError(result.InfraErr) {
		t.Fatalf("InfraErr = %v, want InfraError", result.InfraErr)
	}
}
