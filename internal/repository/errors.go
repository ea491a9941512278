// Package repository holds the MySQL data access for halls, accounts and the
// booking ledger.  Methods suffixed Tx run inside a caller-owned transaction;
// the caller commits or rolls back.  Sentinel errors below let services tell
// a missing row from a failed query.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrHallNotFound         = errors.New("hall not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBillingNotFound      = errors.New("billing not found")
	ErrCancellationNotFound = errors.New("cancellation not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPeakHourNotFound     = errors.New("peak hour not found")
)

// ErrConflict is returned when a write cannot proceed because of existing
// state, such as registering a hall id that is already taken.
var ErrConflict = errors.New("conflict")

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
