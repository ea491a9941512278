// Package service implements the booking ledger, the subscription renewal
// engine and hall administration on top of the repositories.  Every
// multi-row write runs as one unit of work through database.TxRunner.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/marriage-hall-ledger/internal/database"
	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/metrics"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
)

// Error kinds.  Test with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// Error is the error every service method returns.  Message is safe to show
// to clients; Cause is only logged.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func notFoundf(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func invalid(err error) error {
	return &Error{Kind: ErrInvalidInput, Message: err.Error()}
}

func invalidf(format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Outcome labels an error for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}
	return "error"
}

// classify turns repository sentinels into service errors and anything
// unexpected into ErrInternal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, repository.ErrHallNotFound):
		return notFoundf("hall not found")
	case errors.Is(err, repository.ErrBookingNotFound):
		return notFoundf("booking not found")
	case errors.Is(err, repository.ErrPaymentNotFound):
		return notFoundf("payment not found")
	case errors.Is(err, repository.ErrUserNotFound):
		return notFoundf("user not found")
	case errors.Is(err, repository.ErrConflict), database.IsDuplicate(err):
		return &Error{Kind: ErrConflict, Message: "record already exists", Cause: err}
	}
	return &Error{Kind: ErrInternal, Message: "internal error", Cause: err}
}

// finish classifies err, logs internal failures and counts the operation.
func finish(log logging.Logger, op string, err error) error {
	err = classify(err)
	var se *Error
	if errors.As(err, &se) && se.Kind == ErrInternal {
		log.WithError(se.Cause).WithField("op", op).Error("operation failed")
	}
	metrics.LedgerOperation(op, Outcome(err))
	return err
}
