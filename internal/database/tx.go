package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/metrics"
)

// MySQL server error numbers that indicate a lost race rather than a bad
// request: the whole unit of work can be replayed.
const (
	errDuplicateEntry  = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// IsTransient reports whether err is a MySQL error worth one replay.
func IsTransient(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case errDuplicateEntry, errLockWaitTimeout, errDeadlock:
		return true
	}
	return false
}

// IsDuplicate reports whether err is a unique/primary key violation.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

// WithTx runs fn inside a transaction.  The transaction is committed when fn
// returns nil and rolled back otherwise.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// TxRunner is the unit of work shared by the ledger services.  Each Run opens
// a fresh transaction; transient MySQL failures replay the whole closure
// once, so closures must re-read any state they depend on.
type TxRunner struct {
	db     *sql.DB
	policy retrypolicy.RetryPolicy[any]
	log    logging.Logger
}

// NewTxRunner builds a runner that retries transient failures once after
// delay.
func NewTxRunner(db *sql.DB, log logging.Logger, delay time.Duration) *TxRunner {
	policy := retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool { return IsTransient(err) }).
		WithMaxRetries(1).
		WithDelay(delay).
		ReturnLastFailure().
		Build()
	return &TxRunner{db: db, policy: policy, log: log}
}

// DB exposes the pool for reads that need no transaction.
func (r *TxRunner) DB() *sql.DB { return r.db }

// Run executes fn in a transaction under the retry policy.
func (r *TxRunner) Run(ctx context.Context, fn func(tx *sql.Tx) error) error {
	attempt := 0
	_, err := failsafe.With[any](r.policy).WithContext(ctx).Get(func() (any, error) {
		attempt++
		if attempt > 1 {
			metrics.TxReplayed()
			r.log.WithField("attempt", attempt).Warn("replaying transaction after transient error")
		}
		return nil, WithTx(ctx, r.db, fn)
	})
	return err
}
