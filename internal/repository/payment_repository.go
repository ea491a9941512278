package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

// PaymentRepo stores yearly subscription payments (app_payments).
type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, hall_id, base_amount, amount, transaction_id, period_start, period_end, status, created_at, paid_at`

func scanPayment(s rowScanner) (*model.AppPayment, error) {
	var (
		p      model.AppPayment
		txnID  sql.NullString
		paidAt sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.HallID, &p.BaseAmount, &p.Amount, &txnID, &p.PeriodStart, &p.PeriodEnd,
		&p.Status, &p.CreatedAt, &paidAt); err != nil {
		return nil, err
	}
	p.TransactionID = stringPtr(txnID)
	p.PaidAt = timePtr(paidAt)
	return &p, nil
}

// CreateTx inserts p and sets its ID.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.AppPayment) error {
	const q = `INSERT INTO app_payments (hall_id, base_amount, amount, transaction_id, period_start, period_end, status, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.HallID, p.BaseAmount, p.Amount, p.TransactionID,
		p.PeriodStart, p.PeriodEnd, p.Status, p.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// FindOverlappingTx returns a PENDING or COMPLETED payment of the hall whose
// period intersects [start, end), or nil when there is none.  excludeID
// skips one payment (0 skips none).
func (r *PaymentRepo) FindOverlappingTx(ctx context.Context, tx *sql.Tx, hallID, excludeID int64, start, end time.Time) (*model.AppPayment, error) {
	q := `SELECT ` + paymentColumns + ` FROM app_payments
	      WHERE hall_id = ? AND id <> ? AND status IN ('PENDING', 'COMPLETED') AND period_start < ? AND period_end > ?
	      ORDER BY period_start LIMIT 1`
	p, err := scanPayment(tx.QueryRowContext(ctx, q, hallID, excludeID, end, start))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *PaymentRepo) GetByID(ctx context.Context, id int64) (*model.AppPayment, error) {
	q := `SELECT ` + paymentColumns + ` FROM app_payments WHERE id = ?`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return p, nil
}

// GetForUpdateTx reads and locks one payment.
func (r *PaymentRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id int64) (*model.AppPayment, error) {
	q := `SELECT ` + paymentColumns + ` FROM app_payments WHERE id = ? FOR UPDATE`
	p, err := scanPayment(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return p, nil
}

// UpdateStatusTx sets the status.  A nil transactionID or paidAt keeps the
// stored value.
func (r *PaymentRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, status model.PaymentStatus, transactionID *string, paidAt *time.Time) error {
	const q = `UPDATE app_payments
	           SET status = ?, transaction_id = COALESCE(?, transaction_id), paid_at = COALESCE(?, paid_at)
	           WHERE id = ?`
	return execTx(ctx, tx, q, status, transactionID, paidAt, id)
}

// ExpireCompleted marks COMPLETED payments whose period ended before now as
// FAILED and returns how many changed.  Running it twice changes nothing the
// second time.
func (r *PaymentRepo) ExpireCompleted(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE app_payments SET status = 'FAILED' WHERE status = 'COMPLETED' AND period_end < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LatestOpen returns the most recent PENDING or FAILED payment, or nil.
func (r *PaymentRepo) LatestOpen(ctx context.Context, hallID int64) (*model.AppPayment, error) {
	q := `SELECT ` + paymentColumns + ` FROM app_payments
	      WHERE hall_id = ? AND status IN ('PENDING', 'FAILED')
	      ORDER BY created_at DESC, id DESC LIMIT 1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, hallID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ListByHall returns the payment history, newest period first.
func (r *PaymentRepo) ListByHall(ctx context.Context, hallID int64) ([]*model.AppPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM app_payments WHERE hall_id = ? ORDER BY period_start DESC, id DESC`, hallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.AppPayment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
