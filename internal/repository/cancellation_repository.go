package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

// CancellationRepo stores cancellations and the expense ledger they feed.
type CancellationRepo struct {
	db *sql.DB
}

func NewCancellationRepo(db *sql.DB) *CancellationRepo { return &CancellationRepo{db: db} }

const cancelColumns = `id, hall_id, booking_id, user_id, reason, advance_paid, total_paid, cancel_charge, refund, created_at`

func (r *CancellationRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Cancellation) error {
	const q = `INSERT INTO cancels (hall_id, booking_id, user_id, reason, advance_paid, total_paid, cancel_charge, refund, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, c.HallID, c.BookingID, c.UserID, c.Reason,
		c.AdvancePaid, c.TotalPaid, c.CancelCharge, c.Refund, c.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func scanCancellation(s rowScanner) (*model.Cancellation, error) {
	var c model.Cancellation
	if err := s.Scan(&c.ID, &c.HallID, &c.BookingID, &c.UserID, &c.Reason,
		&c.AdvancePaid, &c.TotalPaid, &c.CancelCharge, &c.Refund, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CancellationRepo) GetByBooking(ctx context.Context, hallID, bookingID int64) (*model.Cancellation, error) {
	q := `SELECT ` + cancelColumns + ` FROM cancels WHERE hall_id = ? AND booking_id = ?`
	c, err := scanCancellation(r.db.QueryRowContext(ctx, q, hallID, bookingID))
	if err != nil {
		return nil, notFound(err, ErrCancellationNotFound)
	}
	return c, nil
}

func (r *CancellationRepo) ListByHall(ctx context.Context, hallID int64) ([]*model.Cancellation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cancelColumns+` FROM cancels WHERE hall_id = ? ORDER BY created_at DESC, id DESC`, hallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Cancellation{}
	for rows.Next() {
		c, err := scanCancellation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateExpenseTx appends to the hall's expense ledger.
func (r *CancellationRepo) CreateExpenseTx(ctx context.Context, tx *sql.Tx, e *model.Expense) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (hall_id, reason, amount, created_at) VALUES (?, ?, ?, ?)`,
		e.HallID, e.Reason, e.Amount, e.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func (r *CancellationRepo) ListExpenses(ctx context.Context, hallID int64) ([]model.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, hall_id, reason, amount, created_at FROM expenses WHERE hall_id = ? ORDER BY created_at DESC, id DESC`, hallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Expense{}
	for rows.Next() {
		var e model.Expense
		if err := rows.Scan(&e.ID, &e.HallID, &e.Reason, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
