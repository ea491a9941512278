package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

// BillingRepo stores the one billing summary row each booking has.
type BillingRepo struct {
	db *sql.DB
}

func NewBillingRepo(db *sql.DB) *BillingRepo { return &BillingRepo{db: db} }

const billingColumns = `id, hall_id, user_id, booking_id, reason, total, updated_at`

func scanBilling(s rowScanner) (*model.Billing, error) {
	var (
		b      model.Billing
		reason []byte
	)
	if err := s.Scan(&b.ID, &b.HallID, &b.UserID, &b.BookingID, &reason, &b.Total, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Reason = map[string]int64{}
	if len(reason) > 0 {
		if err := json.Unmarshal(reason, &b.Reason); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

func listBillings(ctx context.Context, q querier, query string, args ...any) ([]*model.Billing, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Billing{}
	for rows.Next() {
		b, err := scanBilling(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpsertTx writes the billing summary of a booking, creating it on first
// use.  (hall_id, booking_id) is unique so there is never more than one row.
func (r *BillingRepo) UpsertTx(ctx context.Context, tx *sql.Tx, b *model.Billing) error {
	reason, err := json.Marshal(b.Reason)
	if err != nil {
		return err
	}
	const q = `INSERT INTO billings (hall_id, user_id, booking_id, reason, total, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE user_id = VALUES(user_id), reason = VALUES(reason),
	             total = VALUES(total), updated_at = VALUES(updated_at)`
	_, err = tx.ExecContext(ctx, q, b.HallID, b.UserID, b.BookingID, reason, b.Total, b.UpdatedAt)
	return err
}

// TotalTx returns the billing total of a booking and whether a row exists.
func (r *BillingRepo) TotalTx(ctx context.Context, tx *sql.Tx, hallID, bookingID int64) (int64, bool, error) {
	var total int64
	err := tx.QueryRowContext(ctx,
		`SELECT total FROM billings WHERE hall_id = ? AND booking_id = ?`, hallID, bookingID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return total, true, nil
}

func (r *BillingRepo) GetByBooking(ctx context.Context, hallID, bookingID int64) (*model.Billing, error) {
	q := `SELECT ` + billingColumns + ` FROM billings WHERE hall_id = ? AND booking_id = ?`
	b, err := scanBilling(r.db.QueryRowContext(ctx, q, hallID, bookingID))
	if err != nil {
		return nil, notFound(err, ErrBillingNotFound)
	}
	return b, nil
}

func (r *BillingRepo) ListByHall(ctx context.Context, hallID int64) ([]*model.Billing, error) {
	return listBillings(ctx, r.db,
		`SELECT `+billingColumns+` FROM billings WHERE hall_id = ? ORDER BY booking_id DESC`, hallID)
}

// ListByUser returns the billings recorded by one staff account.
func (r *BillingRepo) ListByUser(ctx context.Context, hallID int64, userID string) ([]*model.Billing, error) {
	return listBillings(ctx, r.db,
		`SELECT `+billingColumns+` FROM billings WHERE hall_id = ? AND user_id = ? ORDER BY booking_id DESC`,
		hallID, normalizeUserID(userID))
}

// ChargeRepo is the append-only charge journal.
type ChargeRepo struct {
	db *sql.DB
}

func NewChargeRepo(db *sql.DB) *ChargeRepo { return &ChargeRepo{db: db} }

const chargeColumns = `id, hall_id, booking_id, reason, amount, created_at`

// CreateBulkTx inserts all items in a single statement.  Passing an empty
// slice has no effect.
func (r *ChargeRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, hallID, bookingID int64, items []model.Charge, at time.Time) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO charges (hall_id, booking_id, reason, amount, created_at) VALUES `
	args := make([]any, 0, len(items)*5)
	for i, c := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, hallID, bookingID, c.Reason, c.Amount, at)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func listCharges(ctx context.Context, q querier, query string, args ...any) ([]model.Charge, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Charge{}
	for rows.Next() {
		var c model.Charge
		if err := rows.Scan(&c.ID, &c.HallID, &c.BookingID, &c.Reason, &c.Amount, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListByBookingTx returns the charges of a booking in insertion order.
func (r *ChargeRepo) ListByBookingTx(ctx context.Context, tx *sql.Tx, hallID, bookingID int64) ([]model.Charge, error) {
	return listCharges(ctx, tx,
		`SELECT `+chargeColumns+` FROM charges WHERE hall_id = ? AND booking_id = ? ORDER BY id`, hallID, bookingID)
}

func (r *ChargeRepo) ListByBooking(ctx context.Context, hallID, bookingID int64) ([]model.Charge, error) {
	return listCharges(ctx, r.db,
		`SELECT `+chargeColumns+` FROM charges WHERE hall_id = ? AND booking_id = ? ORDER BY id`, hallID, bookingID)
}

func (r *ChargeRepo) ListByHall(ctx context.Context, hallID int64) ([]model.Charge, error) {
	return listCharges(ctx, r.db,
		`SELECT `+chargeColumns+` FROM charges WHERE hall_id = ? ORDER BY booking_id DESC, id`, hallID)
}
