package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

// BookingRepo reads and writes bookings.  booking_id is unique per hall and
// allocated as max+1 while the hall row is locked.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `hall_id, booking_id, user_id, function_date, alloted_datetime_from, alloted_datetime_to,
	name, phone, address, alternate_phone, email, status, rent, advance, balance, event_type,
	tamil_date, tamil_month, created_at, updated_at`

func scanBooking(s rowScanner) (*model.Booking, error) {
	var (
		b          model.Booking
		altPhone   []byte
		tamilDate  sql.NullString
		tamilMonth sql.NullString
	)
	err := s.Scan(&b.HallID, &b.BookingID, &b.UserID, &b.FunctionDate, &b.From, &b.To,
		&b.Name, &b.Phone, &b.Address, &altPhone, &b.Email, &b.Status, &b.Rent, &b.Advance, &b.Balance,
		&b.EventType, &tamilDate, &tamilMonth, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(altPhone) > 0 {
		if err := json.Unmarshal(altPhone, &b.AlternatePhone); err != nil {
			return nil, err
		}
	}
	if b.AlternatePhone == nil {
		b.AlternatePhone = []string{}
	}
	b.TamilDate = stringPtr(tamilDate)
	b.TamilMonth = stringPtr(tamilMonth)
	return &b, nil
}

func listBookings(ctx context.Context, q querier, query string, args ...any) ([]*model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// NextIDTx returns max(booking_id)+1 for the hall.  Only safe while the hall
// row lock is held.
func (r *BookingRepo) NextIDTx(ctx context.Context, tx *sql.Tx, hallID int64) (int64, error) {
	var next int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(booking_id), 0) + 1 FROM bookings WHERE hall_id = ?`, hallID).Scan(&next)
	return next, err
}

// CountOverlapsTx counts slot-holding bookings on the same function date
// whose window intersects [from, to).  excludeID skips the booking being
// moved; pass 0 for new bookings.
func (r *BookingRepo) CountOverlapsTx(ctx context.Context, tx *sql.Tx, hallID int64, date, from, to time.Time, excludeID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM bookings
	           WHERE hall_id = ? AND function_date = ? AND status IN ('booked', 'billed') AND booking_id <> ?
	             AND alloted_datetime_from < ? AND alloted_datetime_to > ?
	           FOR UPDATE`
	var n int
	err := tx.QueryRowContext(ctx, q, hallID, date, excludeID, to, from).Scan(&n)
	return n, err
}

// CreateTx inserts b.  BookingID must already be allocated.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	alt := b.AlternatePhone
	if alt == nil {
		alt = []string{}
	}
	altJSON, err := json.Marshal(alt)
	if err != nil {
		return err
	}
	q := `INSERT INTO bookings (` + bookingColumns + `)
	      VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		b.HallID, b.BookingID, b.UserID, b.FunctionDate, b.From, b.To,
		b.Name, b.Phone, b.Address, altJSON, b.Email, b.Status, b.Rent, b.Advance, b.Balance,
		b.EventType, b.TamilDate, b.TamilMonth, b.CreatedAt, b.UpdatedAt)
	return err
}

// GetForUpdateTx reads and locks one booking.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, hallID, bookingID int64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE hall_id = ? AND booking_id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, hallID, bookingID))
	if err != nil {
		return nil, notFound(err, ErrBookingNotFound)
	}
	return b, nil
}

func (r *BookingRepo) GetByID(ctx context.Context, hallID, bookingID int64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE hall_id = ? AND booking_id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, hallID, bookingID))
	if err != nil {
		return nil, notFound(err, ErrBookingNotFound)
	}
	return b, nil
}

// ListByHall returns every booking of the hall, latest function date first.
func (r *BookingRepo) ListByHall(ctx context.Context, hallID int64) ([]*model.Booking, error) {
	return listBookings(ctx, r.db,
		`SELECT `+bookingColumns+` FROM bookings WHERE hall_id = ?
		 ORDER BY function_date DESC, alloted_datetime_from DESC`, hallID)
}

// ListBetween returns bookings whose function date lies in [from, to).
func (r *BookingRepo) ListBetween(ctx context.Context, hallID int64, from, to time.Time) ([]*model.Booking, error) {
	return listBookings(ctx, r.db,
		`SELECT `+bookingColumns+` FROM bookings WHERE hall_id = ? AND function_date >= ? AND function_date < ?
		 ORDER BY function_date, alloted_datetime_from`, hallID, from, to)
}

// ListOccupyingBetween is ListBetween restricted to slot-holding bookings.
func (r *BookingRepo) ListOccupyingBetween(ctx context.Context, hallID int64, from, to time.Time) ([]*model.Booking, error) {
	return listBookings(ctx, r.db,
		`SELECT `+bookingColumns+` FROM bookings WHERE hall_id = ? AND function_date >= ? AND function_date < ?
		   AND status IN ('booked', 'billed')
		 ORDER BY function_date, alloted_datetime_from`, hallID, from, to)
}

// UpdateWindowTx moves a booking to a new date and window.
func (r *BookingRepo) UpdateWindowTx(ctx context.Context, tx *sql.Tx, hallID, bookingID int64, date, from, to, now time.Time) error {
	const q = `UPDATE bookings SET function_date = ?, alloted_datetime_from = ?, alloted_datetime_to = ?, updated_at = ?
	           WHERE hall_id = ? AND booking_id = ?`
	return execTx(ctx, tx, q, date, from, to, now, hallID, bookingID)
}

func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, hallID, bookingID int64, status model.BookingStatus, now time.Time) error {
	const q = `UPDATE bookings SET status = ?, updated_at = ? WHERE hall_id = ? AND booking_id = ?`
	return execTx(ctx, tx, q, status, now, hallID, bookingID)
}

func (r *BookingRepo) UpdateBalanceTx(ctx context.Context, tx *sql.Tx, hallID, bookingID, balance int64, now time.Time) error {
	const q = `UPDATE bookings SET balance = ?, updated_at = ? WHERE hall_id = ? AND booking_id = ?`
	return execTx(ctx, tx, q, balance, now, hallID, bookingID)
}

// execTx runs a write against a row the caller already holds locked, so
// the affected-row count carries no information: MySQL reports zero when
// the new values equal the old ones.
func execTx(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
