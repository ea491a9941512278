package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

type PeakHourRepo struct {
	db *sql.DB
}

func NewPeakHourRepo(db *sql.DB) *PeakHourRepo { return &PeakHourRepo{db: db} }

// Upsert sets the override rent for a date.
func (r *PeakHourRepo) Upsert(ctx context.Context, p *model.PeakHour) error {
	const q = `INSERT INTO peak_hours (hall_id, date, rent, reason) VALUES (?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE rent = VALUES(rent), reason = VALUES(reason)`
	_, err := r.db.ExecContext(ctx, q, p.HallID, p.Date, p.Rent, p.Reason)
	return err
}

func (r *PeakHourRepo) GetByDate(ctx context.Context, hallID int64, date time.Time) (*model.PeakHour, error) {
	return getPeakHour(ctx, r.db, hallID, date)
}

// GetByDateTx reads the date's override inside the booking transaction.
func (r *PeakHourRepo) GetByDateTx(ctx context.Context, tx *sql.Tx, hallID int64, date time.Time) (*model.PeakHour, error) {
	return getPeakHour(ctx, tx, hallID, date)
}

func getPeakHour(ctx context.Context, q querier, hallID int64, date time.Time) (*model.PeakHour, error) {
	var p model.PeakHour
	err := q.QueryRowContext(ctx,
		`SELECT id, hall_id, date, rent, reason FROM peak_hours WHERE hall_id = ? AND date = ?`, hallID, date).
		Scan(&p.ID, &p.HallID, &p.Date, &p.Rent, &p.Reason)
	if err != nil {
		return nil, notFound(err, ErrPeakHourNotFound)
	}
	return &p, nil
}

// ListBetween returns peak dates in [from, to).  Zero times leave that end
// open.
func (r *PeakHourRepo) ListBetween(ctx context.Context, hallID int64, from, to time.Time) ([]model.PeakHour, error) {
	q := `SELECT id, hall_id, date, rent, reason FROM peak_hours WHERE hall_id = ?`
	args := []any{hallID}
	if !from.IsZero() {
		q += ` AND date >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		q += ` AND date < ?`
		args = append(args, to)
	}
	q += ` ORDER BY date`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PeakHour{}
	for rows.Next() {
		var p model.PeakHour
		if err := rows.Scan(&p.ID, &p.HallID, &p.Date, &p.Rent, &p.Reason); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
