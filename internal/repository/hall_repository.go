package repository // repository holds data access logic for domain entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

// HallRepo provides methods to register, read, block and delete halls.
type HallRepo struct {
	db *sql.DB
}

// NewHallRepo constructs a HallRepo with the given DB handle.
func NewHallRepo(db *sql.DB) *HallRepo {
	return &HallRepo{db: db}
}

const hallColumns = `hall_id, name, phone, email, address, logo, is_active, due_date, created_at, updated_at`

func scanHall(s rowScanner) (*model.Hall, error) {
	var (
		h   model.Hall
		due sql.NullTime
	)
	if err := s.Scan(&h.HallID, &h.Name, &h.Phone, &h.Email, &h.Address, &h.Logo,
		&h.IsActive, &due, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	h.DueDate = timePtr(due)
	return &h, nil
}

// CreateTx inserts a hall row.  The caller supplies hall_id.
func (r *HallRepo) CreateTx(ctx context.Context, tx *sql.Tx, h *model.Hall) error {
	const q = `INSERT INTO halls (hall_id, name, phone, email, address, logo, is_active, due_date, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, h.HallID, h.Name, h.Phone, h.Email, h.Address, h.Logo,
		h.IsActive, h.DueDate, h.CreatedAt, h.UpdatedAt)
	return err
}

// GetByID retrieves a hall.  It returns ErrHallNotFound when no row is found.
func (r *HallRepo) GetByID(ctx context.Context, hallID int64) (*model.Hall, error) {
	q := `SELECT ` + hallColumns + ` FROM halls WHERE hall_id = ?`
	h, err := scanHall(r.db.QueryRowContext(ctx, q, hallID))
	if err != nil {
		return nil, notFound(err, ErrHallNotFound)
	}
	return h, nil
}

// Exists returns ErrHallNotFound unless the hall row is present.
func (r *HallRepo) Exists(ctx context.Context, hallID int64) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM halls WHERE hall_id = ?`, hallID).Scan(&one)
	return notFound(err, ErrHallNotFound)
}

// LockTx takes the hall row lock and returns the current due date.  Every
// ledger write for a hall goes through this lock, which serialises booking id
// allocation, overlap checks and renewals per tenant.
func (r *HallRepo) LockTx(ctx context.Context, tx *sql.Tx, hallID int64) (*time.Time, error) {
	var due sql.NullTime
	err := tx.QueryRowContext(ctx, `SELECT due_date FROM halls WHERE hall_id = ? FOR UPDATE`, hallID).Scan(&due)
	if err != nil {
		return nil, notFound(err, ErrHallNotFound)
	}
	return timePtr(due), nil
}

// SetDueDateTx moves the subscription due date.  The caller holds the hall
// lock from LockTx.
func (r *HallRepo) SetDueDateTx(ctx context.Context, tx *sql.Tx, hallID int64, due time.Time) error {
	return execTx(ctx, tx, `UPDATE halls SET due_date = ? WHERE hall_id = ?`, due, hallID)
}

// BlockTx deactivates a locked hall and records the reason.  Blocking an
// already blocked hall replaces the reason.
func (r *HallRepo) BlockTx(ctx context.Context, tx *sql.Tx, hallID int64, reason string, at time.Time) error {
	if err := execTx(ctx, tx, `UPDATE halls SET is_active = 0 WHERE hall_id = ?`, hallID); err != nil {
		return err
	}
	const q = `INSERT INTO hall_blocks (hall_id, reason, created_at) VALUES (?, ?, ?)
	           ON DUPLICATE KEY UPDATE reason = VALUES(reason), created_at = VALUES(created_at)`
	return execTx(ctx, tx, q, hallID, reason, at)
}

// UnblockTx reactivates a hall and forgets the block reason.
func (r *HallRepo) UnblockTx(ctx context.Context, tx *sql.Tx, hallID int64) error {
	if err := execTx(ctx, tx, `UPDATE halls SET is_active = 1 WHERE hall_id = ?`, hallID); err != nil {
		return err
	}
	return execTx(ctx, tx, `DELETE FROM hall_blocks WHERE hall_id = ?`, hallID)
}

// BlockReason returns the stored reason, or "" if the hall is not blocked.
func (r *HallRepo) BlockReason(ctx context.Context, hallID int64) (string, error) {
	var reason string
	err := r.db.QueryRowContext(ctx, `SELECT reason FROM hall_blocks WHERE hall_id = ?`, hallID).Scan(&reason)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return reason, err
}

// DeleteCascadeTx removes every row of the hall following CascadePlan and
// returns the number of rows removed per table.
func (r *HallRepo) DeleteCascadeTx(ctx context.Context, tx *sql.Tx, hallID int64) (map[string]int64, error) {
	removed := make(map[string]int64, len(cascadePlan))
	for _, table := range cascadePlan {
		res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE hall_id = ?", table), hallID)
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		removed[table] = n
	}
	if removed["halls"] == 0 {
		return nil, ErrHallNotFound
	}
	return removed, nil
}
