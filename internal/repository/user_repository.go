package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// CreateTx inserts a user.  A taken (hall_id, user_id) surfaces as a MySQL
// duplicate-key error for the caller to classify.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *model.User) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO users (hall_id, user_id, password_hash, role, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		u.HallID, normalizeUserID(u.UserID), u.PasswordHash, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	return err
}

// CreateAdminTx inserts the contact profile of a user.
func (r *UserRepo) CreateAdminTx(ctx context.Context, tx *sql.Tx, a *model.Admin) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO admins (hall_id, user_id, name, designation, phone, email) VALUES (?,?,?,?,?,?)",
		a.HallID, normalizeUserID(a.UserID), a.Name, a.Designation, a.Phone, a.Email)
	return err
}

// Get fetches a user of a hall.
func (r *UserRepo) Get(ctx context.Context, hallID int64, userID string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT hall_id,user_id,password_hash,role,is_active,created_at,updated_at FROM users WHERE hall_id=? AND user_id=? LIMIT 1",
		hallID, normalizeUserID(userID)).Scan(&u.HallID, &u.UserID, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, notFound(err, ErrUserNotFound)
}

// GetAdmin fetches the profile attached to a user.
func (r *UserRepo) GetAdmin(ctx context.Context, hallID int64, userID string) (model.Admin, error) {
	var a model.Admin
	err := r.DB.QueryRowContext(ctx,
		"SELECT hall_id,user_id,name,designation,phone,email FROM admins WHERE hall_id=? AND user_id=? LIMIT 1",
		hallID, normalizeUserID(userID)).Scan(&a.HallID, &a.UserID, &a.Name, &a.Designation, &a.Phone, &a.Email)
	return a, notFound(err, ErrUserNotFound)
}

// UpdatePassword replaces the stored hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, hallID int64, userID, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE hall_id=? AND user_id=?",
		hash, hallID, normalizeUserID(userID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func normalizeUserID(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
