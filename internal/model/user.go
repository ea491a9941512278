package model

import "time"

// Roles a hall account can hold.
const (
	RoleOwner = "owner"
	RoleStaff = "staff"
)

// User is a login account scoped to one hall; (HallID, UserID) is the key.
type User struct {
	HallID       int64     // users.hall_id
	UserID       string    // users.user_id
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Admin is the contact profile attached to a user.
type Admin struct {
	HallID      int64  `json:"hall_id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Designation string `json:"designation"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}
