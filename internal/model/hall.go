package model

import "time"

// Hall is the tenant root.  Every ledger row carries its hall_id and is
// removed when the hall is deleted.
//
// Fields:
//
//	HallID   - primary key, chosen at registration.
//	IsActive - false while the hall is blocked; blocked halls cannot log in.
//	DueDate  - end of the paid (or trial) subscription period; nil means
//	           the hall has never been billed.
type Hall struct {
	HallID    int64      `json:"hall_id"`    // halls.hall_id
	Name      string     `json:"name"`       // halls.name
	Phone     string     `json:"phone"`      // halls.phone
	Email     string     `json:"email"`      // halls.email
	Address   string     `json:"address"`    // halls.address
	Logo      []byte     `json:"-"`          // halls.logo (nullable blob)
	IsActive  bool       `json:"is_active"`  // halls.is_active
	DueDate   *time.Time `json:"due_date"`   // halls.due_date (nullable)
	CreatedAt time.Time  `json:"created_at"` // halls.created_at
	UpdatedAt time.Time  `json:"updated_at"` // halls.updated_at
}

// HallBlock records why a hall was blocked.
type HallBlock struct {
	HallID    int64     `json:"hall_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscriptionLapsed reports whether the hall's paid period ended before now.
func (h Hall) SubscriptionLapsed(now time.Time) bool {
	return h.DueDate != nil && now.After(*h.DueDate)
}
