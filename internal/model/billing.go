package model

import "time"

// Billing is the per-booking ledger summary.  Reason maps a charge label to
// its amount and always carries the "advance" key; Total is the advance plus
// every charge recorded against the booking.
type Billing struct {
	ID        int64            `json:"id"`
	HallID    int64            `json:"hall_id"`
	UserID    string           `json:"user_id"`
	BookingID int64            `json:"booking_id"`
	Reason    map[string]int64 `json:"reason"`
	Total     int64            `json:"total"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Charge is one append-only line item: an extra service or a balance
// payment.
type Charge struct {
	ID        int64     `json:"id"`
	HallID    int64     `json:"hall_id"`
	BookingID int64     `json:"booking_id"`
	Reason    string    `json:"reason"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
