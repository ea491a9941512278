package model

import "time"

// Cancellation is written once per booking, when it is cancelled.
type Cancellation struct {
	ID           int64     `json:"id"`
	HallID       int64     `json:"hall_id"`
	BookingID    int64     `json:"booking_id"`
	UserID       string    `json:"user_id"`
	Reason       string    `json:"reason"`
	AdvancePaid  int64     `json:"advance_paid"`
	TotalPaid    int64     `json:"total_paid"`
	CancelCharge int64     `json:"cancel_charge"`
	Refund       int64     `json:"refund"`
	CreatedAt    time.Time `json:"created_at"`
}

type Expense struct {
	ID        int64     `json:"id"`
	HallID    int64     `json:"hall_id"`
	Reason    string    `json:"reason"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
