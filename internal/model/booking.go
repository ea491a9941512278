package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingBooked    BookingStatus = "booked"
	BookingBilled    BookingStatus = "billed"
	BookingCancelled BookingStatus = "cancelled"
)

// Occupies reports whether a booking in this state holds its time slot.
func (s BookingStatus) Occupies() bool {
	return s == BookingBooked || s == BookingBilled
}

// Booking is a reservation of a hall for a time window on a function date.
// Money fields are paise.  Balance is what the customer still owes on the
// rent and never goes below zero.
type Booking struct {
	HallID         int64         `json:"hall_id"`
	BookingID      int64         `json:"booking_id"`
	UserID         string        `json:"user_id"`
	FunctionDate   time.Time     `json:"function_date"`
	From           time.Time     `json:"alloted_datetime_from"`
	To             time.Time     `json:"alloted_datetime_to"`
	Name           string        `json:"name"`
	Phone          string        `json:"phone"`
	Address        string        `json:"address"`
	AlternatePhone []string      `json:"alternate_phone"`
	Email          string        `json:"email"`
	Status         BookingStatus `json:"status"`
	Rent           int64         `json:"rent"`
	Advance        int64         `json:"advance"`
	Balance        int64         `json:"balance"`
	EventType      string        `json:"event_type"`
	TamilDate      *string       `json:"tamil_date,omitempty"`
	TamilMonth     *string       `json:"tamil_month,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
