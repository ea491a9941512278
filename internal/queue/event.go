// Package queue carries ledger events and OTP deliveries over RabbitMQ.
// Publishing is fire-and-forget from the ledger's point of view: a broker
// outage never fails a booking or payment.
package queue

import "time"

// Queue names.
const (
	LedgerQueue = "ledger.events"
	OTPQueue    = "notify.otp"
)

// Ledger event types.
const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
	EventPaymentCompleted = "payment.completed"
)

// LedgerEvent is published after a ledger transaction commits.  It carries
// enough for downstream consumers to log, notify or aggregate without
// querying the primary database.  Amounts are paise.
type LedgerEvent struct {
	Type         string    `json:"type"`
	HallID       int64     `json:"hall_id"`
	BookingID    int64     `json:"booking_id,omitempty"`
	PaymentID    int64     `json:"payment_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	FunctionDate string    `json:"function_date,omitempty"`
	Amount       int64     `json:"amount"`
	Refund       int64     `json:"refund,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// OTPMessage asks the external mailer to deliver a one-time password.
type OTPMessage struct {
	HallID    int64     `json:"hall_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}
