package model

import "time"

// PaymentStatus of a yearly subscription payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	// PaymentNone is never stored; it marks a synthesized projection of the
	// next period when the hall has no open payment.
	PaymentNone PaymentStatus = "NONE"
)

// AppPayment is one yearly subscription period for a hall.  BaseAmount is
// the fee before GST; Amount is what was charged (base + GST).
type AppPayment struct {
	ID            int64         `json:"id"`
	HallID        int64         `json:"hall_id"`
	BaseAmount    int64         `json:"base_amount"`
	Amount        int64         `json:"amount"`
	TransactionID *string       `json:"transaction_id"`
	PeriodStart   time.Time     `json:"period_start"`
	PeriodEnd     time.Time     `json:"period_end"`
	Status        PaymentStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	PaidAt        *time.Time    `json:"paid_at"`
}
