package ledger

import (
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

// SubscriptionPolicy prices and gates the yearly hall subscription.
type SubscriptionPolicy struct {
	BaseAmount        int64
	GSTBasisPoints    int64
	RenewalWindowDays int
}

// Quote is the price of one subscription period.
type Quote struct {
	BaseAmount int64 `json:"base_amount"`
	GSTAmount  int64 `json:"gst_amount"`
	Total      int64 `json:"total_amount"`
}

// GST rounds base*rate to the nearest paisa, halves away from zero.
func GST(base, basisPoints int64) int64 {
	p := base * basisPoints
	if p < 0 {
		return -((-p + 5000) / 10000)
	}
	return (p + 5000) / 10000
}

func (p SubscriptionPolicy) Quote() Quote {
	return p.QuoteFor(p.BaseAmount)
}

// QuoteFor prices an arbitrary base, used for payments stored before a fee
// change.
func (p SubscriptionPolicy) QuoteFor(base int64) Quote {
	gst := GST(base, p.GSTBasisPoints)
	return Quote{BaseAmount: base, GSTAmount: gst, Total: base + gst}
}

// RenewalAllowed reports whether a new period may be created at now.  A
// hall that has never been billed may always pay; otherwise renewal opens
// RenewalWindowDays before the due date, inclusive, and stays open after it.
func (p SubscriptionPolicy) RenewalAllowed(now time.Time, dueDate *time.Time) bool {
	if dueDate == nil {
		return true
	}
	opens := dueDate.AddDate(0, 0, -p.RenewalWindowDays)
	return !now.Before(opens)
}

// NextPeriod is the period the next payment covers: one year from the due
// date, or from now when there is no due date.
func NextPeriod(now time.Time, dueDate *time.Time) (time.Time, time.Time) {
	start := now
	if dueDate != nil {
		start = *dueDate
	}
	return start, start.AddDate(1, 0, 0)
}

// PeriodsOverlap compares two half-open periods.
func PeriodsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return Overlaps(Window{From: aStart, To: aEnd}, Window{From: bStart, To: bEnd})
}

// CanTransition lists the payment status changes the API accepts.  The
// expiry sweep moves COMPLETED to FAILED on its own and is not gated here.
func CanTransition(from, to model.PaymentStatus) bool {
	switch from {
	case model.PaymentPending:
		return to == model.PaymentCompleted || to == model.PaymentFailed
	case model.PaymentFailed:
		return to == model.PaymentCompleted
	}
	return false
}
