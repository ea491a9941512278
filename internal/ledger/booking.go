package ledger

import (
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

// AdvanceReason is the billing reason key holding the advance paid at
// booking time.
const AdvanceReason = "advance"

// Window is a half-open time interval [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) Valid() bool { return w.From.Before(w.To) }

// Overlaps reports whether two half-open windows share any instant.  Windows
// that merely touch (a.To == b.From) do not overlap.
func Overlaps(a, b Window) bool {
	return a.From.Before(b.To) && a.To.After(b.From)
}

// InitialBalance is the rent still owed after the advance.
func InitialBalance(rent, advance int64) int64 {
	return max(0, rent-advance)
}

// ApplyPayment reduces a balance by a payment, flooring at zero.
func ApplyPayment(balance, amount int64) int64 {
	return max(0, balance-amount)
}

// SeedBilling is the billing state of a freshly created booking.
func SeedBilling(advance int64) (map[string]int64, int64) {
	return map[string]int64{AdvanceReason: advance}, advance
}

// ComposeBilling rebuilds the billing reason map and total from the advance
// and every charge recorded for the booking, in insertion order.  A later
// charge with the same reason replaces the earlier map entry; the total
// always counts every charge.
func ComposeBilling(advance int64, charges []model.Charge) (map[string]int64, int64) {
	reason, total := SeedBilling(advance)
	for _, c := range charges {
		reason[c.Reason] = c.Amount
		total += c.Amount
	}
	return reason, total
}

// CancelOutcome is the money side of a cancellation.
type CancelOutcome struct {
	AdvancePaid   int64
	TotalPaid     int64
	AppliedCharge int64
	Refund        int64
}

// ComputeCancellation applies a cancellation charge.  The refund basis is
// the advance; the charge is capped at the basis so the refund never goes
// negative.  billingTotal is recorded as TotalPaid when a billing row
// exists, otherwise the advance stands in for it.
func ComputeCancellation(advance, billingTotal int64, hasBilling bool, charge int64) CancelOutcome {
	basis := max(0, advance)
	applied := min(max(0, charge), basis)
	totalPaid := advance
	if hasBilling {
		totalPaid = billingTotal
	}
	return CancelOutcome{
		AdvancePaid:   advance,
		TotalPaid:     totalPaid,
		AppliedCharge: applied,
		Refund:        max(0, basis-applied),
	}
}
