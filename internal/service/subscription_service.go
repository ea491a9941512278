package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/clock"
	"github.com/iliyamo/marriage-hall-ledger/internal/database"
	"github.com/iliyamo/marriage-hall-ledger/internal/ledger"
	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/metrics"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
	"github.com/iliyamo/marriage-hall-ledger/internal/queue"
	"github.com/iliyamo/marriage-hall-ledger/internal/validation"
)

// SubscriptionService runs the yearly renewal engine: it prices periods,
// gates renewals on the hall due date and moves the due date when a payment
// completes.
type SubscriptionService struct {
	tx     *database.TxRunner
	repos  Repos
	policy ledger.SubscriptionPolicy
	events EventPublisher
	clock  clock.Clock
	log    logging.Logger
}

func NewSubscriptionService(tx *database.TxRunner, repos Repos, policy ledger.SubscriptionPolicy, events EventPublisher, clk clock.Clock, log logging.Logger) *SubscriptionService {
	return &SubscriptionService{tx: tx, repos: repos, policy: policy, events: events, clock: clk, log: log}
}

// PaymentView is a payment with its price breakdown and whether the hall
// may start a new period.
type PaymentView struct {
	model.AppPayment
	GSTAmount   int64 `json:"gst_amount"`
	TotalAmount int64 `json:"total_amount"`
	CanRenew    bool  `json:"can_renew"`
}

func viewOf(p *model.AppPayment, canRenew bool) PaymentView {
	return PaymentView{
		AppPayment:  *p,
		GSTAmount:   p.Amount - p.BaseAmount,
		TotalAmount: p.Amount,
		CanRenew:    canRenew,
	}
}

type CreatePaymentInput struct {
	HallID        int64   `json:"-" validate:"gt=0"`
	TransactionID *string `json:"transaction_id" validate:"omitempty,max=191"`
}

// CreateYearlyPayment opens a PENDING payment for the hall's next period.
func (s *SubscriptionService) CreateYearlyPayment(ctx context.Context, in CreatePaymentInput) (v *PaymentView, err error) {
	defer func() { err = finish(s.log, "create_yearly_payment", err) }()

	if err := validation.Struct(in); err != nil {
		return nil, invalid(err)
	}

	now := s.clock.Now()
	quote := s.policy.Quote()
	var p *model.AppPayment
	err = s.tx.Run(ctx, func(tx *sql.Tx) error {
		due, err := s.repos.Halls.LockTx(ctx, tx, in.HallID)
		if err != nil {
			return err
		}
		if !s.policy.RenewalAllowed(now, due) {
			opens := due.AddDate(0, 0, -s.policy.RenewalWindowDays)
			return conflictf("renewal opens on %s", opens.Format(time.DateOnly))
		}
		start, end := ledger.NextPeriod(now, due)
		existing, err := s.repos.Payments.FindOverlappingTx(ctx, tx, in.HallID, 0, start, end)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflictf("payment %d already covers this period", existing.ID)
		}
		p = &model.AppPayment{
			HallID:        in.HallID,
			BaseAmount:    quote.BaseAmount,
			Amount:        quote.Total,
			TransactionID: in.TransactionID,
			PeriodStart:   start,
			PeriodEnd:     end,
			Status:        model.PaymentPending,
			CreatedAt:     now,
		}
		return s.repos.Payments.CreateTx(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logging.Fields{
		"hall_id": in.HallID, "payment_id": p.ID, "period_end": p.PeriodEnd.Format(time.DateOnly),
	}).Info("yearly payment created")
	out := viewOf(p, true)
	return &out, nil
}

type UpdatePaymentInput struct {
	PaymentID     int64               `json:"-" validate:"gt=0"`
	Status        model.PaymentStatus `json:"status" validate:"required,oneof=COMPLETED FAILED"`
	TransactionID *string             `json:"transaction_id" validate:"omitempty,max=191"`
}

// UpdatePaymentStatus applies a gateway result.  Completing a payment moves
// the hall due date to the end of the paid period in the same transaction.
func (s *SubscriptionService) UpdatePaymentStatus(ctx context.Context, in UpdatePaymentInput) (v *PaymentView, err error) {
	defer func() { err = finish(s.log, "update_payment_status", err) }()

	if err := validation.Struct(in); err != nil {
		return nil, invalid(err)
	}
	// The hall lock is taken before the payment lock, as in every other
	// renewal path, so the hall id is read first without a lock.
	cur, err := s.repos.Payments.GetByID(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var p *model.AppPayment
	err = s.tx.Run(ctx, func(tx *sql.Tx) error {
		due, err := s.repos.Halls.LockTx(ctx, tx, cur.HallID)
		if err != nil {
			return err
		}
		p, err = s.repos.Payments.GetForUpdateTx(ctx, tx, in.PaymentID)
		if err != nil {
			return err
		}
		if !ledger.CanTransition(p.Status, in.Status) {
			return conflictf("payment %d cannot move from %s to %s", p.ID, p.Status, in.Status)
		}
		var paidAt *time.Time
		if in.Status == model.PaymentCompleted {
			if err := s.checkCompletable(ctx, tx, p, now); err != nil {
				return err
			}
			paidAt = &now
		}
		if err := s.repos.Payments.UpdateStatusTx(ctx, tx, p.ID, in.Status, in.TransactionID, paidAt); err != nil {
			return err
		}
		p.Status = in.Status
		if in.TransactionID != nil {
			p.TransactionID = in.TransactionID
		}
		if paidAt == nil {
			return nil
		}
		p.PaidAt = paidAt
		next := p.PeriodEnd
		if due != nil && due.After(next) {
			next = *due
		}
		return s.repos.Halls.SetDueDateTx(ctx, tx, p.HallID, next)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logging.Fields{
		"hall_id": p.HallID, "payment_id": p.ID, "status": p.Status,
	}).Info("payment status updated")
	if p.Status == model.PaymentCompleted {
		emit(ctx, s.events, s.log, queue.LedgerEvent{
			Type:       queue.EventPaymentCompleted,
			HallID:     p.HallID,
			PaymentID:  p.ID,
			Amount:     p.Amount,
			OccurredAt: now,
		})
	}
	out := viewOf(p, p.Status != model.PaymentCompleted)
	return &out, nil
}

// checkCompletable refuses to complete a payment whose period has already
// ended, and re-runs the period overlap check for a FAILED payment, since
// failed rows do not hold their period and another payment may have taken it.
func (s *SubscriptionService) checkCompletable(ctx context.Context, tx *sql.Tx, p *model.AppPayment, now time.Time) error {
	if !p.PeriodEnd.After(now) {
		return conflictf("payment %d covers a period that ended on %s", p.ID, p.PeriodEnd.Format(time.DateOnly))
	}
	if p.Status != model.PaymentFailed {
		return nil
	}
	other, err := s.repos.Payments.FindOverlappingTx(ctx, tx, p.HallID, p.ID, p.PeriodStart, p.PeriodEnd)
	if err != nil {
		return err
	}
	if other != nil {
		return conflictf("payment %d already covers this period", other.ID)
	}
	return nil
}

// ExpireOldPayments fails every COMPLETED payment whose period has ended.
// It is safe to run any number of times.
func (s *SubscriptionService) ExpireOldPayments(ctx context.Context) (n int64, err error) {
	defer func() { err = finish(s.log, "expire_payments", err) }()

	n, err = s.repos.Payments.ExpireCompleted(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.PaymentsExpired(n)
		s.log.WithField("count", n).Info("expired completed payments")
	}
	return n, nil
}

// GetCurrentPayment returns the open (PENDING or FAILED) payment of the
// hall, or a NONE projection of the next period when there is none.
func (s *SubscriptionService) GetCurrentPayment(ctx context.Context, hallID int64) (v *PaymentView, err error) {
	defer func() { err = finish(s.log, "get_current_payment", err) }()

	h, err := s.repos.Halls.GetByID(ctx, hallID)
	if err != nil {
		return nil, err
	}
	open, err := s.repos.Payments.LatestOpen(ctx, hallID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		out := viewOf(open, true)
		return &out, nil
	}

	now := s.clock.Now()
	quote := s.policy.Quote()
	start, end := ledger.NextPeriod(now, h.DueDate)
	return &PaymentView{
		AppPayment: model.AppPayment{
			HallID:      hallID,
			BaseAmount:  quote.BaseAmount,
			Amount:      quote.Total,
			PeriodStart: start,
			PeriodEnd:   end,
			Status:      model.PaymentNone,
		},
		GSTAmount:   quote.GSTAmount,
		TotalAmount: quote.Total,
		CanRenew:    s.policy.RenewalAllowed(now, h.DueDate),
	}, nil
}

// GetPaymentHistory lists every payment of the hall, newest period first.
func (s *SubscriptionService) GetPaymentHistory(ctx context.Context, hallID int64) (out []PaymentView, err error) {
	defer func() { err = finish(s.log, "get_payment_history", err) }()

	if err := s.repos.Halls.Exists(ctx, hallID); err != nil {
		return nil, err
	}
	payments, err := s.repos.Payments.ListByHall(ctx, hallID)
	if err != nil {
		return nil, err
	}
	out = make([]PaymentView, 0, len(payments))
	for _, p := range payments {
		out = append(out, viewOf(p, false))
	}
	return out, nil
}
