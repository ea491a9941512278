package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/clock"
	"github.com/iliyamo/marriage-hall-ledger/internal/database"
	"github.com/iliyamo/marriage-hall-ledger/internal/ledger"
	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
	"github.com/iliyamo/marriage-hall-ledger/internal/queue"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
	"github.com/iliyamo/marriage-hall-ledger/internal/validation"
)

const defaultBalanceReason = "balance payment"

// BookingService owns every write to bookings, billings, charges,
// cancellations and the expense rows cancellations produce.
type BookingService struct {
	tx     *database.TxRunner
	repos  Repos
	events EventPublisher
	clock  clock.Clock
	log    logging.Logger
}

func NewBookingService(tx *database.TxRunner, repos Repos, events EventPublisher, clk clock.Clock, log logging.Logger) *BookingService {
	return &BookingService{tx: tx, repos: repos, events: events, clock: clk, log: log}
}

type CreateBookingInput struct {
	HallID         int64     `json:"-" validate:"gt=0"`
	UserID         string    `json:"-" validate:"required"`
	FunctionDate   time.Time `json:"function_date" validate:"required"`
	From           time.Time `json:"alloted_datetime_from" validate:"required"`
	To             time.Time `json:"alloted_datetime_to" validate:"required,gtfield=From"`
	Name           string    `json:"name" validate:"required,max=191"`
	Phone          string    `json:"phone" validate:"required,max=32"`
	Address        string    `json:"address" validate:"max=512"`
	AlternatePhone []string  `json:"alternate_phone" validate:"max=5,dive,max=32"`
	Email          string    `json:"email" validate:"omitempty,email,max=191"`
	Rent           int64     `json:"rent" validate:"gte=0"`
	Advance        int64     `json:"advance" validate:"gte=0,ltefield=Rent"`
	EventType      string    `json:"event_type" validate:"required,max=64"`
	TamilDate      *string   `json:"tamil_date" validate:"omitempty,max=32"`
	TamilMonth     *string   `json:"tamil_month" validate:"omitempty,max=32"`
}

type BookingResult struct {
	Booking *model.Booking `json:"booking"`
	Billing *model.Billing `json:"billing"`
}

// CreateBooking allocates the next booking id of the hall, checks the slot
// against every booked or billed booking on the same date and seeds the
// billing row with the advance.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (res *BookingResult, err error) {
	defer func() { err = finish(s.log, "create_booking", err) }()

	if err := validation.Struct(in); err != nil {
		return nil, invalid(err)
	}
	if err := s.repos.Halls.Exists(ctx, in.HallID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	b := &model.Booking{
		HallID:         in.HallID,
		UserID:         in.UserID,
		FunctionDate:   DateOnly(in.FunctionDate),
		From:           in.From.UTC(),
		To:             in.To.UTC(),
		Name:           in.Name,
		Phone:          in.Phone,
		Address:        in.Address,
		AlternatePhone: in.AlternatePhone,
		Email:          in.Email,
		Status:         model.BookingBooked,
		Rent:           in.Rent,
		Advance:        in.Advance,
		Balance:        ledger.InitialBalance(in.Rent, in.Advance),
		EventType:      in.EventType,
		TamilDate:      in.TamilDate,
		TamilMonth:     in.TamilMonth,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	reason, total := ledger.SeedBilling(in.Advance)
	bill := &model.Billing{HallID: in.HallID, UserID: in.UserID, Reason: reason, Total: total, UpdatedAt: now}

	err = s.tx.Run(ctx, func(tx *sql.Tx) error {
		if _, err := s.repos.Halls.LockTx(ctx, tx, in.HallID); err != nil {
			return err
		}
		n, err := s.repos.Bookings.CountOverlapsTx(ctx, tx, b.HallID, b.FunctionDate, b.From, b.To, 0)
		if err != nil {
			return err
		}
		if n > 0 {
			return conflictf("the hall is already booked for part of this time")
		}
		if err := s.checkPeakRent(ctx, tx, b.HallID, b.FunctionDate, b.Rent); err != nil {
			return err
		}
		id, err := s.repos.Bookings.NextIDTx(ctx, tx, b.HallID)
		if err != nil {
			return err
		}
		b.BookingID = id
		bill.BookingID = id
		if err := s.repos.Bookings.CreateTx(ctx, tx, b); err != nil {
			return err
		}
		return s.repos.Billings.UpsertTx(ctx, tx, bill)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logging.Fields{"hall_id": b.HallID, "booking_id": b.BookingID}).Info("booking created")
	emit(ctx, s.events, s.log, queue.LedgerEvent{
		Type:         queue.EventBookingCreated,
		HallID:       b.HallID,
		BookingID:    b.BookingID,
		UserID:       b.UserID,
		FunctionDate: b.FunctionDate.Format(time.DateOnly),
		Amount:       b.Advance,
		OccurredAt:   now,
	})
	return &BookingResult{Booking: b, Billing: bill}, nil
}

type UpdateTimeInput struct {
	HallID       int64     `json:"-" validate:"gt=0"`
	BookingID    int64     `json:"-" validate:"gt=0"`
	FunctionDate time.Time `json:"function_date" validate:"required"`
	From         time.Time `json:"alloted_datetime_from" validate:"required"`
	To           time.Time `json:"alloted_datetime_to" validate:"required,gtfield=From"`
}

// UpdateBookingTime moves a live booking to another date or window, subject
// to the same overlap rule as creation.
func (s *BookingService) UpdateBookingTime(ctx context.Context, in UpdateTimeInput) (b *model.Booking, err error) {
	defer func() { err = finish(s.log, "update_booking_time", err) }()

	if err := validation.Struct(in); err != nil {
		return nil, invalid(err)
	}
	if err := s.repos.Halls.Exists(ctx, in.HallID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	date, from, to := DateOnly(in.FunctionDate), in.From.UTC(), in.To.UTC()
	err = s.tx.Run(ctx, func(tx *sql.Tx) error {
		if _, err := s.repos.Halls.LockTx(ctx, tx, in.HallID); err != nil {
			return err
		}
		cur, err := s.repos.Bookings.GetForUpdateTx(ctx, tx, in.HallID, in.BookingID)
		if err != nil {
			return err
		}
		if cur.Status == model.BookingCancelled {
			return conflictf("booking %d is cancelled", in.BookingID)
		}
		n, err := s.repos.Bookings.CountOverlapsTx(ctx, tx, in.HallID, date, from, to, in.BookingID)
		if err != nil {
			return err
		}
		if n > 0 {
			return conflictf("the hall is already booked for part of this time")
		}
		if err := s.checkPeakRent(ctx, tx, in.HallID, date, cur.Rent); err != nil {
			return err
		}
		if err := s.repos.Bookings.UpdateWindowTx(ctx, tx, in.HallID, in.BookingID, date, from, to, now); err != nil {
			return err
		}
		cur.FunctionDate, cur.From, cur.To, cur.UpdatedAt = date, from, to, now
		b = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logging.Fields{"hall_id": in.HallID, "booking_id": in.BookingID}).Info("booking rescheduled")
	return b, nil
}

// checkPeakRent refuses a booking on a peak date unless its rent meets the
// date's override.
func (s *BookingService) checkPeakRent(ctx context.Context, tx *sql.Tx, hallID int64, date time.Time, rent int64) error {
	peak, err := s.repos.PeakHours.GetByDateTx(ctx, tx, hallID, date)
	if errors.Is(err, repository.ErrPeakHourNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rent < peak.Rent {
		return conflictf("%s is a peak date (%s): rent must be at least %d", date.Format(time.DateOnly), peak.Reason, peak.Rent)
	}
	return nil
}

type ChargeItem struct {
	Reason string `json:"reason" validate:"required,max=191,ne=advance"`
	Amount int64  `json:"amount" validate:"gt=0"`
}

type AddChargesInput struct {
	HallID    int64        `json:"-" validate:"gt=0"`
	BookingID int64        `json:"-" validate:"gt=0"`
	UserID    string       `json:"-" validate:"required"`
	Charges   []ChargeItem `json:"charges" validate:"required,min=1,max=50,dive"`
}

type ChargeResult struct {
	Booking *model.Booking `json:"booking"`
	Billing *model.Billing `json:"billing"`
	Charges []model.Charge `json:"charges"`
}

// AddCharges records extra services against a booking, rebuilds its billing
// from the full charge journal and marks it billed.
func (s *BookingService) AddCharges(ctx context.Context, in AddChargesInput) (res *ChargeResult, err error) {
	defer func() { err = finish(s.log, "add_charges", err) }()

	if err := validation.Struct(in); err != nil {
		return nil, invalid(err)
	}
	if err := s.repos.Halls.Exists(ctx, in.HallID); err != nil {
		return nil, err
	}

	items := make([]model.Charge, 0, len(in.Charges))
	for _, c := range in.Charges {
		items = append(items, model.Charge{Reason: c.Reason, Amount: c.Amount})
	}
	now := s.clock.Now()
	err = s.tx.Run(ctx, func(tx *sql.Tx) error {
		b, bill, all, err := s.appendCharges(ctx, tx, in.HallID, in.BookingID, in.UserID, items, now)
		if err != nil {
			return err
		}
		if err := s.repos.Bookings.UpdateStatusTx(ctx, tx, in.HallID, in.BookingID, model.BookingBilled, now); err != nil {
			return err
		}
		b.Status, b.UpdatedAt = model.BookingBilled, now
		res = &ChargeResult{Booking: b, Billing: bill, Charges: all}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logging.Fields{"hall_id": in.HallID, "booking_id": in.BookingID, "total": res.Billing.Total}).Info("charges added")
	return res, nil
}

type BalancePaymentInput struct {
	HallID    int64  `json:"-" validate:"gt=0"`
	BookingID int64  `json:"-" validate:"gt=0"`
	UserID    string `json:"-" validate:"required"`
	Amount    int64  `json:"amount" validate:"gt=0"`
	Reason    string `json:"reason" validate:"omitempty,max=191,ne=advance"`
}

type BalanceResult struct {
	BookingID int64          `json:"booking_id"`
	Balance   int64          `json:"balance"`
	Billing   *model.Billing `json:"billing"`
}

// AddBalancePayment records money received against the outstanding rent.
// The balance is floored at zero; overpayment still shows in the billing
// total.
func (s *BookingService) AddBalancePayment(ctx context.Context, in BalancePaymentInput) (res *BalanceResult, err error) {
	defer func() { err = finish(s.log, "add_balance_payment", err) }()

	if err := validation.Struct(in); err != nil {
		return nil, invalid(err)
	}
	if err := s.repos.Halls.Exists(ctx, in.HallID); err != nil {
		return nil, err
	}
	reason := in.Reason
	if reason == "" {
		reason = defaultBalanceReason
	}

	now := s.clock.Now()
	err = s.tx.Run(ctx, func(tx *sql.Tx) error {
		b, bill, _, err := s.appendCharges(ctx, tx, in.HallID, in.BookingID, in.UserID,
			[]model.Charge{{Reason: reason, Amount: in.Amount}}, now)
		if err != nil {
			return err
		}
		balance := ledger.ApplyPayment(b.Balance, in.Amount)
		if err := s.repos.Bookings.UpdateBalanceTx(ctx, tx, in.HallID, in.BookingID, balance, now); err != nil {
			return err
		}
		res = &BalanceResult{BookingID: in.BookingID, Balance: balance, Billing: bill}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logging.Fields{"hall_id": in.HallID, "booking_id": in.BookingID, "balance": res.Balance}).Info("balance payment recorded")
	return res, nil
}

// appendCharges locks the booking, appends items to its charge journal and
// rewrites the billing row from the whole journal.
func (s *BookingService) appendCharges(ctx context.Context, tx *sql.Tx, hallID, bookingID int64, userID string, items []model.Charge, now time.Time) (*model.Booking, *model.Billing, []model.Charge, error) {
	b, err := s.repos.Bookings.GetForUpdateTx(ctx, tx, hallID, bookingID)
	if err != nil {
		return nil, nil, nil, err
	}
	if b.Status == model.BookingCancelled {
		return nil, nil, nil, conflictf("booking %d is cancelled", bookingID)
	}
	if err := s.repos.Charges.CreateBulkTx(ctx, tx, hallID, bookingID, items, now); err != nil {
		return nil, nil, nil, err
	}
	all, err := s.repos.Charges.ListByBookingTx(ctx, tx, hallID, bookingID)
	if err != nil {
		return nil, nil, nil, err
	}
	reason, total := ledger.ComposeBilling(b.Advance, all)
	bill := &model.Billing{HallID: hallID, UserID: userID, BookingID: bookingID, Reason: reason, Total: total, UpdatedAt: now}
	if err := s.repos.Billings.UpsertTx(ctx, tx, bill); err != nil {
		return nil, nil, nil, err
	}
	return b, bill, all, nil
}

type CancelInput struct {
	HallID       int64  `json:"-" validate:"gt=0"`
	BookingID    int64  `json:"booking_id" validate:"gt=0"`
	UserID       string `json:"-" validate:"required"`
	Reason       string `json:"reason" validate:"required,max=512"`
	CancelCharge int64  `json:"cancel_charge" validate:"gte=0"`
}

type CancelResult struct {
	Booking      *model.Booking      `json:"booking"`
	Cancellation *model.Cancellation `json:"cancellation"`
	Expense      *model.Expense      `json:"expense"`
}

// CancelBooking cancels a booked or billed booking.  The status change, the
// cancellation row and the refund expense commit together or not at all.
func (s *BookingService) CancelBooking(ctx context.Context, in CancelInput) (res *CancelResult, err error) {
	defer func() { err = finish(s.log, "cancel_booking", err) }()

	if err := validation.Struct(in); err != nil {
		return nil, invalid(err)
	}
	if err := s.repos.Halls.Exists(ctx, in.HallID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.tx.Run(ctx, func(tx *sql.Tx) error {
		b, err := s.repos.Bookings.GetForUpdateTx(ctx, tx, in.HallID, in.BookingID)
		if err != nil {
			return err
		}
		if b.Status == model.BookingCancelled {
			return conflictf("booking %d is already cancelled", in.BookingID)
		}
		total, hasBilling, err := s.repos.Billings.TotalTx(ctx, tx, in.HallID, in.BookingID)
		if err != nil {
			return err
		}
		out := ledger.ComputeCancellation(b.Advance, total, hasBilling, in.CancelCharge)

		if err := s.repos.Bookings.UpdateStatusTx(ctx, tx, in.HallID, in.BookingID, model.BookingCancelled, now); err != nil {
			return err
		}
		c := &model.Cancellation{
			HallID:       in.HallID,
			BookingID:    in.BookingID,
			UserID:       in.UserID,
			Reason:       in.Reason,
			AdvancePaid:  out.AdvancePaid,
			TotalPaid:    out.TotalPaid,
			CancelCharge: out.AppliedCharge,
			Refund:       out.Refund,
			CreatedAt:    now,
		}
		if err := s.repos.Cancels.CreateTx(ctx, tx, c); err != nil {
			return err
		}
		e := &model.Expense{
			HallID:    in.HallID,
			Reason:    fmt.Sprintf("Refund for cancelled booking #%d", in.BookingID),
			Amount:    out.Refund,
			CreatedAt: now,
		}
		if err := s.repos.Cancels.CreateExpenseTx(ctx, tx, e); err != nil {
			return err
		}
		b.Status, b.UpdatedAt = model.BookingCancelled, now
		res = &CancelResult{Booking: b, Cancellation: c, Expense: e}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logging.Fields{
		"hall_id": in.HallID, "booking_id": in.BookingID, "refund": res.Cancellation.Refund,
	}).Info("booking cancelled")
	emit(ctx, s.events, s.log, queue.LedgerEvent{
		Type:       queue.EventBookingCancelled,
		HallID:     in.HallID,
		BookingID:  in.BookingID,
		UserID:     in.UserID,
		Amount:     res.Cancellation.CancelCharge,
		Refund:     res.Cancellation.Refund,
		OccurredAt: now,
	})
	return res, nil
}
