package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/queue"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
)

// Repos bundles the repositories shared by services and read handlers.
type Repos struct {
	Halls     *repository.HallRepo
	Users     *repository.UserRepo
	Tokens    *repository.TokenRepo
	Bookings  *repository.BookingRepo
	Billings  *repository.BillingRepo
	Charges   *repository.ChargeRepo
	Cancels   *repository.CancellationRepo
	Payments  *repository.PaymentRepo
	PeakHours *repository.PeakHourRepo
}

func NewRepos(db *sql.DB) Repos {
	return Repos{
		Halls:     repository.NewHallRepo(db),
		Users:     repository.NewUserRepo(db),
		Tokens:    repository.NewTokenRepo(db),
		Bookings:  repository.NewBookingRepo(db),
		Billings:  repository.NewBillingRepo(db),
		Charges:   repository.NewChargeRepo(db),
		Cancels:   repository.NewCancellationRepo(db),
		Payments:  repository.NewPaymentRepo(db),
		PeakHours: repository.NewPeakHourRepo(db),
	}
}

// EventPublisher receives ledger events after commit.  Implementations must
// not block.
type EventPublisher interface {
	PublishLedger(ctx context.Context, ev queue.LedgerEvent) error
}

func emit(ctx context.Context, events EventPublisher, log logging.Logger, ev queue.LedgerEvent) {
	if events == nil {
		return
	}
	if err := events.PublishLedger(context.WithoutCancel(ctx), ev); err != nil {
		log.WithError(err).WithField("event", ev.Type).Warn("ledger event not published")
	}
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
