package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marriage-hall-ledger/internal/clock"
	"github.com/iliyamo/marriage-hall-ledger/internal/database"
	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
	"github.com/iliyamo/marriage-hall-ledger/internal/queue"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var functionDay = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

type fakeEvents struct {
	mu  sync.Mutex
	got []queue.LedgerEvent
}

func (f *fakeEvents) PublishLedger(_ context.Context, ev queue.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, ev)
	return nil
}

func (f *fakeEvents) events() []queue.LedgerEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.LedgerEvent(nil), f.got...)
}

type fixture struct {
	mock   sqlmock.Sqlmock
	tx     *database.TxRunner
	repos  Repos
	clock  *clock.FakeClock
	events *fakeEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &fixture{
		mock:   mock,
		tx:     database.NewTxRunner(db, logging.Discard(), 0),
		repos:  NewRepos(db),
		clock:  clock.NewFakeClock(t0),
		events: &fakeEvents{},
	}
}

func (f *fixture) expectHallExists(hallID int64) {
	f.mock.ExpectQuery("SELECT 1 FROM halls").WithArgs(hallID).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
}

func (f *fixture) expectHallMissing(hallID int64) {
	f.mock.ExpectQuery("SELECT 1 FROM halls").WithArgs(hallID).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
}

func (f *fixture) expectHallLock(hallID int64, due *time.Time) {
	rows := sqlmock.NewRows([]string{"due_date"})
	if due == nil {
		rows.AddRow(nil)
	} else {
		rows.AddRow(*due)
	}
	f.mock.ExpectQuery("SELECT due_date FROM halls").WithArgs(hallID).WillReturnRows(rows)
}

var bookingCols = []string{
	"hall_id", "booking_id", "user_id", "function_date", "alloted_datetime_from", "alloted_datetime_to",
	"name", "phone", "address", "alternate_phone", "email", "status", "rent", "advance", "balance",
	"event_type", "tamil_date", "tamil_month", "created_at", "updated_at",
}

type bookingState struct {
	id                     int64
	status                 model.BookingStatus
	rent, advance, balance int64
}

func bookingRows(b bookingState) *sqlmock.Rows {
	return sqlmock.NewRows(bookingCols).AddRow(
		int64(1), b.id, "staff1", functionDay, functionDay.Add(10*time.Hour), functionDay.Add(14*time.Hour),
		"Ravi", "9000000000", "Chennai", []byte(`[]`), "", string(b.status), b.rent, b.advance, b.balance,
		"wedding", nil, nil, t0, t0)
}

func (f *fixture) expectBookingLock(b bookingState) {
	f.mock.ExpectQuery("FROM bookings WHERE hall_id = \\? AND booking_id = \\? FOR UPDATE").
		WithArgs(int64(1), b.id).
		WillReturnRows(bookingRows(b))
}

var paymentCols = []string{
	"id", "hall_id", "base_amount", "amount", "transaction_id", "period_start", "period_end",
	"status", "created_at", "paid_at",
}

func paymentRows(p model.AppPayment) *sqlmock.Rows {
	var txn, paid any
	if p.TransactionID != nil {
		txn = *p.TransactionID
	}
	if p.PaidAt != nil {
		paid = *p.PaidAt
	}
	return sqlmock.NewRows(paymentCols).AddRow(p.ID, p.HallID, p.BaseAmount, p.Amount, txn,
		p.PeriodStart, p.PeriodEnd, string(p.Status), p.CreatedAt, paid)
}
