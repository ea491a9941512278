package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
	"github.com/iliyamo/marriage-hall-ledger/internal/queue"
)

func (f *fixture) bookingService() *BookingService {
	return NewBookingService(f.tx, f.repos, f.events, f.clock, logging.Discard())
}

func createInput() CreateBookingInput {
	return CreateBookingInput{
		HallID:       1,
		UserID:       "staff1",
		FunctionDate: functionDay,
		From:         functionDay.Add(10 * time.Hour),
		To:           functionDay.Add(14 * time.Hour),
		Name:         "Ravi",
		Phone:        "9000000000",
		Rent:         50000,
		Advance:      10000,
		EventType:    "wedding",
	}
}

var peakCols = []string{"id", "hall_id", "date", "rent", "reason"}

// expectPeak answers the peak-date lookup; a zero rent means the date has no
// override.
func (f *fixture) expectPeak(day time.Time, rent int64) {
	rows := sqlmock.NewRows(peakCols)
	if rent > 0 {
		rows.AddRow(int64(1), int64(1), day, rent, "muhurtham")
	}
	f.mock.ExpectQuery("FROM peak_hours WHERE hall_id = \\? AND date = \\?").WithArgs(int64(1), day).WillReturnRows(rows)
}

func (f *fixture) expectCreate(nextID int64, insertErr error) {
	f.mock.ExpectBegin()
	f.expectHallLock(1, nil)
	f.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
		WithArgs(int64(1), functionDay, int64(0), functionDay.Add(14*time.Hour), functionDay.Add(10*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	f.expectPeak(functionDay, 0)
	f.mock.ExpectQuery("SELECT COALESCE\\(MAX\\(booking_id\\), 0\\) \\+ 1").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(nextID))
	if insertErr != nil {
		f.mock.ExpectExec("INSERT INTO bookings").WillReturnError(insertErr)
		f.mock.ExpectRollback()
		return
	}
	f.mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO billings").
		WithArgs(int64(1), "staff1", nextID, []byte(`{"advance":10000}`), int64(10000), t0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()
}

func TestCreateBooking(t *testing.T) {
	f := newFixture(t)
	f.expectHallExists(1)
	f.expectCreate(4, nil)

	res, err := f.bookingService().CreateBooking(context.Background(), createInput())
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Booking.BookingID)
	assert.Equal(t, model.BookingBooked, res.Booking.Status)
	assert.Equal(t, int64(40000), res.Booking.Balance)
	assert.Equal(t, map[string]int64{"advance": 10000}, res.Billing.Reason)
	assert.Equal(t, int64(10000), res.Billing.Total)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	evs := f.events.events()
	require.Len(t, evs, 1)
	assert.Equal(t, queue.EventBookingCreated, evs[0].Type)
	assert.Equal(t, "2026-05-10", evs[0].FunctionDate)
}

func TestCreateBookingReplaysAfterDuplicateID(t *testing.T) {
	f := newFixture(t)
	f.expectHallExists(1)
	f.expectCreate(4, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	f.expectCreate(5, nil)

	res, err := f.bookingService().CreateBooking(context.Background(), createInput())
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Booking.BookingID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateBookingRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	f.expectHallExists(1)
	f.mock.ExpectBegin()
	f.expectHallLock(1, nil)
	f.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	f.mock.ExpectRollback()

	_, err := f.bookingService().CreateBooking(context.Background(), createInput())
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, f.events.events())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateBookingOnPeakDate(t *testing.T) {
	t.Run("rent below the override", func(t *testing.T) {
		f := newFixture(t)
		f.expectHallExists(1)
		f.mock.ExpectBegin()
		f.expectHallLock(1, nil)
		f.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
		f.expectPeak(functionDay, 90000)
		f.mock.ExpectRollback()

		_, err := f.bookingService().CreateBooking(context.Background(), createInput())
		assert.ErrorIs(t, err, ErrConflict)
		assert.ErrorContains(t, err, "peak date")
		assert.Empty(t, f.events.events())
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("rent meets the override", func(t *testing.T) {
		f := newFixture(t)
		f.expectHallExists(1)
		f.mock.ExpectBegin()
		f.expectHallLock(1, nil)
		f.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
		f.expectPeak(functionDay, 90000)
		f.mock.ExpectQuery("SELECT COALESCE\\(MAX\\(booking_id\\), 0\\) \\+ 1").
			WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(int64(1)))
		f.mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectExec("INSERT INTO billings").WillReturnResult(sqlmock.NewResult(1, 1))
		f.mock.ExpectCommit()

		in := createInput()
		in.Rent = 90000
		res, err := f.bookingService().CreateBooking(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, int64(80000), res.Booking.Balance)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestCreateBookingValidation(t *testing.T) {
	cases := map[string]func(*CreateBookingInput){
		"window reversed":     func(in *CreateBookingInput) { in.To = in.From.Add(-time.Hour) },
		"empty window":        func(in *CreateBookingInput) { in.To = in.From },
		"advance above rent":  func(in *CreateBookingInput) { in.Advance = in.Rent + 1 },
		"negative rent":       func(in *CreateBookingInput) { in.Rent = -1; in.Advance = 0 },
		"missing name":        func(in *CreateBookingInput) { in.Name = "" },
		"bad email":           func(in *CreateBookingInput) { in.Email = "nope" },
		"missing hall":        func(in *CreateBookingInput) { in.HallID = 0 },
		"missing event type":  func(in *CreateBookingInput) { in.EventType = "" },
		"too many alt phones": func(in *CreateBookingInput) { in.AlternatePhone = make([]string, 6) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			in := createInput()
			mutate(&in)
			_, err := f.bookingService().CreateBooking(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestCreateBookingUnknownHall(t *testing.T) {
	f := newFixture(t)
	f.expectHallMissing(1)

	_, err := f.bookingService().CreateBooking(context.Background(), createInput())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateBookingTime(t *testing.T) {
	f := newFixture(t)
	newDay := functionDay.AddDate(0, 0, 1)
	f.expectHallExists(1)
	f.mock.ExpectBegin()
	f.expectHallLock(1, nil)
	f.expectBookingLock(bookingState{id: 3, status: model.BookingBooked, rent: 50000, advance: 10000, balance: 40000})
	f.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
		WithArgs(int64(1), newDay, int64(3), newDay.Add(20*time.Hour), newDay.Add(18*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	f.expectPeak(newDay, 0)
	f.mock.ExpectExec("UPDATE bookings SET function_date").
		WithArgs(newDay, newDay.Add(18*time.Hour), newDay.Add(20*time.Hour), t0, int64(1), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	b, err := f.bookingService().UpdateBookingTime(context.Background(), UpdateTimeInput{
		HallID: 1, BookingID: 3,
		FunctionDate: newDay.Add(5 * time.Hour),
		From:         newDay.Add(18 * time.Hour),
		To:           newDay.Add(20 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, newDay, b.FunctionDate)
	assert.Equal(t, newDay.Add(18*time.Hour), b.From)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateBookingTimeOntoPeakDate(t *testing.T) {
	f := newFixture(t)
	newDay := functionDay.AddDate(0, 0, 1)
	f.expectHallExists(1)
	f.mock.ExpectBegin()
	f.expectHallLock(1, nil)
	f.expectBookingLock(bookingState{id: 3, status: model.BookingBooked, rent: 50000, advance: 10000, balance: 40000})
	f.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	f.expectPeak(newDay, 90000)
	f.mock.ExpectRollback()

	_, err := f.bookingService().UpdateBookingTime(context.Background(), UpdateTimeInput{
		HallID: 1, BookingID: 3,
		FunctionDate: newDay,
		From:         newDay.Add(18 * time.Hour),
		To:           newDay.Add(20 * time.Hour),
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateBookingTimeCancelled(t *testing.T) {
	f := newFixture(t)
	f.expectHallExists(1)
	f.mock.ExpectBegin()
	f.expectHallLock(1, nil)
	f.expectBookingLock(bookingState{id: 3, status: model.BookingCancelled})
	f.mock.ExpectRollback()

	_, err := f.bookingService().UpdateBookingTime(context.Background(), UpdateTimeInput{
		HallID: 1, BookingID: 3, FunctionDate: functionDay,
		From: functionDay.Add(time.Hour), To: functionDay.Add(2 * time.Hour),
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateBookingTimeMissingBooking(t *testing.T) {
	f := newFixture(t)
	f.expectHallExists(1)
	f.mock.ExpectBegin()
	f.expectHallLock(1, nil)
	f.mock.ExpectQuery("FROM bookings WHERE hall_id = \\? AND booking_id = \\? FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(bookingCols))
	f.mock.ExpectRollback()

	_, err := f.bookingService().UpdateBookingTime(context.Background(), UpdateTimeInput{
		HallID: 1, BookingID: 99, FunctionDate: functionDay,
		From: functionDay.Add(time.Hour), To: functionDay.Add(2 * time.Hour),
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func chargeRows(items ...model.Charge) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "hall_id", "booking_id", "reason", "amount", "created_at"})
	for i, c := range items {
		rows.AddRow(int64(i+1), int64(1), int64(3), c.Reason, c.Amount, t0)
	}
	return rows
}

func TestAddCharges(t *testing.T) {
	f := newFixture(t)
	f.expectHallExists(1)
	f.mock.ExpectBegin()
	f.expectBookingLock(bookingState{id: 3, status: model.BookingBooked, rent: 50000, advance: 10000, balance: 40000})
	f.mock.ExpectExec("INSERT INTO charges").
		WithArgs(int64(1), int64(3), "decor", int64(5000), t0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectQuery("FROM charges WHERE hall_id = \\? AND booking_id = \\?").
		WillReturnRows(chargeRows(model.Charge{Reason: "decor", Amount: 5000}))
	f.mock.ExpectExec("INSERT INTO billings").
		WithArgs(int64(1), "staff1", int64(3), []byte(`{"advance":10000,"decor":5000}`), int64(15000), t0).
		WillReturnResult(sqlmock.NewResult(0, 2))
	f.mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(model.BookingBilled, t0, int64(1), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	res, err := f.bookingService().AddCharges(context.Background(), AddChargesInput{
		HallID: 1, BookingID: 3, UserID: "staff1",
		Charges: []ChargeItem{{Reason: "decor", Amount: 5000}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingBilled, res.Booking.Status)
	assert.Equal(t, int64(15000), res.Billing.Total)
	assert.Len(t, res.Charges, 1)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAddChargesRejectsAdvanceReason(t *testing.T) {
	f := newFixture(t)
	_, err := f.bookingService().AddCharges(context.Background(), AddChargesInput{
		HallID: 1, BookingID: 3, UserID: "staff1",
		Charges: []ChargeItem{{Reason: "advance", Amount: 5000}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.bookingService().AddCharges(context.Background(), AddChargesInput{
		HallID: 1, BookingID: 3, UserID: "staff1",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAddChargesOnCancelledBooking(t *testing.T) {
	f := newFixture(t)
	f.expectHallExists(1)
	f.mock.ExpectBegin()
	f.expectBookingLock(bookingState{id: 3, status: model.BookingCancelled, rent: 50000, advance: 10000})
	f.mock.ExpectRollback()

	_, err := f.bookingService().AddCharges(context.Background(), AddChargesInput{
		HallID: 1, BookingID: 3, UserID: "staff1",
		Charges: []ChargeItem{{Reason: "decor", Amount: 5000}},
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAddBalancePayment(t *testing.T) {
	cases := []struct {
		name        string
		balance     int64
		amount      int64
		wantBalance int64
	}{
		{"partial", 40000, 15000, 25000},
		{"overpay floors at zero", 5000, 8000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.expectHallExists(1)
			f.mock.ExpectBegin()
			f.expectBookingLock(bookingState{id: 3, status: model.BookingBilled, rent: 50000, advance: 10000, balance: tc.balance})
			f.mock.ExpectExec("INSERT INTO charges").
				WithArgs(int64(1), int64(3), defaultBalanceReason, tc.amount, t0).
				WillReturnResult(sqlmock.NewResult(1, 1))
			f.mock.ExpectQuery("FROM charges WHERE hall_id = \\? AND booking_id = \\?").
				WillReturnRows(chargeRows(model.Charge{Reason: defaultBalanceReason, Amount: tc.amount}))
			f.mock.ExpectExec("INSERT INTO billings").WillReturnResult(sqlmock.NewResult(0, 2))
			f.mock.ExpectExec("UPDATE bookings SET balance").
				WithArgs(tc.wantBalance, t0, int64(1), int64(3)).
				WillReturnResult(sqlmock.NewResult(0, 1))
			f.mock.ExpectCommit()

			res, err := f.bookingService().AddBalancePayment(context.Background(), BalancePaymentInput{
				HallID: 1, BookingID: 3, UserID: "staff1", Amount: tc.amount,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.wantBalance, res.Balance)
			assert.Equal(t, 10000+tc.amount, res.Billing.Total)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestAddBalancePaymentRejectsNonPositive(t *testing.T) {
	f := newFixture(t)
	_, err := f.bookingService().AddBalancePayment(context.Background(), BalancePaymentInput{
		HallID: 1, BookingID: 3, UserID: "staff1", Amount: 0,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t)
	f.expectHallExists(1)
	f.mock.ExpectBegin()
	f.expectBookingLock(bookingState{id: 3, status: model.BookingBilled, rent: 50000, advance: 10000, balance: 40000})
	f.mock.ExpectQuery("SELECT total FROM billings").WithArgs(int64(1), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(int64(15000)))
	f.mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(model.BookingCancelled, t0, int64(1), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO cancels").
		WithArgs(int64(1), int64(3), "staff1", "family emergency", int64(10000), int64(15000), int64(3000), int64(7000), t0).
		WillReturnResult(sqlmock.NewResult(9, 1))
	f.mock.ExpectExec("INSERT INTO expenses").
		WithArgs(int64(1), "Refund for cancelled booking #3", int64(7000), t0).
		WillReturnResult(sqlmock.NewResult(11, 1))
	f.mock.ExpectCommit()

	res, err := f.bookingService().CancelBooking(context.Background(), CancelInput{
		HallID: 1, BookingID: 3, UserID: "staff1", Reason: "family emergency", CancelCharge: 3000,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, res.Booking.Status)
	assert.Equal(t, int64(9), res.Cancellation.ID)
	assert.Equal(t, int64(7000), res.Cancellation.Refund)
	assert.Equal(t, int64(11), res.Expense.ID)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	evs := f.events.events()
	require.Len(t, evs, 1)
	assert.Equal(t, queue.EventBookingCancelled, evs[0].Type)
	assert.Equal(t, int64(7000), evs[0].Refund)
}

func TestCancelBookingChargeCappedAtAdvance(t *testing.T) {
	f := newFixture(t)
	f.expectHallExists(1)
	f.mock.ExpectBegin()
	f.expectBookingLock(bookingState{id: 3, status: model.BookingBooked, rent: 50000, advance: 10000, balance: 40000})
	f.mock.ExpectQuery("SELECT total FROM billings").
		WillReturnRows(sqlmock.NewRows([]string{"total"}))
	f.mock.ExpectExec("UPDATE bookings SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO cancels").
		WithArgs(int64(1), int64(3), "staff1", "changed plans", int64(10000), int64(10000), int64(10000), int64(0), t0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectExec("INSERT INTO expenses").
		WithArgs(int64(1), "Refund for cancelled booking #3", int64(0), t0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectCommit()

	res, err := f.bookingService().CancelBooking(context.Background(), CancelInput{
		HallID: 1, BookingID: 3, UserID: "staff1", Reason: "changed plans", CancelCharge: 25000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Cancellation.Refund)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCancelBookingTwice(t *testing.T) {
	f := newFixture(t)
	f.expectHallExists(1)
	f.mock.ExpectBegin()
	f.expectBookingLock(bookingState{id: 3, status: model.BookingCancelled, advance: 10000})
	f.mock.ExpectRollback()

	_, err := f.bookingService().CancelBooking(context.Background(), CancelInput{
		HallID: 1, BookingID: 3, UserID: "staff1", Reason: "again",
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, f.events.events())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCancelBookingRollsBackWhenExpenseFails(t *testing.T) {
	f := newFixture(t)
	f.expectHallExists(1)
	f.mock.ExpectBegin()
	f.expectBookingLock(bookingState{id: 3, status: model.BookingBooked, rent: 50000, advance: 10000, balance: 40000})
	f.mock.ExpectQuery("SELECT total FROM billings").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(int64(10000)))
	f.mock.ExpectExec("UPDATE bookings SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO cancels").WillReturnResult(sqlmock.NewResult(1, 1))
	f.mock.ExpectExec("INSERT INTO expenses").WillReturnError(assert.AnError)
	f.mock.ExpectRollback()

	_, err := f.bookingService().CancelBooking(context.Background(), CancelInput{
		HallID: 1, BookingID: 3, UserID: "staff1", Reason: "x",
	})
	assert.ErrorIs(t, err, ErrInternal)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
