package service

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
)

func (f *fixture) hallService() *HallService {
	return NewHallService(f.tx, f.repos, f.clock, bcrypt.MinCost, 3, logging.Discard())
}

func registerInput() RegisterInput {
	return RegisterInput{
		HallID:    1,
		Name:      "Sri Mahal",
		Phone:     "9000000000",
		Email:     "owner@example.com",
		Address:   "Madurai",
		UserID:    "Owner1",
		Password:  "s3cret-pass",
		OwnerName: "Lakshmi",
	}
}

func TestRegisterHall(t *testing.T) {
	f := newFixture(t)
	due := t0.AddDate(0, 3, 0)
	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO halls").
		WithArgs(int64(1), "Sri Mahal", "9000000000", "owner@example.com", "Madurai", sqlmock.AnyArg(), true, due, t0, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO users").
		WithArgs(int64(1), "owner1", sqlmock.AnyArg(), "owner", true, t0, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO admins").
		WithArgs(int64(1), "owner1", "Lakshmi", "", "9000000000", "owner@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	h, err := f.hallService().Register(context.Background(), registerInput())
	require.NoError(t, err)
	require.NotNil(t, h.DueDate)
	assert.Equal(t, due, *h.DueDate)
	assert.True(t, h.IsActive)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegisterHallTaken(t *testing.T) {
	f := newFixture(t)
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'PRIMARY'"}
	for range 2 {
		f.mock.ExpectBegin()
		f.mock.ExpectExec("INSERT INTO halls").WillReturnError(dup)
		f.mock.ExpectRollback()
	}

	_, err := f.hallService().Register(context.Background(), registerInput())
	assert.ErrorIs(t, err, ErrConflict)
	assert.EqualError(t, err, "hall 1 is already registered")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegisterHallValidation(t *testing.T) {
	f := newFixture(t)
	in := registerInput()
	in.Password = "short"
	_, err := f.hallService().Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = registerInput()
	in.Email = "not-an-email"
	_, err = f.hallService().Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestBlockAndUnblockHall(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.expectHallLock(1, nil)
	f.mock.ExpectExec("UPDATE halls SET is_active = 0").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO hall_blocks").WithArgs(int64(1), "unpaid dues", t0).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.expectHallLock(1, nil)
	f.mock.ExpectExec("UPDATE halls SET is_active = 1").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("DELETE FROM hall_blocks").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	svc := f.hallService()
	require.NoError(t, svc.Block(context.Background(), BlockInput{HallID: 1, Reason: "unpaid dues"}))
	require.NoError(t, svc.Unblock(context.Background(), 1))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestBlockRequiresReason(t *testing.T) {
	f := newFixture(t)
	err := f.hallService().Block(context.Background(), BlockInput{HallID: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteHallCascades(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	for _, table := range repository.CascadePlan() {
		f.mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf("DELETE FROM %s WHERE hall_id = ?", table))).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 2))
	}
	f.mock.ExpectCommit()

	removed, err := f.hallService().Delete(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed["bookings"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDeleteMissingHall(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	for range repository.CascadePlan() {
		f.mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	f.mock.ExpectRollback()

	_, err := f.hallService().Delete(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
