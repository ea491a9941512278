package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
)

var occurred = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func TestFormatLedgerLine(t *testing.T) {
	line := FormatLedgerLine(LedgerEvent{
		Type: EventBookingCancelled, HallID: 3, BookingID: 12, UserID: "ravi",
		Amount: 3000, Refund: 7000, OccurredAt: occurred,
	})
	assert.Equal(t, "[2026-05-01T09:30:00Z] Booking cancelled | hall_id=3 | booking_id=12 | user_id=ravi | charge=3000 | refund=7000\n", line)

	line = FormatLedgerLine(LedgerEvent{Type: "custom", HallID: 3, OccurredAt: occurred})
	assert.Equal(t, "[2026-05-01T09:30:00Z] custom | hall_id=3\n", line)
}

func TestHandleLedgerMessageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ledger.log")
	for _, id := range []int64{1, 2} {
		body, err := json.Marshal(LedgerEvent{Type: EventBookingCreated, HallID: 3, BookingID: id, OccurredAt: occurred})
		require.NoError(t, err)
		require.NoError(t, HandleLedgerMessage(body, path))
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "booking_id=1")
	assert.Contains(t, string(data), "booking_id=2")
}

func TestHandleLedgerMessageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.log")
	assert.Error(t, HandleLedgerMessage([]byte("{"), path))
	assert.Error(t, HandleLedgerMessage([]byte(`{"type":""}`), path))
}

func TestPublisherDropsWhenFull(t *testing.T) {
	p := NewPublisher("", logging.Discard(), 1)
	require.NoError(t, p.PublishLedger(context.Background(), LedgerEvent{Type: EventBookingCreated, HallID: 1}))
	assert.ErrorIs(t, p.PublishLedger(context.Background(), LedgerEvent{Type: EventBookingCreated, HallID: 1}), ErrPublisherFull)
}

func TestPublisherRunDrains(t *testing.T) {
	p := NewPublisher("", logging.Discard(), 4)
	got := make(chan outbound, 4)
	p.send = func(_ context.Context, m outbound) error {
		got <- m
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.NoError(t, p.PublishOTP(ctx, OTPMessage{HallID: 1, UserID: "ravi", Code: "123456"}))
	select {
	case m := <-got:
		assert.Equal(t, OTPQueue, m.queue)
		var msg OTPMessage
		require.NoError(t, json.Unmarshal(m.body, &msg))
		assert.Equal(t, "123456", msg.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not sent")
	}
}
