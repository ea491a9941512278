package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
)

// StartLedgerConsumer consumes the ledger.events queue and appends one line
// per event to logPath.  It reconnects with exponential backoff and returns
// only when ctx is cancelled.
func StartLedgerConsumer(ctx context.Context, url, logPath string, log logging.Logger) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).WithField("retry_in", backoff.String()).Warn("ledger-consumer: dial failed")
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logPath, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("ledger-consumer: consume loop ended, reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string, log logging.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("ledger-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(LedgerQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, LedgerQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := HandleLedgerMessage(d.Body, logPath); err != nil {
			log.WithError(err).Error("ledger-consumer: handle message failed")
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleLedgerMessage decodes one event and appends it to logPath.
func HandleLedgerMessage(body []byte, logPath string) error {
	var ev LedgerEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.HallID == 0 {
		return errors.New("event without type or hall")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLedgerLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLedgerLine renders an event as a single human-readable line.
func FormatLedgerLine(ev LedgerEvent) string {
	at := ev.OccurredAt.UTC().Format(time.RFC3339)
	switch ev.Type {
	case EventBookingCreated:
		return fmt.Sprintf("[%s] Booking created | hall_id=%d | booking_id=%d | user_id=%s | date=%s | advance=%d\n",
			at, ev.HallID, ev.BookingID, ev.UserID, ev.FunctionDate, ev.Amount)
	case EventBookingCancelled:
		return fmt.Sprintf("[%s] Booking cancelled | hall_id=%d | booking_id=%d | user_id=%s | charge=%d | refund=%d\n",
			at, ev.HallID, ev.BookingID, ev.UserID, ev.Amount, ev.Refund)
	case EventPaymentCompleted:
		return fmt.Sprintf("[%s] Subscription paid | hall_id=%d | payment_id=%d | amount=%d\n",
			at, ev.HallID, ev.PaymentID, ev.Amount)
	}
	return fmt.Sprintf("[%s] %s | hall_id=%d\n", at, ev.Type, ev.HallID)
}
