package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
)

// ErrPublisherFull is returned when the outbound buffer is saturated.  The
// message is dropped.
var ErrPublisherFull = errors.New("publisher buffer full")

type outbound struct {
	queue string
	body  []byte
	at    time.Time
}

// Publisher buffers messages and ships them to RabbitMQ from Run.  Callers
// never wait on the broker.
type Publisher struct {
	url  string
	log  logging.Logger
	buf  chan outbound
	send func(ctx context.Context, m outbound) error
}

// NewPublisher returns a Publisher.  An empty url disables delivery: messages
// are accepted and logged at debug level only.
func NewPublisher(url string, log logging.Logger, size int) *Publisher {
	if size <= 0 {
		size = 256
	}
	p := &Publisher{url: url, log: log, buf: make(chan outbound, size)}
	p.send = p.publish
	return p
}

// PublishLedger queues a ledger event.
func (p *Publisher) PublishLedger(_ context.Context, ev LedgerEvent) error {
	return p.enqueue(LedgerQueue, ev)
}

// PublishOTP queues an OTP delivery request.
func (p *Publisher) PublishOTP(_ context.Context, m OTPMessage) error {
	return p.enqueue(OTPQueue, m)
}

func (p *Publisher) enqueue(queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case p.buf <- outbound{queue: queue, body: body, at: time.Now().UTC()}:
		return nil
	default:
		p.log.WithField("queue", queue).Warn("publisher buffer full, dropping message")
		return ErrPublisherFull
	}
}

// Run drains the buffer until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-p.buf:
			sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := p.send(sendCtx, m); err != nil {
				p.log.WithError(err).WithField("queue", m.queue).Error("publish failed")
			}
			cancel()
		}
	}
}

// publish opens a connection per message, declares the durable queue and
// publishes a persistent message on the default exchange.
func (p *Publisher) publish(ctx context.Context, m outbound) error {
	if p.url == "" {
		p.log.WithField("queue", m.queue).Debug("broker disabled, message not sent")
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		m.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",      // default exchange
		m.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    m.at,
			Body:         m.body,
		})
}
