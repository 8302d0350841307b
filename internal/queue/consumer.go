package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AuditConsumer binds a durable queue to every routing key of the events
// exchange and appends one human-readable line per event to an audit log
// file.
type AuditConsumer struct {
	URL      string
	Exchange string
	Queue    string
	LogPath  string
	Log      logrus.FieldLogger

	mu sync.Mutex // serializes writes to LogPath
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broker
// failures are retried with a capped exponential delay, so the server
// keeps operating while the broker is down.
func (a *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(a.URL)
		if err != nil {
			a.Log.WithError(err).Warnf("audit-consumer: failed to dial broker; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = a.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.Log.WithError(err).Warn("audit-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (a *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		a.Log.WithError(err).Warn("audit-consumer: set QoS failed")
	}
	if err := ch.ExchangeDeclare(a.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := ch.QueueDeclare(a.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "#", a.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := a.handleMessage(d.RoutingKey, d.Body); err != nil {
			a.Log.WithError(err).WithField("routing_key", d.RoutingKey).Warn("audit-consumer: handle message failed")
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (a *AuditConsumer) handleMessage(routingKey string, body []byte) error {
	line, err := FormatAuditLine(routingKey, body)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(a.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders one event as a single log line ending in "\n".
// Unknown routing keys are recorded with their raw payload.
func FormatAuditLine(routingKey string, body []byte) (string, error) {
	switch routingKey {
	case RoutingBookingConfirmed, RoutingBookingCancelled:
		var ev BookingEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		verb := "confirmed"
		if routingKey == RoutingBookingCancelled {
			verb = "cancelled"
		}
		return fmt.Sprintf("[%s] Booking %s | booking_id=%d | user_id=%d | class_id=%d | class=%q | when=%s %s | balance=%d\n",
			ev.OccurredAt, verb, ev.BookingID, ev.UserID, ev.ClassID, ev.ClassTitle, ev.ClassDate, ev.ClassTime, ev.Balance), nil
	case RoutingTokensPurchased, RoutingTokensUsed:
		var ev TokensEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Tokens %s | user_id=%d | amount=%d | balance=%d | payment_ref=%q\n",
			ev.OccurredAt, routingKey, ev.UserID, ev.Amount, ev.Balance, ev.PaymentRef), nil
	case RoutingClassDeleted:
		var ev ClassDeletedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Class deleted | class_id=%d | class=%q | refunded=%d\n",
			ev.OccurredAt, ev.ClassID, ev.Title, ev.Refunded), nil
	}
	if !json.Valid(body) {
		return "", errors.New("unmarshal: invalid json")
	}
	return fmt.Sprintf("[%s] %s | %s\n", time.Now().UTC().Format(time.RFC3339), routingKey, body), nil
}
