package service

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Publisher sends a domain event.  *queue.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// publish sends an event after commit.  The request already succeeded, so
// failures are only logged.
func publish(ctx context.Context, pub Publisher, log logrus.FieldLogger, key string, ev any) {
	if err := pub.Publish(ctx, key, ev); err != nil {
		log.WithError(err).WithField("event", key).Warn("publish event failed")
	}
}

func occurredAt() string { return time.Now().UTC().Format(time.RFC3339) }

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }
