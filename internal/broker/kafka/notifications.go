package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/AppWatch/internal/broker/messages"
	"github.com/BearBump/AppWatch/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Deliverer interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Notifier publishes notifications instead of delivering them; the API process
// consumes the topic and delivers.
type Notifier struct {
	p     Publisher
	topic string
}

func NewNotifier(p Publisher, topic string) *Notifier {
	return &Notifier{p: p, topic: topic}
}

func (n *Notifier) Notify(ctx context.Context, msg models.Notification) error {
	b, err := json.Marshal(messages.NewNotification(uuid.NewString(), msg, time.Now()))
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}
	return n.p.Publish(ctx, n.topic, []byte(msg.Channel), b)
}

// DeliveryHandler returns a Consume handler that hands each notification to d.
// Delivery is retried a few times; a notification that still fails is logged and
// skipped so one bad webhook does not stall the topic.
func DeliveryHandler(d Deliverer, attempts int, backoff time.Duration) func(ctx context.Context, key, value []byte) error {
	if attempts <= 0 {
		attempts = 3
	}
	return func(ctx context.Context, key, value []byte) error {
		var msg messages.Notification
		if err := json.Unmarshal(value, &msg); err != nil {
			slog.Error("decode notification", "key", string(key), "error", err.Error())
			return nil
		}

		var err error
		for i := 0; i < attempts; i++ {
			if err = d.Notify(ctx, msg.Model()); err == nil {
				return nil
			}
			if i == attempts-1 {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff * time.Duration(i+1)):
			}
		}
		slog.Error("deliver notification", "id", msg.ID, "channel", msg.Channel, "attempts", attempts, "error", err.Error())
		return nil
	}
}
