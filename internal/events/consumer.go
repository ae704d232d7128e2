package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hackgods/clinic-booking-gateway/pkg/logging"
)

var ErrDeliveriesClosed = errors.New("deliveries channel closed")

// QueueChangedHandler receives one decoded change notification.
type QueueChangedHandler func(QueueChanged)

// ConsumeQueueChanged reads queue.changed until ctx is done, redialling with
// backoff whenever the broker connection drops.
func ConsumeQueueChanged(ctx context.Context, url string, handle QueueChangedHandler, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Default()
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("queue-consumer: dial failed", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, handle, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("queue-consumer: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, handle QueueChangedHandler, logger *logging.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("queue-consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(TopicQueueChanged, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(TopicQueueChanged, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return ErrDeliveriesClosed
			}
			ev, err := DecodeQueueChanged(d.Body)
			if err != nil {
				logger.Warn("queue-consumer: dropping message", "error", err)
				_ = d.Nack(false, false) // no requeue, avoids tight loops
				continue
			}
			handle(ev)
			_ = d.Ack(false)
		}
	}
}

// DecodeQueueChanged parses and validates one notification body.
func DecodeQueueChanged(body []byte) (QueueChanged, error) {
	var ev QueueChanged
	if err := json.Unmarshal(body, &ev); err != nil {
		return QueueChanged{}, fmt.Errorf("unmarshal: %w", err)
	}
	ev.Entity = strings.ToLower(strings.TrimSpace(ev.Entity))
	ev.ID = strings.TrimSpace(ev.ID)
	if ev.Entity == "" {
		return QueueChanged{}, errors.New("queue change without entity")
	}
	return ev, nil
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
