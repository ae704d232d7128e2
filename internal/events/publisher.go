package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hackgods/clinic-booking-gateway/pkg/logging"
)

// Publisher sends one event to a topic. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// NoopPublisher drops events; used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

// AMQPPublisher keeps one connection and channel open and redials lazily
// after the broker drops them.
type AMQPPublisher struct {
	url    string
	logger *logging.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func NewAMQPPublisher(url string, logger *logging.Logger) *AMQPPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &AMQPPublisher{url: url, logger: logger, declared: map[string]bool{}}
}

func (p *AMQPPublisher) Publish(ctx context.Context, topic string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.logger.Warn("rabbitmq: channel unavailable", "topic", topic, "error", err)
		return err
	}

	if !p.declared[topic] {
		// durable so messages survive broker restarts
		if _, err := ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
			p.reset()
			return fmt.Errorf("declare queue %s: %w", topic, err)
		}
		p.declared[topic] = true
	}

	err = ch.PublishWithContext(ctx, "", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		p.logger.Warn("rabbitmq: publish failed", "topic", topic, "error", err)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
	p.declared = map[string]bool{}
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.ch != nil {
		err = errors.Join(err, p.ch.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		err = errors.Join(err, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	return err
}
