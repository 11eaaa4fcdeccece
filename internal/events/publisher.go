// Package events publishes booking lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/metinatakli/seat-booking/internal/clock"
	"github.com/metinatakli/seat-booking/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the durable topic exchange events are published to, with
// the event type as routing key.
const ExchangeName = "booking.events"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	conn   *amqp.Connection
	logger *slog.Logger

	// amqp channels must not be shared between concurrent publishers
	mu sync.Mutex
	ch channel
}

func NewAMQPPublisher(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		amqp.ExchangeTopic,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", ExchangeName, err)
	}

	return &AMQPPublisher{conn: conn, logger: logger, ch: ch}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, ExchangeName, string(event.Type), false, false, msg)
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}

	p.logger.Debug("published event", "type", event.Type, "show_id", event.ShowID, "booking_id", event.BookingID)

	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	chErr := p.ch.Close()

	if p.conn == nil {
		return chErr
	}

	if err := p.conn.Close(); err != nil {
		return err
	}

	return chErr
}

// CapacityListener returns a ledger listener that announces freed seats.
func CapacityListener(publisher domain.EventPublisher, clk clock.Clock, logger *slog.Logger) domain.CapacityListener {
	return func(ctx context.Context, showID int64) {
		event := domain.Event{
			Type:       domain.EventShowCapacityChanged,
			ShowID:     showID,
			OccurredAt: clk.Now(),
		}

		if err := publisher.Publish(ctx, event); err != nil {
			logger.Warn("failed to publish capacity change", "show_id", showID, "error", err)
		}
	}
}
