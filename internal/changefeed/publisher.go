package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"pizzeria-orders/internal/logger"
)

// Publisher pushes change events onto the feed. The persistent store is the
// source of truth; events only tell subscribers that something changed.
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

// NewPublisher creates a new change event publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: log,
	}
}

// Publish sends a change event to the fanout exchange
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	// Check if connection is alive
	if p.conn.IsClosed() {
		if err := p.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	err = p.conn.Channel().PublishWithContext(ctx,
		ExchangeName, // exchange
		"",           // routing key (ignored for fanout)
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	p.logger.Debug("change_published", "Published change event", "", map[string]any{
		"table":  event.Table,
		"op":     event.Op,
		"row_id": event.RowID,
	})

	return nil
}
