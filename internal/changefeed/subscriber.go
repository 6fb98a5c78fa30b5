package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"pizzeria-orders/internal/logger"
)

// Subscriber consumes change events from the feed. Each subscriber gets its
// own exclusive, auto-deleted queue bound to the fanout exchange, so every
// observer sees every event and nothing lingers after teardown.
type Subscriber struct {
	conn   *Connection
	logger *logger.Logger
	name   string
}

// NewSubscriber creates a named feed subscriber
func NewSubscriber(conn *Connection, log *logger.Logger, name string) *Subscriber {
	return &Subscriber{
		conn:   conn,
		logger: log,
		name:   name,
	}
}

// Subscribe binds a fresh queue to the feed and returns a channel of events.
// The subscription is released when ctx ends: the consumer is cancelled, the
// exclusive queue is dropped by the broker, and the returned channel closes.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan Event, error) {
	if s.conn.IsClosed() {
		if err := s.conn.Reconnect(); err != nil {
			return nil, fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	ch := s.conn.Channel()

	q, err := ch.QueueDeclare(
		"",    // name (broker-generated)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare subscriber queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,       // queue name
		"",           // routing key (ignored for fanout)
		ExchangeName, // exchange
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bind subscriber queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		s.name, // consumer tag
		true,   // auto-ack: events are refresh triggers, losing one is harmless
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	s.logger.Info("feed_subscribed", fmt.Sprintf("Subscribed to %s", ExchangeName), "", map[string]any{
		"queue":    q.Name,
		"consumer": s.name,
	})

	events := make(chan Event)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				if cancelErr := ch.Cancel(s.name, false); cancelErr != nil {
					s.logger.Error("feed_unsubscribe_failed", "Failed to cancel consumer", "", cancelErr, nil)
				}
				s.logger.Info("feed_unsubscribed", "Subscription released", "", map[string]any{"queue": q.Name})
				return
			case d, ok := <-deliveries:
				if !ok {
					s.logger.Error("feed_channel_closed", "Delivery channel closed by broker", "", nil, nil)
					return
				}

				var event Event
				if err := json.Unmarshal(d.Body, &event); err != nil {
					s.logger.Error("event_parsing_failed", "Failed to parse change event", "", err, nil)
					continue
				}

				select {
				case events <- event:
				case <-ctx.Done():
				}
			}
		}
	}()

	return events, nil
}
