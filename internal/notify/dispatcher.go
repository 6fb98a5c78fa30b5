package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pizzeria-orders/internal/gateway"
	"pizzeria-orders/internal/logger"
	"pizzeria-orders/internal/models"
)

const dispatchTimeout = 5 * time.Second

// RetryPolicy bounds repeated delivery attempts. The zero value means a
// single attempt, the default.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Dispatcher renders status-change notifications and hands them to the
// messaging gateway. Delivery is best effort: a transition must never fail
// or wait because of it.
type Dispatcher struct {
	sender    gateway.Sender
	logger    *logger.Logger
	defaultTo string
	retry     RetryPolicy

	mu        sync.Mutex
	delivered map[string]struct{}
}

// NewDispatcher creates a dispatcher. defaultTo is used when the caller has
// no phone number at hand (the /api/whatsapp endpoint).
func NewDispatcher(sender gateway.Sender, log *logger.Logger, defaultTo string, retry RetryPolicy) *Dispatcher {
	return &Dispatcher{
		sender:    sender,
		logger:    log,
		defaultTo: defaultTo,
		retry:     retry,
		delivered: make(map[string]struct{}),
	}
}

// Send renders the template for the status and delivers it synchronously.
// With a retry policy configured, attempts are bounded and a
// (orderNumber, status) pair is never delivered twice.
func (d *Dispatcher) Send(ctx context.Context, orderNumber int64, status models.OrderStatus, toPhone string) error {
	body, err := models.MessageFor(status, orderNumber)
	if err != nil {
		return err
	}
	if toPhone == "" {
		toPhone = d.defaultTo
	}

	attempts := d.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	key := fmt.Sprintf("%d/%s", orderNumber, status)
	if attempts > 1 && d.alreadyDelivered(key) {
		return nil
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(d.retry.Backoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", models.ErrDispatch, ctx.Err())
			}
		}

		if lastErr = d.sender.Send(ctx, toPhone, body); lastErr == nil {
			if attempts > 1 {
				d.markDelivered(key)
			}
			return nil
		}
	}

	return fmt.Errorf("%w: %v", models.ErrDispatch, lastErr)
}

// Dispatch delivers on a detached goroutine with its own timeout. Failures
// are logged and swallowed; the caller is never blocked or failed by the
// gateway.
func (d *Dispatcher) Dispatch(orderNumber int64, status models.OrderStatus, toPhone string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if err := d.Send(ctx, orderNumber, status, toPhone); err != nil {
			d.logger.Error("notification_failed", "Failed to deliver status notification", "", err, map[string]any{
				"order_number": orderNumber,
				"status":       string(status),
			})
			return
		}

		d.logger.Debug("notification_sent", "Status notification delivered", "", map[string]any{
			"order_number": orderNumber,
			"status":       string(status),
		})
	}()
}

func (d *Dispatcher) alreadyDelivered(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.delivered[key]
	return ok
}

func (d *Dispatcher) markDelivered(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered[key] = struct{}{}
}
