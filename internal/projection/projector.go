package projection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pizzeria-orders/internal/changefeed"
	"pizzeria-orders/internal/logger"
	"pizzeria-orders/internal/models"
)

// ActiveOrderSource is the read side the projector refreshes from.
type ActiveOrderSource interface {
	ListActiveOrders(ctx context.Context) ([]models.Order, error)
}

// EventSource is a long-lived change feed subscription.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan changefeed.Event, error)
}

const refreshTimeout = 5 * time.Second

// Projector keeps a local projection of the active order set in sync with
// the store. On every feed event it re-reads the active orders, reduces them
// into a new snapshot, and fans the snapshot out to observers.
type Projector struct {
	source ActiveOrderSource
	feed   EventSource
	logger *logger.Logger

	mu        sync.RWMutex
	current   Snapshot
	observers []chan Snapshot
}

// NewProjector creates a projector over the given store reader and feed.
func NewProjector(source ActiveOrderSource, feed EventSource, log *logger.Logger) *Projector {
	return &Projector{
		source: source,
		feed:   feed,
		logger: log,
	}
}

// Current returns the latest snapshot.
func (p *Projector) Current() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Observe registers an observer. The channel holds one element: a slow
// observer is never sent a backlog, only the newest snapshot. Registration
// must happen before Run.
func (p *Projector) Observe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	p.mu.Lock()
	p.observers = append(p.observers, ch)
	p.mu.Unlock()
	return ch
}

// Run subscribes to the feed and processes events until ctx ends. The
// initial snapshot is primed from the store before the first event.
func (p *Projector) Run(ctx context.Context) error {
	events, err := p.feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to change feed: %w", err)
	}

	// Prime the projection so observers do not start from an empty board.
	if err := p.refresh(ctx, changefeed.Event{Table: changefeed.TableOrders, Op: changefeed.OpInsert}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return fmt.Errorf("change feed closed")
			}
			if err := p.refresh(ctx, event); err != nil {
				// The store will be re-read on the next event; a missed
				// refresh only delays convergence.
				p.logger.Error("projection_refresh_failed", "Failed to refresh projection", "", err, map[string]any{
					"table":  event.Table,
					"op":     event.Op,
					"row_id": event.RowID,
				})
			}
		}
	}
}

func (p *Projector) refresh(ctx context.Context, event changefeed.Event) error {
	readCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	orders, err := p.source.ListActiveOrders(readCtx)
	if err != nil {
		return fmt.Errorf("failed to list active orders: %w", err)
	}

	p.mu.Lock()
	p.current = Apply(p.current, event, orders, time.Now().UTC())
	snapshot := p.current
	observers := p.observers
	p.mu.Unlock()

	for _, ch := range observers {
		// Replace a pending snapshot instead of blocking on it.
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}

	return nil
}
