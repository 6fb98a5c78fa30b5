package kitchen

import (
	"context"
	"fmt"
	"io"
	"sort"

	"pizzeria-orders/internal/logger"
	"pizzeria-orders/internal/models"
	"pizzeria-orders/internal/projection"
)

// SnapshotSource delivers projection snapshots as they are produced.
type SnapshotSource interface {
	Observe() <-chan projection.Snapshot
	Current() projection.Snapshot
}

// Display renders the active order board to a terminal. It consumes
// projection snapshots and redraws the whole board on each one; it never
// talks to the store directly.
type Display struct {
	source SnapshotSource
	out    io.Writer
	logger *logger.Logger
}

// NewDisplay creates a kitchen display over a snapshot source.
func NewDisplay(source SnapshotSource, out io.Writer, log *logger.Logger) *Display {
	return &Display{
		source: source,
		out:    out,
		logger: log,
	}
}

// Run renders snapshots until ctx ends. Observe must be wired before the
// projector starts, so Run takes the channel eagerly.
func (d *Display) Run(ctx context.Context) error {
	snapshots := d.source.Observe()

	d.Render(d.source.Current())

	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot, ok := <-snapshots:
			if !ok {
				return nil
			}
			d.Render(snapshot)
		}
	}
}

// Render writes one full board for the given snapshot.
func (d *Display) Render(snapshot projection.Snapshot) {
	orders := append([]models.Order(nil), snapshot.Orders...)
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].Number < orders[j].Number
	})

	fmt.Fprintf(d.out, "=== Pedidos activos (v%d) ===\n", snapshot.Version)
	if len(orders) == 0 {
		fmt.Fprintln(d.out, "(sin pedidos)")
		return
	}

	for _, order := range orders {
		fmt.Fprintf(d.out, "%s #%d  %-10s  %s  %s EUR\n",
			statusIcon(order.Status),
			order.Number,
			order.Status,
			order.CustomerName,
			order.TotalAmount.StringFixed(2),
		)
		for _, item := range order.Items {
			fmt.Fprintf(d.out, "    %dx %s\n", item.Quantity, item.Name)
		}
	}
}

// statusIcon maps a status to its board marker. An unrecognized status is
// rendered as a question mark rather than being coerced to a known stage.
func statusIcon(status models.OrderStatus) string {
	switch status {
	case models.StatusReceived:
		return "📨"
	case models.StatusPreparing:
		return "👨‍🍳"
	case models.StatusReady:
		return "🛎️"
	case models.StatusDelivered:
		return "✅"
	default:
		return "❓"
	}
}
