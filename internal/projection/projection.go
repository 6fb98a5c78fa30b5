package projection

import (
	"time"

	"pizzeria-orders/internal/changefeed"
	"pizzeria-orders/internal/models"
)

// Snapshot is an immutable view of the active order set, as of the last
// refresh. Dropped (delivered) orders are simply absent.
type Snapshot struct {
	Orders      []models.Order
	Version     uint64
	RefreshedAt time.Time
}

// Find returns the order with the given id, if the snapshot holds it.
func (s Snapshot) Find(orderID int64) (models.Order, bool) {
	for _, o := range s.Orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return models.Order{}, false
}

// Apply is the reducer: (previous snapshot, change event, refreshed rows) →
// next snapshot. The event is only a trigger; the freshly read rows are
// authoritative, which makes duplicate and out-of-order events harmless.
// Events for other tables leave the snapshot untouched.
func Apply(prev Snapshot, event changefeed.Event, orders []models.Order, now time.Time) Snapshot {
	if event.Table != changefeed.TableOrders {
		return prev
	}
	return Snapshot{
		Orders:      orders,
		Version:     prev.Version + 1,
		RefreshedAt: now,
	}
}
