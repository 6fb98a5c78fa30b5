package ordering

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"pizzeria-orders/internal/logger"
	"pizzeria-orders/internal/models"
	"pizzeria-orders/internal/projection"
)

// Defaults for the demo terminal, matching the reference deployment.
const (
	defaultCustomerName  = "Cliente Demo"
	defaultCustomerPhone = "+34666000000"
	orderSourceWeb       = "web"
)

// OrderStore is the persistence boundary the coordinator drives.
type OrderStore interface {
	CreateOrder(ctx context.Context, draft models.OrderDraft) (models.Order, error)
	GetOrder(ctx context.Context, orderID int64) (models.Order, error)
	ListActiveOrders(ctx context.Context) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, expected, next models.OrderStatus) (models.Order, error)
	MenuItems(ctx context.Context, ids []int64) ([]models.MenuItem, error)
	ListMenu(ctx context.Context) ([]models.MenuItem, error)
	TodayStats(ctx context.Context) (models.DayStats, error)
}

// Notifier dispatches a status notification without blocking the caller.
type Notifier interface {
	Dispatch(orderNumber int64, status models.OrderStatus, toPhone string)
}

// ProjectionSource exposes the latest locally known order set.
type ProjectionSource interface {
	Current() projection.Snapshot
}

// Customer identifies who placed an order.
type Customer struct {
	Name  string
	Phone string
}

// Service orchestrates the two user-triggered workflows: placing an order
// and advancing its status. Notifications are a side channel; they never
// gate or fail a transition.
type Service struct {
	store     OrderStore
	projector ProjectionSource
	notifier  Notifier
	logger    *logger.Logger
}

// NewService creates the coordinator. projector may be nil, in which case
// every advance reads the store directly.
func NewService(store OrderStore, projector ProjectionSource, notifier Notifier, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		projector: projector,
		notifier:  notifier,
		logger:    log,
	}
}

// SelectMenuItems resolves a set of menu item ids into a selection. Every id
// must exist and be available; duplicates are allowed and become separate
// line items, as they do on the terminal.
func (s *Service) SelectMenuItems(ctx context.Context, ids []int64) ([]models.MenuItem, error) {
	if len(ids) == 0 {
		return nil, models.ErrEmptySelection
	}

	found, err := s.store.MenuItems(ctx, dedupe(ids))
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.MenuItem, len(found))
	for _, item := range found {
		byID[item.ID] = item
	}

	selection := make([]models.MenuItem, 0, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: menu item %d", models.ErrNotFound, id)
		}
		if !item.Available {
			return nil, fmt.Errorf("%w: menu item %d is unavailable", models.ErrNotFound, id)
		}
		selection = append(selection, item)
	}

	return selection, nil
}

// PlaceOrder validates the selection, persists the order with its line items
// and dispatches the initial notification. The order is placed as soon as it
// is persisted; notification delivery is detached and best effort.
func (s *Service) PlaceOrder(ctx context.Context, selection []models.MenuItem, customer Customer) (models.Order, error) {
	if len(selection) == 0 {
		return models.Order{}, models.ErrEmptySelection
	}

	if customer.Name == "" {
		customer.Name = defaultCustomerName
	}
	if customer.Phone == "" {
		customer.Phone = defaultCustomerPhone
	}

	draft := models.OrderDraft{
		CustomerName:  customer.Name,
		CustomerPhone: customer.Phone,
		Source:        orderSourceWeb,
	}

	total := decimal.Zero
	for _, item := range selection {
		line := models.OrderItemDraft{
			MenuItemID: item.ID,
			Name:       item.Name,
			Quantity:   1,
			Price:      item.Price, // snapshot; later menu changes don't touch it
		}
		draft.Items = append(draft.Items, line)
		total = total.Add(line.ItemTotal())
	}
	draft.TotalAmount = total

	order, err := s.store.CreateOrder(ctx, draft)
	if err != nil {
		return models.Order{}, err
	}

	s.logger.Info("order_placed", "Order placed", "", map[string]any{
		"order_number": order.Number,
		"total_amount": order.TotalAmount.String(),
		"items":        len(order.Items),
	})

	s.notifier.Dispatch(order.Number, models.StatusReceived, order.CustomerPhone)

	return order, nil
}

// AdvanceStatus steps an order exactly one stage forward. The current status
// comes from the latest projection when available; a fresh store read is the
// fallback. A lost race returns the refreshed order together with ErrConflict:
// someone else already advanced the order and already notified.
func (s *Service) AdvanceStatus(ctx context.Context, orderID int64) (models.Order, error) {
	current, err := s.currentOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}

	if current.Status.IsTerminal() {
		return models.Order{}, fmt.Errorf("%w: order %d", models.ErrAlreadyTerminal, orderID)
	}

	next, err := current.Status.Next()
	if err != nil {
		return models.Order{}, err
	}

	order, err := s.store.UpdateStatus(ctx, orderID, current.Status, next)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			refreshed, refreshErr := s.store.GetOrder(ctx, orderID)
			if refreshErr != nil {
				return models.Order{}, refreshErr
			}
			s.logger.Debug("advance_conflict", "Order was advanced concurrently", "", map[string]any{
				"order_id": orderID,
				"status":   string(refreshed.Status),
			})
			return refreshed, err
		}
		return models.Order{}, err
	}

	s.logger.Info("status_advanced", "Order status advanced", "", map[string]any{
		"order_number": order.Number,
		"from":         string(current.Status),
		"to":           string(next),
	})

	s.notifier.Dispatch(order.Number, next, order.CustomerPhone)

	return order, nil
}

// ListActiveOrders reads the active order set from the store.
func (s *Service) ListActiveOrders(ctx context.Context) ([]models.Order, error) {
	return s.store.ListActiveOrders(ctx)
}

// ListMenu reads the available catalog.
func (s *Service) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	return s.store.ListMenu(ctx)
}

// TodayStats aggregates today's orders.
func (s *Service) TodayStats(ctx context.Context) (models.DayStats, error) {
	return s.store.TodayStats(ctx)
}

func (s *Service) currentOrder(ctx context.Context, orderID int64) (models.Order, error) {
	if s.projector != nil {
		if order, ok := s.projector.Current().Find(orderID); ok {
			return order, nil
		}
	}
	return s.store.GetOrder(ctx, orderID)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
