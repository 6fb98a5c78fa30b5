package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pizzeria-orders/internal/changefeed"
	"pizzeria-orders/internal/database"
	"pizzeria-orders/internal/logger"
	"pizzeria-orders/internal/models"
)

// EventPublisher receives a change event after every committed mutation.
type EventPublisher interface {
	Publish(ctx context.Context, event changefeed.Event) error
}

const publishTimeout = 5 * time.Second

// Orders is the CRUD façade over the persistent order store. It validates
// nothing about transitions beyond the conditional write; sequencing rules
// belong to the coordinator.
type Orders struct {
	db     *database.DB
	feed   EventPublisher
	logger *logger.Logger
}

// NewOrders creates the repository. feed may be nil in tests.
func NewOrders(db *database.DB, feed EventPublisher, log *logger.Logger) *Orders {
	return &Orders{
		db:     db,
		feed:   feed,
		logger: log,
	}
}

// CreateOrder persists the order row and its line items as one transaction.
// Either both are visible to readers afterwards or neither is. The stored
// total is recomputed from the items inside the transaction; the draft total
// is only an optimistic hint. New orders always start in status received.
func (r *Orders) CreateOrder(ctx context.Context, draft models.OrderDraft) (models.Order, error) {
	if len(draft.Items) == 0 {
		return models.Order{}, models.ErrEmptySelection
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("%w: failed to begin transaction: %v", models.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	order := models.Order{
		CustomerName:  draft.CustomerName,
		CustomerPhone: draft.CustomerPhone,
		Status:        models.StatusReceived,
		Source:        draft.Source,
	}

	err = tx.QueryRow(ctx, database.InsertOrderSQL,
		draft.CustomerName,
		draft.CustomerPhone,
		draft.TotalAmount.String(),
		string(models.StatusReceived),
		draft.Source,
	).Scan(&order.ID, &order.Number, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return models.Order{}, fmt.Errorf("%w: failed to insert order: %v", models.ErrPersistence, err)
	}

	for _, item := range draft.Items {
		stored := models.OrderItem{
			OrderID:    order.ID,
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			Price:      item.Price,
		}
		err = tx.QueryRow(ctx, database.InsertOrderItemSQL,
			order.ID, item.MenuItemID, item.Quantity, item.Price.String(),
		).Scan(&stored.ID)
		if err != nil {
			return models.Order{}, fmt.Errorf("%w: failed to insert order item: %v", models.ErrPersistence, err)
		}
		order.Items = append(order.Items, stored)
	}

	var totalText string
	if err = tx.QueryRow(ctx, database.ReconcileOrderTotalSQL, order.ID).Scan(&totalText); err != nil {
		return models.Order{}, fmt.Errorf("%w: failed to reconcile order total: %v", models.ErrPersistence, err)
	}
	if order.TotalAmount, err = parseDecimal(totalText); err != nil {
		return models.Order{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, fmt.Errorf("%w: failed to commit transaction: %v", models.ErrPersistence, err)
	}

	r.publish(changefeed.OpInsert, order.ID)

	return order, nil
}

// GetOrder reads a single order with its line items.
func (r *Orders) GetOrder(ctx context.Context, orderID int64) (models.Order, error) {
	order, err := r.scanOrder(r.db.QueryRow(ctx, database.GetOrderSQL, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, models.ErrNotFound
		}
		return models.Order{}, err
	}

	items, err := r.loadItems(ctx, []int64{order.ID})
	if err != nil {
		return models.Order{}, err
	}
	order.Items = items[order.ID]

	return order, nil
}

// ListActiveOrders returns every order that is not yet delivered, newest
// first, with line items and menu item names embedded.
func (r *Orders) ListActiveOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := r.db.Query(ctx, database.ListActiveOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query active orders: %v", models.ErrPersistence, err)
	}
	defer rows.Close()

	var orders []models.Order
	var ids []int64
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read active orders: %v", models.ErrPersistence, err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

// UpdateStatus persists a transition conditionally: the write only lands if
// the stored status still equals expected. A lost race yields ErrConflict so
// the caller can discard the stale attempt instead of double-notifying.
func (r *Orders) UpdateStatus(ctx context.Context, orderID int64, expected, next models.OrderStatus) (models.Order, error) {
	order, err := r.scanOrder(r.db.QueryRow(ctx, database.UpdateOrderStatusSQL,
		orderID, string(expected), string(next)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, r.classifyMissedUpdate(ctx, orderID)
		}
		return models.Order{}, err
	}

	items, err := r.loadItems(ctx, []int64{order.ID})
	if err != nil {
		return models.Order{}, err
	}
	order.Items = items[order.ID]

	r.publish(changefeed.OpUpdate, order.ID)

	return order, nil
}

// classifyMissedUpdate distinguishes an unknown order from a lost race.
func (r *Orders) classifyMissedUpdate(ctx context.Context, orderID int64) error {
	var status string
	err := r.db.QueryRow(ctx, database.GetOrderStatusSQL, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: failed to probe order status: %v", models.ErrPersistence, err)
	}
	return fmt.Errorf("%w: stored status is %q", models.ErrConflict, status)
}

// ListMenu returns the available catalog ordered by category and name.
func (r *Orders) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	rows, err := r.db.Query(ctx, database.ListMenuSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query menu: %v", models.ErrPersistence, err)
	}
	defer rows.Close()
	return scanMenuItems(rows)
}

// MenuItems resolves catalog entries by id, available or not; the caller
// decides what an unavailable item means.
func (r *Orders) MenuItems(ctx context.Context, ids []int64) ([]models.MenuItem, error) {
	rows, err := r.db.Query(ctx, database.MenuItemsByIDSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query menu items: %v", models.ErrPersistence, err)
	}
	defer rows.Close()
	return scanMenuItems(rows)
}

// TodayStats aggregates today's order count and revenue.
func (r *Orders) TodayStats(ctx context.Context) (models.DayStats, error) {
	var stats models.DayStats
	var revenueText string

	err := r.db.QueryRow(ctx, database.TodayStatsSQL).Scan(&stats.Orders, &revenueText)
	if err != nil {
		return models.DayStats{}, fmt.Errorf("%w: failed to query today stats: %v", models.ErrPersistence, err)
	}
	if stats.Revenue, err = parseDecimal(revenueText); err != nil {
		return models.DayStats{}, err
	}

	return stats, nil
}

func (r *Orders) scanOrder(row pgx.Row) (models.Order, error) {
	var order models.Order
	var totalText, statusText string

	err := row.Scan(&order.ID, &order.Number, &order.CustomerName, &order.CustomerPhone,
		&totalText, &statusText, &order.Source, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, err
		}
		return models.Order{}, fmt.Errorf("%w: failed to scan order: %v", models.ErrPersistence, err)
	}

	if order.TotalAmount, err = parseDecimal(totalText); err != nil {
		return models.Order{}, err
	}
	if order.Status, err = models.ParseStatus(statusText); err != nil {
		return models.Order{}, err
	}

	return order, nil
}

func (r *Orders) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	rows, err := r.db.Query(ctx, database.ListOrderItemsSQL, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query order items: %v", models.ErrPersistence, err)
	}
	defer rows.Close()

	items := make(map[int64][]models.OrderItem)
	for rows.Next() {
		var item models.OrderItem
		var priceText string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Name, &item.Quantity, &priceText); err != nil {
			return nil, fmt.Errorf("%w: failed to scan order item: %v", models.ErrPersistence, err)
		}
		if item.Price, err = parseDecimal(priceText); err != nil {
			return nil, err
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	return items, rows.Err()
}

// publish emits a change event after a committed mutation. The feed is a
// refresh signal, not the source of truth, so a failed publish is logged and
// the mutation stands.
func (r *Orders) publish(op string, rowID int64) {
	if r.feed == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	event := changefeed.Event{Table: changefeed.TableOrders, Op: op, RowID: rowID}
	if err := r.feed.Publish(ctx, event); err != nil {
		r.logger.Error("change_publish_failed", "Failed to publish change event", "", err, map[string]any{
			"op":     op,
			"row_id": rowID,
		})
	}
}

func scanMenuItems(rows pgx.Rows) ([]models.MenuItem, error) {
	var items []models.MenuItem
	for rows.Next() {
		var item models.MenuItem
		var priceText string
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &priceText, &item.Category, &item.Available); err != nil {
			return nil, fmt.Errorf("%w: failed to scan menu item: %v", models.ErrPersistence, err)
		}
		price, err := parseDecimal(priceText)
		if err != nil {
			return nil, err
		}
		item.Price = price
		items = append(items, item)
	}
	return items, rows.Err()
}

func parseDecimal(text string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: invalid numeric %q: %v", models.ErrPersistence, text, err)
	}
	return d, nil
}
