package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem is a catalog entry. The core never mutates the menu; items are
// created and maintained by an external catalog process.
type MenuItem struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category" db:"category"`
	Available   bool            `json:"available" db:"available"`
}

// OrderItem is a line item: a quantity and a price snapshot taken at order
// time, independent of later menu price changes.
type OrderItem struct {
	ID         int64           `json:"id,omitempty" db:"id"`
	OrderID    int64           `json:"order_id,omitempty" db:"order_id"`
	MenuItemID int64           `json:"menu_item_id" db:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity" db:"quantity"`
	Price      decimal.Decimal `json:"price" db:"price"`
}

// Order is a customer's purchase record. Orders are never deleted; delivered
// orders simply drop out of the active views.
type Order struct {
	ID            int64           `json:"id" db:"id"`
	Number        int64           `json:"order_number" db:"order_number"`
	CustomerName  string          `json:"customer_name" db:"customer_name"`
	CustomerPhone string          `json:"customer_phone" db:"customer_phone"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status        OrderStatus     `json:"status" db:"status"`
	Source        string          `json:"order_source" db:"order_source"`
	Items         []OrderItem     `json:"items"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderDraft is the input to OrderRepository.CreateOrder. TotalAmount is an
// optimistic hint from the caller; the repository recomputes the stored total
// from the line items inside the insert transaction.
type OrderDraft struct {
	CustomerName  string
	CustomerPhone string
	Source        string
	TotalAmount   decimal.Decimal
	Items         []OrderItemDraft
}

// OrderItemDraft is one line of an order draft.
type OrderItemDraft struct {
	MenuItemID int64
	Name       string
	Quantity   int
	Price      decimal.Decimal
}

// DayStats aggregates today's orders for the stats endpoint.
type DayStats struct {
	Orders  int             `json:"orders_today"`
	Revenue decimal.Decimal `json:"revenue_today"`
}

// ItemTotal returns price multiplied by quantity.
func (i OrderItemDraft) ItemTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
