package database

// Order queries
const (
	// Order numbers come from a dedicated sequence so rapid concurrent
	// placement can never collide.
	InsertOrderSQL = `
		INSERT INTO orders (order_number, customer_name, customer_phone, total_amount, status, order_source)
		VALUES (nextval('order_numbers'), $1, $2, $3::numeric, $4, $5)
		RETURNING id, order_number, created_at, updated_at`

	InsertOrderItemSQL = `
		INSERT INTO order_items (order_id, menu_item_id, quantity, price)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING id`

	// The stored total is the sum of the line items, written inside the same
	// transaction as the items themselves. The caller's figure is a hint only.
	ReconcileOrderTotalSQL = `
		UPDATE orders
		SET total_amount = (SELECT COALESCE(SUM(price * quantity), 0) FROM order_items WHERE order_id = $1)
		WHERE id = $1
		RETURNING total_amount::text`

	GetOrderSQL = `
		SELECT id, order_number, customer_name, customer_phone, total_amount::text,
			   status, order_source, created_at, updated_at
		FROM orders WHERE id = $1`

	GetOrderStatusSQL = `
		SELECT status FROM orders WHERE id = $1`

	ListActiveOrdersSQL = `
		SELECT id, order_number, customer_name, customer_phone, total_amount::text,
			   status, order_source, created_at, updated_at
		FROM orders
		WHERE status <> 'delivered'
		ORDER BY created_at DESC`

	ListOrderItemsSQL = `
		SELECT oi.id, oi.order_id, oi.menu_item_id, mi.name, oi.quantity, oi.price::text
		FROM order_items oi
		JOIN menu_items mi ON mi.id = oi.menu_item_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id ASC`

	// Conditional write: the transition only lands if the stored status still
	// equals the expected prior status.
	UpdateOrderStatusSQL = `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING id, order_number, customer_name, customer_phone, total_amount::text,
				  status, order_source, created_at, updated_at`

	TodayStatsSQL = `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0)::text
		FROM orders
		WHERE created_at >= date_trunc('day', NOW())`
)

// Menu queries
const (
	ListMenuSQL = `
		SELECT id, name, description, price::text, category, available
		FROM menu_items
		WHERE available = TRUE
		ORDER BY category, name`

	MenuItemsByIDSQL = `
		SELECT id, name, description, price::text, category, available
		FROM menu_items
		WHERE id = ANY($1)`
)
