package changefeed

// Operations carried by change events.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
)

// TableOrders is the only table the core publishes changes for.
const TableOrders = "orders"

// Event signals that a stored record mutated. It identifies the row but
// never carries the new value: subscribers must re-read the store, which
// makes duplicate or out-of-order delivery harmless.
type Event struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	RowID int64  `json:"row_id"`
}
