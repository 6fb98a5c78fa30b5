package models

import "fmt"

// OrderStatus represents the lifecycle stage of an order.
type OrderStatus string

const (
	StatusReceived  OrderStatus = "received"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
)

// ParseStatus validates a raw status value.
func ParseStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusReceived, StatusPreparing, StatusReady, StatusDelivered:
		return OrderStatus(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Next returns the successor status. Orders advance exactly one stage at a
// time and never move backward; delivered is a no-op on itself. Unknown
// values are an error rather than a fallthrough to the terminal stage.
func (s OrderStatus) Next() (OrderStatus, error) {
	switch s {
	case StatusReceived:
		return StatusPreparing, nil
	case StatusPreparing:
		return StatusReady, nil
	case StatusReady:
		return StatusDelivered, nil
	case StatusDelivered:
		return StatusDelivered, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
	}
}

// IsTerminal reports whether no further transition is available.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered
}

// Customer-facing WhatsApp templates. Each one references the order number
// and nothing else, so a message can be rendered without reloading the order.
const (
	msgReceived  = "✅ ¡Pedido confirmado!\n\n🆔 Pedido #%d\n⏱️ Tiempo estimado: 15-20 min\n📱 Te avisaremos cuando esté listo\n\n¡Gracias por elegirnos! 🍕"
	msgPreparing = "👨‍🍳 ¡Tu pedido #%d se está preparando!\n\n🔥 Nuestros chefs están trabajando\n⏰ Estará listo muy pronto"
	msgReady     = "🍽️ ¡Pedido #%d LISTO!\n\n📦 El repartidor sale en 5 min\n🏠 Llegada estimada: 10-15 min"
	msgDelivered = "🎉 ¡Pedido #%d entregado!\n\n⭐ ¿Qué tal estuvo?\n💚 ¡Gracias por confiar en nosotros!"
)

// MessageFor renders the notification text for a status change.
func MessageFor(status OrderStatus, orderNumber int64) (string, error) {
	switch status {
	case StatusReceived:
		return fmt.Sprintf(msgReceived, orderNumber), nil
	case StatusPreparing:
		return fmt.Sprintf(msgPreparing, orderNumber), nil
	case StatusReady:
		return fmt.Sprintf(msgReady, orderNumber), nil
	case StatusDelivered:
		return fmt.Sprintf(msgDelivered, orderNumber), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, string(status))
	}
}
