package ordering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pizzeria-orders/internal/logger"
	"pizzeria-orders/internal/models"
)

// MessageSender renders and delivers a notification synchronously. The
// /api/whatsapp endpoint uses this path so an upstream failure surfaces as
// an HTTP error instead of being swallowed.
type MessageSender interface {
	Send(ctx context.Context, orderNumber int64, status models.OrderStatus, toPhone string) error
}

// HealthFunc reports whether the service's dependencies are reachable.
type HealthFunc func(ctx context.Context) bool

// Handler exposes the ordering workflows over HTTP.
type Handler struct {
	service *Service
	sender  MessageSender
	health  HealthFunc
	logger  *logger.Logger
}

// NewHandler creates a new ordering handler. health may be nil.
func NewHandler(service *Service, sender MessageSender, health HealthFunc, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		sender:  sender,
		health:  health,
		logger:  log,
	}
}

// CreateOrderRequest is the POST /api/orders body.
type CreateOrderRequest struct {
	MenuItemIDs   []int64 `json:"menu_item_ids"`
	CustomerName  string  `json:"customer_name,omitempty"`
	CustomerPhone string  `json:"customer_phone,omitempty"`
}

// NotifyRequest is the POST /api/whatsapp body.
type NotifyRequest struct {
	OrderNumber int64  `json:"orderNumber"`
	Status      string `json:"status"`
	To          string `json:"to,omitempty"`
}

// CreateOrder handles POST /api/orders requests.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	var req CreateOrderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		h.logger.Error("validation_failed", "Failed to parse request body", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	selection, err := h.service.SelectMenuItems(ctx, req.MenuItemIDs)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptySelection):
			h.writeErrorResponse(w, http.StatusBadRequest, "Order must contain at least one item", requestID)
		case errors.Is(err, models.ErrNotFound):
			h.writeErrorResponse(w, http.StatusBadRequest, err.Error(), requestID)
		default:
			h.logger.Error("order_creation_failed", "Failed to resolve menu selection", requestID, err, nil)
			h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		}
		return
	}

	order, err := h.service.PlaceOrder(ctx, selection, Customer{Name: req.CustomerName, Phone: req.CustomerPhone})
	if err != nil {
		h.logger.Error("order_creation_failed", "Failed to create order", requestID, err, map[string]any{
			"items": len(selection),
		})
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		return
	}

	h.writeJSON(w, http.StatusCreated, order, requestID)
}

// AdvanceOrder handles POST /api/orders/{id}/advance requests. A concurrent
// advance is not an error for the terminal user: the refreshed order is
// returned with 200 as if the caller had simply observed the newer state.
func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	orderID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid order id", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, err := h.service.AdvanceStatus(ctx, orderID)
	switch {
	case err == nil, errors.Is(err, models.ErrConflict):
		h.writeJSON(w, http.StatusOK, order, requestID)
	case errors.Is(err, models.ErrNotFound):
		h.writeErrorResponse(w, http.StatusNotFound, "Order not found", requestID)
	case errors.Is(err, models.ErrAlreadyTerminal):
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, "Order already delivered", requestID)
	default:
		h.logger.Error("advance_failed", "Failed to advance order", requestID, err, map[string]any{
			"order_id": orderID,
		})
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
	}
}

// ListOrders handles GET /api/orders requests.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	orders, err := h.service.ListActiveOrders(ctx)
	if err != nil {
		h.logger.Error("list_orders_failed", "Failed to list active orders", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	h.writeJSON(w, http.StatusOK, orders, requestID)
}

// ListMenu handles GET /api/menu requests.
func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	menu, err := h.service.ListMenu(ctx)
	if err != nil {
		h.logger.Error("list_menu_failed", "Failed to list menu", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		return
	}
	if menu == nil {
		menu = []models.MenuItem{}
	}

	h.writeJSON(w, http.StatusOK, menu, requestID)
}

// Stats handles GET /api/stats requests.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.service.TodayStats(ctx)
	if err != nil {
		h.logger.Error("stats_failed", "Failed to compute stats", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, stats, requestID)
}

// Notify handles /api/whatsapp requests. The method is checked by hand so
// non-POST callers get 405 with the JSON error envelope.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	if r.Method != http.MethodPost {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", requestID)
		return
	}

	var req NotifyRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		h.logger.Error("validation_failed", "Failed to parse notification request", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", requestID)
		return
	}

	status, err := models.ParseStatus(req.Status)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Unknown status %q", req.Status), requestID)
		return
	}
	if req.OrderNumber <= 0 {
		h.writeErrorResponse(w, http.StatusBadRequest, "orderNumber must be positive", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.sender.Send(ctx, req.OrderNumber, status, req.To); err != nil {
		h.logger.Error("notify_failed", "Failed to send notification", requestID, err, map[string]any{
			"order_number": req.OrderNumber,
			"status":       string(status),
		})
		h.writeErrorResponse(w, http.StatusInternalServerError, err.Error(), requestID)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true}, requestID)
}

// HealthCheck handles GET /health requests.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := h.health == nil || h.health(ctx)

	response := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "order-service",
		"healthy":   healthy,
	}

	statusCode := http.StatusOK
	if !healthy {
		statusCode = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}

	h.writeJSON(w, statusCode, response, requestIDFrom(r))
}

// SetupRoutes sets up the HTTP routes.
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/orders", h.withLogging(h.CreateOrder))
	mux.HandleFunc("POST /api/orders/{id}/advance", h.withLogging(h.AdvanceOrder))
	mux.HandleFunc("GET /api/orders", h.withLogging(h.ListOrders))
	mux.HandleFunc("GET /api/menu", h.withLogging(h.ListMenu))
	mux.HandleFunc("GET /api/stats", h.withLogging(h.Stats))
	mux.HandleFunc("/api/whatsapp", h.withLogging(h.Notify))
	mux.HandleFunc("GET /health", h.withLogging(h.HealthCheck))

	return mux
}

type contextKey string

const requestIDKey contextKey = "request_id"

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return logger.GenerateRequestID()
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, payload any, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

// writeErrorResponse writes an error response in JSON format.
func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]any{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	}

	json.NewEncoder(w).Encode(errorResponse)
}

// withLogging adds request logging middleware.
func (h *Handler) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.GenerateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next(rw, r)

		duration := time.Since(start)
		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": duration.Milliseconds(),
			})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
