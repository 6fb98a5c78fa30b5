package ordering

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"pizzeria-orders/internal/logger"
	"pizzeria-orders/internal/models"
)

type fakeMessageSender struct {
	mu    sync.Mutex
	calls []dispatched
	err   error
}

func (f *fakeMessageSender) Send(_ context.Context, orderNumber int64, status models.OrderStatus, toPhone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, dispatched{number: orderNumber, status: status, phone: toPhone})
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeStore, *fakeMessageSender) {
	t.Helper()
	store := newFakeStore(testMenu()...)
	sender := &fakeMessageSender{}
	log := logger.New("ordering-test")
	svc := NewService(store, nil, &fakeNotifier{}, log)
	return NewHandler(svc, sender, nil, log), store, sender
}

func doRequest(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/orders", `{"menu_item_ids":[1,2]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	var order models.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if order.Status != models.StatusReceived {
		t.Errorf("status = %s, want received", order.Status)
	}
	if len(order.Items) != 2 {
		t.Errorf("items = %d, want 2", len(order.Items))
	}
}

func TestCreateOrderEndpoint_Validation(t *testing.T) {
	h, store, _ := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty selection", `{"menu_item_ids":[]}`},
		{"unknown item", `{"menu_item_ids":[99]}`},
		{"unavailable item", `{"menu_item_ids":[3]}`},
		{"malformed json", `{"menu_item_ids":`},
		{"unknown field", `{"menu_item_ids":[1],"tip":true}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/api/orders", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
			}
		})
	}

	if len(store.orders) != 0 {
		t.Errorf("rejected requests persisted %d orders", len(store.orders))
	}
}

func TestAdvanceOrderEndpoint(t *testing.T) {
	h, store, _ := newTestHandler(t)

	order, err := store.CreateOrder(context.Background(), models.OrderDraft{
		CustomerName:  "Ana",
		CustomerPhone: "+34600111222",
		Source:        "web",
		Items:         []models.OrderItemDraft{{MenuItemID: 1, Name: "Pizza Margarita", Quantity: 1, Price: testMenu()[0].Price}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	rec := doRequest(t, h, http.MethodPost, fmt.Sprintf("/api/orders/%d/advance", order.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var advanced models.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &advanced); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if advanced.Status != models.StatusPreparing {
		t.Errorf("status = %s, want preparing", advanced.Status)
	}
}

func TestAdvanceOrderEndpoint_Errors(t *testing.T) {
	h, store, _ := newTestHandler(t)

	order, err := store.CreateOrder(context.Background(), models.OrderDraft{
		CustomerName: "Ana", CustomerPhone: "+34600111222", Source: "web",
		Items: []models.OrderItemDraft{{MenuItemID: 1, Name: "Pizza Margarita", Quantity: 1, Price: testMenu()[0].Price}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	order.Status = models.StatusDelivered
	store.orders[order.ID] = order

	t.Run("already delivered", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, fmt.Sprintf("/api/orders/%d/advance", order.ID), "")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/orders/404/advance", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/orders/abc/advance", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestListEndpoints(t *testing.T) {
	h, _, _ := newTestHandler(t)

	t.Run("orders empty", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/orders", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("body = %q, want empty array", body)
		}
	})

	t.Run("menu", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/menu", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var menu []models.MenuItem
		if err := json.Unmarshal(rec.Body.Bytes(), &menu); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(menu) != 3 {
			t.Errorf("menu length = %d, want 3", len(menu))
		}
	})

	t.Run("stats", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/stats", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})
}

func TestNotifyEndpoint(t *testing.T) {
	h, _, sender := newTestHandler(t)

	t.Run("success", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/whatsapp", `{"orderNumber":7,"status":"ready"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
		}
		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp["success"] != true {
			t.Errorf("body = %v, want success true", resp)
		}
		if len(sender.calls) != 1 || sender.calls[0].status != models.StatusReady {
			t.Errorf("sender calls = %+v, want one ready send", sender.calls)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/whatsapp", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d, want 405", rec.Code)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/whatsapp", `{"orderNumber":7,"status":"cooking"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/whatsapp", `{"orderNumber":`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("dispatch failure", func(t *testing.T) {
		sender.err = fmt.Errorf("%w: gateway rejected message", models.ErrDispatch)
		defer func() { sender.err = nil }()

		rec := doRequest(t, h, http.MethodPost, "/api/whatsapp", `{"orderNumber":7,"status":"ready"}`)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if _, ok := resp["error"]; !ok {
			t.Errorf("body = %v, want error field", resp)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v, want ok", resp["status"])
	}
}

func TestHealthEndpoint_Unhealthy(t *testing.T) {
	store := newFakeStore(testMenu()...)
	log := logger.New("ordering-test")
	svc := NewService(store, nil, &fakeNotifier{}, log)
	h := NewHandler(svc, &fakeMessageSender{}, func(context.Context) bool { return false }, log)

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
