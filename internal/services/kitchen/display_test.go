package kitchen

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pizzeria-orders/internal/logger"
	"pizzeria-orders/internal/models"
	"pizzeria-orders/internal/projection"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeSource struct {
	snapshots chan projection.Snapshot
	current   projection.Snapshot
}

func (f *fakeSource) Observe() <-chan projection.Snapshot {
	return f.snapshots
}

func (f *fakeSource) Current() projection.Snapshot {
	return f.current
}

func boardOrder(number int64, status models.OrderStatus) models.Order {
	return models.Order{
		ID:           number,
		Number:       number,
		CustomerName: "Ana",
		TotalAmount:  decimal.RequireFromString("8.50"),
		Status:       status,
		Items: []models.OrderItem{
			{MenuItemID: 1, Name: "Pizza Margarita", Quantity: 1, Price: decimal.RequireFromString("8.50")},
		},
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	display := NewDisplay(&fakeSource{}, &buf, logger.New("kitchen-test"))

	display.Render(projection.Snapshot{
		Orders:  []models.Order{boardOrder(102, models.StatusPreparing), boardOrder(101, models.StatusReceived)},
		Version: 3,
	})

	out := buf.String()
	if !strings.Contains(out, "#101") || !strings.Contains(out, "#102") {
		t.Fatalf("board missing orders:\n%s", out)
	}
	if strings.Index(out, "#101") > strings.Index(out, "#102") {
		t.Errorf("orders not sorted by number:\n%s", out)
	}
	if !strings.Contains(out, "1x Pizza Margarita") {
		t.Errorf("board missing line items:\n%s", out)
	}
	if !strings.Contains(out, "8.50 EUR") {
		t.Errorf("board missing total:\n%s", out)
	}
}

func TestRender_EmptyBoard(t *testing.T) {
	var buf bytes.Buffer
	display := NewDisplay(&fakeSource{}, &buf, logger.New("kitchen-test"))

	display.Render(projection.Snapshot{Version: 1})

	if !strings.Contains(buf.String(), "(sin pedidos)") {
		t.Errorf("empty board not rendered:\n%s", buf.String())
	}
}

func TestRun_RedrawsOnSnapshots(t *testing.T) {
	source := &fakeSource{snapshots: make(chan projection.Snapshot, 1)}
	buf := &syncBuffer{}
	display := NewDisplay(source, buf, logger.New("kitchen-test"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- display.Run(ctx)
	}()

	source.snapshots <- projection.Snapshot{
		Orders:  []models.Order{boardOrder(7, models.StatusReady)},
		Version: 2,
	}

	deadline := time.After(time.Second)
	for !strings.Contains(buf.String(), "#7") {
		select {
		case <-deadline:
			t.Fatalf("board never redrew:\n%s", buf.String())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
