package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestOrderStatus_Next(t *testing.T) {
	tests := []struct {
		current OrderStatus
		want    OrderStatus
	}{
		{StatusReceived, StatusPreparing},
		{StatusPreparing, StatusReady},
		{StatusReady, StatusDelivered},
		{StatusDelivered, StatusDelivered},
	}

	for _, tt := range tests {
		got, err := tt.current.Next()
		if err != nil {
			t.Fatalf("Next(%s) returned error: %v", tt.current, err)
		}
		if got != tt.want {
			t.Errorf("Next(%s) = %s, want %s", tt.current, got, tt.want)
		}
	}
}

func TestOrderStatus_Next_InvalidStatus(t *testing.T) {
	for _, raw := range []string{"", "cancelled", "DELIVERED", "cooking"} {
		_, err := OrderStatus(raw).Next()
		if !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("Next(%q) error = %v, want ErrInvalidStatus", raw, err)
		}
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	for _, s := range []OrderStatus{StatusReceived, StatusPreparing, StatusReady} {
		if s.IsTerminal() {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
	if !StatusDelivered.IsTerminal() {
		t.Errorf("IsTerminal(delivered) = false, want true")
	}
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"received", "preparing", "ready", "delivered"} {
		got, err := ParseStatus(raw)
		if err != nil {
			t.Fatalf("ParseStatus(%q) returned error: %v", raw, err)
		}
		if string(got) != raw {
			t.Errorf("ParseStatus(%q) = %s", raw, got)
		}
	}

	if _, err := ParseStatus("shipped"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ParseStatus(shipped) error = %v, want ErrInvalidStatus", err)
	}
}

func TestMessageFor(t *testing.T) {
	const number = int64(1718000123)

	for _, s := range []OrderStatus{StatusReceived, StatusPreparing, StatusReady, StatusDelivered} {
		first, err := MessageFor(s, number)
		if err != nil {
			t.Fatalf("MessageFor(%s) returned error: %v", s, err)
		}
		if !strings.Contains(first, fmt.Sprintf("#%d", number)) {
			t.Errorf("MessageFor(%s) does not contain the order number: %q", s, first)
		}

		// Pure function: a second call yields identical output.
		second, err := MessageFor(s, number)
		if err != nil {
			t.Fatalf("MessageFor(%s) second call returned error: %v", s, err)
		}
		if first != second {
			t.Errorf("MessageFor(%s) is not deterministic", s)
		}
	}

	if _, err := MessageFor("unknown", number); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("MessageFor(unknown) error = %v, want ErrInvalidStatus", err)
	}
}
