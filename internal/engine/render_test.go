package engine

import (
	"strings"
	"testing"

	"github.com/Alex-Men-VL/sell-pizza/internal/commerce"
	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
)

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"500.00 RUB", `500\.00 RUB`},
		{"a*b_c", `a\*b\_c`},
		{"(1+1)=2!", `\(1\+1\)\=2\!`},
		{"Маргарита", "Маргарита"},
	}
	for _, tt := range tests {
		if got := escapeMarkdown(tt.in); got != tt.want {
			t.Errorf("escapeMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderCart_Empty(t *testing.T) {
	text, kb := renderCart(commerce.CartContents{})
	if !strings.Contains(text, "пуста") {
		t.Errorf("text = %q, want empty-cart notice", text)
	}
	if len(kb.Rows) != 1 || kb.Rows[0][0].Action != ActionMenu {
		t.Errorf("keyboard = %+v, want single menu button", kb.Rows)
	}
}

func TestRenderCart_ItemsAndButtons(t *testing.T) {
	contents := commerce.CartContents{
		Items: []commerce.CartItem{
			{ID: "i1", Name: "Маргарита", Quantity: 2, LinePriceFormatted: "1000.00 RUB"},
			{ID: "i2", Name: "Пепперони", Quantity: 1, LinePriceFormatted: "600.00 RUB"},
		},
		TotalFormatted: "1600.00 RUB",
	}
	text, kb := renderCart(contents)

	if !strings.Contains(text, `1600\.00 RUB`) {
		t.Errorf("total missing or unescaped: %q", text)
	}
	// One removal button per item, then menu and checkout rows.
	if len(kb.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(kb.Rows))
	}
	for i, itemID := range []string{"i1", "i2"} {
		btn := kb.Rows[i][0]
		if btn.Action != ActionRemove || btn.Payload != itemID {
			t.Errorf("row %d = %+v, want remove %s", i, btn, itemID)
		}
	}
	if kb.Rows[3][0].Action != ActionCheckout {
		t.Errorf("last row = %+v, want checkout", kb.Rows[3])
	}
}

func TestRenderDeliveryOptions(t *testing.T) {
	nearest := delivery.NearestResult{
		Point:      delivery.ServicePoint{Address: "Тверская 1"},
		DistanceKm: 0.3,
		DistanceM:  300,
	}

	hasAction := func(kb *Keyboard, action string) bool {
		for _, row := range kb.Rows {
			for _, b := range row {
				if b.Action == action {
					return true
				}
			}
		}
		return false
	}

	text, kb := renderDeliveryOptions(delivery.BandWalkingDistance, nearest)
	if !strings.Contains(text, "300") || !strings.Contains(text, "Тверская 1") {
		t.Errorf("walking text = %q", text)
	}
	if !hasAction(kb, ActionDelivery) || !hasAction(kb, ActionPickup) {
		t.Error("walking distance must offer both options")
	}

	_, kb = renderDeliveryOptions(delivery.BandNearby, nearest)
	if !hasAction(kb, ActionDelivery) {
		t.Error("nearby must offer delivery")
	}

	_, kb = renderDeliveryOptions(delivery.BandFar, nearest)
	if !hasAction(kb, ActionDelivery) {
		t.Error("far must offer delivery")
	}

	text, kb = renderDeliveryOptions(delivery.BandPickupOnly, delivery.NearestResult{DistanceKm: 42.5})
	if hasAction(kb, ActionDelivery) {
		t.Error("pickup-only must not offer delivery")
	}
	if !strings.Contains(text, "42.5") {
		t.Errorf("pickup-only text = %q", text)
	}
}
