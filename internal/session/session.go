// Package session holds the per-user conversation state persisted between
// inbound events.
package session

import (
	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
)

// State identifies the user's position in the ordering workflow.
type State string

const (
	StateStart            State = "START"
	StateMenu             State = "MENU"
	StateProductDetail    State = "PRODUCT_DETAIL"
	StateCart             State = "CART"
	StateAwaitingEmail    State = "AWAITING_EMAIL"
	StateAwaitingLocation State = "AWAITING_LOCATION"
	StateDeliveryChoice   State = "DELIVERY_CHOICE"
	StateAwaitingPayment  State = "AWAITING_PAYMENT"
)

// States lists every declared state.
var States = []State{
	StateStart,
	StateMenu,
	StateProductDetail,
	StateCart,
	StateAwaitingEmail,
	StateAwaitingLocation,
	StateDeliveryChoice,
	StateAwaitingPayment,
}

// Valid reports whether s is one of the declared states.
func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// BrowseData carries fields relevant while the user looks at a product.
type BrowseData struct {
	ProductID string `json:"product_id"`
}

// CheckoutData carries fields accumulated between the location share and
// the delivery choice.
type CheckoutData struct {
	Nearest delivery.NearestResult `json:"nearest"`
	Coords  delivery.Coords        `json:"coords"`
}

// PaymentData carries the payment handshake fields. Token changes on every
// "pay now" press; a mismatching callback is rejected.
type PaymentData struct {
	Token       string `json:"token"`
	CartTotal   string `json:"cart_total"`
	AmountMinor int    `json:"amount_minor"`
	// Delivery is true when the user chose courier delivery over pickup.
	Delivery bool `json:"delivery"`
}

// Session is one user's conversation state. State-scoped field groups are
// kept in optional sub-records so a payment token cannot coexist with the
// menu browsing state.
type Session struct {
	State        State  `json:"state"`
	PendingReply string `json:"pending_reply,omitempty"`
	CurrentPage  int    `json:"current_page,omitempty"`
	// CustomerID survives across orders once the email was collected.
	CustomerID string `json:"customer_id,omitempty"`

	Browse   *BrowseData   `json:"browse,omitempty"`
	Checkout *CheckoutData `json:"checkout,omitempty"`
	Payment  *PaymentData  `json:"payment,omitempty"`
}

// New returns the implicit session of an unseen user.
func New() *Session {
	return &Session{State: StateStart, CurrentPage: 1}
}

// ClearOrder drops all cart-derived fields after a completed payment.
func (s *Session) ClearOrder() {
	s.Browse = nil
	s.Checkout = nil
	s.Payment = nil
}
