// Package engine is the per-user conversation core: the transition function
// over workflow states, the effects it emits, and the dispatcher that
// executes them against external collaborators.
package engine

import (
	"strings"

	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
)

// Kind classifies an inbound event.
type Kind int

const (
	// KindText is a plain text message.
	KindText Kind = iota
	// KindAction is a button tap; Action and Payload carry its data.
	KindAction
	// KindLocation is a direct location share.
	KindLocation
	// KindPreCheckout is the provider's pre-checkout validation callback.
	KindPreCheckout
	// KindPaymentSuccess is the provider's successful payment callback.
	KindPaymentSuccess
)

// Action names for button taps. The channel adapter encodes these as the
// callback unique.
const (
	ActionCart     = "cart"
	ActionMenu     = "menu"
	ActionPage     = "page"
	ActionProduct  = "product"
	ActionAdd      = "add"
	ActionRemove   = "remove"
	ActionCheckout = "checkout"
	ActionPickup   = "pickup"
	ActionDelivery = "delivery"
	ActionPay      = "pay"
)

// restartCommand re-enters the initial state from anywhere.
const restartCommand = "/start"

// Event is the channel-neutral shape of one inbound user event.
type Event struct {
	Kind    Kind
	UserKey string

	// Text is the raw message text for KindText.
	Text string
	// Action and Payload carry button data for KindAction.
	Action  string
	Payload string
	// Location is set for KindLocation.
	Location *delivery.Coords

	// MessageID points at the message the user interacted with, when the
	// channel supports editing it in place.
	MessageID string
	// CallbackID answers button taps and pre-checkout queries.
	CallbackID string

	// Token is the echoed correlation token of a payment callback.
	Token string
	// AmountMinor is the paid amount reported by the provider.
	AmountMinor int
}

// Reply returns the raw user input recorded as the session's pending reply.
func (e Event) Reply() string {
	switch e.Kind {
	case KindAction:
		if e.Payload != "" {
			return e.Action + ":" + e.Payload
		}
		return e.Action
	default:
		return e.Text
	}
}

// IsRestart reports whether the event is the explicit restart command.
func (e Event) IsRestart() bool {
	return e.Kind == KindText && strings.TrimSpace(e.Text) == restartCommand
}
