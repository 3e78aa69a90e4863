// Package payment owns the invoice handshake: correlation tokens binding a
// payment invoice to its provider callback, and the acceptance rule.
package payment

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// tokenBytes gives 128 bits of entropy; tokens are not guessable from user
// input.
const tokenBytes = 16

// NewToken generates a fresh correlation token for one checkout attempt.
func NewToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic("payment: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// Match reports whether the echoed callback token equals the stored one.
// Acceptance is exactly this equality, nothing else.
func Match(stored, echoed string) bool {
	if stored == "" || echoed == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(echoed)) == 1
}

// Invoice describes one payment request submitted to the provider.
type Invoice struct {
	Title       string
	Description string
	// Payload carries the correlation token as opaque metadata.
	Payload     string
	Currency    string
	AmountMinor int
}

// BuildInvoice assembles the invoice for the current cart total.
func BuildInvoice(token, currency string, amountMinor int, totalFormatted string) Invoice {
	return Invoice{
		Title:       "Pizza order",
		Description: "Order total: " + totalFormatted,
		Payload:     token,
		Currency:    currency,
		AmountMinor: amountMinor,
	}
}
