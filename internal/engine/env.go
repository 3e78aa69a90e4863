package engine

import (
	"context"
	"time"

	"github.com/Alex-Men-VL/sell-pizza/internal/commerce"
	"github.com/Alex-Men-VL/sell-pizza/internal/customers"
	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
	"github.com/Alex-Men-VL/sell-pizza/internal/payment"
)

// Commerce is the slice of the catalog backend the engine needs.
type Commerce interface {
	GetProduct(ctx context.Context, productID string) (commerce.Product, error)
	GetProductImageURL(ctx context.Context, imageID string) (string, error)
	GetOrCreateCart(ctx context.Context, userKey string) (string, error)
	AddCartItem(ctx context.Context, cartID, productID string, quantity int) error
	GetCartItems(ctx context.Context, cartID string) (commerce.CartContents, error)
	RemoveCartItem(ctx context.Context, cartID, itemID string) error
	DeleteCart(ctx context.Context, cartID string) error
	CreateCustomer(ctx context.Context, email string) (commerce.Customer, error)
	GetAvailableServicePoints(ctx context.Context) ([]delivery.ServicePoint, error)
	RecordDeliveryAddress(ctx context.Context, coords delivery.Coords) error
}

// Geocoder resolves address text to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (delivery.Coords, bool, error)
}

// Menu serves cached catalog pages.
type Menu interface {
	Page(ctx context.Context, page int) (wrapped int, products []commerce.Product, total int, err error)
}

// Directory is the durable user-to-customer mapping and the order log.
type Directory interface {
	CustomerID(ctx context.Context, userKey string) (string, error)
	Save(ctx context.Context, userKey, customerID, email string) error
	RecordOrder(ctx context.Context, o customers.Order) error
}

// Scheduler runs delayed fire-and-forget tasks.
type Scheduler interface {
	Schedule(delay time.Duration, name string, fn func(ctx context.Context))
}

// Button is a channel-neutral inline button.
type Button struct {
	Text    string
	Action  string
	Payload string
}

// Keyboard is rows of buttons.
type Keyboard struct {
	Rows [][]Button
}

// Message is outbound content with optional markup.
type Message struct {
	Text     string
	Markdown bool
	Keyboard *Keyboard
}

// Messenger abstracts the messaging channel capabilities the effects use.
type Messenger interface {
	SendMessage(ctx context.Context, userKey string, msg Message) error
	EditMessage(ctx context.Context, userKey, messageID string, msg Message) error
	DeleteMessage(ctx context.Context, userKey, messageID string) error
	SendPhoto(ctx context.Context, userKey, photoURL string, caption Message) error
	SendLocation(ctx context.Context, userKey string, lat, lon float64) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	SendInvoice(ctx context.Context, userKey string, inv payment.Invoice) error
	AcceptCheckout(ctx context.Context, queryID string) error
	RejectCheckout(ctx context.Context, queryID, reason string) error
}

// Env bundles the collaborators effects run against.
type Env struct {
	Commerce  Commerce
	Geocoder  Geocoder
	Menu      Menu
	Messenger Messenger
	Directory Directory
	Scheduler Scheduler

	Currency      string
	ReminderDelay time.Duration

	// NewToken is swappable for tests; defaults to payment.NewToken.
	NewToken func() string
}

func (e *Env) newToken() string {
	if e.NewToken != nil {
		return e.NewToken()
	}
	return payment.NewToken()
}
