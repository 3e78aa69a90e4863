package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Alex-Men-VL/sell-pizza/internal/commerce"
	"github.com/Alex-Men-VL/sell-pizza/internal/customers"
	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
	"github.com/Alex-Men-VL/sell-pizza/internal/menu"
	"github.com/Alex-Men-VL/sell-pizza/internal/payment"
)

type fakeCommerce struct {
	products map[string]commerce.Product
	imageURL string
	points   []delivery.ServicePoint

	carts map[string][]commerce.CartItem

	productErr error
	addErr     error
	removeErr  error

	customersCreated []string
	addresses        []delivery.Coords
	deletedCarts     []string
}

func newFakeCommerce() *fakeCommerce {
	return &fakeCommerce{
		products: map[string]commerce.Product{},
		carts:    map[string][]commerce.CartItem{},
	}
}

func (f *fakeCommerce) addProduct(id, name string, priceMinor int) {
	f.products[id] = commerce.Product{
		ID:             id,
		Name:           name,
		Description:    name + " description",
		PriceFormatted: fmt.Sprintf("%d.00 RUB", priceMinor/100),
		PriceMinor:     priceMinor,
	}
}

func (f *fakeCommerce) GetProduct(_ context.Context, productID string) (commerce.Product, error) {
	if f.productErr != nil {
		return commerce.Product{}, f.productErr
	}
	p, ok := f.products[productID]
	if !ok {
		return commerce.Product{}, errors.New("product not found")
	}
	return p, nil
}

func (f *fakeCommerce) GetProductImageURL(context.Context, string) (string, error) {
	return f.imageURL, nil
}

func (f *fakeCommerce) GetOrCreateCart(_ context.Context, userKey string) (string, error) {
	return "cart:" + userKey, nil
}

func (f *fakeCommerce) AddCartItem(_ context.Context, cartID, productID string, quantity int) error {
	if f.addErr != nil {
		return f.addErr
	}
	p, ok := f.products[productID]
	if !ok {
		return errors.New("product not found")
	}
	f.carts[cartID] = append(f.carts[cartID], commerce.CartItem{
		ID:                 "item:" + productID,
		ProductID:          productID,
		Name:               p.Name,
		Description:        p.Description,
		Quantity:           quantity,
		UnitPriceFormatted: p.PriceFormatted,
		LinePriceFormatted: p.PriceFormatted,
	})
	return nil
}

func (f *fakeCommerce) GetCartItems(_ context.Context, cartID string) (commerce.CartContents, error) {
	items := f.carts[cartID]
	total := 0
	for _, item := range items {
		total += f.products[item.ProductID].PriceMinor * item.Quantity
	}
	return commerce.CartContents{
		Items:          items,
		TotalMinor:     total,
		TotalFormatted: fmt.Sprintf("%d.00 RUB", total/100),
	}, nil
}

func (f *fakeCommerce) RemoveCartItem(_ context.Context, cartID, itemID string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	items := f.carts[cartID]
	for i, item := range items {
		if item.ID == itemID {
			f.carts[cartID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return errors.New("item not found")
}

func (f *fakeCommerce) DeleteCart(_ context.Context, cartID string) error {
	delete(f.carts, cartID)
	f.deletedCarts = append(f.deletedCarts, cartID)
	return nil
}

func (f *fakeCommerce) CreateCustomer(_ context.Context, email string) (commerce.Customer, error) {
	f.customersCreated = append(f.customersCreated, email)
	return commerce.Customer{ID: "cust:" + email, Email: email}, nil
}

func (f *fakeCommerce) GetAvailableServicePoints(context.Context) ([]delivery.ServicePoint, error) {
	return f.points, nil
}

func (f *fakeCommerce) RecordDeliveryAddress(_ context.Context, coords delivery.Coords) error {
	f.addresses = append(f.addresses, coords)
	return nil
}

type fakeGeocoder struct {
	known map[string]delivery.Coords
	err   error
}

func (f *fakeGeocoder) Resolve(_ context.Context, address string) (delivery.Coords, bool, error) {
	if f.err != nil {
		return delivery.Coords{}, false, f.err
	}
	c, ok := f.known[address]
	return c, ok, nil
}

type fakeMenu struct {
	commerce *fakeCommerce
	pageSize int
}

func (f *fakeMenu) Page(_ context.Context, page int) (int, []commerce.Product, int, error) {
	var all []commerce.Product
	for _, p := range f.commerce.products {
		all = append(all, p)
	}
	size := f.pageSize
	if size == 0 {
		size = 8
	}
	pages := menu.Paginate(all, size)
	wrapped := menu.WrapPage(page, len(pages))
	if len(pages) == 0 {
		return wrapped, nil, 0, nil
	}
	return wrapped, pages[wrapped-1], len(pages), nil
}

type sentMessage struct {
	userKey string
	msg     Message
}

type fakeMessenger struct {
	messages  []sentMessage
	edits     []sentMessage
	photos    []sentMessage
	locations []string
	toasts    []string
	invoices  []payment.Invoice
	accepted  []string
	rejected  []string
}

func (f *fakeMessenger) SendMessage(_ context.Context, userKey string, msg Message) error {
	f.messages = append(f.messages, sentMessage{userKey: userKey, msg: msg})
	return nil
}

func (f *fakeMessenger) EditMessage(_ context.Context, userKey, _ string, msg Message) error {
	f.edits = append(f.edits, sentMessage{userKey: userKey, msg: msg})
	return nil
}

func (f *fakeMessenger) DeleteMessage(context.Context, string, string) error { return nil }

func (f *fakeMessenger) SendPhoto(_ context.Context, userKey, _ string, caption Message) error {
	f.photos = append(f.photos, sentMessage{userKey: userKey, msg: caption})
	return nil
}

func (f *fakeMessenger) SendLocation(_ context.Context, userKey string, lat, lon float64) error {
	f.locations = append(f.locations, userKey+"@"+strconv.FormatFloat(lat, 'f', 4, 64))
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, _ string, text string) error {
	f.toasts = append(f.toasts, text)
	return nil
}

func (f *fakeMessenger) SendInvoice(_ context.Context, _ string, inv payment.Invoice) error {
	f.invoices = append(f.invoices, inv)
	return nil
}

func (f *fakeMessenger) AcceptCheckout(_ context.Context, queryID string) error {
	f.accepted = append(f.accepted, queryID)
	return nil
}

func (f *fakeMessenger) RejectCheckout(_ context.Context, queryID, _ string) error {
	f.rejected = append(f.rejected, queryID)
	return nil
}

// sentTo returns the texts of messages sent to one recipient.
func (f *fakeMessenger) sentTo(userKey string) []string {
	var texts []string
	for _, m := range f.messages {
		if m.userKey == userKey {
			texts = append(texts, m.msg.Text)
		}
	}
	return texts
}

type fakeDirectory struct {
	records map[string]string
	orders  []customers.Order
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{records: map[string]string{}}
}

func (f *fakeDirectory) CustomerID(_ context.Context, userKey string) (string, error) {
	id, ok := f.records[userKey]
	if !ok {
		return "", customers.ErrNotFound
	}
	return id, nil
}

func (f *fakeDirectory) Save(_ context.Context, userKey, customerID, _ string) error {
	f.records[userKey] = customerID
	return nil
}

func (f *fakeDirectory) RecordOrder(_ context.Context, o customers.Order) error {
	f.orders = append(f.orders, o)
	return nil
}

type scheduledTask struct {
	delay time.Duration
	name  string
}

type fakeScheduler struct {
	tasks []scheduledTask
}

func (f *fakeScheduler) Schedule(delay time.Duration, name string, _ func(ctx context.Context)) {
	f.tasks = append(f.tasks, scheduledTask{delay: delay, name: name})
}

type testEnv struct {
	env       *Env
	commerce  *fakeCommerce
	geocoder  *fakeGeocoder
	messenger *fakeMessenger
	directory *fakeDirectory
	scheduler *fakeScheduler
}

func newTestEnv() *testEnv {
	fc := newFakeCommerce()
	fg := &fakeGeocoder{known: map[string]delivery.Coords{}}
	fm := &fakeMessenger{}
	fd := newFakeDirectory()
	fs := &fakeScheduler{}
	return &testEnv{
		env: &Env{
			Commerce:      fc,
			Geocoder:      fg,
			Menu:          &fakeMenu{commerce: fc},
			Messenger:     fm,
			Directory:     fd,
			Scheduler:     fs,
			Currency:      "RUB",
			ReminderDelay: time.Hour,
		},
		commerce:  fc,
		geocoder:  fg,
		messenger: fm,
		directory: fd,
		scheduler: fs,
	}
}
