package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
	"github.com/Alex-Men-VL/sell-pizza/internal/session"
)

const testUser = "100500"

// Moscow center and a couple of service points around it.
var (
	orderCoords = delivery.Coords{Lat: 55.7558, Lon: 37.6173}

	nearPoint = delivery.ServicePoint{
		ID: "sp-near", Address: "Тверская 1", Latitude: 55.76, Longitude: 37.63, CourierID: 777,
	}
	farPoint = delivery.ServicePoint{
		ID: "sp-far", Address: "Зеленоград 5", Latitude: 56.0, Longitude: 37.2, CourierID: 888,
	}
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *testEnv, *session.MemoryStore) {
	t.Helper()
	te := newTestEnv()
	store := session.NewMemoryStore()
	return NewDispatcher(store, te.env), te, store
}

func seedSession(t *testing.T, store *session.MemoryStore, sess *session.Session) {
	t.Helper()
	if err := store.Set(context.Background(), testUser, sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func storedSession(t *testing.T, store *session.MemoryStore) *session.Session {
	t.Helper()
	sess, err := store.Get(context.Background(), testUser)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess
}

func TestDispatcher_FirstContactCreatesSession(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	te.commerce.addProduct("42", "Маргарита", 50000)

	err := d.Dispatch(context.Background(), Event{Kind: KindText, UserKey: testUser, Text: "/start"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	sess := storedSession(t, store)
	if sess.State != session.StateMenu {
		t.Errorf("state = %s, want %s", sess.State, session.StateMenu)
	}
	if sess.CurrentPage != 1 {
		t.Errorf("current page = %d, want 1", sess.CurrentPage)
	}
	if got := te.messenger.sentTo(testUser); len(got) != 1 {
		t.Fatalf("messages = %d, want 1", len(got))
	}
}

func TestDispatcher_ProductTapRemembersProduct(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	te.commerce.addProduct("42", "Маргарита", 50000)
	seedSession(t, store, &session.Session{State: session.StateMenu, CurrentPage: 1})

	ev := Event{Kind: KindAction, UserKey: testUser, Action: ActionProduct, Payload: "42"}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	sess := storedSession(t, store)
	if sess.State != session.StateProductDetail {
		t.Errorf("state = %s, want %s", sess.State, session.StateProductDetail)
	}
	if sess.Browse == nil || sess.Browse.ProductID != "42" {
		t.Errorf("browse = %+v, want product 42", sess.Browse)
	}
	if sess.PendingReply != "product:42" {
		t.Errorf("pending reply = %q, want %q", sess.PendingReply, "product:42")
	}
}

func TestDispatcher_AddToCartKeepsProductDetail(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	te.commerce.addProduct("42", "Маргарита", 50000)
	seedSession(t, store, &session.Session{
		State:  session.StateProductDetail,
		Browse: &session.BrowseData{ProductID: "42"},
	})

	ev := Event{Kind: KindAction, UserKey: testUser, Action: ActionAdd, CallbackID: "cb1"}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if sess := storedSession(t, store); sess.State != session.StateProductDetail {
		t.Errorf("state = %s, want %s", sess.State, session.StateProductDetail)
	}
	if items := te.commerce.carts["cart:"+testUser]; len(items) != 1 {
		t.Fatalf("cart items = %d, want 1", len(items))
	}
	if len(te.messenger.toasts) != 1 || !strings.Contains(te.messenger.toasts[0], "добавлен") {
		t.Errorf("toasts = %v, want added toast", te.messenger.toasts)
	}
}

func TestDispatcher_BadEmailKeepsStateAndCustomer(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	seedSession(t, store, &session.Session{State: session.StateAwaitingEmail})

	ev := Event{Kind: KindText, UserKey: testUser, Text: "not-an-email"}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if sess := storedSession(t, store); sess.State != session.StateAwaitingEmail {
		t.Errorf("state = %s, want %s", sess.State, session.StateAwaitingEmail)
	}
	if len(te.commerce.customersCreated) != 0 {
		t.Errorf("customers created = %v, want none", te.commerce.customersCreated)
	}
	msgs := te.messenger.sentTo(testUser)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "еще раз") {
		t.Errorf("messages = %v, want email reprompt", msgs)
	}
}

func TestDispatcher_ValidEmailCreatesCustomerOnce(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	seedSession(t, store, &session.Session{State: session.StateAwaitingEmail})

	ev := Event{Kind: KindText, UserKey: testUser, Text: "user@example.com"}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	sess := storedSession(t, store)
	if sess.State != session.StateAwaitingLocation {
		t.Errorf("state = %s, want %s", sess.State, session.StateAwaitingLocation)
	}
	if sess.CustomerID == "" {
		t.Error("customer id not recorded in session")
	}
	if len(te.commerce.customersCreated) != 1 {
		t.Fatalf("customers created = %d, want 1", len(te.commerce.customersCreated))
	}
	if te.directory.records[testUser] != sess.CustomerID {
		t.Errorf("directory record = %q, want %q", te.directory.records[testUser], sess.CustomerID)
	}
}

func TestDispatcher_CheckoutSkipsEmailForKnownCustomer(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	te.directory.records[testUser] = "cust-1"
	seedSession(t, store, &session.Session{State: session.StateCart})

	ev := Event{Kind: KindAction, UserKey: testUser, Action: ActionCheckout}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	sess := storedSession(t, store)
	if sess.State != session.StateAwaitingLocation {
		t.Errorf("state = %s, want %s", sess.State, session.StateAwaitingLocation)
	}
	if sess.CustomerID != "cust-1" {
		t.Errorf("customer id = %q, want cust-1", sess.CustomerID)
	}
}

func TestDispatcher_UnresolvableAddressReprompts(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	te.commerce.points = []delivery.ServicePoint{nearPoint}
	seedSession(t, store, &session.Session{State: session.StateAwaitingLocation})

	ev := Event{Kind: KindText, UserKey: testUser, Text: "какой-то бред"}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	sess := storedSession(t, store)
	if sess.State != session.StateAwaitingLocation {
		t.Errorf("state = %s, want %s", sess.State, session.StateAwaitingLocation)
	}
	if sess.Checkout != nil {
		t.Error("checkout data recorded for unresolved address")
	}
	msgs := te.messenger.sentTo(testUser)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "повторите") {
		t.Errorf("messages = %v, want address reprompt", msgs)
	}
}

func TestDispatcher_LocationPicksNearestPoint(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	te.commerce.points = []delivery.ServicePoint{farPoint, nearPoint}
	seedSession(t, store, &session.Session{State: session.StateAwaitingLocation})

	coords := orderCoords
	ev := Event{Kind: KindLocation, UserKey: testUser, Location: &coords}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	sess := storedSession(t, store)
	if sess.State != session.StateDeliveryChoice {
		t.Errorf("state = %s, want %s", sess.State, session.StateDeliveryChoice)
	}
	if sess.Checkout == nil {
		t.Fatal("checkout data missing")
	}
	if sess.Checkout.Nearest.Point.ID != nearPoint.ID {
		t.Errorf("nearest = %s, want %s", sess.Checkout.Nearest.Point.ID, nearPoint.ID)
	}
	if len(te.commerce.addresses) != 1 {
		t.Errorf("recorded addresses = %d, want 1", len(te.commerce.addresses))
	}
}

func TestDispatcher_PickupSnapshotsTotalWithoutCourier(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	te.commerce.addProduct("42", "Маргарита", 50000)
	if err := te.commerce.AddCartItem(context.Background(), "cart:"+testUser, "42", 1); err != nil {
		t.Fatal(err)
	}
	seedSession(t, store, &session.Session{
		State: session.StateDeliveryChoice,
		Checkout: &session.CheckoutData{
			Nearest: delivery.NearestResult{Point: nearPoint, DistanceKm: 0.3, DistanceM: 300},
			Coords:  orderCoords,
		},
	})

	ev := Event{Kind: KindAction, UserKey: testUser, Action: ActionPickup}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	sess := storedSession(t, store)
	if sess.State != session.StateAwaitingPayment {
		t.Errorf("state = %s, want %s", sess.State, session.StateAwaitingPayment)
	}
	if sess.Payment == nil {
		t.Fatal("payment snapshot missing")
	}
	if sess.Payment.Delivery {
		t.Error("pickup marked as delivery")
	}
	if sess.Payment.AmountMinor != 50000 {
		t.Errorf("amount = %d, want 50000", sess.Payment.AmountMinor)
	}
	if got := te.messenger.sentTo("777"); len(got) != 0 {
		t.Errorf("courier received %v for a pickup order", got)
	}
	if len(te.scheduler.tasks) != 0 {
		t.Errorf("scheduled tasks = %v, want none", te.scheduler.tasks)
	}
}

func TestDispatcher_DeliveryNotifiesCourierAndAddsFee(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	te.commerce.addProduct("42", "Маргарита", 50000)
	if err := te.commerce.AddCartItem(context.Background(), "cart:"+testUser, "42", 1); err != nil {
		t.Fatal(err)
	}
	seedSession(t, store, &session.Session{
		State: session.StateDeliveryChoice,
		Checkout: &session.CheckoutData{
			Nearest: delivery.NearestResult{Point: nearPoint, DistanceKm: 2, DistanceM: 2000},
			Coords:  orderCoords,
		},
	})

	ev := Event{Kind: KindAction, UserKey: testUser, Action: ActionDelivery}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	sess := storedSession(t, store)
	if sess.State != session.StateAwaitingPayment {
		t.Errorf("state = %s, want %s", sess.State, session.StateAwaitingPayment)
	}
	if sess.Payment == nil || !sess.Payment.Delivery {
		t.Fatalf("payment = %+v, want delivery snapshot", sess.Payment)
	}
	if want := 50000 + delivery.FeeNearby; sess.Payment.AmountMinor != want {
		t.Errorf("amount = %d, want %d", sess.Payment.AmountMinor, want)
	}
	if got := te.messenger.sentTo("777"); len(got) != 1 {
		t.Fatalf("courier messages = %d, want 1", len(got))
	}
	if len(te.scheduler.tasks) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(te.scheduler.tasks))
	}
	if te.scheduler.tasks[0].delay != te.env.ReminderDelay {
		t.Errorf("reminder delay = %v, want %v", te.scheduler.tasks[0].delay, te.env.ReminderDelay)
	}
}

func TestDispatcher_PaymentHandshake(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	te.commerce.addProduct("42", "Маргарита", 50000)
	if err := te.commerce.AddCartItem(context.Background(), "cart:"+testUser, "42", 1); err != nil {
		t.Fatal(err)
	}
	te.env.NewToken = func() string { return "tok-1" }
	seedSession(t, store, &session.Session{
		State:      session.StateAwaitingPayment,
		CustomerID: "cust-1",
		Checkout: &session.CheckoutData{
			Nearest: delivery.NearestResult{Point: nearPoint, DistanceKm: 2},
		},
		Payment: &session.PaymentData{CartTotal: "500.00 RUB", AmountMinor: 60000, Delivery: true},
	})

	ctx := context.Background()

	// Pay button mints the token and submits the invoice.
	if err := d.Dispatch(ctx, Event{Kind: KindAction, UserKey: testUser, Action: ActionPay, CallbackID: "cb1"}); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if len(te.messenger.invoices) != 1 {
		t.Fatalf("invoices = %d, want 1", len(te.messenger.invoices))
	}
	if te.messenger.invoices[0].Payload != "tok-1" {
		t.Errorf("invoice payload = %q, want tok-1", te.messenger.invoices[0].Payload)
	}
	if sess := storedSession(t, store); sess.Payment.Token != "tok-1" {
		t.Errorf("stored token = %q, want tok-1", sess.Payment.Token)
	}

	// Mismatching pre-checkout is rejected without side effects.
	if err := d.Dispatch(ctx, Event{Kind: KindPreCheckout, UserKey: testUser, CallbackID: "q1", Token: "forged"}); err != nil {
		t.Fatalf("pre-checkout forged: %v", err)
	}
	if len(te.messenger.accepted) != 0 || len(te.messenger.rejected) != 1 {
		t.Fatalf("accepted=%v rejected=%v, want one rejection", te.messenger.accepted, te.messenger.rejected)
	}
	if sess := storedSession(t, store); sess.State != session.StateAwaitingPayment {
		t.Errorf("state after rejection = %s, want %s", sess.State, session.StateAwaitingPayment)
	}

	// Matching pre-checkout is accepted.
	if err := d.Dispatch(ctx, Event{Kind: KindPreCheckout, UserKey: testUser, CallbackID: "q2", Token: "tok-1"}); err != nil {
		t.Fatalf("pre-checkout: %v", err)
	}
	if len(te.messenger.accepted) != 1 {
		t.Fatalf("accepted = %v, want one acceptance", te.messenger.accepted)
	}

	// Success finalizes: cart dropped, order recorded, session reset.
	if err := d.Dispatch(ctx, Event{Kind: KindPaymentSuccess, UserKey: testUser, Token: "tok-1", AmountMinor: 60000}); err != nil {
		t.Fatalf("success: %v", err)
	}
	sess := storedSession(t, store)
	if sess.State != session.StateMenu {
		t.Errorf("state = %s, want %s", sess.State, session.StateMenu)
	}
	if sess.Payment != nil || sess.Checkout != nil || sess.Browse != nil {
		t.Errorf("order fields not cleared: %+v", sess)
	}
	if len(te.commerce.deletedCarts) != 1 {
		t.Errorf("deleted carts = %v, want 1", te.commerce.deletedCarts)
	}
	if len(te.directory.orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(te.directory.orders))
	}
	order := te.directory.orders[0]
	if order.TotalMinor != 60000 || !order.Delivery || order.ServicePointID != nearPoint.ID {
		t.Errorf("order = %+v", order)
	}

	// A replayed success is a no-op.
	if err := d.Dispatch(ctx, Event{Kind: KindPaymentSuccess, UserKey: testUser, Token: "tok-1", AmountMinor: 60000}); err != nil {
		t.Fatalf("replayed success: %v", err)
	}
	if len(te.directory.orders) != 1 {
		t.Errorf("orders after replay = %d, want 1", len(te.directory.orders))
	}
	if len(te.commerce.deletedCarts) != 1 {
		t.Errorf("deleted carts after replay = %v, want 1", te.commerce.deletedCarts)
	}
}

func TestDispatcher_RestartAbandonsPaymentSession(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	te.commerce.addProduct("42", "Маргарита", 50000)
	seedSession(t, store, &session.Session{
		State:      session.StateAwaitingPayment,
		CustomerID: "cust-1",
		Checkout: &session.CheckoutData{
			Nearest: delivery.NearestResult{Point: nearPoint, DistanceKm: 2},
		},
		Payment: &session.PaymentData{Token: "tok-1", AmountMinor: 60000, Delivery: true},
	})

	ctx := context.Background()
	if err := d.Dispatch(ctx, Event{Kind: KindText, UserKey: testUser, Text: "/start"}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	sess := storedSession(t, store)
	if sess.State != session.StateMenu {
		t.Errorf("state = %s, want %s", sess.State, session.StateMenu)
	}
	if sess.Payment != nil || sess.Checkout != nil {
		t.Errorf("order fields survived restart: %+v", sess)
	}

	// The invoice issued before the restart must not be approvable.
	if err := d.Dispatch(ctx, Event{Kind: KindPreCheckout, UserKey: testUser, CallbackID: "q1", Token: "tok-1"}); err != nil {
		t.Fatalf("pre-checkout: %v", err)
	}
	if len(te.messenger.accepted) != 0 || len(te.messenger.rejected) != 1 {
		t.Fatalf("accepted=%v rejected=%v, want one rejection", te.messenger.accepted, te.messenger.rejected)
	}
	if len(te.directory.orders) != 0 || len(te.commerce.deletedCarts) != 0 {
		t.Errorf("orders=%d deleted carts=%v, want none", len(te.directory.orders), te.commerce.deletedCarts)
	}
}

func TestDispatcher_TransportFailureDropsEvent(t *testing.T) {
	d, te, store := newTestDispatcher(t)
	te.commerce.productErr = errors.New("backend down")
	seedSession(t, store, &session.Session{State: session.StateMenu, CurrentPage: 1})

	ev := Event{Kind: KindAction, UserKey: testUser, Action: ActionProduct, Payload: "42"}
	if err := d.Dispatch(context.Background(), ev); err == nil {
		t.Fatal("want error, got nil")
	}

	// The stored session is untouched.
	sess := storedSession(t, store)
	if sess.State != session.StateMenu {
		t.Errorf("state = %s, want %s", sess.State, session.StateMenu)
	}
	if sess.Browse != nil {
		t.Error("browse recorded despite failed effect")
	}

	// The user still hears that the action failed.
	msgs := te.messenger.sentTo(testUser)
	if len(msgs) != 1 || msgs[0] != noticeActionFailed {
		t.Errorf("messages = %v, want failure notice", msgs)
	}
}

func TestDispatcher_UnknownStoredStateDrops(t *testing.T) {
	d, _, store := newTestDispatcher(t)
	seedSession(t, store, &session.Session{State: session.State("LIMBO")})

	err := d.Dispatch(context.Background(), Event{Kind: KindText, UserKey: testUser, Text: "hi"})
	if !errors.Is(err, ErrUnknownState) {
		t.Fatalf("err = %v, want ErrUnknownState", err)
	}
}
