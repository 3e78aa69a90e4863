package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Alex-Men-VL/sell-pizza/internal/commerce"
	"github.com/Alex-Men-VL/sell-pizza/internal/customers"
	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
	"github.com/Alex-Men-VL/sell-pizza/internal/logger"
	"github.com/Alex-Men-VL/sell-pizza/internal/payment"
	"github.com/Alex-Men-VL/sell-pizza/internal/session"
)

// Effect is one side action emitted by a transition. Effects run in order;
// the first failure aborts the rest and the dispatcher decides whether the
// session advances.
type Effect interface {
	Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error
}

// ShowMenu renders one catalog page with product buttons and pagination.
// The page wraps around both ends of the catalog.
type ShowMenu struct {
	Page      int
	MessageID string
}

func (e *ShowMenu) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	page, products, _, err := env.Menu.Page(ctx, e.Page)
	if err != nil {
		return fmt.Errorf("menu page %d: %w", e.Page, err)
	}
	sess.CurrentPage = page

	kb := &Keyboard{}
	for _, p := range products {
		kb.Rows = append(kb.Rows, []Button{{Text: p.Name, Action: ActionProduct, Payload: p.ID}})
	}
	kb.Rows = append(kb.Rows, []Button{
		{Text: "<<", Action: ActionPage, Payload: strconv.Itoa(page - 1)},
		{Text: "Корзина", Action: ActionCart},
		{Text: ">>", Action: ActionPage, Payload: strconv.Itoa(page + 1)},
	})

	msg := Message{Text: "Пожалуйста, выберите товар:", Keyboard: kb}
	return editOrSend(ctx, env, userKey, e.MessageID, msg)
}

// ShowCart renders the cart contents with per-item removal buttons.
type ShowCart struct {
	MessageID string
}

func (e *ShowCart) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	cartID, err := env.Commerce.GetOrCreateCart(ctx, userKey)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	contents, err := env.Commerce.GetCartItems(ctx, cartID)
	if err != nil {
		return fmt.Errorf("cart items: %w", err)
	}
	text, kb := renderCart(contents)
	return editOrSend(ctx, env, userKey, e.MessageID, Message{Text: text, Markdown: true, Keyboard: kb})
}

// ShowProduct sends the product card, with photo when the catalog has one,
// and remembers the product for the add-to-cart button.
type ShowProduct struct {
	ProductID string
	MessageID string
}

func (e *ShowProduct) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	p, err := env.Commerce.GetProduct(ctx, e.ProductID)
	if err != nil {
		return fmt.Errorf("get product %s: %w", e.ProductID, err)
	}

	caption := Message{
		Text: fmt.Sprintf("*%s*\n\n%s\n\n%s",
			escapeMarkdown(p.Name),
			escapeMarkdown(p.PriceFormatted),
			escapeMarkdown(p.Description)),
		Markdown: true,
		Keyboard: &Keyboard{Rows: [][]Button{
			{{Text: "Положить в корзину", Action: ActionAdd, Payload: p.ID}},
			{{Text: "Назад", Action: ActionMenu}},
		}},
	}

	imageURL := ""
	if p.ImageID != "" {
		imageURL, err = env.Commerce.GetProductImageURL(ctx, p.ImageID)
		if err != nil {
			logger.Warn(ctx, "engine", "product.image_failed",
				slog.String("product_id", p.ID), slog.String("err", err.Error()))
			imageURL = ""
		}
	}

	if imageURL != "" {
		if err := env.Messenger.SendPhoto(ctx, userKey, imageURL, caption); err != nil {
			return fmt.Errorf("send product photo: %w", err)
		}
		if e.MessageID != "" {
			if err := env.Messenger.DeleteMessage(ctx, userKey, e.MessageID); err != nil {
				logger.Warn(ctx, "engine", "message.delete_failed", slog.String("err", err.Error()))
			}
		}
	} else if err := editOrSend(ctx, env, userKey, e.MessageID, caption); err != nil {
		return err
	}

	sess.Browse = &session.BrowseData{ProductID: e.ProductID}
	return nil
}

// AddToCart adds one unit of the remembered product and toasts the result.
type AddToCart struct {
	ProductID  string
	CallbackID string
}

func (e *AddToCart) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	cartID, err := env.Commerce.GetOrCreateCart(ctx, userKey)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if err := env.Commerce.AddCartItem(ctx, cartID, e.ProductID, 1); err != nil {
		logger.Warn(ctx, "engine", "cart.add_failed",
			slog.String("product_id", e.ProductID), slog.String("err", err.Error()))
		_ = env.Messenger.AnswerCallback(ctx, e.CallbackID, "Не получилось добавить товар в корзину.")
		return Retry("")
	}
	return env.Messenger.AnswerCallback(ctx, e.CallbackID, "Товар добавлен в корзину!")
}

// RemoveItem drops one cart line and toasts the result.
type RemoveItem struct {
	ItemID     string
	CallbackID string
}

func (e *RemoveItem) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	cartID, err := env.Commerce.GetOrCreateCart(ctx, userKey)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if err := env.Commerce.RemoveCartItem(ctx, cartID, e.ItemID); err != nil {
		logger.Warn(ctx, "engine", "cart.remove_failed",
			slog.String("item_id", e.ItemID), slog.String("err", err.Error()))
		_ = env.Messenger.AnswerCallback(ctx, e.CallbackID, "Не получилось убрать товар из корзины.")
		return Retry("")
	}
	return env.Messenger.AnswerCallback(ctx, e.CallbackID, "Товар убран из корзины.")
}

// CreateCustomer registers the email with the commerce backend once and
// asks for the delivery address. A returning customer keeps the existing
// record.
type CreateCustomer struct {
	Email string
}

func (e *CreateCustomer) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	if sess.CustomerID == "" {
		cust, err := env.Commerce.CreateCustomer(ctx, e.Email)
		if err != nil {
			return fmt.Errorf("create customer: %w", err)
		}
		sess.CustomerID = cust.ID
		if env.Directory != nil {
			if err := env.Directory.Save(ctx, userKey, cust.ID, e.Email); err != nil {
				logger.Warn(ctx, "engine", "customer.save_failed",
					slog.String("customer_id", cust.ID), slog.String("err", err.Error()))
			}
		}
		logger.Info(ctx, "engine", "customer.created", slog.String("customer_id", cust.ID))
	}
	text := fmt.Sprintf("Вы ввели эту почту: %s\n\n%s", e.Email, noticeLocationPrompt)
	return env.Messenger.SendMessage(ctx, userKey, Message{Text: text})
}

// ResolveDelivery turns the address or shared location into coordinates,
// picks the closest service point and presents the delivery options for
// its distance band.
type ResolveDelivery struct {
	Address string
	Coords  *delivery.Coords
}

func (e *ResolveDelivery) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	var coords delivery.Coords
	if e.Coords != nil {
		coords = *e.Coords
	} else {
		resolved, ok, err := env.Geocoder.Resolve(ctx, e.Address)
		if err != nil {
			return fmt.Errorf("geocode: %w", err)
		}
		if !ok {
			return Retry(noticeAddressReprompt)
		}
		coords = resolved
	}

	points, err := env.Commerce.GetAvailableServicePoints(ctx)
	if err != nil {
		return fmt.Errorf("service points: %w", err)
	}
	nearest, err := delivery.Nearest(coords, points)
	if err != nil {
		return err
	}
	sess.Checkout = &session.CheckoutData{Nearest: nearest, Coords: coords}

	if err := env.Commerce.RecordDeliveryAddress(ctx, coords); err != nil {
		logger.Warn(ctx, "engine", "address.record_failed", slog.String("err", err.Error()))
	}

	band := delivery.BandFor(nearest.DistanceKm)
	logger.Info(ctx, "engine", "delivery.banded",
		slog.String("service_point", nearest.Point.ID),
		slog.Float64("distance_km", nearest.DistanceKm),
		slog.String("band", band.String()))

	text, kb := renderDeliveryOptions(band, nearest)
	return env.Messenger.SendMessage(ctx, userKey, Message{Text: text, Keyboard: kb})
}

// ConfirmPickup snapshots the cart total for payment and sends the pickup
// address with a map pin.
type ConfirmPickup struct{}

func (e *ConfirmPickup) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	if sess.Checkout == nil {
		return ErrMissingField
	}
	contents, err := cartContents(ctx, env, userKey)
	if err != nil {
		return err
	}
	point := sess.Checkout.Nearest.Point

	summary, _ := renderCart(contents)
	text := fmt.Sprintf("%s\n\nЖдем вас по адресу: %s", summary, escapeMarkdown(point.Address))
	if err := env.Messenger.SendMessage(ctx, userKey, Message{Text: text, Markdown: true}); err != nil {
		return err
	}
	if err := env.Messenger.SendLocation(ctx, userKey, point.Latitude, point.Longitude); err != nil {
		logger.Warn(ctx, "engine", "location.send_failed", slog.String("err", err.Error()))
	}

	sess.Payment = &session.PaymentData{
		CartTotal:   contents.TotalFormatted,
		AmountMinor: contents.TotalMinor,
	}
	return sendPayPrompt(ctx, env, userKey)
}

// ArrangeDelivery hands the order to the service point's courier, schedules
// the follow-up reminder and snapshots the total plus the delivery fee.
type ArrangeDelivery struct{}

func (e *ArrangeDelivery) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	if sess.Checkout == nil {
		return ErrMissingField
	}
	contents, err := cartContents(ctx, env, userKey)
	if err != nil {
		return err
	}
	nearest := sess.Checkout.Nearest
	coords := sess.Checkout.Coords
	band := delivery.BandFor(nearest.DistanceKm)

	summary, _ := renderCart(contents)
	courierKey := strconv.FormatInt(nearest.Point.CourierID, 10)
	courierText := fmt.Sprintf("Новый заказ\\!\n\n%s", summary)
	if err := env.Messenger.SendMessage(ctx, courierKey, Message{Text: courierText, Markdown: true}); err != nil {
		return fmt.Errorf("notify courier: %w", err)
	}
	if err := env.Messenger.SendLocation(ctx, courierKey, coords.Lat, coords.Lon); err != nil {
		logger.Warn(ctx, "engine", "location.send_failed", slog.String("err", err.Error()))
	}

	if env.Scheduler != nil {
		messenger := env.Messenger
		env.Scheduler.Schedule(env.ReminderDelay, "order.reminder", func(ctx context.Context) {
			err := messenger.SendMessage(ctx, userKey, Message{
				Text: "Приятного аппетита! *место для рекламы*\n\n*сообщение что делать если пицца не пришла*",
			})
			if err != nil {
				logger.Warn(ctx, "reminder", "reminder.send_failed", slog.String("err", err.Error()))
			}
		})
	}

	sess.Payment = &session.PaymentData{
		CartTotal:   contents.TotalFormatted,
		AmountMinor: contents.TotalMinor + band.Fee(),
		Delivery:    true,
	}
	if err := env.Messenger.SendMessage(ctx, userKey, Message{
		Text: "Заказ передан курьеру! Оплатите заказ, и мы начнем готовить.",
	}); err != nil {
		return err
	}
	return sendPayPrompt(ctx, env, userKey)
}

// IssueInvoice mints a fresh correlation token and submits the invoice.
// Every press of the pay button invalidates the previous token.
type IssueInvoice struct {
	CallbackID string
}

func (e *IssueInvoice) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	if sess.Payment == nil {
		return ErrMissingField
	}
	if e.CallbackID != "" {
		_ = env.Messenger.AnswerCallback(ctx, e.CallbackID, "")
	}
	token := env.newToken()
	inv := payment.BuildInvoice(token, env.Currency, sess.Payment.AmountMinor, sess.Payment.CartTotal)
	if err := env.Messenger.SendInvoice(ctx, userKey, inv); err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}
	sess.Payment.Token = token
	logger.Info(ctx, "engine", "invoice.issued", slog.Int("amount", inv.AmountMinor))
	return nil
}

// AnswerPreCheckout accepts the provider's pre-checkout query iff the
// echoed token matches the stored one.
type AnswerPreCheckout struct {
	QueryID string
	Stored  string
	Echoed  string
}

func (e *AnswerPreCheckout) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	if payment.Match(e.Stored, e.Echoed) {
		logger.Info(ctx, "engine", "checkout.accepted")
		return env.Messenger.AcceptCheckout(ctx, e.QueryID)
	}
	logger.Warn(ctx, "engine", "checkout.rejected")
	return env.Messenger.RejectCheckout(ctx, e.QueryID, "Платеж не подтвержден, попробуйте снова.")
}

// AbandonOrder resets the order-scoped session fields without touching
// the cart, so a checkout left behind by a restart cannot be paid.
type AbandonOrder struct{}

func (e *AbandonOrder) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	if sess.Payment != nil || sess.Checkout != nil {
		logger.Debug(ctx, "engine", "order.abandoned")
	}
	sess.ClearOrder()
	return nil
}

// FinalizeOrder completes a paid order: empties the cart, records the
// order and resets the order-scoped session fields.
type FinalizeOrder struct{}

func (e *FinalizeOrder) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	cartID, err := env.Commerce.GetOrCreateCart(ctx, userKey)
	if err == nil {
		if err := env.Commerce.DeleteCart(ctx, cartID); err != nil {
			logger.Warn(ctx, "engine", "cart.delete_failed",
				slog.String("cart_id", cartID), slog.String("err", err.Error()))
		}
	} else {
		logger.Warn(ctx, "engine", "cart.lookup_failed", slog.String("err", err.Error()))
	}

	if env.Directory != nil && sess.Payment != nil {
		order := customers.Order{
			UserKey:    userKey,
			CustomerID: sess.CustomerID,
			TotalMinor: sess.Payment.AmountMinor,
			Currency:   env.Currency,
			Delivery:   sess.Payment.Delivery,
		}
		if sess.Checkout != nil {
			order.ServicePointID = sess.Checkout.Nearest.Point.ID
		}
		if err := env.Directory.RecordOrder(ctx, order); err != nil {
			logger.Warn(ctx, "engine", "order.record_failed", slog.String("err", err.Error()))
		}
	}

	logger.Info(ctx, "engine", "order.paid", slog.Int("amount", paidAmount(sess)))
	if err := env.Messenger.SendMessage(ctx, userKey, Message{
		Text: "Спасибо за заказ! Пицца уже готовится.",
	}); err != nil {
		logger.Warn(ctx, "engine", "message.send_failed", slog.String("err", err.Error()))
	}

	sess.ClearOrder()
	sess.CurrentPage = 1
	return nil
}

// Notify sends a plain notice, as a callback toast when a callback is
// pending, as a message otherwise.
type Notify struct {
	Text       string
	CallbackID string
}

func (e *Notify) Apply(ctx context.Context, env *Env, userKey string, sess *session.Session) error {
	if e.CallbackID != "" {
		return env.Messenger.AnswerCallback(ctx, e.CallbackID, e.Text)
	}
	return env.Messenger.SendMessage(ctx, userKey, Message{Text: e.Text})
}

func editOrSend(ctx context.Context, env *Env, userKey, messageID string, msg Message) error {
	if messageID != "" {
		if err := env.Messenger.EditMessage(ctx, userKey, messageID, msg); err == nil {
			return nil
		}
	}
	return env.Messenger.SendMessage(ctx, userKey, msg)
}

func sendPayPrompt(ctx context.Context, env *Env, userKey string) error {
	return env.Messenger.SendMessage(ctx, userKey, Message{
		Text: "Для завершения заказа нажмите кнопку ниже.",
		Keyboard: &Keyboard{Rows: [][]Button{
			{{Text: "Оплатить", Action: ActionPay}},
		}},
	})
}

func cartContents(ctx context.Context, env *Env, userKey string) (commerce.CartContents, error) {
	cartID, err := env.Commerce.GetOrCreateCart(ctx, userKey)
	if err != nil {
		return commerce.CartContents{}, fmt.Errorf("get cart: %w", err)
	}
	contents, err := env.Commerce.GetCartItems(ctx, cartID)
	if err != nil {
		return commerce.CartContents{}, fmt.Errorf("cart items: %w", err)
	}
	return contents, nil
}

func paidAmount(sess *session.Session) int {
	if sess.Payment != nil {
		return sess.Payment.AmountMinor
	}
	return 0
}
