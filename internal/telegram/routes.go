package telegram

import (
	"context"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
	"github.com/Alex-Men-VL/sell-pizza/internal/engine"
	"github.com/Alex-Men-VL/sell-pizza/internal/logger"
)

// Route declares one bot handler bound to an endpoint.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// Routes maps Bot API updates onto engine events. Every update kind the
// flow understands gets its own translation.
func Routes(d *engine.Dispatcher) []Route {
	return []Route{
		{Endpoint: "/start", Handler: handleText(d)},
		{Endpoint: tele.OnText, Handler: handleText(d)},
		{Endpoint: tele.OnLocation, Handler: handleLocation(d)},
		{Endpoint: tele.OnCallback, Handler: handleCallback(d)},
		{Endpoint: tele.OnCheckout, Handler: handleCheckout(d)},
		{Endpoint: tele.OnPayment, Handler: handlePayment(d)},
	}
}

func userKeyOf(c tele.Context) string {
	if chat := c.Chat(); chat != nil {
		return strconv.FormatInt(chat.ID, 10)
	}
	if sender := c.Sender(); sender != nil {
		return strconv.FormatInt(sender.ID, 10)
	}
	return ""
}

func updateContext(c tele.Context, userKey string) context.Context {
	ctx := context.Background()
	ctx = logger.WithRID(ctx, logger.BuildRID(c.Update().ID, userKey))
	return logger.WithUserKey(ctx, userKey)
}

func handleText(d *engine.Dispatcher) tele.HandlerFunc {
	return func(c tele.Context) error {
		userKey := userKeyOf(c)
		ev := engine.Event{
			Kind:    engine.KindText,
			UserKey: userKey,
			Text:    c.Text(),
		}
		return d.Dispatch(updateContext(c, userKey), ev)
	}
}

func handleLocation(d *engine.Dispatcher) tele.HandlerFunc {
	return func(c tele.Context) error {
		msg := c.Message()
		if msg == nil || msg.Location == nil {
			return nil
		}
		userKey := userKeyOf(c)
		ev := engine.Event{
			Kind:    engine.KindLocation,
			UserKey: userKey,
			Location: &delivery.Coords{
				Lat: float64(msg.Location.Lat),
				Lon: float64(msg.Location.Lng),
			},
		}
		return d.Dispatch(updateContext(c, userKey), ev)
	}
}

func handleCallback(d *engine.Dispatcher) tele.HandlerFunc {
	return func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		action, payload := parseCallback(cb)
		userKey := userKeyOf(c)
		ev := engine.Event{
			Kind:       engine.KindAction,
			UserKey:    userKey,
			Action:     action,
			Payload:    payload,
			CallbackID: cb.ID,
		}
		if cb.Message != nil {
			ev.MessageID = strconv.Itoa(cb.Message.ID)
		}
		err := d.Dispatch(updateContext(c, userKey), ev)
		// Stop the button spinner even when no effect answered the
		// callback. A duplicate answer is ignored upstream.
		_ = c.Respond(&tele.CallbackResponse{})
		return err
	}
}

func handleCheckout(d *engine.Dispatcher) tele.HandlerFunc {
	return func(c tele.Context) error {
		q := c.PreCheckoutQuery()
		if q == nil || q.Sender == nil {
			return nil
		}
		userKey := strconv.FormatInt(q.Sender.ID, 10)
		ev := engine.Event{
			Kind:        engine.KindPreCheckout,
			UserKey:     userKey,
			CallbackID:  q.ID,
			Token:       q.Payload,
			AmountMinor: q.Total,
		}
		return d.Dispatch(updateContext(c, userKey), ev)
	}
}

func handlePayment(d *engine.Dispatcher) tele.HandlerFunc {
	return func(c tele.Context) error {
		msg := c.Message()
		if msg == nil || msg.Payment == nil {
			return nil
		}
		userKey := userKeyOf(c)
		ev := engine.Event{
			Kind:        engine.KindPaymentSuccess,
			UserKey:     userKey,
			Token:       msg.Payment.Payload,
			AmountMinor: msg.Payment.Total,
		}
		return d.Dispatch(updateContext(c, userKey), ev)
	}
}

// parseCallback splits the callback data into its unique and payload. The
// wire format is "\f<unique>|<payload>".
func parseCallback(cb *tele.Callback) (string, string) {
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	parts := strings.SplitN(raw, "|", 2)
	action := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return action, payload
}
