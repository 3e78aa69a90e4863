package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
	"github.com/Alex-Men-VL/sell-pizza/internal/session"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// User-facing notices. The flow speaks Russian, like the storefront.
const (
	noticeNotUnderstood   = "Извините, я вас не понял. Воспользуйтесь кнопками."
	noticeEmailReprompt   = "Почта указана не верно. Отправьте почту еще раз."
	noticeAddressReprompt = "Не могу распознать этот адрес, повторите попытку."
	noticeEmailPrompt     = "Пожалуйста, напишите свою почту для связи с вами"
	noticeLocationPrompt  = "Пришлите нам ваш адрес текстом или геолокацию."
	noticeActionFailed    = "Не получилось выполнить действие. Попробуйте еще раз."
)

// Transition is the pure conversation core: for the current state and the
// inbound event it decides the next state and the effects to execute. It
// performs no I/O; the dispatcher runs the effects and commits the state.
func Transition(st session.State, ev Event, sess session.Session) (session.State, []Effect, error) {
	// Payment provider callbacks are validated wherever the session is:
	// a callback with no stored token is rejected, and a success delivered
	// after the order was already finalized is a no-op.
	switch ev.Kind {
	case KindPreCheckout:
		stored := ""
		if sess.Payment != nil {
			stored = sess.Payment.Token
		}
		return st, []Effect{&AnswerPreCheckout{
			QueryID: ev.CallbackID,
			Stored:  stored,
			Echoed:  ev.Token,
		}}, nil
	case KindPaymentSuccess:
		if st == session.StateAwaitingPayment {
			return session.StateMenu, []Effect{&FinalizeOrder{}, &ShowMenu{Page: 1}}, nil
		}
		return st, nil, nil
	}

	if ev.IsRestart() {
		// A restart abandons any order in flight. The payment token goes
		// with it, so a late pre-checkout callback for the abandoned
		// invoice no longer matches anything.
		return session.StateMenu, []Effect{
			&AbandonOrder{},
			&ShowMenu{Page: 1, MessageID: ev.MessageID},
		}, nil
	}

	switch st {
	case session.StateStart:
		return session.StateMenu, []Effect{&ShowMenu{Page: 1, MessageID: ev.MessageID}}, nil
	case session.StateMenu:
		return transitionMenu(ev)
	case session.StateProductDetail:
		return transitionProductDetail(ev, sess)
	case session.StateCart:
		return transitionCart(ev, sess)
	case session.StateAwaitingEmail:
		return transitionAwaitingEmail(ev)
	case session.StateAwaitingLocation:
		return transitionAwaitingLocation(ev)
	case session.StateDeliveryChoice:
		return transitionDeliveryChoice(ev, sess)
	case session.StateAwaitingPayment:
		return transitionAwaitingPayment(ev)
	default:
		return st, nil, ErrUnknownState
	}
}

func transitionMenu(ev Event) (session.State, []Effect, error) {
	if ev.Kind == KindAction {
		switch ev.Action {
		case ActionCart:
			return session.StateCart, []Effect{&ShowCart{MessageID: ev.MessageID}}, nil
		case ActionPage:
			page, err := strconv.Atoi(ev.Payload)
			if err != nil {
				break
			}
			return session.StateMenu, []Effect{&ShowMenu{Page: page, MessageID: ev.MessageID}}, nil
		case ActionProduct:
			if ev.Payload == "" {
				break
			}
			return session.StateProductDetail, []Effect{&ShowProduct{
				ProductID: ev.Payload,
				MessageID: ev.MessageID,
			}}, nil
		}
	}
	return session.StateMenu, []Effect{&Notify{Text: noticeNotUnderstood, CallbackID: ev.CallbackID}}, nil
}

func transitionProductDetail(ev Event, sess session.Session) (session.State, []Effect, error) {
	if ev.Kind == KindAction {
		switch ev.Action {
		case ActionMenu:
			return session.StateMenu, []Effect{&ShowMenu{Page: sess.CurrentPage, MessageID: ev.MessageID}}, nil
		case ActionAdd:
			if sess.Browse == nil || sess.Browse.ProductID == "" {
				return session.StateProductDetail, nil, ErrMissingField
			}
			return session.StateProductDetail, []Effect{&AddToCart{
				ProductID:  sess.Browse.ProductID,
				CallbackID: ev.CallbackID,
			}}, nil
		}
	}
	// Anything else while the card is open is ignored.
	return session.StateProductDetail, nil, nil
}

func transitionCart(ev Event, sess session.Session) (session.State, []Effect, error) {
	if ev.Kind == KindAction {
		switch ev.Action {
		case ActionMenu:
			return session.StateMenu, []Effect{&ShowMenu{Page: sess.CurrentPage, MessageID: ev.MessageID}}, nil
		case ActionCheckout:
			if sess.CustomerID != "" {
				return session.StateAwaitingLocation, []Effect{&Notify{Text: noticeLocationPrompt}}, nil
			}
			return session.StateAwaitingEmail, []Effect{&Notify{Text: noticeEmailPrompt}}, nil
		case ActionRemove:
			if ev.Payload == "" {
				break
			}
			return session.StateCart, []Effect{
				&RemoveItem{ItemID: ev.Payload, CallbackID: ev.CallbackID},
				&ShowCart{MessageID: ev.MessageID},
			}, nil
		}
	}
	return session.StateCart, []Effect{&Notify{Text: noticeNotUnderstood, CallbackID: ev.CallbackID}}, nil
}

func transitionAwaitingEmail(ev Event) (session.State, []Effect, error) {
	email := strings.TrimSpace(ev.Text)
	if ev.Kind == KindText && emailRe.MatchString(email) {
		return session.StateAwaitingLocation, []Effect{&CreateCustomer{Email: email}}, nil
	}
	return session.StateAwaitingEmail, []Effect{&Notify{Text: noticeEmailReprompt}}, nil
}

func transitionAwaitingLocation(ev Event) (session.State, []Effect, error) {
	switch {
	case ev.Kind == KindLocation && ev.Location != nil:
		return session.StateDeliveryChoice, []Effect{&ResolveDelivery{Coords: ev.Location}}, nil
	case ev.Kind == KindText && strings.TrimSpace(ev.Text) != "":
		return session.StateDeliveryChoice, []Effect{&ResolveDelivery{Address: strings.TrimSpace(ev.Text)}}, nil
	}
	return session.StateAwaitingLocation, []Effect{&Notify{Text: noticeAddressReprompt}}, nil
}

func transitionDeliveryChoice(ev Event, sess session.Session) (session.State, []Effect, error) {
	if ev.Kind == KindAction {
		switch ev.Action {
		case ActionPickup:
			if sess.Checkout == nil {
				return session.StateDeliveryChoice, nil, ErrMissingField
			}
			return session.StateAwaitingPayment, []Effect{&ConfirmPickup{}}, nil
		case ActionDelivery:
			if sess.Checkout == nil {
				return session.StateDeliveryChoice, nil, ErrMissingField
			}
			band := delivery.BandFor(sess.Checkout.Nearest.DistanceKm)
			if !band.DeliveryOffered() {
				// The keyboard never offers this, but a stale tap must not
				// sneak an out-of-range order through.
				return session.StateDeliveryChoice, nil, nil
			}
			return session.StateAwaitingPayment, []Effect{&ArrangeDelivery{}}, nil
		}
	}
	return session.StateDeliveryChoice, nil, nil
}

func transitionAwaitingPayment(ev Event) (session.State, []Effect, error) {
	if ev.Kind == KindAction && ev.Action == ActionPay {
		return session.StateAwaitingPayment, []Effect{&IssueInvoice{CallbackID: ev.CallbackID}}, nil
	}
	return session.StateAwaitingPayment, nil, nil
}
