package telegram

import (
	"context"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/Alex-Men-VL/sell-pizza/internal/engine"
	"github.com/Alex-Men-VL/sell-pizza/internal/payment"
)

// Messenger adapts the Bot API to the channel-neutral surface the engine
// effects use. User keys are decimal chat IDs.
type Messenger struct {
	bot          *tele.Bot
	paymentToken string
}

func NewMessenger(bot *tele.Bot, paymentToken string) *Messenger {
	return &Messenger{bot: bot, paymentToken: paymentToken}
}

func recipient(userKey string) (tele.Recipient, int64, error) {
	id, err := strconv.ParseInt(userKey, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("telegram: bad user key %q: %w", userKey, err)
	}
	return tele.ChatID(id), id, nil
}

func buildMarkup(kb *engine.Keyboard) *tele.ReplyMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		btns := make([]tele.Btn, 0, len(row))
		for _, b := range row {
			if b.Payload != "" {
				btns = append(btns, markup.Data(b.Text, b.Action, b.Payload))
			} else {
				btns = append(btns, markup.Data(b.Text, b.Action))
			}
		}
		rows = append(rows, markup.Row(btns...))
	}
	markup.Inline(rows...)
	return markup
}

func sendOptions(msg engine.Message) *tele.SendOptions {
	opts := &tele.SendOptions{ReplyMarkup: buildMarkup(msg.Keyboard)}
	if msg.Markdown {
		opts.ParseMode = tele.ModeMarkdownV2
	}
	return opts
}

func (m *Messenger) SendMessage(_ context.Context, userKey string, msg engine.Message) error {
	to, _, err := recipient(userKey)
	if err != nil {
		return err
	}
	_, err = m.bot.Send(to, msg.Text, sendOptions(msg))
	return err
}

func (m *Messenger) EditMessage(_ context.Context, userKey, messageID string, msg engine.Message) error {
	_, chatID, err := recipient(userKey)
	if err != nil {
		return err
	}
	stored := &tele.StoredMessage{MessageID: messageID, ChatID: chatID}
	_, err = m.bot.Edit(stored, msg.Text, sendOptions(msg))
	return err
}

func (m *Messenger) DeleteMessage(_ context.Context, userKey, messageID string) error {
	_, chatID, err := recipient(userKey)
	if err != nil {
		return err
	}
	return m.bot.Delete(&tele.StoredMessage{MessageID: messageID, ChatID: chatID})
}

func (m *Messenger) SendPhoto(_ context.Context, userKey, photoURL string, caption engine.Message) error {
	to, _, err := recipient(userKey)
	if err != nil {
		return err
	}
	photo := &tele.Photo{File: tele.FromURL(photoURL), Caption: caption.Text}
	_, err = m.bot.Send(to, photo, sendOptions(caption))
	return err
}

func (m *Messenger) SendLocation(_ context.Context, userKey string, lat, lon float64) error {
	to, _, err := recipient(userKey)
	if err != nil {
		return err
	}
	_, err = m.bot.Send(to, &tele.Location{Lat: float32(lat), Lng: float32(lon)})
	return err
}

func (m *Messenger) AnswerCallback(_ context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	return m.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

func (m *Messenger) SendInvoice(_ context.Context, userKey string, inv payment.Invoice) error {
	to, _, err := recipient(userKey)
	if err != nil {
		return err
	}
	_, err = m.bot.Send(to, &tele.Invoice{
		Title:       inv.Title,
		Description: inv.Description,
		Payload:     inv.Payload,
		Currency:    inv.Currency,
		Token:       m.paymentToken,
		Prices: []tele.Price{
			{Label: "Итого", Amount: inv.AmountMinor},
		},
	})
	return err
}

func (m *Messenger) AcceptCheckout(_ context.Context, queryID string) error {
	_, err := m.bot.Raw("answerPreCheckoutQuery", map[string]string{
		"pre_checkout_query_id": queryID,
		"ok":                    "true",
	})
	return err
}

func (m *Messenger) RejectCheckout(_ context.Context, queryID, reason string) error {
	_, err := m.bot.Raw("answerPreCheckoutQuery", map[string]string{
		"pre_checkout_query_id": queryID,
		"ok":                    "false",
		"error_message":         reason,
	})
	return err
}
