package engine

import (
	"fmt"
	"strings"

	"github.com/Alex-Men-VL/sell-pizza/internal/commerce"
	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
)

// markdownSpecials are the characters MarkdownV2 requires escaped in plain
// text segments.
const markdownSpecials = `_*[]()~` + "`" + `>#+-=|{}.!`

func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// renderCart builds the MarkdownV2 cart summary and its keyboard.
func renderCart(contents commerce.CartContents) (string, *Keyboard) {
	if contents.Empty() {
		kb := &Keyboard{Rows: [][]Button{
			{{Text: "В меню", Action: ActionMenu}},
		}}
		return "Ваша корзина пуста\\.", kb
	}

	var b strings.Builder
	kb := &Keyboard{}
	for _, item := range contents.Items {
		fmt.Fprintf(&b, "*%s*\n%s\n%s за шт\\.\n%d шт в корзине за %s\n\n",
			escapeMarkdown(item.Name),
			escapeMarkdown(item.Description),
			escapeMarkdown(item.UnitPriceFormatted),
			item.Quantity,
			escapeMarkdown(item.LinePriceFormatted))
		kb.Rows = append(kb.Rows, []Button{{
			Text:    "Убрать из корзины " + item.Name,
			Action:  ActionRemove,
			Payload: item.ID,
		}})
	}
	fmt.Fprintf(&b, "*Всего: %s*", escapeMarkdown(contents.TotalFormatted))

	kb.Rows = append(kb.Rows,
		[]Button{{Text: "В меню", Action: ActionMenu}},
		[]Button{{Text: "Оформить заказ", Action: ActionCheckout}},
	)
	return b.String(), kb
}

// renderDeliveryOptions builds the band-specific offer shown after the
// address is resolved.
func renderDeliveryOptions(band delivery.Band, nearest delivery.NearestResult) (string, *Keyboard) {
	both := &Keyboard{Rows: [][]Button{
		{{Text: "Доставка", Action: ActionDelivery}},
		{{Text: "Самовывоз", Action: ActionPickup}},
	}}
	pickupOnly := &Keyboard{Rows: [][]Button{
		{{Text: "Самовывоз", Action: ActionPickup}},
	}}

	switch band {
	case delivery.BandWalkingDistance:
		text := fmt.Sprintf(
			"Может, заберете пиццу из нашей пиццерии неподалеку? "+
				"Она всего в %.0f метрах от вас! Вот ее адрес: %s.\n\n"+
				"А можем и бесплатно доставить, нам не сложно.",
			nearest.DistanceM, nearest.Point.Address)
		return text, both
	case delivery.BandNearby:
		return "Похоже, придется ехать к вам на самокате. " +
			"Доставка будет стоить 100 рублей. Доставляем или самовывоз?", both
	case delivery.BandFar:
		return "Вы довольно далеко от нас. " +
			"Доставка будет стоить 300 рублей. Доставляем или самовывоз?", both
	default:
		text := fmt.Sprintf(
			"Простите, но так далеко мы пиццу не доставим. "+
				"Ближайшая пиццерия аж в %.1f километрах от вас! Будете забирать сами?",
			nearest.DistanceKm)
		return text, pickupOnly
	}
}
