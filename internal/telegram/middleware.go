package telegram

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/Alex-Men-VL/sell-pizza/internal/logger"
)

// Middleware is a global bot middleware registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// RecoverMiddleware catches handler panics so one update cannot take the
// bot down.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(context.Background(), "telegram", "panic.recovered",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return next(c)
	}
}

// LoggingMiddleware logs one receipt line per update.
func LoggingMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		userKey := userKeyOf(c)
		ctx := updateContext(c, userKey)

		attrs := []slog.Attr{
			slog.Int("update_id", c.Update().ID),
			slog.String("user_key", userKey),
		}
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		} else if cb := c.Callback(); cb != nil {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(cb.Data, 256)))
		}
		logger.Debug(ctx, "telegram", "update.received", attrs...)

		err := next(c)

		logger.Debug(ctx, "telegram", "update.done",
			slog.Int("update_id", c.Update().ID),
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(start)),
		)
		return err
	}
}
