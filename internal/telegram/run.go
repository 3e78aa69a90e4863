package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/Alex-Men-VL/sell-pizza/internal/config"
	"github.com/Alex-Men-VL/sell-pizza/internal/engine"
	"github.com/Alex-Men-VL/sell-pizza/internal/logger"
)

// Options configures Run.
type Options struct {
	Config *config.Config

	// Bind receives the messenger once the bot is built and returns the
	// dispatcher updates are routed into.
	Bind func(m *Messenger) *engine.Dispatcher

	Middlewares []Middleware

	DisableWebhookCleanup bool
}

// BuildPoller returns a poller based on the configured run mode.
func BuildPoller(cfg *config.Config) tele.Poller {
	runMode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if runMode == config.RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}

	timeoutSec := cfg.Telegram.LongPollTimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &tele.LongPoller{Timeout: time.Duration(timeoutSec) * time.Second}
}

// Run composes and runs the bot until the context is done.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config provided")
	}
	if opts.Bind == nil {
		return errors.New("telegram: nil bind provided")
	}

	poller := BuildPoller(cfg)
	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(),
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, "telegram", "mode",
			slog.String("payload", "webhook"),
			slog.String("listen", p.Listen),
			slog.Duration("duration", logger.Took(buildStart)),
		)
	default:
		logger.Info(ctx, "telegram", "mode",
			slog.String("payload", "polling"),
			slog.Duration("duration", logger.Took(buildStart)),
		)
		if !opts.DisableWebhookCleanup && strings.EqualFold(cfg.Telegram.RunMode, config.RunModeLongpoll) {
			if err := deleteWebhook(cfg.Telegram.Token); err != nil {
				logger.Warn(ctx, "telegram", "webhook.delete_failed", slog.String("err", err.Error()))
			}
		}
	}

	dispatcher := opts.Bind(NewMessenger(bot, cfg.Telegram.PaymentToken))
	if dispatcher == nil {
		return errors.New("telegram: bind returned nil dispatcher")
	}

	middlewares := opts.Middlewares
	if middlewares == nil {
		middlewares = []Middleware{
			{Name: "recover", Use: RecoverMiddleware},
			{Name: "logging", Use: LoggingMiddleware},
		}
	}
	for _, mw := range middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}

	for _, route := range Routes(dispatcher) {
		bot.Handle(route.Endpoint, route.Handler)
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	case <-runDone:
		return nil
	}
}

func deleteWebhook(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("empty token")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/deleteWebhook", token)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader("drop_pending_updates=false"))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook status: %s", resp.Status)
	}
	return nil
}
