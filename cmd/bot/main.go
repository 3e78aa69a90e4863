package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alex-Men-VL/sell-pizza/internal/commerce"
	"github.com/Alex-Men-VL/sell-pizza/internal/config"
	"github.com/Alex-Men-VL/sell-pizza/internal/customers"
	"github.com/Alex-Men-VL/sell-pizza/internal/database"
	"github.com/Alex-Men-VL/sell-pizza/internal/engine"
	"github.com/Alex-Men-VL/sell-pizza/internal/geocode"
	"github.com/Alex-Men-VL/sell-pizza/internal/logger"
	"github.com/Alex-Men-VL/sell-pizza/internal/menu"
	"github.com/Alex-Men-VL/sell-pizza/internal/reminder"
	"github.com/Alex-Men-VL/sell-pizza/internal/session"
	"github.com/Alex-Men-VL/sell-pizza/internal/telegram"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("bot: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()

	if err := database.RunMigrations(cfg.Database); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := session.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()
	store := session.NewRedisStore(redisClient)

	commerceClient := commerce.NewClient(cfg.Commerce)

	geocoder, err := geocode.NewGoogleResolver(cfg.Geocoder.APIKey)
	if err != nil {
		return fmt.Errorf("init geocoder: %w", err)
	}

	catalog := menu.NewCache(commerceClient, cfg.Menu.PageSize)
	if err := catalog.Refresh(ctx); err != nil {
		logger.Warn(ctx, "app", "menu.warmup_failed", slog.String("err", err.Error()))
	}
	go catalog.RunRefresher(ctx, cfg.MenuRefreshInterval())

	scheduler := reminder.NewScheduler()
	defer scheduler.Close()

	env := &engine.Env{
		Commerce:      commerceClient,
		Geocoder:      geocoder,
		Menu:          catalog,
		Directory:     customers.NewRepo(db),
		Scheduler:     scheduler,
		Currency:      cfg.Commerce.Currency,
		ReminderDelay: cfg.ReminderDelay(),
	}

	logger.Info(ctx, "app", "ready",
		slog.Duration("duration", logger.Took(startedAt)))

	err = telegram.Run(ctx, telegram.Options{
		Config: cfg,
		Bind: func(m *telegram.Messenger) *engine.Dispatcher {
			env.Messenger = m
			return engine.NewDispatcher(store, env)
		},
	})

	logger.Info(ctx, "app", "shutdown")
	return err
}
