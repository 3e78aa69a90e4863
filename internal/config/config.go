package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// TelegramConfig holds Telegram bot settings, including the payment
// provider token used to issue invoices.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// PaymentToken is the provider token issued by BotFather for invoices.
	PaymentToken string `yaml:"payment_token" envconfig:"TELEGRAM_PAYMENT_TOKEN"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// CommerceConfig holds credentials for the catalog backend.
type CommerceConfig struct {
	ClientID     string `yaml:"client_id" envconfig:"COMMERCE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" envconfig:"COMMERCE_CLIENT_SECRET"`
	BaseURL      string `yaml:"base_url" envconfig:"COMMERCE_BASE_URL"`
	Currency     string `yaml:"currency" envconfig:"COMMERCE_CURRENCY"`
	// ServicePointFlow names the flow that stores pizzeria entries.
	ServicePointFlow string `yaml:"service_point_flow" envconfig:"COMMERCE_SERVICE_POINT_FLOW"`
	// AddressFlow names the flow that records customer delivery addresses.
	AddressFlow string `yaml:"address_flow" envconfig:"COMMERCE_ADDRESS_FLOW"`
}

// GeocoderConfig holds the Google Maps API key.
type GeocoderConfig struct {
	APIKey string `yaml:"api_key" envconfig:"GEOCODER_API_KEY"`
}

// RedisConfig holds session store connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// MenuConfig controls the paginated menu cache.
type MenuConfig struct {
	PageSize               int `yaml:"page_size" envconfig:"MENU_PAGE_SIZE"`
	RefreshIntervalMinutes int `yaml:"refresh_interval_minutes" envconfig:"MENU_REFRESH_INTERVAL_MINUTES"`
}

// ReminderConfig controls the delayed delivery reminder.
type ReminderConfig struct {
	DelayMinutes int `yaml:"delay_minutes" envconfig:"REMINDER_DELAY_MINUTES"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Dir     string `yaml:"dir"`
	File    string `yaml:"file"`
	Profile string `yaml:"profile"`
}

// Config aggregates all bot configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Commerce CommerceConfig `yaml:"commerce"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Menu     MenuConfig     `yaml:"menu"`
	Reminder ReminderConfig `yaml:"reminder"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Commerce.ClientID == "" || cfg.Commerce.ClientSecret == "" {
		return fmt.Errorf("commerce client_id and client_secret are required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.Commerce.BaseURL == "" {
		cfg.Commerce.BaseURL = "https://api.moltin.com"
	}
	cfg.Commerce.BaseURL = strings.TrimRight(cfg.Commerce.BaseURL, "/")
	if cfg.Commerce.Currency == "" {
		cfg.Commerce.Currency = "RUB"
	}
	if cfg.Commerce.ServicePointFlow == "" {
		cfg.Commerce.ServicePointFlow = "pizzeria"
	}
	if cfg.Commerce.AddressFlow == "" {
		cfg.Commerce.AddressFlow = "customer-address"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = 10
	}

	if cfg.Menu.PageSize <= 0 {
		cfg.Menu.PageSize = 8
	}
	if cfg.Menu.RefreshIntervalMinutes <= 0 {
		cfg.Menu.RefreshIntervalMinutes = 30
	}
	if cfg.Reminder.DelayMinutes <= 0 {
		cfg.Reminder.DelayMinutes = 60
	}

	return nil
}

// ReminderDelay returns the configured reminder delay as a duration.
func (c *Config) ReminderDelay() time.Duration {
	return time.Duration(c.Reminder.DelayMinutes) * time.Minute
}

// MenuRefreshInterval returns the menu cache rebuild period.
func (c *Config) MenuRefreshInterval() time.Duration {
	return time.Duration(c.Menu.RefreshIntervalMinutes) * time.Minute
}
