package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"rentflow/internal/models"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Escrow     EscrowConfig     `yaml:"escrow"`
	Payment    PaymentConfig    `yaml:"payment"`
	Items      []ItemConfig     `yaml:"items"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	// ItemTTL is the item cache lifetime in seconds
	ItemTTL int `yaml:"item_ttl"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
	// ActorHeader carries the acting user id set by the gateway
	ActorHeader string `yaml:"actor_header"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	MaxBookingDays int `yaml:"max_booking_days"`
}

type EscrowConfig struct {
	// ReconcileInterval is the wallet audit period in seconds; negative disables it
	ReconcileInterval int `yaml:"reconcile_interval"`
}

type PaymentConfig struct {
	Provider string `yaml:"provider"`
}

// ItemConfig is a catalog entry seeded at startup. Prices are decimal strings.
type ItemConfig struct {
	ID         int64  `yaml:"id"`
	OwnerID    int64  `yaml:"owner_id"`
	Name       string `yaml:"name"`
	DailyPrice string `yaml:"daily_price"`
	Active     *bool  `yaml:"active"`
}

// Item converts the entry into a catalog item. Items are active unless disabled explicitly.
func (c ItemConfig) Item() (*models.Item, error) {
	price, err := decimal.NewFromString(c.DailyPrice)
	if err != nil {
		return nil, fmt.Errorf("item %d: invalid daily_price %q: %w", c.ID, c.DailyPrice, err)
	}
	active := true
	if c.Active != nil {
		active = *c.Active
	}
	return &models.Item{
		ID:         c.ID,
		OwnerID:    c.OwnerID,
		Name:       c.Name,
		DailyPrice: price,
		IsActive:   active,
	}, nil
}

func (c *Config) ItemCacheTTL() time.Duration {
	return time.Duration(c.Redis.ItemTTL) * time.Second
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Escrow.ReconcileInterval) * time.Second
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// expand env vars before parsing
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Payment.Provider != "mock" {
		return fmt.Errorf("unsupported payment provider %q", c.Payment.Provider)
	}

	if c.API.Auth.Enabled {
		for _, k := range c.API.Auth.APIKeys {
			if k.Key == "" {
				return fmt.Errorf("api key %q has empty key", k.Name)
			}
		}
	}

	return ValidateItems(c.Items)
}

func ValidateItems(items []ItemConfig) error {
	itemIDs := make(map[int64]bool)
	for _, item := range items {
		if item.ID == 0 {
			return fmt.Errorf("item '%s' has invalid ID 0", item.Name)
		}
		if itemIDs[item.ID] {
			return fmt.Errorf("duplicate item ID found: %d", item.ID)
		}
		itemIDs[item.ID] = true

		if item.OwnerID == 0 {
			return fmt.Errorf("item %d has no owner", item.ID)
		}
		parsed, err := item.Item()
		if err != nil {
			return err
		}
		if !parsed.DailyPrice.IsPositive() {
			return fmt.Errorf("item %d: daily_price must be positive", item.ID)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "rentflow"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ActorHeader == "" {
		c.API.HTTP.ActorHeader = "X-Actor-ID"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Redis.ItemTTL == 0 {
		c.Redis.ItemTTL = models.DefaultItemCacheTTL
	}
	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if c.Escrow.ReconcileInterval == 0 {
		c.Escrow.ReconcileInterval = models.DefaultReconcileInterval
	}
	if c.Payment.Provider == "" {
		c.Payment.Provider = "mock"
	}
}
