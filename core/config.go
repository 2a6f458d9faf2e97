package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultBatchSize          = 50
	defaultProviderBatchLimit = 100
	defaultRunBudget          = 50 * time.Second
	defaultRateLimit          = 10
	defaultRateWindow         = time.Second
)

type QueueConfig struct {
	BatchSize          int           `koanf:"batch_size" mapstructure:"batch_size"`
	ProviderBatchLimit int           `koanf:"provider_batch_limit" mapstructure:"provider_batch_limit"`
	RunBudget          time.Duration `koanf:"run_budget" mapstructure:"run_budget"`
}

// RateLimitConfig bounds provider sends to Limit messages per Window.
type RateLimitConfig struct {
	Limit  int           `koanf:"limit" mapstructure:"limit"`
	Window time.Duration `koanf:"window" mapstructure:"window"`
}

type ProviderConfig struct {
	BaseURL     string        `koanf:"base_url" mapstructure:"base_url"`
	APIKey      string        `koanf:"api_key" mapstructure:"api_key"`
	FromAddress string        `koanf:"from_address" mapstructure:"from_address"`
	FromName    string        `koanf:"from_name" mapstructure:"from_name"`
	Timeout     time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type SecretsConfig struct {
	CronSecret    string `koanf:"cron_secret" mapstructure:"cron_secret"`
	WebhookSecret string `koanf:"webhook_secret" mapstructure:"webhook_secret"`
}

type Config struct {
	ServiceName   string          `koanf:"service_name" mapstructure:"service_name"`
	DefaultLocale string          `koanf:"default_locale" mapstructure:"default_locale"`
	Queue         QueueConfig     `koanf:"queue" mapstructure:"queue"`
	RateLimit     RateLimitConfig `koanf:"rate_limit" mapstructure:"rate_limit"`
	Provider      ProviderConfig  `koanf:"provider" mapstructure:"provider"`
	Secrets       SecretsConfig   `koanf:"secrets" mapstructure:"secrets"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:   "initiatives",
		DefaultLocale: "ar",
		Queue: QueueConfig{
			BatchSize:          defaultBatchSize,
			ProviderBatchLimit: defaultProviderBatchLimit,
			RunBudget:          defaultRunBudget,
		},
		RateLimit: RateLimitConfig{
			Limit:  defaultRateLimit,
			Window: defaultRateWindow,
		},
		Provider: ProviderConfig{
			Timeout: 10 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Queue.BatchSize < 0 {
		return fmt.Errorf("core: queue.batch_size must be >= 0")
	}
	if c.Queue.ProviderBatchLimit < 0 {
		return fmt.Errorf("core: queue.provider_batch_limit must be >= 0")
	}
	if c.RateLimit.Limit < 0 {
		return fmt.Errorf("core: rate_limit.limit must be >= 0")
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("core: rate_limit.window must be >= 0")
	}
	return nil
}

// ProviderConfigured reports whether the delivery provider has credentials.
func (c Config) ProviderConfigured() bool {
	return strings.TrimSpace(c.Provider.APIKey) != ""
}

func (c QueueConfig) normalized() QueueConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.ProviderBatchLimit <= 0 {
		c.ProviderBatchLimit = defaultProviderBatchLimit
	}
	if c.RunBudget <= 0 {
		c.RunBudget = defaultRunBudget
	}
	return c
}
