package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvConfig is the environment surface of Config.
type EnvConfig struct {
	ServiceName        string        `env:"SERVICE_NAME"`
	DefaultLocale      string        `env:"DEFAULT_LOCALE"`
	BatchSize          int           `env:"QUEUE_BATCH_SIZE"`
	ProviderBatchLimit int           `env:"PROVIDER_BATCH_LIMIT"`
	RunBudget          time.Duration `env:"WORKER_RUN_BUDGET"`
	RateLimit          int           `env:"PROVIDER_RATE_LIMIT"`
	RateWindow         time.Duration `env:"PROVIDER_RATE_WINDOW"`
	ProviderBaseURL    string        `env:"PROVIDER_BASE_URL"`
	ProviderAPIKey     string        `env:"PROVIDER_API_KEY"`
	ProviderFrom       string        `env:"PROVIDER_FROM_ADDRESS"`
	ProviderFromName   string        `env:"PROVIDER_FROM_NAME"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT"`
	CronSecret         string        `env:"CRON_SECRET"`
	WebhookSecret      string        `env:"WEBHOOK_SECRET"`
}

func (e EnvConfig) Config() Config {
	return Config{
		ServiceName:   strings.TrimSpace(e.ServiceName),
		DefaultLocale: strings.TrimSpace(e.DefaultLocale),
		Queue: QueueConfig{
			BatchSize:          e.BatchSize,
			ProviderBatchLimit: e.ProviderBatchLimit,
			RunBudget:          e.RunBudget,
		},
		RateLimit: RateLimitConfig{
			Limit:  e.RateLimit,
			Window: e.RateWindow,
		},
		Provider: ProviderConfig{
			BaseURL:     strings.TrimSpace(e.ProviderBaseURL),
			APIKey:      strings.TrimSpace(e.ProviderAPIKey),
			FromAddress: strings.TrimSpace(e.ProviderFrom),
			FromName:    strings.TrimSpace(e.ProviderFromName),
			Timeout:     e.ProviderTimeout,
		},
		Secrets: SecretsConfig{
			CronSecret:    strings.TrimSpace(e.CronSecret),
			WebhookSecret: strings.TrimSpace(e.WebhookSecret),
		},
	}
}

// EnvConfigLoader reads configuration from the process environment. Values
// found in Files (dotenv format) fill keys the environment does not set.
type EnvConfigLoader struct {
	Files       []string
	Environment map[string]string
}

func NewEnvConfigLoader(files ...string) *EnvConfigLoader {
	return &EnvConfigLoader{Files: append([]string(nil), files...)}
}

func (l *EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	parsed, err := l.Parse()
	if err != nil {
		return nil, err
	}
	return layerOf(parsed.Config(), true), nil
}

func (l *EnvConfigLoader) Parse() (EnvConfig, error) {
	environment, err := l.environment()
	if err != nil {
		return EnvConfig{}, err
	}
	var out EnvConfig
	if err := env.ParseWithOptions(&out, env.Options{Environment: environment}); err != nil {
		return EnvConfig{}, fmt.Errorf("core: parse env: %w", err)
	}
	return out, nil
}

func (l *EnvConfigLoader) environment() (map[string]string, error) {
	values := map[string]string{}
	if l != nil && l.Environment != nil {
		for key, value := range l.Environment {
			values[key] = value
		}
	} else {
		for _, pair := range os.Environ() {
			key, value, ok := strings.Cut(pair, "=")
			if ok {
				values[key] = value
			}
		}
	}
	if l == nil {
		return values, nil
	}
	for _, file := range l.Files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		fromFile, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("core: read dotenv %s: %w", file, err)
		}
		for key, value := range fromFile {
			if _, exists := values[key]; !exists {
				values[key] = value
			}
		}
	}
	return values, nil
}
