package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	driverPostgres = "postgres"
	driverPGX      = "pgx"
	driverSQLite   = "sqlite3"
)

// appConfig holds the process settings. Domain settings (queue sizes,
// provider credentials, secrets) are read by core.EnvConfigLoader.
type appConfig struct {
	DatabaseDriver      string        `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL         string        `env:"DATABASE_URL"`
	DatabaseDebug       bool          `env:"DATABASE_DEBUG"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT" envDefault:"5s"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	GinMode         string        `env:"GIN_MODE" envDefault:"release"`
	LogMode         string        `env:"LOG_MODE" envDefault:"production"`
	JWTSecret       string        `env:"JWT_SECRET"`
	LinkBaseURL     string        `env:"LINK_BASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	DeliverySchedule string `env:"DELIVERY_SCHEDULE" envDefault:"@every 1m"`
	QueueName        string `env:"DELIVERY_QUEUE" envDefault:"initiatives"`
}

func loadAppConfig(files ...string) (appConfig, error) {
	for _, file := range files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return appConfig{}, fmt.Errorf("load %s: %w", file, err)
		}
	}
	var cfg appConfig
	if err := env.Parse(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	return cfg, nil
}

func (c appConfig) redisEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

// persistenceConfig adapts appConfig to go-persistence-bun.
type persistenceConfig struct {
	app appConfig
}

func (c persistenceConfig) GetDebug() bool {
	return c.app.DatabaseDebug
}

func (c persistenceConfig) GetDriver() string {
	return c.app.DatabaseDriver
}

func (c persistenceConfig) GetServer() string {
	return c.app.DatabaseURL
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return c.app.DatabasePingTimeout
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "go-initiatives"
}
