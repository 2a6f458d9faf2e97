package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	initiativemigrations "github.com/goliatone/go-initiatives/migrations"
)

func TestLoadAppConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", " SQLite3 ")
	t.Setenv("DATABASE_URL", "file::memory:")

	cfg, err := loadAppConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DatabaseDriver != driverSQLite {
		t.Fatalf("expected normalized driver, got %q", cfg.DatabaseDriver)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DeliverySchedule != "@every 1m" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DatabasePingTimeout != 5*time.Second {
		t.Fatalf("expected 5s ping timeout, got %v", cfg.DatabasePingTimeout)
	}
	if cfg.redisEnabled() {
		t.Fatalf("expected redis to be disabled without REDIS_ADDR")
	}
}

func TestLoadAppConfig_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("HTTP_ADDR=:9090\nLOG_MODE=development\n"), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("LOG_MODE", "")
	os.Unsetenv("LOG_MODE")

	cfg, err := loadAppConfig(file, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("expected environment to win, got %q", cfg.HTTPAddr)
	}
	if cfg.LogMode != "development" {
		t.Fatalf("expected dotenv value, got %q", cfg.LogMode)
	}
}

func TestDialectSelection(t *testing.T) {
	for _, driver := range []string{driverPostgres, driverPGX, driverSQLite} {
		if _, err := dialectFor(driver); err != nil {
			t.Fatalf("dialect for %s: %v", driver, err)
		}
	}
	if _, err := dialectFor("mysql"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestOpenDatabaseAndMigrateSQLite(t *testing.T) {
	cfg := appConfig{
		DatabaseDriver:      driverSQLite,
		DatabaseURL:         "file:cmd-initiatives-test?mode=memory&cache=shared",
		DatabasePingTimeout: time.Second,
	}
	client, err := openDatabase(cfg)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer client.Close()
	if err := initiativemigrations.Apply(t.Context(), client, cfg.DatabaseDriver); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}
