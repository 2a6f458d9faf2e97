// Command initiatives runs the participation API, the webhook and cron
// endpoints and the notification delivery worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goliatone/go-initiatives/adapters/gologger"
	"github.com/goliatone/go-initiatives/core"
	initiativemigrations "github.com/goliatone/go-initiatives/migrations"
)

const usage = `initiatives - participation lifecycle and notification delivery

Usage:
  initiatives [flags] <command> [args]

Commands:
  serve            Serve the participation, webhook and cron HTTP endpoints
  worker           Schedule delivery runs and process them from the asynq queue
  run [phase]      Execute one delivery run in process (all, webhook_events, post_notifications)
  migrate          Apply database migrations

Flags:
`

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the process environment is read")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Arg(0), flag.Args()[1:], *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "initiatives: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, name string, args []string, envFile string) error {
	cfg, err := loadAppConfig(envFile)
	if err != nil {
		return err
	}
	logger, err := gologger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("new logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	switch name {
	case "migrate":
		client, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := initiativemigrations.Apply(ctx, client, cfg.DatabaseDriver); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied", "driver", cfg.DatabaseDriver)
		return nil
	case "serve", "worker", "run":
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", name)
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	switch name {
	case "serve":
		return runServe(ctx, a)
	case "worker":
		return runWorker(ctx, a)
	default:
		phase := core.RunPhaseAll
		if len(args) > 0 {
			phase = strings.TrimSpace(args[0])
		}
		return runOnce(ctx, a, phase)
	}
}
