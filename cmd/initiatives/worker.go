package main

import (
	"context"
	"fmt"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-initiatives/adapters/gojob"
	"github.com/goliatone/go-initiatives/adapters/gologger"
	"github.com/goliatone/go-initiatives/command"
	"github.com/goliatone/go-initiatives/core"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

// runWorker publishes a delivery run on every schedule tick and consumes
// runs from the asynq queue one at a time. Ticks that land in the same
// minute collapse onto one task id.
func runWorker(ctx context.Context, a *app) error {
	if !a.cfg.redisEnabled() {
		return fmt.Errorf("REDIS_ADDR is required by the worker")
	}
	redisOpt := asynq.RedisClientOpt{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}
	if _, ok := a.queueRegistry.Get(command.TypeRunDelivery); !ok {
		return fmt.Errorf("delivery run command is not registered")
	}
	policy := gojob.DefaultRetryPolicy()
	loggers := gologger.ForWorker("delivery.jobs", a.logger, nil)
	logger := loggers.Logger

	handler := gojob.NewRunHandler(a.facade.Commands().RunDelivery,
		gojob.WithHooks(gojob.NewLogHook(logger)),
		gojob.WithRetryPolicy(policy),
	)
	mux := asynq.NewServeMux()
	mux.Handle(gojob.JobIDDeliveryRun, handler)

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     1,
		Queues:          map[string]int{a.cfg.QueueName: 1},
		RetryDelayFunc:  policy.RetryDelayFunc(),
		ShutdownTimeout: a.cfg.ShutdownTimeout,
		Logger:          loggers.Queue,
	})
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	scheduler := gojob.NewRunScheduler(gojob.NewAsynqEnqueuer(client, a.cfg.QueueName, policy))
	ticker := cron.New(cron.WithLocation(time.UTC), cron.WithLogger(loggers.Cron))
	if _, err := ticker.AddFunc(a.cfg.DeliverySchedule, func() {
		if err := scheduler.Schedule(ctx, core.RunPhaseAll, core.RunTriggerSchedule); err != nil {
			logger.Error("schedule delivery run", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("parse DELIVERY_SCHEDULE %q: %w", a.cfg.DeliverySchedule, err)
	}

	if err := server.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	ticker.Start()
	logger.Info("delivery worker started", "queue", a.cfg.QueueName, "schedule", a.cfg.DeliverySchedule)

	<-ctx.Done()
	<-ticker.Stop().Done()
	server.Shutdown()
	logger.Info("delivery worker stopped")
	return nil
}

// runOnce executes a single delivery run in process, for manual operation.
func runOnce(ctx context.Context, a *app, phase string) error {
	collector := gocmd.NewResult[core.RunStats]()
	ctx = gocmd.ContextWithResult(ctx, collector)
	msg := command.RunDeliveryMessage{Phase: phase, Trigger: core.RunTriggerManual}
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := a.facade.Commands().RunDelivery.Execute(ctx, msg); err != nil {
		return err
	}
	stats, _ := collector.Load()
	a.logger.Info("delivery run finished",
		"phase", phase,
		"processed", stats.Processed,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"duration", stats.Duration.String(),
	)
	return nil
}
