package gologger

import (
	"fmt"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

// WorkerLoggers is one named logger shaped for each library the delivery
// worker runs on, so asynq and cron output lands in the same stream as ours.
type WorkerLoggers struct {
	Logger glog.Logger
	Queue  asynq.Logger
	Cron   cron.Logger
}

// ForWorker resolves name with the precedence provider, then logger, then nop.
func ForWorker(name string, provider glog.LoggerProvider, logger glog.Logger) WorkerLoggers {
	_, resolved := glog.Resolve(name, provider, logger)
	return WorkerLoggers{
		Logger: resolved,
		Queue:  queueLogger{logger: resolved},
		Cron:   cronLogger{logger: resolved},
	}
}

// queueLogger adapts asynq's print style logger.
type queueLogger struct {
	logger glog.Logger
}

func (l queueLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l queueLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l queueLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l queueLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l queueLogger) Fatal(args ...any) { l.logger.Fatal(fmt.Sprint(args...)) }

// cronLogger routes cron's Info to debug; it logs every schedule tick.
type cronLogger struct {
	logger glog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

var (
	_ asynq.Logger = queueLogger{}
	_ cron.Logger  = cronLogger{}
)
