package gologger

import (
	"context"
	"errors"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestForWorker_ProviderTakesPrecedence(t *testing.T) {
	direct := &capturingLogger{id: "logger"}
	fromProvider := &capturingLogger{id: "provider"}

	loggers := ForWorker("delivery.jobs", &capturingProvider{logger: fromProvider}, direct)
	if got := loggers.Logger.(*capturingLogger); got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}
	loggers = ForWorker("delivery.jobs", nil, direct)
	if got := loggers.Logger.(*capturingLogger); got.id != "logger" {
		t.Fatalf("expected direct logger without provider, got %q", got.id)
	}
	if loggers = ForWorker("delivery.jobs", nil, nil); loggers.Logger == nil || loggers.Queue == nil || loggers.Cron == nil {
		t.Fatalf("expected nop fallbacks, got %+v", loggers)
	}
}

func TestForWorker_BridgesQueueAndCronOutput(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	loggers := ForWorker("delivery.jobs", nil, NewFromZap(zap.New(core)))

	loggers.Queue.Warn("lease expired for task ", "tsk_1")
	loggers.Cron.Info("wake", "now", "09:00")
	loggers.Cron.Error(errors.New("bad spec"), "schedule")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "lease expired for task tsk_1" || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("unexpected queue entry %+v", entries[0].Entry)
	}
	if entries[1].Message != "cron: wake" || entries[1].Level != zapcore.DebugLevel {
		t.Fatalf("expected cron info at debug, got %+v", entries[1].Entry)
	}
	if entries[2].ContextMap()["error"] != "bad spec" {
		t.Fatalf("expected cron error field, got %#v", entries[2].ContextMap())
	}
}

func TestLogger_WritesKeyValuePairs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewFromZap(zap.New(core))

	logger.Info("notification sent", "post_id", "pst_1", "count", 3)
	logger.Trace("trace maps to debug")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["post_id"] != "pst_1" || fields["count"] != int64(3) {
		t.Fatalf("unexpected fields %#v", fields)
	}
	if entries[1].Level != zapcore.DebugLevel {
		t.Fatalf("expected trace at debug level, got %s", entries[1].Level)
	}
}

func TestLogger_WithContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewFromZap(zap.New(core))

	ctx := ContextWithRequestID(context.Background(), " req-1 ")
	logger.WithContext(ctx).Info("webhook received")
	logger.WithContext(context.Background()).Info("no request")

	entries := logs.All()
	if got := entries[0].ContextMap()["request_id"]; got != "req-1" {
		t.Fatalf("expected request id, got %#v", got)
	}
	if _, ok := entries[1].ContextMap()["request_id"]; ok {
		t.Fatalf("expected no request id without context value")
	}
}

func TestLogger_WithFieldsAndNamedChildren(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewFromZap(zap.New(core))

	logger.GetLogger("delivery").(glog.FieldsLogger).WithFields(map[string]any{
		"trigger": "cron",
		"phase":   "all",
	}).Info("run finished")

	entry := logs.All()[0]
	if entry.LoggerName != "delivery" {
		t.Fatalf("expected named logger, got %q", entry.LoggerName)
	}
	fields := entry.ContextMap()
	if fields["trigger"] != "cron" || fields["phase"] != "all" {
		t.Fatalf("unexpected fields %#v", fields)
	}
}

func TestNew_BuildsBothModes(t *testing.T) {
	for _, mode := range []string{ModeProduction, ModeDevelopment} {
		logger, err := New(mode)
		if err != nil {
			t.Fatalf("new %s logger: %v", mode, err)
		}
		if logger == nil {
			t.Fatalf("expected %s logger", mode)
		}
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
