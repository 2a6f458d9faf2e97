package core

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type metricPoint struct {
	histogram bool
	name      string
	value     float64
	tags      map[string]string
}

type recordingMetrics struct {
	mu     sync.Mutex
	points []metricPoint
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, metricPoint{name: name, value: float64(value), tags: tags})
}

func (m *recordingMetrics) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, metricPoint{histogram: true, name: name, value: value, tags: tags})
}

func (m *recordingMetrics) counter(name string, status string) (metricPoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, point := range m.points {
		if !point.histogram && point.name == name && point.tags["status"] == status {
			return point, true
		}
	}
	return metricPoint{}, false
}

func (m *recordingMetrics) histogram(name string) (metricPoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, point := range m.points {
		if point.histogram && point.name == name {
			return point, true
		}
	}
	return metricPoint{}, false
}

func (m *recordingMetrics) total(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	for _, point := range m.points {
		if !point.histogram && point.name == name {
			sum += point.value
		}
	}
	return sum
}

type logLine struct {
	level  string
	msg    string
	fields map[string]any
}

// recordingLogger keeps key/value args only, so it exercises the plain
// Logger path rather than WithFields.
type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *recordingLogger) Trace(msg string, args ...any) { l.add("trace", msg, args) }
func (l *recordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }
func (l *recordingLogger) Fatal(msg string, args ...any) { l.add("fatal", msg, args) }

func (l *recordingLogger) WithContext(context.Context) Logger { return l }

func (l *recordingLogger) add(level string, msg string, args []any) {
	fields := map[string]any{}
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) find(level string, msg string) (logLine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if line.level == level && line.msg == msg {
			return line, true
		}
	}
	return logLine{}, false
}

func TestServiceObservability_Operations(t *testing.T) {
	cases := []struct {
		name      string
		operation string
		status    string
		run       func(*Service) error
	}{
		{
			name:      "join",
			operation: "participation_join",
			status:    "success",
			run: func(svc *Service) error {
				_, err := svc.Join(context.Background(), JoinRequest{InitiativeID: "ini_1", UserID: "usr_a"})
				return err
			},
		},
		{
			name:      "approve missing participation",
			operation: "participation_approve",
			status:    "failure",
			run: func(svc *Service) error {
				_, _ = svc.Approve(context.Background(), organizer, "prt_missing")
				return nil
			},
		},
		{
			name:      "fan out",
			operation: "notification_fanout",
			status:    "success",
			run: func(svc *Service) error {
				_, err := svc.EnqueuePostNotifications(context.Background(), "pst_1", "ini_1")
				return err
			},
		},
		{
			name:      "webhook without type",
			operation: "webhook_enqueue",
			status:    "failure",
			run: func(svc *Service) error {
				_, _ = svc.EnqueueWebhookEvent(context.Background(), WebhookEnvelope{})
				return nil
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemoryStore()
			seedInitiative(store, "ini_1", true, nil)
			metrics := &recordingMetrics{}
			logger := &recordingLogger{}
			svc, err := newTestService(store,
				WithPostNotificationQueue(&memoryPostQueue{}),
				WithWebhookEventQueue(&memoryWebhookQueue{}),
				WithMetricsRecorder(metrics),
				WithLogger(logger),
			)
			if err != nil {
				t.Fatalf("new service: %v", err)
			}
			if err := tc.run(svc); err != nil {
				t.Fatalf("run: %v", err)
			}

			counter, ok := metrics.counter("initiatives."+tc.operation+".total", tc.status)
			if !ok {
				t.Fatalf("expected %s counter with status %s, got %+v", tc.operation, tc.status, metrics.points)
			}
			if counter.tags["operation"] != tc.operation {
				t.Fatalf("expected operation tag, got %#v", counter.tags)
			}
			if _, ok := counter.tags["user_id"]; ok {
				t.Fatalf("user_id must not become a metric tag, got %#v", counter.tags)
			}
			if _, ok := metrics.histogram("initiatives." + tc.operation + ".duration_ms"); !ok {
				t.Fatalf("expected duration histogram for %s", tc.operation)
			}

			level, verb := "info", " succeeded"
			if tc.status == "failure" {
				level, verb = "error", " failed"
			}
			line, ok := logger.find(level, tc.operation+verb)
			if !ok {
				t.Fatalf("expected %s log %q, got %+v", level, tc.operation+verb, logger.lines)
			}
			if line.fields["event_type"] != tc.operation {
				t.Fatalf("expected event_type field, got %#v", line.fields)
			}
			if tc.status == "failure" && line.fields["error_code"] == nil {
				t.Fatalf("expected error_code on failure log, got %#v", line.fields)
			}
		})
	}
}

func TestObserveOperation_EnrichesStructuredErrorFields(t *testing.T) {
	logger := &recordingLogger{}
	metrics := &recordingMetrics{}
	o := observer{logger: logger, metrics: metrics}

	richErr := goerrors.New("provider timeout", goerrors.CategoryExternal).
		WithCode(502).
		WithTextCode(ErrorProviderTransient).
		WithSeverity(goerrors.SeverityCritical)
	o.observeOperation(context.Background(), time.Now().Add(-100*time.Millisecond), "Delivery-Run", richErr,
		map[string]any{"phase": RunPhasePostNotifications, "user_id": "usr_a"})

	line, ok := logger.find("error", "delivery_run failed")
	if !ok {
		t.Fatalf("expected normalized operation name in log, got %+v", logger.lines)
	}
	if line.fields["error_code"] != ErrorProviderTransient {
		t.Fatalf("expected error_code %q, got %#v", ErrorProviderTransient, line.fields["error_code"])
	}
	if line.fields["error_severity"] != goerrors.SeverityCritical.String() {
		t.Fatalf("expected critical severity, got %#v", line.fields["error_severity"])
	}
	if line.fields["user_id"] != "usr_a" {
		t.Fatalf("expected caller fields to be logged, got %#v", line.fields)
	}
	counter, ok := metrics.counter("initiatives.delivery_run.total", "failure")
	if !ok {
		t.Fatalf("expected failure counter")
	}
	if counter.tags["phase"] != RunPhasePostNotifications || counter.tags["error_code"] != ErrorProviderTransient {
		t.Fatalf("unexpected tags %#v", counter.tags)
	}
	histogram, _ := metrics.histogram("initiatives.delivery_run.duration_ms")
	if histogram.value < 100 {
		t.Fatalf("expected duration of at least 100ms, got %v", histogram.value)
	}
}
