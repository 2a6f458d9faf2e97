package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// observer is embedded by Service and DeliveryWorker. Every operation ends in
// one structured log line, a <operation>.total counter and a
// <operation>.duration_ms histogram.
type observer struct {
	logger  Logger
	metrics MetricsRecorder
}

type logLevel int

const (
	levelInfo logLevel = iota
	levelWarn
	levelError
)

// metricTagKeys are the log fields promoted to metric tags. Anything with
// per-user cardinality stays out.
var metricTagKeys = []string{"initiative_id", "phase", "trigger", "error_code"}

func (o observer) observeOperation(ctx context.Context, startedAt time.Time, operation string, err error, fields map[string]any) {
	operation = strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(operation)))
	if operation == "" {
		operation = "unknown"
	}
	elapsed := time.Since(startedAt)
	status := "success"
	if err != nil {
		status = "failure"
	}

	entry := cloneFields(fields)
	entry["event_type"] = operation
	entry["status"] = status
	entry["duration_ms"] = elapsed.Milliseconds()
	maps.Copy(entry, errorFields(err))

	tags := map[string]string{"operation": operation, "status": status}
	for _, key := range metricTagKeys {
		if value, ok := entry[key]; ok && value != nil {
			if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
				tags[key] = text
			}
		}
	}
	o.recordCounter(ctx, "initiatives."+operation+".total", 1, tags)
	if o.metrics != nil {
		o.metrics.ObserveHistogram(ctx, "initiatives."+operation+".duration_ms", float64(elapsed.Milliseconds()), cloneTags(tags))
	}

	if err != nil {
		o.logAt(ctx, levelError, operation+" failed", entry)
		return
	}
	o.logAt(ctx, levelInfo, operation+" succeeded", entry)
}

// errorFields flattens the go-errors envelope of err into log fields.
func errorFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{"error": err.Error()}
	if mapped := MapError(err); mapped != nil {
		fields["error_code"] = mapped.TextCode
		fields["error_category"] = fmt.Sprint(mapped.Category)
		fields["error_severity"] = fmt.Sprint(mapped.Severity)
	}
	return fields
}

func (o observer) logWarn(ctx context.Context, message string, fields map[string]any) {
	o.logAt(ctx, levelWarn, message, fields)
}

func (o observer) logError(ctx context.Context, message string, fields map[string]any) {
	o.logAt(ctx, levelError, message, fields)
}

// logAt prefers WithFields when the logger supports it and always passes the
// fields as sorted key/value args too.
func (o observer) logAt(ctx context.Context, level logLevel, message string, fields map[string]any) {
	if o.logger == nil {
		return
	}
	logger := o.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if withFields, ok := logger.(FieldsLogger); ok {
		logger = withFields.WithFields(cloneFields(fields))
	}
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	switch level {
	case levelError:
		logger.Error(message, args...)
	case levelWarn:
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (o observer) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if o.metrics != nil {
		o.metrics.IncCounter(ctx, name, value, cloneTags(tags))
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return maps.Clone(fields)
}
