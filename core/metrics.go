package core

import (
	"context"
	"maps"
	"strings"
)

// Per batch delivery counters. Operation counters and durations are named
// initiatives.<operation>.total and initiatives.<operation>.duration_ms.
const (
	MetricEmailsSent        = "initiatives.delivery.emails_sent"
	MetricEmailsFailed      = "initiatives.delivery.emails_failed"
	MetricEmailsDiscarded   = "initiatives.delivery.emails_discarded"
	MetricWebhookEventsDone = "initiatives.delivery.webhook_events"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// countDelivery records n under name, tagged with the error code when err
// is a service error.
func (o observer) countDelivery(ctx context.Context, name string, n int, err error) {
	if n <= 0 {
		return
	}
	tags := map[string]string{"outcome": "ok"}
	if err != nil {
		tags["outcome"] = "error"
		if code := strings.TrimSpace(TextCode(err)); code != "" {
			tags["error_code"] = code
		}
	}
	o.recordCounter(ctx, name, int64(n), tags)
}

func cloneTags(tags map[string]string) map[string]string {
	if tags == nil {
		return map[string]string{}
	}
	return maps.Clone(tags)
}
