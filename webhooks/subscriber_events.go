package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-initiatives/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	EventSubscriberCreated      = "subscriber.created"
	EventSubscriberUpdated      = "subscriber.updated"
	EventSubscriberUnsubscribed = "subscriber.unsubscribed"
	EventSubscriberBounced      = "subscriber.bounced"
	EventSubscriberSpamReported = "subscriber.spam_reported"
)

// SubscriberLookup resolves a subscriber the local mirror has not seen yet.
// mailer.Client satisfies it through core.SubscriberDirectory.
type SubscriberLookup interface {
	FindSubscriber(ctx context.Context, idOrEmail string) (core.Subscriber, error)
}

// SubscriberEventDispatcher applies queued provider events to the local
// subscriber mirror. Unknown event types are logged and acknowledged.
type SubscriberEventDispatcher struct {
	store     core.SubscriberStore
	directory SubscriberLookup
	logger    core.Logger
}

type DispatcherOption func(*SubscriberEventDispatcher)

func WithDispatcherLogger(logger core.Logger) DispatcherOption {
	return func(d *SubscriberEventDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithSubscriberDirectory lets events that only carry a provider id create
// the local row by asking the provider for the subscriber's email.
func WithSubscriberDirectory(directory SubscriberLookup) DispatcherOption {
	return func(d *SubscriberEventDispatcher) {
		if directory != nil {
			d.directory = directory
		}
	}
}

func NewSubscriberEventDispatcher(store core.SubscriberStore, opts ...DispatcherOption) (*SubscriberEventDispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("webhooks: subscriber store is required")
	}
	dispatcher := &SubscriberEventDispatcher{
		store:  store,
		logger: glog.Ensure(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(dispatcher)
		}
	}
	return dispatcher, nil
}

func (d *SubscriberEventDispatcher) Handle(ctx context.Context, event core.WebhookEvent) error {
	if d == nil || d.store == nil {
		return fmt.Errorf("webhooks: dispatcher is not configured")
	}

	var status core.SubscriberStatus
	switch strings.TrimSpace(event.EventType) {
	case EventSubscriberCreated, EventSubscriberUpdated:
		// status comes from the payload
	case EventSubscriberUnsubscribed:
		status = core.SubscriberStatusUnsubscribed
	case EventSubscriberBounced:
		status = core.SubscriberStatusBounced
	case EventSubscriberSpamReported:
		status = core.SubscriberStatusJunk
	default:
		d.logger.WithContext(ctx).Warn("webhook event type not handled",
			"webhook_event_id", event.ID,
			"event_type", event.EventType,
			"data", core.RedactSensitiveMap(event.Data()),
		)
		return nil
	}

	input, ok := subscriberInput(event, status)
	if !ok {
		d.logger.WithContext(ctx).Warn("webhook event has no subscriber reference",
			"webhook_event_id", event.ID,
			"event_type", event.EventType,
		)
		return nil
	}
	_, err := d.store.UpsertSubscriber(ctx, input)
	if errors.Is(err, core.ErrRecordNotFound) && input.Email == "" && d.directory != nil {
		input, err = d.resolveUnknown(ctx, input)
		if err == nil {
			_, err = d.store.UpsertSubscriber(ctx, input)
		}
	}
	if err != nil {
		if errors.Is(err, core.ErrRecordNotFound) || core.IsNotConfigured(err) {
			d.logger.WithContext(ctx).Warn("webhook event references unknown subscriber",
				"webhook_event_id", event.ID,
				"event_type", event.EventType,
				"provider_id", input.ProviderID,
			)
			return nil
		}
		return fmt.Errorf("webhooks: apply %s: %w", event.EventType, err)
	}
	return nil
}

// resolveUnknown fills the email of a provider-id-only event from the
// provider's directory.
func (d *SubscriberEventDispatcher) resolveUnknown(ctx context.Context, input core.UpsertSubscriberInput) (core.UpsertSubscriberInput, error) {
	remote, err := d.directory.FindSubscriber(ctx, input.ProviderID)
	if err != nil {
		return input, err
	}
	input.Email = strings.ToLower(strings.TrimSpace(remote.Email))
	if input.Email == "" {
		return input, fmt.Errorf("%w: provider subscriber %q has no email", core.ErrRecordNotFound, input.ProviderID)
	}
	if input.Name == "" {
		input.Name = remote.Name
	}
	return input, nil
}

// subscriberInput reads the subscriber out of the event data. Created and
// updated events carry the provider's status when present, otherwise the
// subscriber is considered active.
func subscriberInput(event core.WebhookEvent, status core.SubscriberStatus) (core.UpsertSubscriberInput, bool) {
	data := event.Data()
	if nested, ok := data["subscriber"].(map[string]any); ok && nested != nil {
		data = nested
	}
	input := core.UpsertSubscriberInput{
		Email:      stringValue(data["email"]),
		ProviderID: stringValue(data["id"]),
		Name:       stringValue(data["name"]),
		Status:     status,
		EventAt:    eventTime(event),
	}
	if input.Status == "" {
		input.Status = providerStatus(stringValue(data["status"]))
	}
	if fields, ok := data["fields"].(map[string]any); ok && len(fields) > 0 {
		input.Fields = fields
	}
	if input.Email == "" && input.ProviderID == "" {
		return core.UpsertSubscriberInput{}, false
	}
	return input, true
}

func providerStatus(value string) core.SubscriberStatus {
	switch core.SubscriberStatus(strings.ToLower(value)) {
	case core.SubscriberStatusUnsubscribed:
		return core.SubscriberStatusUnsubscribed
	case core.SubscriberStatusBounced:
		return core.SubscriberStatusBounced
	case core.SubscriberStatusJunk:
		return core.SubscriberStatusJunk
	default:
		return core.SubscriberStatusActive
	}
}

// eventTime prefers the provider timestamp so that replays keep their
// original ordering. It falls back to the receipt time.
func eventTime(event core.WebhookEvent) time.Time {
	raw := stringValue(event.Payload["timestamp"])
	if raw != "" {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed.UTC()
			}
		}
		if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil && seconds > 0 {
			return time.Unix(seconds, 0).UTC()
		}
	}
	return event.ReceivedAt.UTC()
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return ""
	}
}
