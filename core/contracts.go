package core

import (
	"context"
	"errors"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Store level sentinels. Stores return these (optionally wrapped) and the
// service maps them into the public error envelope.
var (
	ErrRecordNotFound      = errors.New("core: record not found")
	ErrParticipationExists = errors.New("core: participation already exists")
	ErrCapacityReached     = errors.New("core: initiative capacity reached")
	ErrStatusConflict      = errors.New("core: participation status changed concurrently")
)

type InitiativeStore interface {
	GetInitiative(ctx context.Context, id string) (Initiative, error)
}

// ManagerResolver answers whether a user manages an initiative, either as its
// organizer or through the organization that owns it.
type ManagerResolver interface {
	IsManager(ctx context.Context, initiativeID string, userID string) (bool, error)
}

type CreateParticipationInput struct {
	InitiativeID  string
	UserID        string
	Role          ParticipantRole
	Status        ParticipationStatus
	FormResponses FormResponses
	Now           time.Time
}

// TransitionInput describes a status write guarded by the expected current
// status. CounterDelta is applied to the initiative counter in the same
// transaction: +1 is conditional on capacity, -1 never drops below zero.
type TransitionInput struct {
	ParticipationID string
	From            ParticipationStatus
	To              ParticipationStatus
	CounterDelta    int
	Now             time.Time
}

type ParticipantFilter struct {
	InitiativeID string
	Status       ParticipationStatus
	NewestFirst  bool
}

type ParticipationStore interface {
	GetParticipation(ctx context.Context, id string) (Participation, error)
	// CreateParticipation inserts a new row or reactivates a cancelled one.
	// It returns ErrParticipationExists for any other existing row and
	// ErrCapacityReached when an approved join cannot be counted.
	CreateParticipation(ctx context.Context, in CreateParticipationInput) (Participation, error)
	// TransitionParticipation returns ErrStatusConflict when the row is not in
	// the expected status at write time.
	TransitionParticipation(ctx context.Context, in TransitionInput) (Participation, error)
	ListParticipants(ctx context.Context, filter ParticipantFilter) ([]Participant, error)
	EligibleRecipients(ctx context.Context, initiativeID string) ([]Recipient, error)
}

type PostNotificationQueue interface {
	// Enqueue reports false when the (recipient, post) pair is already queued.
	Enqueue(ctx context.Context, task PostNotificationTask) (bool, error)
	EnqueueBatch(ctx context.Context, tasks []PostNotificationTask) (int, error)
	FetchOldest(ctx context.Context, limit int) ([]PostNotificationTask, error)
	Delete(ctx context.Context, ids ...string) (int, error)
	Count(ctx context.Context) (int, error)
}

type WebhookEventQueue interface {
	Enqueue(ctx context.Context, envelope WebhookEnvelope) (WebhookEvent, error)
	FetchOldest(ctx context.Context, limit int) ([]WebhookEvent, error)
	Delete(ctx context.Context, ids ...string) (int, error)
	Count(ctx context.Context) (int, error)
}

type ContentResolver interface {
	// GetPost returns ErrRecordNotFound when the post no longer exists.
	GetPost(ctx context.Context, postID string) (Post, error)
}

type NotificationRenderer interface {
	RenderPostNotification(ctx context.Context, post Post, task PostNotificationTask) (OutboundEmail, error)
}

type DeliveryProvider interface {
	Configured() bool
	SendBatch(ctx context.Context, messages []OutboundEmail) (BatchReceipt, error)
}

type SubscriberDirectory interface {
	FindSubscriber(ctx context.Context, idOrEmail string) (Subscriber, error)
	UpsertSubscriber(ctx context.Context, in UpsertSubscriberInput) (Subscriber, error)
	Unsubscribe(ctx context.Context, email string) error
}

type SubscriberStore interface {
	// UpsertSubscriber matches by email or provider id, whichever exists.
	UpsertSubscriber(ctx context.Context, in UpsertSubscriberInput) (Subscriber, error)
	GetSubscriberByEmail(ctx context.Context, email string) (Subscriber, error)
}

type WebhookEventHandler interface {
	Handle(ctx context.Context, event WebhookEvent) error
}

type WebhookEventHandlerFunc func(ctx context.Context, event WebhookEvent) error

func (f WebhookEventHandlerFunc) Handle(ctx context.Context, event WebhookEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// SendLimiter blocks until n provider requests fit in the throughput window.
type SendLimiter interface {
	Wait(ctx context.Context, n int) error
}

type DeliveryRunEvent struct {
	Phase     string
	Trigger   string
	Stats     RunStats
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type DeliveryRunHook interface {
	OnStart(ctx context.Context, event DeliveryRunEvent)
	OnSuccess(ctx context.Context, event DeliveryRunEvent)
	OnFailure(ctx context.Context, event DeliveryRunEvent)
}

type Translator interface {
	T(locale, key string, data map[string]any) string
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
