package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidParticipationStatusTransition = errors.New("core: invalid participation status transition")
)

type InitiativeStatus string

const (
	InitiativeStatusDraft     InitiativeStatus = "draft"
	InitiativeStatusPublished InitiativeStatus = "published"
	InitiativeStatusOpen      InitiativeStatus = "open"
	InitiativeStatusClosed    InitiativeStatus = "closed"
	InitiativeStatusCompleted InitiativeStatus = "completed"
	InitiativeStatusCancelled InitiativeStatus = "cancelled"
)

// Joinable reports whether the public can request to join an initiative in
// this status.
func (s InitiativeStatus) Joinable() bool {
	switch InitiativeStatus(strings.TrimSpace(strings.ToLower(string(s)))) {
	case InitiativeStatusPublished, InitiativeStatusOpen:
		return true
	default:
		return false
	}
}

type ParticipationStatus string

const (
	ParticipationStatusRegistered ParticipationStatus = "registered"
	ParticipationStatusApproved   ParticipationStatus = "approved"
	ParticipationStatusRejected   ParticipationStatus = "rejected"
	ParticipationStatusCancelled  ParticipationStatus = "cancelled"
)

func (s ParticipationStatus) Valid() bool {
	switch s {
	case ParticipationStatusRegistered,
		ParticipationStatusApproved,
		ParticipationStatusRejected,
		ParticipationStatusCancelled:
		return true
	default:
		return false
	}
}

type ParticipantRole string

const (
	ParticipantRoleParticipant ParticipantRole = "participant"
	ParticipantRoleHelper      ParticipantRole = "helper"
	ParticipantRoleManager     ParticipantRole = "manager"
)

func (r ParticipantRole) Valid() bool {
	switch r {
	case ParticipantRoleParticipant, ParticipantRoleHelper, ParticipantRoleManager:
		return true
	default:
		return false
	}
}

type Initiative struct {
	ID                   string
	OrganizerID          string
	OrganizationID       string
	Title                string
	Status               InitiativeStatus
	MaxParticipants      *int
	CurrentParticipants  int
	IsOpenParticipation  bool
	RegistrationDeadline *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AtCapacity reports whether the denormalized counter has reached the bound.
// Initiatives without a bound never reach capacity.
func (i Initiative) AtCapacity() bool {
	if i.MaxParticipants == nil {
		return false
	}
	return i.CurrentParticipants >= *i.MaxParticipants
}

func (i Initiative) RegistrationClosed(now time.Time) bool {
	if i.RegistrationDeadline == nil || i.RegistrationDeadline.IsZero() {
		return false
	}
	return now.After(*i.RegistrationDeadline)
}

// FormResponses holds sanitized join form answers. Values are either string
// or []string.
type FormResponses map[string]any

// SanitizeFormResponses trims keys and values, drops empty keys and blank
// answers, and keeps only string or list-of-string values. List entries that
// are not strings are skipped.
func SanitizeFormResponses(input map[string]any) FormResponses {
	if len(input) == 0 {
		return nil
	}
	out := make(FormResponses, len(input))
	for rawKey, rawValue := range input {
		key := strings.TrimSpace(rawKey)
		if key == "" {
			continue
		}
		switch value := rawValue.(type) {
		case string:
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				out[key] = trimmed
			}
		case []string:
			if items := trimStrings(value); len(items) > 0 {
				out[key] = items
			}
		case []any:
			strs := make([]string, 0, len(value))
			for _, item := range value {
				if s, ok := item.(string); ok {
					strs = append(strs, s)
				}
			}
			if items := trimStrings(strs); len(items) > 0 {
				out[key] = items
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func trimStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type Participation struct {
	ID            string
	InitiativeID  string
	UserID        string
	Status        ParticipationStatus
	Role          ParticipantRole
	FormResponses FormResponses
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TransitionTo moves the participation to status when the lifecycle allows it.
// Transitioning to the current status is a no-op.
func (p *Participation) TransitionTo(status ParticipationStatus, now time.Time) error {
	if p == nil {
		return nil
	}
	if p.Status == status {
		return nil
	}
	if !ParticipationTransitionAllowed(p.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidParticipationStatusTransition, p.Status, status)
	}
	p.Status = status
	p.UpdatedAt = now
	return nil
}

// ParticipationTransitionAllowed encodes the participation lifecycle. A
// cancelled row only leaves its terminal state through a fresh join.
func ParticipationTransitionAllowed(current, next ParticipationStatus) bool {
	allowed := map[ParticipationStatus]map[ParticipationStatus]struct{}{
		ParticipationStatusRegistered: {
			ParticipationStatusApproved: {},
			ParticipationStatusRejected: {},
		},
		ParticipationStatusApproved: {
			ParticipationStatusCancelled: {},
		},
		ParticipationStatusCancelled: {
			ParticipationStatusRegistered: {},
			ParticipationStatusApproved:   {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// Participant is a participation joined with the user's public profile, as
// shown to initiative managers.
type Participant struct {
	Participation
	Name  string
	Email string
}

type Actor struct {
	UserID string
}

func (a Actor) Authenticated() bool {
	return strings.TrimSpace(a.UserID) != ""
}

type JoinRequest struct {
	InitiativeID  string
	UserID        string
	Role          ParticipantRole
	FormResponses map[string]any
}

type Post struct {
	ID              string
	InitiativeID    string
	InitiativeTitle string
	AuthorID        string
	Title           string
	Body            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Recipient struct {
	UserID string
	Email  string
	Name   string
	Locale string
}

type PostNotificationTask struct {
	ID              string
	RecipientEmail  string
	RecipientName   string
	RecipientLocale string
	PostID          string
	InitiativeID    string
	CreatedAt       time.Time
}

type EnqueueResult struct {
	Eligible int
	Enqueued int
}

// WebhookEnvelope is one inbound provider event before interpretation.
type WebhookEnvelope struct {
	Provider  string
	Type      string
	Timestamp string
	Data      map[string]any
}

type WebhookEvent struct {
	ID         string
	Provider   string
	EventType  string
	Payload    map[string]any
	ReceivedAt time.Time
}

// Data returns the subscriber payload carried by the raw envelope.
func (e WebhookEvent) Data() map[string]any {
	if len(e.Payload) == 0 {
		return map[string]any{}
	}
	data, ok := e.Payload["data"].(map[string]any)
	if !ok || data == nil {
		return map[string]any{}
	}
	return data
}

type SubscriberStatus string

const (
	SubscriberStatusActive       SubscriberStatus = "active"
	SubscriberStatusUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberStatusBounced      SubscriberStatus = "bounced"
	SubscriberStatusJunk         SubscriberStatus = "junk"
)

type Subscriber struct {
	ID          string
	Email       string
	ProviderID  string
	Name        string
	Status      SubscriberStatus
	Fields      map[string]any
	LastEventAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UpsertSubscriberInput struct {
	Email      string
	ProviderID string
	Name       string
	Status     SubscriberStatus
	Fields     map[string]any
	EventAt    time.Time
}

type OutboundEmail struct {
	TaskID  string
	To      string
	Name    string
	Subject string
	Text    string
	HTML    string
	Tags    map[string]string
}

type BatchReceipt struct {
	MessageIDs []string
}

type RunStats struct {
	Processed int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

func (s RunStats) Add(other RunStats) RunStats {
	return RunStats{
		Processed: s.Processed + other.Processed,
		Failed:    s.Failed + other.Failed,
		Skipped:   s.Skipped + other.Skipped,
		Duration:  s.Duration + other.Duration,
	}
}

type QueueStats struct {
	WebhookEvents     int
	PostNotifications int
}
