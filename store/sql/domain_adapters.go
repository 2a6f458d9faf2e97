package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-initiatives/core"
)

func (r *initiativeRecord) toDomain() core.Initiative {
	if r == nil {
		return core.Initiative{}
	}
	initiative := core.Initiative{
		ID:                  r.ID,
		OrganizerID:         r.OrganizerID,
		Title:               r.Title,
		Status:              core.InitiativeStatus(r.Status),
		CurrentParticipants: r.CurrentParticipants,
		IsOpenParticipation: r.IsOpenParticipation,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.OrganizationID != nil {
		initiative.OrganizationID = *r.OrganizationID
	}
	if r.MaxParticipants != nil {
		value := *r.MaxParticipants
		initiative.MaxParticipants = &value
	}
	if r.RegistrationDeadline != nil {
		value := r.RegistrationDeadline.UTC()
		initiative.RegistrationDeadline = &value
	}
	return initiative
}

func (r *participationRecord) toDomain() core.Participation {
	if r == nil {
		return core.Participation{}
	}
	return core.Participation{
		ID:            r.ID,
		InitiativeID:  r.InitiativeID,
		UserID:        r.UserID,
		Status:        core.ParticipationStatus(r.Status),
		Role:          core.ParticipantRole(r.Role),
		FormResponses: formResponsesFromMap(r.FormResponses),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r *postRecord) toDomain() core.Post {
	if r == nil {
		return core.Post{}
	}
	return core.Post{
		ID:           r.ID,
		InitiativeID: r.InitiativeID,
		AuthorID:     r.AuthorID,
		Title:        r.Title,
		Body:         r.Body,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r *postRow) toDomain() core.Post {
	if r == nil {
		return core.Post{}
	}
	post := r.postRecord.toDomain()
	post.InitiativeTitle = r.InitiativeTitle
	return post
}

func newPostNotificationRecord(task core.PostNotificationTask, id string, now time.Time) *postNotificationRecord {
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return &postNotificationRecord{
		ID:              id,
		RecipientEmail:  strings.ToLower(strings.TrimSpace(task.RecipientEmail)),
		RecipientName:   strings.TrimSpace(task.RecipientName),
		RecipientLocale: strings.TrimSpace(task.RecipientLocale),
		PostID:          strings.TrimSpace(task.PostID),
		InitiativeID:    strings.TrimSpace(task.InitiativeID),
		CreatedAt:       createdAt.UTC(),
	}
}

func (r *postNotificationRecord) toDomain() core.PostNotificationTask {
	if r == nil {
		return core.PostNotificationTask{}
	}
	return core.PostNotificationTask{
		ID:              r.ID,
		RecipientEmail:  r.RecipientEmail,
		RecipientName:   r.RecipientName,
		RecipientLocale: r.RecipientLocale,
		PostID:          r.PostID,
		InitiativeID:    r.InitiativeID,
		CreatedAt:       r.CreatedAt,
	}
}

func (r *webhookEventRecord) toDomain() core.WebhookEvent {
	if r == nil {
		return core.WebhookEvent{}
	}
	return core.WebhookEvent{
		ID:         r.ID,
		Provider:   r.Provider,
		EventType:  r.EventType,
		Payload:    copyAnyMap(r.Payload),
		ReceivedAt: r.ReceivedAt,
	}
}

func (r *subscriberRecord) toDomain() core.Subscriber {
	if r == nil {
		return core.Subscriber{}
	}
	subscriber := core.Subscriber{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		Status:    core.SubscriberStatus(r.Status),
		Fields:    copyAnyMap(r.Fields),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ProviderID != nil {
		subscriber.ProviderID = *r.ProviderID
	}
	if r.LastEventAt != nil {
		subscriber.LastEventAt = r.LastEventAt.UTC()
	}
	return subscriber
}

func formResponsesToMap(responses core.FormResponses) map[string]any {
	out := make(map[string]any, len(responses))
	for key, value := range responses {
		out[key] = value
	}
	return out
}

// formResponsesFromMap restores []string values that JSON decoding turns
// into []any.
func formResponsesFromMap(raw map[string]any) core.FormResponses {
	if len(raw) == 0 {
		return nil
	}
	out := make(core.FormResponses, len(raw))
	for key, value := range raw {
		switch typed := value.(type) {
		case string:
			out[key] = typed
		case []string:
			out[key] = append([]string(nil), typed...)
		case []any:
			values := make([]string, 0, len(typed))
			for _, item := range typed {
				if text, ok := item.(string); ok {
					values = append(values, text)
				}
			}
			out[key] = values
		}
	}
	return out
}

func copyAnyMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
