package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyed is implemented by records whose primary key is a uuid string column
// named id.
type keyed interface {
	*participationRecord | *postNotificationRecord | *webhookEventRecord | *subscriberRecord
	primaryKey() *string
}

func (r *participationRecord) primaryKey() *string    { return &r.ID }
func (r *postNotificationRecord) primaryKey() *string { return &r.ID }
func (r *webhookEventRecord) primaryKey() *string     { return &r.ID }
func (r *subscriberRecord) primaryKey() *string       { return &r.ID }

// uuidHandlers builds the repository callbacks for a keyed record. newRecord
// exists because a generic pointer type cannot be allocated directly.
func uuidHandlers[T keyed](newRecord func() T) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			parsed, err := uuid.Parse(strings.TrimSpace(*record.primaryKey()))
			if err != nil {
				return uuid.Nil
			}
			return parsed
		},
		SetID: func(record T, id uuid.UUID) {
			if record != nil {
				*record.primaryKey() = id.String()
			}
		},
		GetIdentifier: func() string { return "id" },
		GetIdentifierValue: func(record T) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(*record.primaryKey())
		},
	}
}

func participationHandlers() repository.ModelHandlers[*participationRecord] {
	return uuidHandlers(func() *participationRecord { return &participationRecord{} })
}

func postNotificationHandlers() repository.ModelHandlers[*postNotificationRecord] {
	return uuidHandlers(func() *postNotificationRecord { return &postNotificationRecord{} })
}

func webhookEventHandlers() repository.ModelHandlers[*webhookEventRecord] {
	return uuidHandlers(func() *webhookEventRecord { return &webhookEventRecord{} })
}

func subscriberHandlers() repository.ModelHandlers[*subscriberRecord] {
	return uuidHandlers(func() *subscriberRecord { return &subscriberRecord{} })
}
