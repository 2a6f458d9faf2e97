package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-initiatives/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubscriberStore mirrors the provider's newsletter audience locally so that
// replayed webhook events converge on the same row.
type SubscriberStore struct {
	db   *bun.DB
	repo repository.Repository[*subscriberRecord]
	now  func() time.Time
}

func NewSubscriberStore(db *bun.DB) (*SubscriberStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*subscriberRecord](db, subscriberHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid subscriber repository wiring: %w", err)
		}
	}
	return &SubscriberStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *SubscriberStore) GetSubscriberByEmail(ctx context.Context, email string) (core.Subscriber, error) {
	if s == nil || s.repo == nil {
		return core.Subscriber{}, fmt.Errorf("sqlstore: subscriber store is not configured")
	}
	email = normalizeEmail(email)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("email", "=", email),
	)
	if err != nil {
		return core.Subscriber{}, err
	}
	if len(records) == 0 {
		return core.Subscriber{}, fmt.Errorf("%w: subscriber %q", core.ErrRecordNotFound, email)
	}
	return records[0].toDomain(), nil
}

// UpsertSubscriber matches on provider id first, then on email. Events older
// than the stored last_event_at do not overwrite newer state.
func (s *SubscriberStore) UpsertSubscriber(ctx context.Context, in core.UpsertSubscriberInput) (core.Subscriber, error) {
	if s == nil || s.db == nil {
		return core.Subscriber{}, fmt.Errorf("sqlstore: subscriber store is not configured")
	}
	email := normalizeEmail(in.Email)
	providerID := strings.TrimSpace(in.ProviderID)
	if email == "" && providerID == "" {
		return core.Subscriber{}, fmt.Errorf("sqlstore: subscriber email or provider id is required")
	}
	now := s.now()
	eventAt := in.EventAt.UTC()
	if in.EventAt.IsZero() {
		eventAt = now
	}

	var saved *subscriberRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findSubscriberTx(ctx, tx, providerID, email)
		if err != nil {
			return err
		}
		if record == nil {
			if email == "" {
				return fmt.Errorf("%w: subscriber provider id %q", core.ErrRecordNotFound, providerID)
			}
			saved = &subscriberRecord{
				ID:        uuid.NewString(),
				Email:     email,
				Status:    string(core.SubscriberStatusActive),
				Fields:    map[string]any{},
				CreatedAt: now,
			}
			applySubscriberInput(saved, in, providerID, eventAt, now)
			_, err := tx.NewInsert().Model(saved).Exec(ctx)
			return err
		}

		saved = record
		if record.LastEventAt != nil && eventAt.Before(*record.LastEventAt) {
			return nil
		}
		if email != "" {
			record.Email = email
		}
		applySubscriberInput(record, in, providerID, eventAt, now)
		_, err = tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return core.Subscriber{}, err
	}
	return saved.toDomain(), nil
}

func applySubscriberInput(record *subscriberRecord, in core.UpsertSubscriberInput, providerID string, eventAt time.Time, now time.Time) {
	if providerID != "" {
		value := providerID
		record.ProviderID = &value
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		record.Name = name
	}
	if status := strings.TrimSpace(string(in.Status)); status != "" {
		record.Status = status
	}
	if len(in.Fields) > 0 {
		fields := copyAnyMap(record.Fields)
		for key, value := range in.Fields {
			fields[key] = value
		}
		record.Fields = fields
	}
	if record.Fields == nil {
		record.Fields = map[string]any{}
	}
	record.LastEventAt = &eventAt
	record.UpdatedAt = now
}

func findSubscriberTx(ctx context.Context, tx bun.Tx, providerID string, email string) (*subscriberRecord, error) {
	lookups := make([]func(*bun.SelectQuery) *bun.SelectQuery, 0, 2)
	if providerID != "" {
		lookups = append(lookups, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.provider_id = ?", providerID)
		})
	}
	if email != "" {
		lookups = append(lookups, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.email = ?", email)
		})
	}
	for _, lookup := range lookups {
		record := &subscriberRecord{}
		err := lookup(tx.NewSelect().Model(record)).Limit(1).Scan(ctx)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return nil, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
