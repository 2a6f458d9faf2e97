package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-initiatives/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type WebhookEventStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookEventRecord]
	now  func() time.Time
}

func NewWebhookEventStore(db *bun.DB) (*WebhookEventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookEventRecord](db, webhookEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook event repository wiring: %w", err)
		}
	}
	return &WebhookEventStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Enqueue stores the envelope verbatim as the event payload.
func (s *WebhookEventStore) Enqueue(ctx context.Context, envelope core.WebhookEnvelope) (core.WebhookEvent, error) {
	if s == nil || s.repo == nil {
		return core.WebhookEvent{}, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	eventType := strings.TrimSpace(envelope.Type)
	if eventType == "" {
		return core.WebhookEvent{}, fmt.Errorf("sqlstore: webhook event type is required")
	}
	data := copyAnyMap(envelope.Data)
	record := &webhookEventRecord{
		ID:        uuid.NewString(),
		Provider:  strings.TrimSpace(envelope.Provider),
		EventType: eventType,
		Payload: map[string]any{
			"type":      eventType,
			"timestamp": envelope.Timestamp,
			"data":      data,
		},
		ReceivedAt: s.now(),
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.WebhookEvent{}, err
	}
	return created.toDomain(), nil
}

func (s *WebhookEventStore) FetchOldest(ctx context.Context, limit int) ([]core.WebhookEvent, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	if limit <= 0 {
		return []core.WebhookEvent{}, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Limit(limit)
		}),
		repository.OrderBy("received_at ASC"),
		repository.OrderBy("id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.WebhookEvent, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *WebhookEventStore) Delete(ctx context.Context, ids ...string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	return deleteByIDs(ctx, s.db, (*webhookEventRecord)(nil), ids)
}

func (s *WebhookEventStore) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: webhook event store is not configured")
	}
	return s.db.NewSelect().Model((*webhookEventRecord)(nil)).Count(ctx)
}
