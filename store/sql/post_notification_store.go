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

const enqueueChunkSize = 100

// PostNotificationStore is the post notification queue. Rows carry no status:
// a row exists until its email is accepted by the provider or its post is
// gone.
type PostNotificationStore struct {
	db   *bun.DB
	repo repository.Repository[*postNotificationRecord]
	now  func() time.Time
}

func NewPostNotificationStore(db *bun.DB) (*PostNotificationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*postNotificationRecord](db, postNotificationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid post notification repository wiring: %w", err)
		}
	}
	return &PostNotificationStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *PostNotificationStore) Enqueue(ctx context.Context, task core.PostNotificationTask) (bool, error) {
	inserted, err := s.EnqueueBatch(ctx, []core.PostNotificationTask{task})
	if err != nil {
		return false, err
	}
	return inserted == 1, nil
}

// EnqueueBatch inserts tasks, skipping any (recipient_email, post_id) pair
// that is already queued. It returns the number of rows inserted.
func (s *PostNotificationStore) EnqueueBatch(ctx context.Context, tasks []core.PostNotificationTask) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: post notification store is not configured")
	}
	if len(tasks) == 0 {
		return 0, nil
	}
	now := s.now()
	records := make([]*postNotificationRecord, 0, len(tasks))
	for _, task := range tasks {
		id := strings.TrimSpace(task.ID)
		if id == "" {
			id = uuid.NewString()
		}
		record := newPostNotificationRecord(task, id, now)
		if record.RecipientEmail == "" || record.PostID == "" {
			return 0, fmt.Errorf("sqlstore: recipient email and post id are required")
		}
		records = append(records, record)
	}

	inserted := 0
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(records); start += enqueueChunkSize {
			end := min(start+enqueueChunkSize, len(records))
			chunk := records[start:end]
			res, err := tx.NewInsert().
				Model(&chunk).
				On("CONFLICT (recipient_email, post_id) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(affected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *PostNotificationStore) FetchOldest(ctx context.Context, limit int) ([]core.PostNotificationTask, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: post notification store is not configured")
	}
	if limit <= 0 {
		return []core.PostNotificationTask{}, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Limit(limit)
		}),
		repository.OrderBy("created_at ASC"),
		repository.OrderBy("id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.PostNotificationTask, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *PostNotificationStore) Delete(ctx context.Context, ids ...string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: post notification store is not configured")
	}
	return deleteByIDs(ctx, s.db, (*postNotificationRecord)(nil), ids)
}

func (s *PostNotificationStore) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: post notification store is not configured")
	}
	return s.db.NewSelect().Model((*postNotificationRecord)(nil)).Count(ctx)
}

func deleteByIDs(ctx context.Context, db bun.IDB, model any, ids []string) (int, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return 0, nil
	}
	res, err := db.NewDelete().
		Model(model).
		Where("id IN (?)", bun.In(cleaned)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
