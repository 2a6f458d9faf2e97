package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-initiatives/core"
	"github.com/uptrace/bun"
)

// ContentStore resolves posts for the delivery worker.
type ContentStore struct {
	db *bun.DB
}

func NewContentStore(db *bun.DB) (*ContentStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ContentStore{db: db}, nil
}

func (s *ContentStore) GetPost(ctx context.Context, postID string) (core.Post, error) {
	if s == nil || s.db == nil {
		return core.Post{}, fmt.Errorf("sqlstore: content store is not configured")
	}
	postID = strings.TrimSpace(postID)
	record := &postRow{}
	err := s.db.NewSelect().
		Model(record).
		ColumnExpr("?TableAlias.*").
		ColumnExpr("i.title AS initiative_title").
		Join("LEFT JOIN initiatives AS i ON i.id = ?TableAlias.initiative_id").
		Where("?TableAlias.id = ?", postID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.Post{}, notFound(err, "post", postID)
	}
	return record.toDomain(), nil
}
