package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-initiatives/core"
	"github.com/uptrace/bun"
)

const organizationAdminRole = "admin"

type InitiativeStore struct {
	db *bun.DB
}

func NewInitiativeStore(db *bun.DB) (*InitiativeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &InitiativeStore{db: db}, nil
}

func (s *InitiativeStore) GetInitiative(ctx context.Context, id string) (core.Initiative, error) {
	if s == nil || s.db == nil {
		return core.Initiative{}, fmt.Errorf("sqlstore: initiative store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &initiativeRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.Initiative{}, notFound(err, "initiative", id)
	}
	return record.toDomain(), nil
}

// IsManager is true for the organizer, the owner of the owning organization,
// or an admin member of it.
func (s *InitiativeStore) IsManager(ctx context.Context, initiativeID string, userID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: initiative store is not configured")
	}
	initiativeID = strings.TrimSpace(initiativeID)
	userID = strings.TrimSpace(userID)
	if initiativeID == "" || userID == "" {
		return false, nil
	}

	count, err := s.db.NewSelect().
		Model((*initiativeRecord)(nil)).
		Join("LEFT JOIN organizations AS o ON o.id = ?TableAlias.organization_id").
		Where("?TableAlias.id = ?", initiativeID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.organizer_id = ?", userID).
				WhereOr("o.owner_id = ?", userID).
				WhereOr(
					"EXISTS (SELECT 1 FROM organization_members AS om WHERE om.organization_id = ?TableAlias.organization_id AND om.user_id = ? AND om.role = ?)",
					userID,
					organizationAdminRole,
				)
		}).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
