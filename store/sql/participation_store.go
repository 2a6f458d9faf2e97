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

type ParticipationStore struct {
	db   *bun.DB
	repo repository.Repository[*participationRecord]
}

func NewParticipationStore(db *bun.DB) (*ParticipationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*participationRecord](db, participationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid participation repository wiring: %w", err)
		}
	}
	return &ParticipationStore{db: db, repo: repo}, nil
}

func (s *ParticipationStore) GetParticipation(ctx context.Context, id string) (core.Participation, error) {
	if s == nil || s.repo == nil {
		return core.Participation{}, fmt.Errorf("sqlstore: participation store is not configured")
	}
	id = strings.TrimSpace(id)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", id),
	)
	if err != nil {
		return core.Participation{}, err
	}
	if len(records) == 0 {
		return core.Participation{}, fmt.Errorf("%w: participation %q", core.ErrRecordNotFound, id)
	}
	return records[0].toDomain(), nil
}

func (s *ParticipationStore) CreateParticipation(ctx context.Context, in core.CreateParticipationInput) (core.Participation, error) {
	if s == nil || s.db == nil {
		return core.Participation{}, fmt.Errorf("sqlstore: participation store is not configured")
	}
	in.InitiativeID = strings.TrimSpace(in.InitiativeID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.InitiativeID == "" || in.UserID == "" {
		return core.Participation{}, fmt.Errorf("sqlstore: initiative id and user id are required")
	}
	if !in.Status.Valid() {
		return core.Participation{}, fmt.Errorf("sqlstore: invalid participation status %q", in.Status)
	}
	now := in.Now.UTC()
	if in.Now.IsZero() {
		now = time.Now().UTC()
	}

	var created *participationRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &participationRecord{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.initiative_id = ?", in.InitiativeID).
			Where("?TableAlias.user_id = ?", in.UserID).
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil:
			if core.ParticipationStatus(existing.Status) != core.ParticipationStatusCancelled {
				return core.ErrParticipationExists
			}
			created, err = reactivateParticipationTx(ctx, tx, existing, in, now)
			if err != nil {
				return err
			}
		case errors.Is(err, sql.ErrNoRows):
			created = newParticipationRecord(in, now)
			if _, insertErr := tx.NewInsert().Model(created).Exec(ctx); insertErr != nil {
				if isUniqueViolation(insertErr) {
					return core.ErrParticipationExists
				}
				return insertErr
			}
		default:
			return err
		}

		if in.Status == core.ParticipationStatusApproved {
			return adjustParticipantCounterTx(ctx, tx, in.InitiativeID, 1, now)
		}
		return nil
	})
	if err != nil {
		return core.Participation{}, err
	}
	return created.toDomain(), nil
}

func reactivateParticipationTx(
	ctx context.Context,
	tx bun.Tx,
	existing *participationRecord,
	in core.CreateParticipationInput,
	now time.Time,
) (*participationRecord, error) {
	existing.Status = string(in.Status)
	existing.Role = string(participantRole(in.Role))
	existing.FormResponses = formResponsesToMap(in.FormResponses)
	existing.UpdatedAt = now

	res, err := tx.NewUpdate().
		Model(existing).
		Column("status", "participant_role", "form_responses", "updated_at").
		Where("id = ?", existing.ID).
		Where("status = ?", string(core.ParticipationStatusCancelled)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, core.ErrParticipationExists
	}
	return existing, nil
}

// TransitionParticipation writes the new status only when the row still holds
// in.From, then applies the counter delta in the same transaction.
func (s *ParticipationStore) TransitionParticipation(ctx context.Context, in core.TransitionInput) (core.Participation, error) {
	if s == nil || s.db == nil {
		return core.Participation{}, fmt.Errorf("sqlstore: participation store is not configured")
	}
	id := strings.TrimSpace(in.ParticipationID)
	if id == "" {
		return core.Participation{}, fmt.Errorf("sqlstore: participation id is required")
	}
	if !in.To.Valid() {
		return core.Participation{}, fmt.Errorf("sqlstore: invalid participation status %q", in.To)
	}
	now := in.Now.UTC()
	if in.Now.IsZero() {
		now = time.Now().UTC()
	}

	var updated *participationRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*participationRecord)(nil)).
			Set("status = ?", string(in.To)).
			Set("updated_at = ?", now).
			Where("id = ?", id).
			Where("status = ?", string(in.From)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			if _, findErr := findParticipation(ctx, tx, id); findErr != nil {
				return findErr
			}
			return core.ErrStatusConflict
		}

		updated, err = findParticipation(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.CounterDelta != 0 {
			return adjustParticipantCounterTx(ctx, tx, updated.InitiativeID, in.CounterDelta, now)
		}
		return nil
	})
	if err != nil {
		return core.Participation{}, err
	}
	return updated.toDomain(), nil
}

// adjustParticipantCounterTx moves current_participants by delta. Increments
// only apply while the bound holds and report ErrCapacityReached otherwise;
// decrements are floored at zero.
func adjustParticipantCounterTx(ctx context.Context, tx bun.Tx, initiativeID string, delta int, now time.Time) error {
	q := tx.NewUpdate().
		Model((*initiativeRecord)(nil)).
		Set("updated_at = ?", now).
		Where("id = ?", initiativeID)
	if delta > 0 {
		q = q.
			Set("current_participants = current_participants + ?", delta).
			Where("(max_participants IS NULL OR current_participants + ? <= max_participants)", delta)
	} else {
		q = q.Set(
			"current_participants = CASE WHEN current_participants + ? > 0 THEN current_participants + ? ELSE 0 END",
			delta,
			delta,
		)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if delta > 0 {
			return core.ErrCapacityReached
		}
		return fmt.Errorf("%w: initiative %q", core.ErrRecordNotFound, initiativeID)
	}
	return nil
}

func (s *ParticipationStore) ListParticipants(ctx context.Context, filter core.ParticipantFilter) ([]core.Participant, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: participation store is not configured")
	}
	initiativeID := strings.TrimSpace(filter.InitiativeID)
	if initiativeID == "" {
		return nil, fmt.Errorf("sqlstore: initiative id is required")
	}

	direction := "ASC"
	if filter.NewestFirst {
		direction = "DESC"
	}
	rows := make([]participantRow, 0)
	q := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("?TableAlias.*").
		ColumnExpr("u.name AS user_name").
		ColumnExpr("u.email AS user_email").
		Join("JOIN users AS u ON u.id = ?TableAlias.user_id").
		Where("?TableAlias.initiative_id = ?", initiativeID).
		OrderExpr("?TableAlias.created_at " + direction).
		OrderExpr("?TableAlias.id " + direction)
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		q = q.Where("?TableAlias.status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	out := make([]core.Participant, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.Participant{
			Participation: row.participationRecord.toDomain(),
			Name:          row.UserName,
			Email:         row.UserEmail,
		})
	}
	return out, nil
}

// EligibleRecipients returns active, verified users holding any participation
// in the initiative that is not cancelled.
func (s *ParticipationStore) EligibleRecipients(ctx context.Context, initiativeID string) ([]core.Recipient, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: participation store is not configured")
	}
	initiativeID = strings.TrimSpace(initiativeID)
	if initiativeID == "" {
		return nil, fmt.Errorf("sqlstore: initiative id is required")
	}

	users := make([]userRecord, 0)
	err := s.db.NewSelect().
		Model(&users).
		Join("JOIN initiative_participants AS ip ON ip.user_id = ?TableAlias.id").
		Where("ip.initiative_id = ?", initiativeID).
		Where("ip.status <> ?", string(core.ParticipationStatusCancelled)).
		Where("?TableAlias.is_active = ?", true).
		Where("?TableAlias.is_verified = ?", true).
		OrderExpr("ip.created_at ASC").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.Recipient, 0, len(users))
	for _, user := range users {
		out = append(out, core.Recipient{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Locale: user.Locale,
		})
	}
	return out, nil
}

func findParticipation(ctx context.Context, db bun.IDB, id string) (*participationRecord, error) {
	record := &participationRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "participation", id)
	}
	return record, nil
}

func newParticipationRecord(in core.CreateParticipationInput, now time.Time) *participationRecord {
	return &participationRecord{
		ID:            uuid.NewString(),
		InitiativeID:  in.InitiativeID,
		UserID:        in.UserID,
		Status:        string(in.Status),
		Role:          string(participantRole(in.Role)),
		FormResponses: formResponsesToMap(in.FormResponses),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func participantRole(role core.ParticipantRole) core.ParticipantRole {
	if strings.TrimSpace(string(role)) == "" {
		return core.ParticipantRoleParticipant
	}
	return role
}
