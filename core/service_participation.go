package core

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Join creates a participation for the requesting user. Open initiatives
// approve and count the participant immediately; others queue the request
// for manager review.
func (s *Service) Join(ctx context.Context, req JoinRequest) (participation Participation, err error) {
	startedAt := time.Now()
	req.InitiativeID = strings.TrimSpace(req.InitiativeID)
	req.UserID = strings.TrimSpace(req.UserID)
	fields := map[string]any{
		"initiative_id": req.InitiativeID,
		"user_id":       req.UserID,
	}
	defer func() {
		if participation.ID != "" {
			fields["participation_id"] = participation.ID
			fields["participation_status"] = string(participation.Status)
		}
		s.observeOperation(ctx, startedAt, "participation_join", err, fields)
	}()

	if req.UserID == "" {
		return Participation{}, errUnauthorized()
	}
	if req.InitiativeID == "" {
		return Participation{}, errBadInput("initiative_id", "initiative id is required")
	}
	role := req.Role
	if role == "" {
		role = ParticipantRoleParticipant
	}
	if !role.Valid() || role == ParticipantRoleManager {
		return Participation{}, errBadInput("role", "role must be participant or helper")
	}

	initiative, err := s.initiatives.GetInitiative(ctx, req.InitiativeID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Participation{}, errInitiativeNotFound(req.InitiativeID)
		}
		return Participation{}, storeError(err, "load initiative")
	}
	if !initiative.Status.Joinable() {
		return Participation{}, errInitiativeNotFound(req.InitiativeID)
	}

	now := s.clock()
	if initiative.RegistrationClosed(now) {
		return Participation{}, errRegistrationClosed(initiative.ID)
	}
	if initiative.AtCapacity() {
		return Participation{}, errFull(initiative.ID)
	}

	status := ParticipationStatusRegistered
	if initiative.IsOpenParticipation {
		status = ParticipationStatusApproved
	}

	created, err := s.participations.CreateParticipation(ctx, CreateParticipationInput{
		InitiativeID:  initiative.ID,
		UserID:        req.UserID,
		Role:          role,
		Status:        status,
		FormResponses: SanitizeFormResponses(req.FormResponses),
		Now:           now,
	})
	switch {
	case errors.Is(err, ErrParticipationExists):
		return Participation{}, errAlreadyJoined(initiative.ID)
	case errors.Is(err, ErrCapacityReached):
		return Participation{}, errFull(initiative.ID)
	case err != nil:
		return Participation{}, storeError(err, "create participation")
	}
	return created, nil
}

// Approve is idempotent: approving an approved participation returns it
// unchanged and never counts it twice.
func (s *Service) Approve(ctx context.Context, actor Actor, participationID string) (participation Participation, err error) {
	startedAt := time.Now()
	fields := map[string]any{"participation_id": strings.TrimSpace(participationID)}
	defer func() {
		fields["initiative_id"] = participation.InitiativeID
		s.observeOperation(ctx, startedAt, "participation_approve", err, fields)
	}()

	current, err := s.loadForManager(ctx, actor, participationID)
	if err != nil {
		return Participation{}, err
	}
	if current.Status == ParticipationStatusApproved {
		fields["noop"] = true
		return current, nil
	}
	if current.Status != ParticipationStatusRegistered {
		return current, errInvalidTransition(current, ParticipationStatusApproved)
	}

	updated, err := s.participations.TransitionParticipation(ctx, TransitionInput{
		ParticipationID: current.ID,
		From:            ParticipationStatusRegistered,
		To:              ParticipationStatusApproved,
		CounterDelta:    1,
		Now:             s.clock(),
	})
	switch {
	case errors.Is(err, ErrStatusConflict):
		latest, getErr := s.participations.GetParticipation(ctx, current.ID)
		if getErr != nil {
			return current, storeError(getErr, "reload participation")
		}
		if latest.Status == ParticipationStatusApproved {
			fields["noop"] = true
			return latest, nil
		}
		return latest, errInvalidTransition(latest, ParticipationStatusApproved)
	case errors.Is(err, ErrCapacityReached):
		return current, errFull(current.InitiativeID)
	case err != nil:
		return current, storeError(err, "approve participation")
	}
	return updated, nil
}

// Reject declines a pending request. The counter is untouched since pending
// requests are never counted.
func (s *Service) Reject(ctx context.Context, actor Actor, participationID string) (participation Participation, err error) {
	startedAt := time.Now()
	fields := map[string]any{"participation_id": strings.TrimSpace(participationID)}
	defer func() {
		fields["initiative_id"] = participation.InitiativeID
		s.observeOperation(ctx, startedAt, "participation_reject", err, fields)
	}()

	current, err := s.loadForManager(ctx, actor, participationID)
	if err != nil {
		return Participation{}, err
	}
	if current.Status == ParticipationStatusRejected {
		fields["noop"] = true
		return current, nil
	}
	if current.Status != ParticipationStatusRegistered {
		return current, errInvalidTransition(current, ParticipationStatusRejected)
	}

	updated, err := s.participations.TransitionParticipation(ctx, TransitionInput{
		ParticipationID: current.ID,
		From:            ParticipationStatusRegistered,
		To:              ParticipationStatusRejected,
		Now:             s.clock(),
	})
	if errors.Is(err, ErrStatusConflict) {
		latest, getErr := s.participations.GetParticipation(ctx, current.ID)
		if getErr != nil {
			return current, storeError(getErr, "reload participation")
		}
		if latest.Status == ParticipationStatusRejected {
			fields["noop"] = true
			return latest, nil
		}
		return latest, errInvalidTransition(latest, ParticipationStatusRejected)
	}
	if err != nil {
		return current, storeError(err, "reject participation")
	}
	return updated, nil
}

// Kick cancels an approved participation and releases its seat. Only
// approved rows are counted, so only approved rows can be kicked.
func (s *Service) Kick(ctx context.Context, actor Actor, participationID string) (participation Participation, err error) {
	startedAt := time.Now()
	fields := map[string]any{"participation_id": strings.TrimSpace(participationID)}
	defer func() {
		fields["initiative_id"] = participation.InitiativeID
		s.observeOperation(ctx, startedAt, "participation_kick", err, fields)
	}()

	current, err := s.loadForManager(ctx, actor, participationID)
	if err != nil {
		return Participation{}, err
	}
	if current.Status == ParticipationStatusCancelled {
		fields["noop"] = true
		return current, nil
	}
	if current.Status != ParticipationStatusApproved {
		return current, errInvalidTransition(current, ParticipationStatusCancelled)
	}

	updated, err := s.participations.TransitionParticipation(ctx, TransitionInput{
		ParticipationID: current.ID,
		From:            ParticipationStatusApproved,
		To:              ParticipationStatusCancelled,
		CounterDelta:    -1,
		Now:             s.clock(),
	})
	if errors.Is(err, ErrStatusConflict) {
		latest, getErr := s.participations.GetParticipation(ctx, current.ID)
		if getErr != nil {
			return current, storeError(getErr, "reload participation")
		}
		if latest.Status == ParticipationStatusCancelled {
			fields["noop"] = true
			return latest, nil
		}
		return latest, errInvalidTransition(latest, ParticipationStatusCancelled)
	}
	if err != nil {
		return current, storeError(err, "kick participation")
	}
	return updated, nil
}

// ListApproved returns approved participants, newest first.
func (s *Service) ListApproved(ctx context.Context, actor Actor, initiativeID string) ([]Participant, error) {
	return s.listParticipants(ctx, actor, initiativeID, ParticipationStatusApproved, true)
}

// ListPending returns registered participants oldest first so reviews follow
// arrival order.
func (s *Service) ListPending(ctx context.Context, actor Actor, initiativeID string) ([]Participant, error) {
	return s.listParticipants(ctx, actor, initiativeID, ParticipationStatusRegistered, false)
}

func (s *Service) listParticipants(
	ctx context.Context,
	actor Actor,
	initiativeID string,
	status ParticipationStatus,
	newestFirst bool,
) (participants []Participant, err error) {
	startedAt := time.Now()
	initiativeID = strings.TrimSpace(initiativeID)
	fields := map[string]any{
		"initiative_id": initiativeID,
		"status_filter": string(status),
	}
	defer func() {
		fields["count"] = len(participants)
		s.observeOperation(ctx, startedAt, "participation_list", err, fields)
	}()

	if !actor.Authenticated() {
		return nil, errUnauthorized()
	}
	if initiativeID == "" {
		return nil, errBadInput("initiative_id", "initiative id is required")
	}
	if err := s.authorize(ctx, actor, initiativeID); err != nil {
		return nil, err
	}
	participants, err = s.participations.ListParticipants(ctx, ParticipantFilter{
		InitiativeID: initiativeID,
		Status:       status,
		NewestFirst:  newestFirst,
	})
	if err != nil {
		return nil, storeError(err, "list participants")
	}
	return participants, nil
}

func (s *Service) loadForManager(ctx context.Context, actor Actor, participationID string) (Participation, error) {
	if !actor.Authenticated() {
		return Participation{}, errUnauthorized()
	}
	participationID = strings.TrimSpace(participationID)
	if participationID == "" {
		return Participation{}, errBadInput("participation_id", "participation id is required")
	}
	participation, err := s.participations.GetParticipation(ctx, participationID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return Participation{}, errParticipationNotFound(participationID)
		}
		return Participation{}, storeError(err, "load participation")
	}
	if err := s.authorize(ctx, actor, participation.InitiativeID); err != nil {
		return Participation{}, err
	}
	return participation, nil
}

func (s *Service) authorize(ctx context.Context, actor Actor, initiativeID string) error {
	if !actor.Authenticated() {
		return errUnauthorized()
	}
	ok, err := s.managers.IsManager(ctx, initiativeID, strings.TrimSpace(actor.UserID))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return errInitiativeNotFound(initiativeID)
		}
		return storeError(err, "resolve initiative manager")
	}
	if !ok {
		return errForbidden(initiativeID)
	}
	return nil
}

func storeError(err error, action string) error {
	return WrapError(err, goerrors.CategoryInternal, ErrorInternal, "core: "+action+" failed")
}
