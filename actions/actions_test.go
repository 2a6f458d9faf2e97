package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-initiatives/core"
	"github.com/goliatone/go-initiatives/i18n"
)

type stubService struct {
	joinCalls int
	joinFn    func(context.Context, core.JoinRequest) (core.Participation, error)
	manageFn  func(context.Context, core.Actor, string) (core.Participation, error)
	listFn    func(context.Context, core.Actor, string) ([]core.Participant, error)
}

func (s *stubService) Join(ctx context.Context, req core.JoinRequest) (core.Participation, error) {
	s.joinCalls++
	return s.joinFn(ctx, req)
}

func (s *stubService) Approve(ctx context.Context, actor core.Actor, id string) (core.Participation, error) {
	return s.manageFn(ctx, actor, id)
}

func (s *stubService) Reject(ctx context.Context, actor core.Actor, id string) (core.Participation, error) {
	return s.manageFn(ctx, actor, id)
}

func (s *stubService) Kick(ctx context.Context, actor core.Actor, id string) (core.Participation, error) {
	return s.manageFn(ctx, actor, id)
}

func (s *stubService) ListApproved(ctx context.Context, actor core.Actor, initiativeID string) ([]core.Participant, error) {
	return s.listFn(ctx, actor, initiativeID)
}

func (s *stubService) ListPending(ctx context.Context, actor core.Actor, initiativeID string) ([]core.Participant, error) {
	return s.listFn(ctx, actor, initiativeID)
}

type recordingLogger struct {
	errors []string
}

func (l *recordingLogger) Trace(string, ...any) {}
func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(msg string, _ ...any) {
	l.errors = append(l.errors, msg)
}
func (l *recordingLogger) Fatal(string, ...any) {}
func (l *recordingLogger) WithContext(context.Context) core.Logger {
	return l
}

func newTestActions(t *testing.T, svc *stubService, opts ...Option) *Actions {
	t.Helper()
	actions, err := New(svc, i18n.NewTranslator("en"), opts...)
	if err != nil {
		t.Fatalf("new actions: %v", err)
	}
	return actions
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(nil, i18n.NewTranslator("en")); err == nil {
		t.Fatalf("expected error without service")
	}
	if _, err := New(&stubService{}, nil); err == nil {
		t.Fatalf("expected error without translator")
	}
}

func TestJoin_ReturnsParticipationData(t *testing.T) {
	svc := &stubService{joinFn: func(_ context.Context, req core.JoinRequest) (core.Participation, error) {
		if req.UserID != "usr_1" || req.InitiativeID != "ini_1" {
			t.Fatalf("unexpected join request %#v", req)
		}
		if req.FormResponses["city"] != "Rabat" {
			t.Fatalf("expected form responses to pass through, got %#v", req.FormResponses)
		}
		return core.Participation{ID: "ip_1", Status: core.ParticipationStatusRegistered}, nil
	}}
	actions := newTestActions(t, svc)

	result := actions.Join(context.Background(), Request{Actor: core.Actor{UserID: "usr_1"}}, JoinInput{
		InitiativeID:  "ini_1",
		FormResponses: map[string]any{"city": "Rabat"},
	})
	if !result.Success {
		t.Fatalf("expected success, got %#v", result)
	}
	if result.Data.ParticipationID != "ip_1" || result.Data.Status != core.ParticipationStatusRegistered {
		t.Fatalf("unexpected data %#v", result.Data)
	}
}

func TestJoin_AnonymousIsRejectedBeforeValidation(t *testing.T) {
	svc := &stubService{}
	actions := newTestActions(t, svc)

	result := actions.Join(context.Background(), Request{Locale: "en"}, JoinInput{})
	if result.Success || result.Code != core.ErrorUnauthorized {
		t.Fatalf("expected unauthorized, got %#v", result)
	}
	if result.Error != "You need to sign in to do this." {
		t.Fatalf("expected localized message, got %q", result.Error)
	}
	if svc.joinCalls != 0 {
		t.Fatalf("expected service not to be called")
	}
}

func TestJoin_ValidationFailureIsBadInput(t *testing.T) {
	svc := &stubService{}
	actions := newTestActions(t, svc)

	result := actions.Join(context.Background(), Request{Actor: core.Actor{UserID: "usr_1"}}, JoinInput{InitiativeID: " "})
	if result.Code != core.ErrorBadInput {
		t.Fatalf("expected bad input, got %#v", result)
	}
	if svc.joinCalls != 0 {
		t.Fatalf("expected service not to be called")
	}
}

func TestJoin_StoreSentinelIsLocalized(t *testing.T) {
	svc := &stubService{joinFn: func(context.Context, core.JoinRequest) (core.Participation, error) {
		return core.Participation{}, core.ErrCapacityReached
	}}
	actions := newTestActions(t, svc)

	result := actions.Join(context.Background(), Request{Actor: core.Actor{UserID: "usr_1"}, Locale: "fr"}, JoinInput{InitiativeID: "ini_1"})
	if result.Success || result.Code != core.ErrorFull {
		t.Fatalf("expected full, got %#v", result)
	}
	if result.Error == "" || result.Error == core.ErrorFull {
		t.Fatalf("expected translated message, got %q", result.Error)
	}
}

func TestManagerActions_MapErrorsAndData(t *testing.T) {
	var seen []string
	svc := &stubService{manageFn: func(_ context.Context, actor core.Actor, id string) (core.Participation, error) {
		seen = append(seen, actor.UserID+":"+id)
		if id == "ip_missing" {
			return core.Participation{}, core.ErrRecordNotFound
		}
		return core.Participation{ID: id, InitiativeID: "ini_1", UserID: "usr_2", Status: core.ParticipationStatusApproved}, nil
	}}
	actions := newTestActions(t, svc)
	req := Request{Actor: core.Actor{UserID: "usr_organizer"}}
	ctx := context.Background()

	approved := actions.Approve(ctx, req, "ip_1")
	if !approved.Success || approved.Data.Status != core.ParticipationStatusApproved || approved.Data.UserID != "usr_2" {
		t.Fatalf("unexpected approve result %#v", approved)
	}
	if rejected := actions.Reject(ctx, req, "ip_missing"); rejected.Code != core.ErrorParticipationNotFound {
		t.Fatalf("expected not found, got %#v", rejected)
	}
	if kicked := actions.Kick(ctx, req, ""); kicked.Code != core.ErrorBadInput {
		t.Fatalf("expected bad input for empty id, got %#v", kicked)
	}
	if anonymous := actions.Kick(ctx, Request{}, "ip_1"); anonymous.Code != core.ErrorUnauthorized {
		t.Fatalf("expected unauthorized, got %#v", anonymous)
	}
	if len(seen) != 2 {
		t.Fatalf("expected two service calls, got %v", seen)
	}
}

func TestListActions_ProjectParticipants(t *testing.T) {
	joined := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := &stubService{listFn: func(_ context.Context, _ core.Actor, initiativeID string) ([]core.Participant, error) {
		if initiativeID == "ini_forbidden" {
			return nil, core.NewError("only managers", goerrors.CategoryAuthz, core.ErrorForbidden)
		}
		return []core.Participant{{
			Participation: core.Participation{ID: "ip_1", UserID: "usr_2", Role: core.ParticipantRoleParticipant, CreatedAt: joined},
			Name:          "Ana",
			Email:         "ana@example.com",
		}}, nil
	}}
	actions := newTestActions(t, svc)
	req := Request{Actor: core.Actor{UserID: "usr_organizer"}}

	approved := actions.ListApproved(context.Background(), req, "ini_1")
	if !approved.Success || len(approved.Data) != 1 {
		t.Fatalf("unexpected list result %#v", approved)
	}
	if approved.Data[0].JoinedAt != "2026-03-14T09:00:00Z" || approved.Data[0].Name != "Ana" {
		t.Fatalf("unexpected participant %#v", approved.Data[0])
	}
	pending := actions.ListPending(context.Background(), req, "ini_forbidden")
	if pending.Code != core.ErrorForbidden {
		t.Fatalf("expected forbidden, got %#v", pending)
	}
}

func TestFailure_LogsInternalErrors(t *testing.T) {
	logger := &recordingLogger{}
	svc := &stubService{manageFn: func(context.Context, core.Actor, string) (core.Participation, error) {
		return core.Participation{}, errors.New("connection reset")
	}}
	actions := newTestActions(t, svc, WithLogger(logger))

	result := actions.Approve(context.Background(), Request{Actor: core.Actor{UserID: "usr_organizer"}, Locale: "en"}, "ip_1")
	if result.Code != core.ErrorInternal {
		t.Fatalf("expected internal error, got %#v", result)
	}
	if result.Error != "Something went wrong. Please try again." {
		t.Fatalf("expected generic message, got %q", result.Error)
	}
	if len(logger.errors) != 1 {
		t.Fatalf("expected internal error to be logged, got %v", logger.errors)
	}
}
