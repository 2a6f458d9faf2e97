package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-initiatives/core"
)

type stubParticipationService struct {
	joinFn    func(context.Context, core.JoinRequest) (core.Participation, error)
	approveFn func(context.Context, core.Actor, string) (core.Participation, error)
	rejectFn  func(context.Context, core.Actor, string) (core.Participation, error)
	kickFn    func(context.Context, core.Actor, string) (core.Participation, error)
}

func (s stubParticipationService) Join(ctx context.Context, req core.JoinRequest) (core.Participation, error) {
	return s.joinFn(ctx, req)
}

func (s stubParticipationService) Approve(ctx context.Context, actor core.Actor, id string) (core.Participation, error) {
	return s.approveFn(ctx, actor, id)
}

func (s stubParticipationService) Reject(ctx context.Context, actor core.Actor, id string) (core.Participation, error) {
	return s.rejectFn(ctx, actor, id)
}

func (s stubParticipationService) Kick(ctx context.Context, actor core.Actor, id string) (core.Participation, error) {
	return s.kickFn(ctx, actor, id)
}

type stubRunner struct {
	calls []string
	stats core.RunStats
	err   error
}

func (s *stubRunner) Run(context.Context) (core.RunStats, error) {
	s.calls = append(s.calls, core.RunPhaseAll)
	return s.stats, s.err
}

func (s *stubRunner) ProcessWebhookEvents(context.Context) (core.RunStats, error) {
	s.calls = append(s.calls, core.RunPhaseWebhookEvents)
	return s.stats, s.err
}

func (s *stubRunner) ProcessPostNotifications(context.Context) (core.RunStats, error) {
	s.calls = append(s.calls, core.RunPhasePostNotifications)
	return s.stats, s.err
}

func TestJoinCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	svc := stubParticipationService{
		joinFn: func(_ context.Context, req core.JoinRequest) (core.Participation, error) {
			if req.InitiativeID != "ini_1" || req.UserID != "usr_1" {
				t.Fatalf("unexpected join request %#v", req)
			}
			return core.Participation{ID: "ip_1", Status: core.ParticipationStatusApproved}, nil
		},
	}

	collector := gocmd.NewResult[core.Participation]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewJoinCommand(svc).Execute(ctx, JoinMessage{Request: core.JoinRequest{InitiativeID: "ini_1", UserID: "usr_1"}})
	if err != nil {
		t.Fatalf("execute join: %v", err)
	}
	result, ok := collector.Load()
	if !ok || result.ID != "ip_1" {
		t.Fatalf("expected stored participation, got %#v %v", result, ok)
	}
}

func TestManagerCommands_DelegateToService(t *testing.T) {
	calls := []string{}
	record := func(name string) func(context.Context, core.Actor, string) (core.Participation, error) {
		return func(_ context.Context, actor core.Actor, id string) (core.Participation, error) {
			if actor.UserID != "usr_org" || id != "ip_1" {
				t.Fatalf("unexpected %s payload %#v %q", name, actor, id)
			}
			calls = append(calls, name)
			return core.Participation{ID: id}, nil
		}
	}
	svc := stubParticipationService{approveFn: record("approve"), rejectFn: record("reject"), kickFn: record("kick")}
	ctx := context.Background()
	actor := core.Actor{UserID: "usr_org"}

	if err := NewApproveCommand(svc).Execute(ctx, ApproveMessage{Actor: actor, ParticipationID: "ip_1"}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := NewRejectCommand(svc).Execute(ctx, RejectMessage{Actor: actor, ParticipationID: "ip_1"}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := NewKickCommand(svc).Execute(ctx, KickMessage{Actor: actor, ParticipationID: "ip_1"}); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if len(calls) != 3 || calls[0] != "approve" || calls[2] != "kick" {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestRunDeliveryCommand_SelectsPhaseAndKeepsStats(t *testing.T) {
	runner := &stubRunner{stats: core.RunStats{Processed: 3, Failed: 1}, err: errors.New("delete failed")}
	cmd := NewRunDeliveryCommand(runner)

	collector := gocmd.NewResult[core.RunStats]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := cmd.Execute(ctx, RunDeliveryMessage{Phase: core.RunPhasePostNotifications, Trigger: core.RunTriggerCron})
	if err == nil {
		t.Fatalf("expected run error to be returned")
	}
	stats, ok := collector.Load()
	if !ok || stats.Processed != 3 || stats.Failed != 1 {
		t.Fatalf("expected stats to be stored on error, got %#v", stats)
	}

	runner.err = nil
	if err := cmd.Execute(context.Background(), RunDeliveryMessage{}); err != nil {
		t.Fatalf("run all: %v", err)
	}
	if err := cmd.Execute(context.Background(), RunDeliveryMessage{Phase: core.RunPhaseWebhookEvents}); err != nil {
		t.Fatalf("run webhooks: %v", err)
	}
	want := []string{core.RunPhasePostNotifications, core.RunPhaseAll, core.RunPhaseWebhookEvents}
	for i, phase := range want {
		if runner.calls[i] != phase {
			t.Fatalf("expected calls %v, got %v", want, runner.calls)
		}
	}
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	invalid := []interface{ Validate() error }{
		JoinMessage{},
		JoinMessage{Request: core.JoinRequest{InitiativeID: "ini_1", Role: "owner"}},
		ApproveMessage{},
		RejectMessage{},
		KickMessage{},
		EnqueuePostNotificationsMessage{PostID: "pst_1"},
		EnqueueWebhookEventMessage{},
		RunDeliveryMessage{Phase: "everything"},
	}
	for _, msg := range invalid {
		err := msg.Validate()
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%T: expected go-errors envelope, got %v", msg, err)
		}
		if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.ErrorBadInput {
			t.Fatalf("%T: unexpected envelope %q %q", msg, rich.Category, rich.TextCode)
		}
	}
}

func TestCommands_NilServiceReturnsRichError(t *testing.T) {
	var cmd *KickCommand
	err := cmd.Execute(context.Background(), KickMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal dependency error, got %v", err)
	}
}
