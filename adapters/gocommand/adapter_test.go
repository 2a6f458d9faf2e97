package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	initcommand "github.com/goliatone/go-initiatives/command"
	"github.com/goliatone/go-initiatives/core"
	"github.com/goliatone/go-initiatives/query"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type okMessage struct{}

func (okMessage) Type() string { return "initiatives.test.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "initiatives.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "initiatives.test.dispatch" }

type queueMessage struct{}

func (queueMessage) Type() string { return "initiatives.test.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("initiatives.test.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

type stubServices struct {
	joined   []core.JoinRequest
	runs     int
	approved []core.Participant
}

func (s *stubServices) Join(_ context.Context, req core.JoinRequest) (core.Participation, error) {
	s.joined = append(s.joined, req)
	return core.Participation{ID: "ip_1", InitiativeID: req.InitiativeID, UserID: req.UserID, Status: core.ParticipationStatusApproved}, nil
}

func (s *stubServices) Approve(context.Context, core.Actor, string) (core.Participation, error) {
	return core.Participation{}, nil
}

func (s *stubServices) Reject(context.Context, core.Actor, string) (core.Participation, error) {
	return core.Participation{}, nil
}

func (s *stubServices) Kick(context.Context, core.Actor, string) (core.Participation, error) {
	return core.Participation{}, nil
}

func (s *stubServices) ListApproved(context.Context, core.Actor, string) ([]core.Participant, error) {
	return s.approved, nil
}

func (s *stubServices) ListPending(context.Context, core.Actor, string) ([]core.Participant, error) {
	return nil, nil
}

func (s *stubServices) Run(context.Context) (core.RunStats, error) {
	s.runs++
	return core.RunStats{Processed: 2}, nil
}

func (s *stubServices) ProcessWebhookEvents(context.Context) (core.RunStats, error) {
	return core.RunStats{}, nil
}

func (s *stubServices) ProcessPostNotifications(context.Context) (core.RunStats, error) {
	return core.RunStats{}, nil
}

func TestRegisterServices_DispatchesInitiativeHandlers(t *testing.T) {
	svc := &stubServices{approved: []core.Participant{{Name: "Ana"}}}
	adapter := NewRegistryAdapter(command.NewRegistry())

	subs, err := RegisterServices(adapter, Services{
		Participation: svc,
		Delivery:      svc,
		Participants:  svc,
	})
	if err != nil {
		t.Fatalf("register services: %v", err)
	}
	defer subs.Unsubscribe()
	if len(subs) != 7 {
		t.Fatalf("expected 7 subscriptions, got %d", len(subs))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	collector := command.NewResult[core.Participation]()
	ctx := command.ContextWithResult(context.Background(), collector)
	if err := Dispatch(ctx, initcommand.JoinMessage{Request: core.JoinRequest{InitiativeID: "ini_1", UserID: "usr_1"}}); err != nil {
		t.Fatalf("dispatch join: %v", err)
	}
	if len(svc.joined) != 1 {
		t.Fatalf("expected join to reach service once, got %d", len(svc.joined))
	}
	if participation, ok := collector.Load(); !ok || participation.ID != "ip_1" {
		t.Fatalf("expected dispatched result, got %#v %v", participation, ok)
	}

	if err := Dispatch(context.Background(), initcommand.RunDeliveryMessage{Trigger: core.RunTriggerManual}); err != nil {
		t.Fatalf("dispatch run: %v", err)
	}
	if svc.runs != 1 {
		t.Fatalf("expected one delivery run, got %d", svc.runs)
	}

	participants, err := Query[query.ListApprovedMessage, []core.Participant](context.Background(), query.ListApprovedMessage{
		Actor:        core.Actor{UserID: "usr_organizer"},
		InitiativeID: "ini_1",
	})
	if err != nil {
		t.Fatalf("query approved: %v", err)
	}
	if len(participants) != 1 || participants[0].Name != "Ana" {
		t.Fatalf("unexpected participants %#v", participants)
	}
}

func TestRegisterServices_RequiresRegistry(t *testing.T) {
	if _, err := RegisterServices(nil, Services{}); err == nil {
		t.Fatalf("expected error without registry")
	}
}

func TestAddQueueResolver_DefaultsKey(t *testing.T) {
	adapter := NewRegistryAdapter(nil)
	if err := adapter.AddQueueResolver(" ", jobqueuecommand.NewRegistry()); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if !adapter.HasResolver(QueueResolverKey) {
		t.Fatalf("expected resolver under %s", QueueResolverKey)
	}
	if err := adapter.AddQueueResolver("queue", nil); err == nil {
		t.Fatalf("expected error without queue registry")
	}
}
