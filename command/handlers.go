package command

import (
	"context"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-initiatives/core"
)

type ParticipationService interface {
	Join(ctx context.Context, req core.JoinRequest) (core.Participation, error)
	Approve(ctx context.Context, actor core.Actor, participationID string) (core.Participation, error)
	Reject(ctx context.Context, actor core.Actor, participationID string) (core.Participation, error)
	Kick(ctx context.Context, actor core.Actor, participationID string) (core.Participation, error)
}

type NotificationService interface {
	EnqueuePostNotifications(ctx context.Context, postID string, initiativeID string) (core.EnqueueResult, error)
	EnqueueWebhookEvent(ctx context.Context, envelope core.WebhookEnvelope) (core.WebhookEvent, error)
}

type DeliveryRunner interface {
	Run(ctx context.Context) (core.RunStats, error)
	ProcessWebhookEvents(ctx context.Context) (core.RunStats, error)
	ProcessPostNotifications(ctx context.Context) (core.RunStats, error)
}

type JoinCommand struct {
	service ParticipationService
}

func NewJoinCommand(service ParticipationService) *JoinCommand {
	return &JoinCommand{service: service}
}

func (c *JoinCommand) Execute(ctx context.Context, msg JoinMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command", "participation service")
	}
	out, err := c.service.Join(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ApproveCommand struct {
	service ParticipationService
}

func NewApproveCommand(service ParticipationService) *ApproveCommand {
	return &ApproveCommand{service: service}
}

func (c *ApproveCommand) Execute(ctx context.Context, msg ApproveMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command", "participation service")
	}
	out, err := c.service.Approve(ctx, msg.Actor, msg.ParticipationID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RejectCommand struct {
	service ParticipationService
}

func NewRejectCommand(service ParticipationService) *RejectCommand {
	return &RejectCommand{service: service}
}

func (c *RejectCommand) Execute(ctx context.Context, msg RejectMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command", "participation service")
	}
	out, err := c.service.Reject(ctx, msg.Actor, msg.ParticipationID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type KickCommand struct {
	service ParticipationService
}

func NewKickCommand(service ParticipationService) *KickCommand {
	return &KickCommand{service: service}
}

func (c *KickCommand) Execute(ctx context.Context, msg KickMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command", "participation service")
	}
	out, err := c.service.Kick(ctx, msg.Actor, msg.ParticipationID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EnqueuePostNotificationsCommand struct {
	service NotificationService
}

func NewEnqueuePostNotificationsCommand(service NotificationService) *EnqueuePostNotificationsCommand {
	return &EnqueuePostNotificationsCommand{service: service}
}

func (c *EnqueuePostNotificationsCommand) Execute(ctx context.Context, msg EnqueuePostNotificationsMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command", "notification service")
	}
	out, err := c.service.EnqueuePostNotifications(ctx, msg.PostID, msg.InitiativeID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EnqueueWebhookEventCommand struct {
	service NotificationService
}

func NewEnqueueWebhookEventCommand(service NotificationService) *EnqueueWebhookEventCommand {
	return &EnqueueWebhookEventCommand{service: service}
}

func (c *EnqueueWebhookEventCommand) Execute(ctx context.Context, msg EnqueueWebhookEventMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command", "notification service")
	}
	out, err := c.service.EnqueueWebhookEvent(ctx, msg.Envelope)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RunDeliveryCommand struct {
	runner DeliveryRunner
}

func NewRunDeliveryCommand(runner DeliveryRunner) *RunDeliveryCommand {
	return &RunDeliveryCommand{runner: runner}
}

// Execute stores the run stats even when the run reports an error, so
// callers can surface partial progress.
func (c *RunDeliveryCommand) Execute(ctx context.Context, msg RunDeliveryMessage) error {
	if c == nil || c.runner == nil {
		return core.MissingDependency("command", "delivery runner")
	}
	if trigger := strings.TrimSpace(msg.Trigger); trigger != "" {
		ctx = core.ContextWithRunTrigger(ctx, trigger)
	}
	var (
		stats core.RunStats
		err   error
	)
	switch strings.TrimSpace(msg.Phase) {
	case core.RunPhaseWebhookEvents:
		stats, err = c.runner.ProcessWebhookEvents(ctx)
	case core.RunPhasePostNotifications:
		stats, err = c.runner.ProcessPostNotifications(ctx)
	default:
		stats, err = c.runner.Run(ctx)
	}
	storeResult(ctx, stats)
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
