package initiatives

import (
	"fmt"

	initcommand "github.com/goliatone/go-initiatives/command"
	initquery "github.com/goliatone/go-initiatives/query"
)

// CommandQueryService is the surface the facade needs. *Service satisfies it.
type CommandQueryService interface {
	initcommand.ParticipationService
	initcommand.NotificationService
	initquery.ParticipantReader
	initquery.QueueStatsReader
}

type Commands struct {
	Join                     *initcommand.JoinCommand
	Approve                  *initcommand.ApproveCommand
	Reject                   *initcommand.RejectCommand
	Kick                     *initcommand.KickCommand
	EnqueuePostNotifications *initcommand.EnqueuePostNotificationsCommand
	EnqueueWebhookEvent      *initcommand.EnqueueWebhookEventCommand
	// RunDelivery is nil unless a runner was given with WithDeliveryRunner.
	RunDelivery *initcommand.RunDeliveryCommand
}

type Queries struct {
	ListApproved *initquery.ListApprovedQuery
	ListPending  *initquery.ListPendingQuery
	QueueStats   *initquery.QueueStatsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	runner initcommand.DeliveryRunner
}

func WithDeliveryRunner(runner initcommand.DeliveryRunner) FacadeOption {
	return func(options *facadeOptions) {
		options.runner = runner
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("initiatives: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Join:                     initcommand.NewJoinCommand(service),
		Approve:                  initcommand.NewApproveCommand(service),
		Reject:                   initcommand.NewRejectCommand(service),
		Kick:                     initcommand.NewKickCommand(service),
		EnqueuePostNotifications: initcommand.NewEnqueuePostNotificationsCommand(service),
		EnqueueWebhookEvent:      initcommand.NewEnqueueWebhookEventCommand(service),
	}
	if cfg.runner != nil {
		facade.commands.RunDelivery = initcommand.NewRunDeliveryCommand(cfg.runner)
	}
	facade.queries = Queries{
		ListApproved: initquery.NewListApprovedQuery(service),
		ListPending:  initquery.NewListPendingQuery(service),
		QueueStats:   initquery.NewQueueStatsQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
