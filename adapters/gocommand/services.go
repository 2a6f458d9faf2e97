package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-initiatives/command"
	"github.com/goliatone/go-initiatives/query"
)

// Services holds the collaborators whose handlers are exposed on the
// dispatcher. Nil members are skipped.
type Services struct {
	Participation command.ParticipationService
	Notifications command.NotificationService
	Delivery      command.DeliveryRunner
	Participants  query.ParticipantReader
	QueueStats    query.QueueStatsReader
}

type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterServices registers every initiatives command and query handler in
// the registry and subscribes it on the dispatcher. On failure the handlers
// subscribed so far are removed again.
func RegisterServices(adapter *RegistryAdapter, services Services) (Subscriptions, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	subs := Subscriptions{}
	steps := []func() (commanddispatcher.Subscription, error){}

	if svc := services.Participation; svc != nil {
		steps = append(steps,
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe(adapter, command.NewJoinCommand(svc))
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe(adapter, command.NewApproveCommand(svc))
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe(adapter, command.NewRejectCommand(svc))
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe(adapter, command.NewKickCommand(svc))
			},
		)
	}
	if svc := services.Notifications; svc != nil {
		steps = append(steps,
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe(adapter, command.NewEnqueuePostNotificationsCommand(svc))
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribe(adapter, command.NewEnqueueWebhookEventCommand(svc))
			},
		)
	}
	if runner := services.Delivery; runner != nil {
		steps = append(steps, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, command.NewRunDeliveryCommand(runner))
		})
	}
	if reader := services.Participants; reader != nil {
		steps = append(steps,
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribeQuery(adapter, query.NewListApprovedQuery(reader))
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribeQuery(adapter, query.NewListPendingQuery(reader))
			},
		)
	}
	if reader := services.QueueStats; reader != nil {
		steps = append(steps, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, query.NewQueueStatsQuery(reader))
		})
	}

	for _, step := range steps {
		sub, err := step()
		if err != nil {
			subs.Unsubscribe()
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
