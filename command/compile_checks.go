package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-initiatives/core"
)

var (
	_ gocmd.Commander[JoinMessage]                     = (*JoinCommand)(nil)
	_ gocmd.Commander[ApproveMessage]                  = (*ApproveCommand)(nil)
	_ gocmd.Commander[RejectMessage]                   = (*RejectCommand)(nil)
	_ gocmd.Commander[KickMessage]                     = (*KickCommand)(nil)
	_ gocmd.Commander[EnqueuePostNotificationsMessage] = (*EnqueuePostNotificationsCommand)(nil)
	_ gocmd.Commander[EnqueueWebhookEventMessage]      = (*EnqueueWebhookEventCommand)(nil)
	_ gocmd.Commander[RunDeliveryMessage]              = (*RunDeliveryCommand)(nil)

	_ ParticipationService = (*core.Service)(nil)
	_ NotificationService  = (*core.Service)(nil)
	_ DeliveryRunner       = (*core.DeliveryWorker)(nil)
)
