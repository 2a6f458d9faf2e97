package command

import (
	"strings"

	"github.com/goliatone/go-initiatives/core"
)

const (
	TypeJoin                     = "initiatives.command.participation.join"
	TypeApprove                  = "initiatives.command.participation.approve"
	TypeReject                   = "initiatives.command.participation.reject"
	TypeKick                     = "initiatives.command.participation.kick"
	TypeEnqueuePostNotifications = "initiatives.command.notifications.enqueue_post"
	TypeEnqueueWebhookEvent      = "initiatives.command.webhooks.enqueue"
	TypeRunDelivery              = "initiatives.command.delivery.run"
)

type JoinMessage struct {
	Request core.JoinRequest
}

func (JoinMessage) Type() string { return TypeJoin }

func (m JoinMessage) Validate() error {
	if strings.TrimSpace(m.Request.InitiativeID) == "" {
		return core.InvalidField("initiative_id", "initiative id is required")
	}
	if m.Request.Role != "" && !m.Request.Role.Valid() {
		return core.InvalidField("role", "role is not supported")
	}
	return nil
}

type ApproveMessage struct {
	Actor           core.Actor
	ParticipationID string
}

func (ApproveMessage) Type() string { return TypeApprove }

func (m ApproveMessage) Validate() error { return validateParticipationID(m.ParticipationID) }

type RejectMessage struct {
	Actor           core.Actor
	ParticipationID string
}

func (RejectMessage) Type() string { return TypeReject }

func (m RejectMessage) Validate() error { return validateParticipationID(m.ParticipationID) }

type KickMessage struct {
	Actor           core.Actor
	ParticipationID string
}

func (KickMessage) Type() string { return TypeKick }

func (m KickMessage) Validate() error { return validateParticipationID(m.ParticipationID) }

type EnqueuePostNotificationsMessage struct {
	PostID       string
	InitiativeID string
}

func (EnqueuePostNotificationsMessage) Type() string { return TypeEnqueuePostNotifications }

func (m EnqueuePostNotificationsMessage) Validate() error {
	if strings.TrimSpace(m.PostID) == "" {
		return core.InvalidField("post_id", "post id is required")
	}
	if strings.TrimSpace(m.InitiativeID) == "" {
		return core.InvalidField("initiative_id", "initiative id is required")
	}
	return nil
}

type EnqueueWebhookEventMessage struct {
	Envelope core.WebhookEnvelope
}

func (EnqueueWebhookEventMessage) Type() string { return TypeEnqueueWebhookEvent }

func (m EnqueueWebhookEventMessage) Validate() error {
	if strings.TrimSpace(m.Envelope.Type) == "" {
		return core.InvalidField("type", "event type is required")
	}
	return nil
}

// RunDeliveryMessage starts one worker run. An empty phase runs both queues.
type RunDeliveryMessage struct {
	Phase   string
	Trigger string
}

func (RunDeliveryMessage) Type() string { return TypeRunDelivery }

func (m RunDeliveryMessage) Validate() error {
	switch strings.TrimSpace(m.Phase) {
	case "", core.RunPhaseAll, core.RunPhaseWebhookEvents, core.RunPhasePostNotifications:
		return nil
	default:
		return core.InvalidField("phase", "phase is not supported")
	}
}

func validateParticipationID(id string) error {
	if strings.TrimSpace(id) == "" {
		return core.InvalidField("participation_id", "participation id is required")
	}
	return nil
}
