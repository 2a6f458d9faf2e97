package query

import (
	"strings"

	"github.com/goliatone/go-initiatives/core"
)

const (
	TypeListApproved = "initiatives.query.participants.approved"
	TypeListPending  = "initiatives.query.participants.pending"
	TypeQueueStats   = "initiatives.query.queues.stats"
)

type ListApprovedMessage struct {
	Actor        core.Actor
	InitiativeID string
}

func (ListApprovedMessage) Type() string { return TypeListApproved }

func (m ListApprovedMessage) Validate() error { return validateInitiativeID(m.InitiativeID) }

type ListPendingMessage struct {
	Actor        core.Actor
	InitiativeID string
}

func (ListPendingMessage) Type() string { return TypeListPending }

func (m ListPendingMessage) Validate() error { return validateInitiativeID(m.InitiativeID) }

type QueueStatsMessage struct{}

func (QueueStatsMessage) Type() string { return TypeQueueStats }

func validateInitiativeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return core.InvalidField("initiative_id", "initiative id is required")
	}
	return nil
}
