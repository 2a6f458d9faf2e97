package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-initiatives/core"
)

var (
	_ gocmd.Querier[ListApprovedMessage, []core.Participant] = (*ListApprovedQuery)(nil)
	_ gocmd.Querier[ListPendingMessage, []core.Participant]  = (*ListPendingQuery)(nil)
	_ gocmd.Querier[QueueStatsMessage, core.QueueStats]      = (*QueueStatsQuery)(nil)

	_ ParticipantReader = (*core.Service)(nil)
	_ QueueStatsReader  = (*core.Service)(nil)
)
