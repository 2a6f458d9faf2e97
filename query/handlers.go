package query

import (
	"context"

	"github.com/goliatone/go-initiatives/core"
)

type ParticipantReader interface {
	ListApproved(ctx context.Context, actor core.Actor, initiativeID string) ([]core.Participant, error)
	ListPending(ctx context.Context, actor core.Actor, initiativeID string) ([]core.Participant, error)
}

type QueueStatsReader interface {
	QueueStats(ctx context.Context) (core.QueueStats, error)
}

type ListApprovedQuery struct {
	reader ParticipantReader
}

func NewListApprovedQuery(reader ParticipantReader) *ListApprovedQuery {
	return &ListApprovedQuery{reader: reader}
}

func (q *ListApprovedQuery) Query(ctx context.Context, msg ListApprovedMessage) ([]core.Participant, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependency("query", "participant reader")
	}
	return q.reader.ListApproved(ctx, msg.Actor, msg.InitiativeID)
}

type ListPendingQuery struct {
	reader ParticipantReader
}

func NewListPendingQuery(reader ParticipantReader) *ListPendingQuery {
	return &ListPendingQuery{reader: reader}
}

func (q *ListPendingQuery) Query(ctx context.Context, msg ListPendingMessage) ([]core.Participant, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependency("query", "participant reader")
	}
	return q.reader.ListPending(ctx, msg.Actor, msg.InitiativeID)
}

type QueueStatsQuery struct {
	reader QueueStatsReader
}

func NewQueueStatsQuery(reader QueueStatsReader) *QueueStatsQuery {
	return &QueueStatsQuery{reader: reader}
}

func (q *QueueStatsQuery) Query(ctx context.Context, _ QueueStatsMessage) (core.QueueStats, error) {
	if q == nil || q.reader == nil {
		return core.QueueStats{}, core.MissingDependency("query", "queue stats reader")
	}
	return q.reader.QueueStats(ctx)
}
