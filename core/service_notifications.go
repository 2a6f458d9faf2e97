package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const defaultWebhookProvider = "provider"

// Enqueue inserts a single post notification task. It reports false when the
// same recipient already has the post queued.
func (s *Service) Enqueue(ctx context.Context, task PostNotificationTask) (enqueued bool, err error) {
	startedAt := time.Now()
	task = normalizeTask(task)
	fields := map[string]any{
		"post_id":       task.PostID,
		"initiative_id": task.InitiativeID,
	}
	defer func() {
		fields["enqueued"] = enqueued
		s.observeOperation(ctx, startedAt, "notification_enqueue", err, fields)
	}()

	if s.postQueue == nil {
		return false, errQueueNotConfigured("post notification queue")
	}
	if task.RecipientEmail == "" {
		return false, errBadInput("recipient_email", "recipient email is required")
	}
	if task.PostID == "" {
		return false, errBadInput("post_id", "post id is required")
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.clock()
	}
	enqueued, err = s.postQueue.Enqueue(ctx, task)
	if err != nil {
		return false, storeError(err, "enqueue post notification")
	}
	return enqueued, nil
}

// EnqueuePostNotifications fans a published post out to every eligible
// recipient of its initiative. Recipients that already have the post queued
// are skipped silently.
func (s *Service) EnqueuePostNotifications(ctx context.Context, postID string, initiativeID string) (result EnqueueResult, err error) {
	startedAt := time.Now()
	postID = strings.TrimSpace(postID)
	initiativeID = strings.TrimSpace(initiativeID)
	fields := map[string]any{
		"post_id":       postID,
		"initiative_id": initiativeID,
	}
	defer func() {
		fields["eligible"] = result.Eligible
		fields["enqueued"] = result.Enqueued
		s.observeOperation(ctx, startedAt, "notification_fanout", err, fields)
	}()

	if s.postQueue == nil {
		return EnqueueResult{}, errQueueNotConfigured("post notification queue")
	}
	if postID == "" {
		return EnqueueResult{}, errBadInput("post_id", "post id is required")
	}
	if initiativeID == "" {
		return EnqueueResult{}, errBadInput("initiative_id", "initiative id is required")
	}

	recipients, err := s.participations.EligibleRecipients(ctx, initiativeID)
	if err != nil {
		return EnqueueResult{}, storeError(err, "resolve eligible recipients")
	}

	now := s.clock()
	seen := make(map[string]struct{}, len(recipients))
	tasks := make([]PostNotificationTask, 0, len(recipients))
	for _, recipient := range recipients {
		task := normalizeTask(PostNotificationTask{
			RecipientEmail:  recipient.Email,
			RecipientName:   recipient.Name,
			RecipientLocale: recipient.Locale,
			PostID:          postID,
			InitiativeID:    initiativeID,
			CreatedAt:       now,
		})
		if task.RecipientEmail == "" {
			continue
		}
		if _, ok := seen[task.RecipientEmail]; ok {
			continue
		}
		seen[task.RecipientEmail] = struct{}{}
		tasks = append(tasks, task)
	}
	result.Eligible = len(tasks)
	if len(tasks) == 0 {
		return result, nil
	}

	result.Enqueued, err = s.postQueue.EnqueueBatch(ctx, tasks)
	if err != nil {
		return result, storeError(err, "enqueue post notifications")
	}
	return result, nil
}

// EnqueueWebhookEvent stores the envelope verbatim for the delivery worker.
func (s *Service) EnqueueWebhookEvent(ctx context.Context, envelope WebhookEnvelope) (event WebhookEvent, err error) {
	startedAt := time.Now()
	envelope.Provider = strings.TrimSpace(envelope.Provider)
	if envelope.Provider == "" {
		envelope.Provider = defaultWebhookProvider
	}
	envelope.Type = strings.TrimSpace(envelope.Type)
	fields := map[string]any{
		"provider":   envelope.Provider,
		"event_type": envelope.Type,
	}
	defer func() {
		fields["webhook_event_id"] = event.ID
		s.observeOperation(ctx, startedAt, "webhook_enqueue", err, fields)
	}()

	if s.webhookQueue == nil {
		return WebhookEvent{}, errQueueNotConfigured("webhook event queue")
	}
	if envelope.Type == "" {
		return WebhookEvent{}, errBadInput("type", "event type is required")
	}
	if envelope.Data == nil {
		envelope.Data = map[string]any{}
	}
	event, err = s.webhookQueue.Enqueue(ctx, envelope)
	if err != nil {
		return WebhookEvent{}, storeError(err, "enqueue webhook event")
	}
	return event, nil
}

// QueueStats reports the number of pending rows per queue.
func (s *Service) QueueStats(ctx context.Context) (QueueStats, error) {
	var stats QueueStats
	if s.webhookQueue != nil {
		count, err := s.webhookQueue.Count(ctx)
		if err != nil {
			return QueueStats{}, storeError(err, "count webhook events")
		}
		stats.WebhookEvents = count
	}
	if s.postQueue != nil {
		count, err := s.postQueue.Count(ctx)
		if err != nil {
			return QueueStats{}, storeError(err, "count post notifications")
		}
		stats.PostNotifications = count
	}
	return stats, nil
}

func normalizeTask(task PostNotificationTask) PostNotificationTask {
	task.RecipientEmail = strings.ToLower(strings.TrimSpace(task.RecipientEmail))
	task.RecipientName = strings.TrimSpace(task.RecipientName)
	task.RecipientLocale = strings.TrimSpace(task.RecipientLocale)
	task.PostID = strings.TrimSpace(task.PostID)
	task.InitiativeID = strings.TrimSpace(task.InitiativeID)
	return task
}

func errQueueNotConfigured(name string) error {
	return NewError("core: "+name+" is not configured", goerrors.CategoryOperation, ErrorConfigMissing)
}
