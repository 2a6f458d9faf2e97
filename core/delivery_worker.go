package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	RunPhaseAll               = "all"
	RunPhaseWebhookEvents     = "webhook_events"
	RunPhasePostNotifications = "post_notifications"

	RunTriggerManual   = "manual"
	RunTriggerCron     = "cron"
	RunTriggerSchedule = "schedule"
)

type runTriggerKey struct{}

// ContextWithRunTrigger labels worker runs started with ctx, e.g. "cron".
func ContextWithRunTrigger(ctx context.Context, trigger string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runTriggerKey{}, strings.TrimSpace(trigger))
}

func runTriggerFromContext(ctx context.Context) string {
	if ctx == nil {
		return RunTriggerManual
	}
	if trigger, ok := ctx.Value(runTriggerKey{}).(string); ok && trigger != "" {
		return trigger
	}
	return RunTriggerManual
}

// DeliveryWorkerDeps are the collaborators drained by a worker run. Either
// queue may be nil, in which case its phase is a no-op.
type DeliveryWorkerDeps struct {
	WebhookEvents     WebhookEventQueue
	WebhookHandler    WebhookEventHandler
	PostNotifications PostNotificationQueue
	Content           ContentResolver
	Renderer          NotificationRenderer
	Provider          DeliveryProvider
	Limiter           SendLimiter
}

type DeliveryWorkerOption func(*DeliveryWorker)

func WithWorkerLogger(logger Logger) DeliveryWorkerOption {
	return func(w *DeliveryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithWorkerMetricsRecorder(recorder MetricsRecorder) DeliveryWorkerOption {
	return func(w *DeliveryWorker) {
		if recorder != nil {
			w.metrics = recorder
		}
	}
}

func WithWorkerHooks(hooks ...DeliveryRunHook) DeliveryWorkerOption {
	return func(w *DeliveryWorker) {
		for _, hook := range hooks {
			if hook != nil {
				w.hooks = append(w.hooks, hook)
			}
		}
	}
}

func WithWorkerClock(now func() time.Time) DeliveryWorkerOption {
	return func(w *DeliveryWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// DeliveryWorker drains the webhook event and post notification queues in
// bounded batches. It keeps no state between runs; rows left in a queue are
// retried by the next run.
type DeliveryWorker struct {
	observer

	config   QueueConfig
	webhooks WebhookEventQueue
	handler  WebhookEventHandler
	posts    PostNotificationQueue
	content  ContentResolver
	renderer NotificationRenderer
	provider DeliveryProvider
	limiter  SendLimiter
	hooks    []DeliveryRunHook
	now      func() time.Time
}

func NewDeliveryWorker(config QueueConfig, deps DeliveryWorkerDeps, opts ...DeliveryWorkerOption) (*DeliveryWorker, error) {
	if deps.WebhookEvents == nil && deps.PostNotifications == nil {
		return nil, fmt.Errorf("core: delivery worker requires at least one queue")
	}
	if deps.WebhookEvents != nil && deps.WebhookHandler == nil {
		return nil, fmt.Errorf("core: webhook event handler is required")
	}
	if deps.PostNotifications != nil {
		if deps.Content == nil {
			return nil, fmt.Errorf("core: content resolver is required")
		}
		if deps.Renderer == nil {
			return nil, fmt.Errorf("core: notification renderer is required")
		}
	}

	worker := &DeliveryWorker{
		observer: observer{
			logger:  glog.Ensure(nil),
			metrics: NopMetricsRecorder{},
		},
		config:   config.normalized(),
		webhooks: deps.WebhookEvents,
		handler:  deps.WebhookHandler,
		posts:    deps.PostNotifications,
		content:  deps.Content,
		renderer: deps.Renderer,
		provider: deps.Provider,
		limiter:  deps.Limiter,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(worker)
		}
	}
	return worker, nil
}

// Run processes webhook events then post notifications within RunBudget.
func (w *DeliveryWorker) Run(ctx context.Context) (RunStats, error) {
	return w.execute(ctx, RunPhaseAll, func(ctx context.Context) (RunStats, error) {
		webhookStats, webhookErr := w.processWebhookEvents(ctx)
		postStats, postErr := w.processPostNotifications(ctx)
		return webhookStats.Add(postStats), joinErrors(webhookErr, postErr)
	})
}

func (w *DeliveryWorker) ProcessWebhookEvents(ctx context.Context) (RunStats, error) {
	return w.execute(ctx, RunPhaseWebhookEvents, w.processWebhookEvents)
}

func (w *DeliveryWorker) ProcessPostNotifications(ctx context.Context) (RunStats, error) {
	return w.execute(ctx, RunPhasePostNotifications, w.processPostNotifications)
}

func (w *DeliveryWorker) execute(
	ctx context.Context,
	phase string,
	fn func(context.Context) (RunStats, error),
) (RunStats, error) {
	if w == nil {
		return RunStats{}, fmt.Errorf("core: delivery worker is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	trigger := runTriggerFromContext(ctx)
	startedAt := w.clock()
	monotonicStart := time.Now()

	runCtx := ctx
	cancel := func() {}
	if w.config.RunBudget > 0 {
		runCtx, cancel = context.WithTimeout(ctx, w.config.RunBudget)
	}
	defer cancel()

	w.emitHook(ctx, func(hook DeliveryRunHook) {
		hook.OnStart(ctx, DeliveryRunEvent{Phase: phase, Trigger: trigger, StartedAt: startedAt})
	})

	stats, err := fn(runCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		w.logWarn(ctx, "delivery run budget exhausted", map[string]any{
			"phase":      phase,
			"run_budget": w.config.RunBudget.String(),
		})
		err = withoutDeadline(err)
	}
	stats.Duration = time.Since(monotonicStart)

	event := DeliveryRunEvent{
		Phase:     phase,
		Trigger:   trigger,
		Stats:     stats,
		Err:       err,
		StartedAt: startedAt,
		Duration:  stats.Duration,
	}
	if err != nil {
		w.emitHook(ctx, func(hook DeliveryRunHook) { hook.OnFailure(ctx, event) })
	} else {
		w.emitHook(ctx, func(hook DeliveryRunHook) { hook.OnSuccess(ctx, event) })
	}

	w.observeOperation(ctx, monotonicStart, "delivery_run", err, map[string]any{
		"phase":     phase,
		"trigger":   trigger,
		"processed": stats.Processed,
		"failed":    stats.Failed,
		"skipped":   stats.Skipped,
	})
	return stats, err
}

func (w *DeliveryWorker) processWebhookEvents(ctx context.Context) (RunStats, error) {
	var stats RunStats
	if w.webhooks == nil {
		return stats, nil
	}
	events, err := w.webhooks.FetchOldest(ctx, w.config.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("core: fetch webhook events: %w", err)
	}

	var runErr error
	for i, event := range events {
		if ctx.Err() != nil {
			stats.Skipped += len(events) - i
			runErr = joinErrors(runErr, ctx.Err())
			break
		}
		if err := w.handler.Handle(ctx, event); err != nil {
			stats.Failed++
			w.logWarn(ctx, "webhook event handling failed", map[string]any{
				"webhook_event_id": event.ID,
				"event_type":       event.EventType,
				"error":            err.Error(),
			})
			continue
		}
		if _, err := w.webhooks.Delete(ctx, event.ID); err != nil {
			runErr = joinErrors(runErr, fmt.Errorf("core: delete webhook event %s: %w", event.ID, err))
		}
		stats.Processed++
	}
	w.countDelivery(ctx, MetricWebhookEventsDone, stats.Processed, nil)
	return stats, runErr
}

type stagedEmail struct {
	task    PostNotificationTask
	message OutboundEmail
}

func (w *DeliveryWorker) processPostNotifications(ctx context.Context) (RunStats, error) {
	var stats RunStats
	if w.posts == nil {
		return stats, nil
	}
	tasks, err := w.posts.FetchOldest(ctx, w.config.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("core: fetch post notifications: %w", err)
	}
	if len(tasks) == 0 {
		return stats, nil
	}
	if w.provider == nil || !w.provider.Configured() {
		stats.Skipped = len(tasks)
		w.logWarn(ctx, "delivery provider not configured, leaving notifications queued", map[string]any{
			"pending": len(tasks),
		})
		return stats, nil
	}

	var runErr error
	staged := make([]stagedEmail, 0, len(tasks))
	for _, group := range groupTasksByPost(tasks) {
		post, err := w.content.GetPost(ctx, group.postID)
		if errors.Is(err, ErrRecordNotFound) {
			stats.Failed += len(group.tasks)
			if _, err := w.posts.Delete(ctx, taskIDs(group.tasks)...); err != nil {
				runErr = joinErrors(runErr, fmt.Errorf("core: discard notifications for post %s: %w", group.postID, err))
			}
			w.logWarn(ctx, "post no longer exists, discarding notifications", map[string]any{
				"post_id":   group.postID,
				"discarded": len(group.tasks),
			})
			w.countDelivery(ctx, MetricEmailsDiscarded, len(group.tasks), nil)
			continue
		}
		if err != nil {
			stats.Failed += len(group.tasks)
			w.logWarn(ctx, "post lookup failed, notifications stay queued", map[string]any{
				"post_id": group.postID,
				"error":   err.Error(),
			})
			continue
		}
		for _, task := range group.tasks {
			message, err := w.renderer.RenderPostNotification(ctx, post, task)
			if err != nil {
				stats.Failed++
				w.logWarn(ctx, "notification render failed", map[string]any{
					"task_id": task.ID,
					"post_id": task.PostID,
					"error":   err.Error(),
				})
				continue
			}
			message.TaskID = task.ID
			staged = append(staged, stagedEmail{task: task, message: message})
		}
	}

	chunks := chunkStaged(staged, w.config.ProviderBatchLimit)
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			stats.Skipped += remaining(chunks[i:])
			runErr = joinErrors(runErr, ctx.Err())
			break
		}
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx, 1); err != nil {
				stats.Skipped += remaining(chunks[i:])
				runErr = joinErrors(runErr, err)
				break
			}
		}

		messages := make([]OutboundEmail, 0, len(chunk))
		for _, item := range chunk {
			messages = append(messages, item.message)
		}
		if _, err := w.provider.SendBatch(ctx, messages); err != nil {
			if IsNotConfigured(err) {
				stats.Skipped += remaining(chunks[i:])
				break
			}
			stats.Failed += len(chunk)
			w.countDelivery(ctx, MetricEmailsFailed, len(chunk), err)
			w.logWarn(ctx, "provider batch send failed, chunk stays queued", map[string]any{
				"chunk":      i,
				"chunk_size": len(chunk),
				"error":      err.Error(),
				"error_code": TextCode(err),
			})
			continue
		}

		ids := make([]string, 0, len(chunk))
		for _, item := range chunk {
			ids = append(ids, item.task.ID)
		}
		if _, err := w.posts.Delete(ctx, ids...); err != nil {
			runErr = joinErrors(runErr, fmt.Errorf("core: delete sent notifications: %w", err))
			w.logError(ctx, "sent notifications could not be removed and may be resent", map[string]any{
				"chunk":      i,
				"chunk_size": len(chunk),
				"error":      err.Error(),
			})
		}
		stats.Processed += len(chunk)
		w.countDelivery(ctx, MetricEmailsSent, len(chunk), nil)
	}
	return stats, runErr
}

type postTaskGroup struct {
	postID string
	tasks  []PostNotificationTask
}

// groupTasksByPost keeps the queue's FIFO order across groups.
func groupTasksByPost(tasks []PostNotificationTask) []postTaskGroup {
	index := map[string]int{}
	groups := make([]postTaskGroup, 0)
	for _, task := range tasks {
		position, ok := index[task.PostID]
		if !ok {
			position = len(groups)
			index[task.PostID] = position
			groups = append(groups, postTaskGroup{postID: task.PostID})
		}
		groups[position].tasks = append(groups[position].tasks, task)
	}
	return groups
}

func chunkStaged(items []stagedEmail, size int) [][]stagedEmail {
	if size <= 0 {
		size = defaultProviderBatchLimit
	}
	chunks := make([][]stagedEmail, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func remaining(chunks [][]stagedEmail) int {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	return total
}

func taskIDs(tasks []PostNotificationTask) []string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func (w *DeliveryWorker) emitHook(ctx context.Context, fn func(DeliveryRunHook)) {
	for _, hook := range w.hooks {
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					w.logError(ctx, "delivery run hook panicked", map[string]any{"panic": fmt.Sprint(recovered)})
				}
			}()
			fn(hook)
		}()
	}
}

func (w *DeliveryWorker) clock() time.Time {
	if w != nil && w.now != nil {
		return w.now().UTC()
	}
	return time.Now().UTC()
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %w", existing, next)
}

// withoutDeadline drops the budget expiry leaves of a joined run error and
// keeps every other failure.
func withoutDeadline(err error) error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var kept error
		for _, child := range joined.Unwrap() {
			kept = joinErrors(kept, withoutDeadline(child))
		}
		return kept
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
