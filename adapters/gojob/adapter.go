package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-initiatives/command"
	"github.com/goliatone/go-initiatives/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDDeliveryRun = "initiatives.delivery.run"

	DedupPolicyDrop = "drop"

	paramPhase       = "phase"
	paramTrigger     = "trigger"
	paramScheduledAt = "scheduled_at"
)

// RetryPolicy bounds retries of a failed delivery run.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   10 * time.Second,
		MaxDelay:    5 * time.Minute,
	}
}

// Exhausted reports whether attempt was the last one allowed.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

// Delay returns how long to wait before retrying after attempt failed with
// err. A provider retry hint wins over exponential backoff.
func (p RetryPolicy) Delay(attempt int, err error) time.Duration {
	if hint := retryAfter(err); hint > 0 {
		return p.bound(hint)
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
	}
	return p.bound(delay)
}

func (p RetryPolicy) bound(delay time.Duration) time.Duration {
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func retryAfter(err error) time.Duration {
	if err == nil {
		return 0
	}
	mapped := core.MapError(err)
	if mapped == nil || mapped.Category != goerrors.CategoryRateLimit {
		return 0
	}
	switch value := mapped.Metadata["retry_after_ms"].(type) {
	case int64:
		return time.Duration(value) * time.Millisecond
	case int:
		return time.Duration(value) * time.Millisecond
	case float64:
		return time.Duration(value) * time.Millisecond
	}
	return 0
}

// NewRunMessage maps a delivery run onto a go-job message. Runs scheduled in
// the same minute for the same phase share an idempotency key.
func NewRunMessage(run command.RunDeliveryMessage, at time.Time) *job.ExecutionMessage {
	phase := strings.TrimSpace(run.Phase)
	if phase == "" {
		phase = core.RunPhaseAll
	}
	at = at.UTC().Truncate(time.Minute)
	return &job.ExecutionMessage{
		JobID: JobIDDeliveryRun,
		Parameters: map[string]any{
			paramPhase:       phase,
			paramTrigger:     strings.TrimSpace(run.Trigger),
			paramScheduledAt: at.Format(time.RFC3339),
		},
		IdempotencyKey: fmt.Sprintf("%s:%s:%d", JobIDDeliveryRun, phase, at.Unix()),
		DedupPolicy:    job.DeduplicationPolicy(DedupPolicyDrop),
	}
}

// RunFromMessage decodes and validates a delivery run message.
func RunFromMessage(msg *job.ExecutionMessage) (command.RunDeliveryMessage, error) {
	if msg == nil {
		return command.RunDeliveryMessage{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDDeliveryRun {
		return command.RunDeliveryMessage{}, fmt.Errorf("gojob: unsupported job %q", msg.JobID)
	}
	run := command.RunDeliveryMessage{
		Phase:   stringParam(msg.Parameters, paramPhase),
		Trigger: stringParam(msg.Parameters, paramTrigger),
	}
	if err := run.Validate(); err != nil {
		return command.RunDeliveryMessage{}, err
	}
	return run, nil
}

func stringParam(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return strings.TrimSpace(value)
}

// RunScheduler publishes delivery runs to a go-job queue.
type RunScheduler struct {
	enqueuer queue.Enqueuer
	now      func() time.Time
}

func NewRunScheduler(enqueuer queue.Enqueuer) *RunScheduler {
	return &RunScheduler{
		enqueuer: enqueuer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *RunScheduler) Schedule(ctx context.Context, phase string, trigger string) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	run := command.RunDeliveryMessage{Phase: phase, Trigger: trigger}
	if err := run.Validate(); err != nil {
		return err
	}
	_, err := s.enqueuer.Enqueue(ctx, NewRunMessage(run, s.now()))
	return err
}

type RunHandlerOption func(*RunHandler)

func WithHooks(hooks ...worker.Hook) RunHandlerOption {
	return func(h *RunHandler) {
		for _, hook := range hooks {
			if hook != nil {
				h.hooks = append(h.hooks, hook)
			}
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) RunHandlerOption {
	return func(h *RunHandler) {
		h.policy = policy
	}
}

func WithClock(now func() time.Time) RunHandlerOption {
	return func(h *RunHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// RunHandler executes delivery run messages and reports each attempt to the
// registered worker hooks.
type RunHandler struct {
	command gocmd.Commander[command.RunDeliveryMessage]
	hooks   []worker.Hook
	policy  RetryPolicy
	now     func() time.Time
}

func NewRunHandler(cmd gocmd.Commander[command.RunDeliveryMessage], opts ...RunHandlerOption) *RunHandler {
	handler := &RunHandler{
		command: cmd,
		policy:  DefaultRetryPolicy(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

func (h *RunHandler) Policy() RetryPolicy {
	return h.policy
}

// Handle runs msg as attempt number attempt, starting at 1.
func (h *RunHandler) Handle(ctx context.Context, msg *job.ExecutionMessage, attempt int) (core.RunStats, error) {
	if h == nil || h.command == nil {
		return core.RunStats{}, fmt.Errorf("gojob: run command is not configured")
	}
	run, err := RunFromMessage(msg)
	if err != nil {
		return core.RunStats{}, err
	}

	event := worker.Event{
		Message:   msg,
		Attempt:   attempt,
		StartedAt: h.now(),
	}
	h.emit(ctx, event, worker.Hook.OnStart)

	collector := gocmd.NewResult[core.RunStats]()
	err = h.command.Execute(gocmd.ContextWithResult(ctx, collector), run)
	stats, _ := collector.Load()
	event.Duration = h.now().Sub(event.StartedAt)

	if err == nil {
		h.emit(ctx, event, worker.Hook.OnSuccess)
		return stats, nil
	}
	event.Err = err
	if h.policy.Exhausted(attempt) {
		h.emit(ctx, event, worker.Hook.OnFailure)
		return stats, err
	}
	event.Delay = h.policy.Delay(attempt, err)
	h.emit(ctx, event, worker.Hook.OnRetry)
	return stats, err
}

func (h *RunHandler) emit(ctx context.Context, event worker.Event, fn func(worker.Hook, context.Context, worker.Event)) {
	for _, hook := range h.hooks {
		fn(hook, ctx, event)
	}
}

// LogHook writes worker lifecycle events to a logger.
type LogHook struct {
	logger glog.Logger
}

func NewLogHook(logger glog.Logger) *LogHook {
	return &LogHook{logger: glog.Ensure(logger)}
}

func (h *LogHook) OnStart(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Debug("delivery run started", eventFields(event)...)
}

func (h *LogHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Info("delivery run finished", eventFields(event)...)
}

func (h *LogHook) OnFailure(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Error("delivery run failed", append(eventFields(event), "error", event.Err)...)
}

func (h *LogHook) OnRetry(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Warn("delivery run will retry", append(eventFields(event), "error", event.Err, "delay", event.Delay.String())...)
}

func eventFields(event worker.Event) []any {
	fields := []any{"attempt", event.Attempt}
	if event.Message != nil {
		fields = append(fields,
			"job_id", event.Message.JobID,
			"phase", stringParam(event.Message.Parameters, paramPhase),
			"trigger", stringParam(event.Message.Parameters, paramTrigger),
		)
	}
	if event.Duration > 0 {
		fields = append(fields, "duration", event.Duration.String())
	}
	return fields
}

var _ worker.Hook = (*LogHook)(nil)

var _ gocmd.Commander[command.RunDeliveryMessage] = (*command.RunDeliveryCommand)(nil)
