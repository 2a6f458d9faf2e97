package gojob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-initiatives/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/hibiken/asynq"
)

const DefaultQueueName = "initiatives"

type taskPayload struct {
	JobID          string         `json:"job_id"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	DedupPolicy    string         `json:"dedup_policy,omitempty"`
}

// NewTask encodes msg as an asynq task whose type is the job id.
func NewTask(msg *job.ExecutionMessage) (*asynq.Task, error) {
	if msg == nil {
		return nil, fmt.Errorf("gojob: execution message is required")
	}
	jobID := strings.TrimSpace(msg.JobID)
	if jobID == "" {
		return nil, fmt.Errorf("gojob: job id is required")
	}
	payload, err := json.Marshal(taskPayload{
		JobID:          jobID,
		Parameters:     msg.Parameters,
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	})
	if err != nil {
		return nil, fmt.Errorf("gojob: encode task payload: %w", err)
	}
	return asynq.NewTask(jobID, payload), nil
}

func MessageFromTask(task *asynq.Task) (*job.ExecutionMessage, error) {
	if task == nil {
		return nil, fmt.Errorf("gojob: task is required")
	}
	var payload taskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("gojob: decode task payload: %w", err)
	}
	if payload.JobID == "" {
		payload.JobID = task.Type()
	}
	return &job.ExecutionMessage{
		JobID:          payload.JobID,
		Parameters:     payload.Parameters,
		IdempotencyKey: payload.IdempotencyKey,
		DedupPolicy:    job.DeduplicationPolicy(payload.DedupPolicy),
	}, nil
}

var _ queue.Enqueuer = (*AsynqEnqueuer)(nil)

type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqEnqueuer is a go-job queue.Enqueuer backed by asynq. The idempotency
// key becomes the asynq task id, so a duplicate run is dropped by redis.
type AsynqEnqueuer struct {
	client TaskClient
	queue  string
	policy RetryPolicy
}

func NewAsynqEnqueuer(client TaskClient, queueName string, policy RetryPolicy) *AsynqEnqueuer {
	queueName = strings.TrimSpace(queueName)
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &AsynqEnqueuer{client: client, queue: queueName, policy: policy}
}

func (e *AsynqEnqueuer) Enqueue(ctx context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	if e == nil || e.client == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: asynq client is not configured")
	}
	task, err := NewTask(msg)
	if err != nil {
		return queue.EnqueueReceipt{}, err
	}
	opts := []asynq.Option{asynq.Queue(e.queue)}
	if e.policy.MaxAttempts > 0 {
		opts = append(opts, asynq.MaxRetry(e.policy.MaxAttempts-1))
	}
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key != "" {
		opts = append(opts, asynq.TaskID(key))
	}
	enqueuedAt := time.Now().UTC()
	info, err := e.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) && string(msg.DedupPolicy) == DedupPolicyDrop {
		return queue.EnqueueReceipt{DispatchID: key, EnqueuedAt: enqueuedAt}, nil
	}
	if err != nil {
		return queue.EnqueueReceipt{}, err
	}
	receipt := queue.EnqueueReceipt{DispatchID: key, EnqueuedAt: enqueuedAt}
	if info != nil && info.ID != "" {
		receipt.DispatchID = info.ID
	}
	return receipt, nil
}

// ProcessTask lets a RunHandler serve as an asynq handler.
func (h *RunHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	msg, err := MessageFromTask(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	retried, _ := asynq.GetRetryCount(ctx)
	_, err = h.Handle(ctx, msg, retried+1)
	if err != nil && !retryable(err) {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return err
}

// RetryDelayFunc exposes the policy to the asynq server configuration.
func (p RetryPolicy) RetryDelayFunc() asynq.RetryDelayFunc {
	return func(n int, err error, _ *asynq.Task) time.Duration {
		return p.Delay(n, err)
	}
}

func retryable(err error) bool {
	mapped := core.MapError(err)
	if mapped == nil {
		return false
	}
	switch mapped.Category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return false
	}
	return true
}

var (
	_ queue.Enqueuer = (*AsynqEnqueuer)(nil)
	_ asynq.Handler  = (*RunHandler)(nil)
	_ TaskClient     = (*asynq.Client)(nil)
)
