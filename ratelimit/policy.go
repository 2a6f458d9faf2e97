package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-initiatives/core"
)

type ThrottledError struct {
	Provider   string
	Bucket     string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: %s/%s throttled for %s", e.Provider, e.Bucket, e.RetryAfter)
}

// ToServiceError maps the throttle to PROVIDER_RATE_LIMITED with a
// retry_after_ms hint.
func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{"provider": e.Provider, "bucket": e.Bucket}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ErrorProviderRateLimited).
		WithMetadata(metadata)
}

// AdaptivePolicy remembers provider throttling between worker runs. A 429,
// or a response advertising an exhausted quota, closes the bucket until the
// provider's hint expires; without a hint the delay doubles per consecutive
// throttle, capped at MaxBackoff.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:          store,
		Now:            time.Now,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

// BeforeCall returns a ThrottledError while the bucket is closed.
func (p *AdaptivePolicy) BeforeCall(ctx context.Context, key Key) error {
	if p == nil || p.Store == nil {
		return nil
	}
	state, err := p.Store.Get(ctx, NormalizeKey(key))
	if errors.Is(err, ErrStateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if wait, closed := state.throttledAt(p.now()); closed {
		return ThrottledError{Provider: state.Key.Provider, Bucket: state.Key.Bucket, RetryAfter: wait}
	}
	return nil
}

// AfterCall folds a provider response into the bucket state.
func (p *AdaptivePolicy) AfterCall(ctx context.Context, key Key, res ResponseMeta) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key = NormalizeKey(key)
	state, err := p.Store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrStateNotFound):
		state = State{Key: key}
	case err != nil:
		return err
	}

	now := p.now()
	q := readQuota(res, now)
	state.LastStatus = res.StatusCode
	state.UpdatedAt = now
	if state.Metadata == nil {
		state.Metadata = map[string]any{}
	}
	maps.Copy(state.Metadata, res.Metadata)
	if q.hasLimit {
		state.Limit = q.limit
	}
	if q.hasRemaining {
		state.Remaining = q.remaining
	}
	if q.hasReset {
		state.ResetAt = &q.resetAt
	}
	state.RetryAfter = nil
	if q.hasRetry {
		state.RetryAfter = &q.retryAfter
	}

	if !q.exhausted(res.StatusCode, state.Remaining) {
		state.Attempts = 0
		state.ThrottledUntil = nil
		return p.Store.Upsert(ctx, state)
	}
	state.Attempts++
	delay := q.retryAfter
	if !q.hasRetry {
		delay = p.backoff(state.Attempts)
	}
	until := now.Add(delay)
	state.ThrottledUntil = &until
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) backoff(attempt int) time.Duration {
	delay, ceiling := p.InitialBackoff, p.MaxBackoff
	if delay <= 0 {
		delay = time.Second
	}
	if ceiling <= 0 {
		ceiling = time.Minute
	}
	for i := 1; i < attempt && delay < ceiling; i++ {
		delay *= 2
	}
	return min(delay, ceiling)
}
