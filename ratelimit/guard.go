package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-initiatives/core"
)

// Guard puts the adaptive throttle state in front of a throughput window.
// A throttle that outlives the caller's deadline is returned as a rate
// limited service error instead of being slept through.
type Guard struct {
	Limiter core.SendLimiter
	Policy  *AdaptivePolicy
	Key     Key
	Sleep   func(ctx context.Context, delay time.Duration) error
}

func NewGuard(limiter core.SendLimiter, policy *AdaptivePolicy, key Key) *Guard {
	return &Guard{Limiter: limiter, Policy: policy, Key: NormalizeKey(key), Sleep: sleepContext}
}

func (g *Guard) Wait(ctx context.Context, n int) error {
	if g == nil {
		return nil
	}
	if err := g.waitThrottle(ctx); err != nil {
		return err
	}
	if g.Limiter == nil {
		return nil
	}
	return g.Limiter.Wait(ctx, n)
}

func (g *Guard) waitThrottle(ctx context.Context) error {
	if g.Policy == nil {
		return nil
	}
	err := g.Policy.BeforeCall(ctx, g.Key)
	if err == nil {
		return nil
	}
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < throttled.RetryAfter {
		return throttled.ToServiceError()
	}
	sleep := g.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, throttled.RetryAfter)
}

var (
	_ core.SendLimiter = (*MemorySlidingWindow)(nil)
	_ core.SendLimiter = (*RedisSlidingWindow)(nil)
	_ core.SendLimiter = (*Guard)(nil)
)
