package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemorySlidingWindow admits at most Limit units per Window inside one
// process. Units are provider requests; the delivery worker waits for one
// before every batch send.
type MemorySlidingWindow struct {
	Limit  int
	Window time.Duration
	Now    func() time.Time
	Sleep  func(ctx context.Context, delay time.Duration) error

	mu     sync.Mutex
	stamps []time.Time
}

func NewMemorySlidingWindow(limit int, window time.Duration) *MemorySlidingWindow {
	return &MemorySlidingWindow{
		Limit:  limit,
		Window: window,
		Now:    func() time.Time { return time.Now().UTC() },
		Sleep:  sleepContext,
	}
}

// Wait blocks until n units fit in the window. Requests larger than the
// limit are clamped so they can never wait forever.
func (w *MemorySlidingWindow) Wait(ctx context.Context, n int) error {
	if w == nil || n <= 0 {
		return nil
	}
	if w.Limit <= 0 || w.Window <= 0 {
		return fmt.Errorf("ratelimit: window requires a positive limit and duration")
	}
	if n > w.Limit {
		n = w.Limit
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delay := w.reserve(n)
		if delay <= 0 {
			return nil
		}
		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// InFlight reports how many units are currently counted in the window.
func (w *MemorySlidingWindow) InFlight() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(w.now())
	return len(w.stamps)
}

func (w *MemorySlidingWindow) reserve(n int) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)
	if len(w.stamps)+n <= w.Limit {
		for i := 0; i < n; i++ {
			w.stamps = append(w.stamps, now)
		}
		return 0
	}
	blocking := w.stamps[len(w.stamps)+n-w.Limit-1]
	delay := blocking.Add(w.Window).Sub(now)
	if delay <= 0 {
		delay = time.Millisecond
	}
	return delay
}

func (w *MemorySlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.Window)
	keep := 0
	for keep < len(w.stamps) && !w.stamps[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[keep:]...)
	}
}

func (w *MemorySlidingWindow) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func (w *MemorySlidingWindow) sleep(ctx context.Context, delay time.Duration) error {
	if w.Sleep != nil {
		return w.Sleep(ctx, delay)
	}
	return sleepContext(ctx, delay)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
