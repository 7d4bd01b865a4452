// Package ratelimit provides a sliding-window admission controller for
// outbound provider calls. At any instant no more than maxCalls recorded
// timestamps fall within the trailing window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Limiter struct {
	maxCalls int
	window   time.Duration

	mu     sync.Mutex
	stamps []time.Time
}

func New(maxCalls int, window time.Duration) *Limiter {
	if maxCalls <= 0 {
		maxCalls = 1
	}
	if window <= 0 {
		window = time.Second
	}

	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
	}
}

// Acquire blocks until a slot is free under the (maxCalls, window) policy,
// then records the call. It never fails on its own; the only error it can
// return is ctx.Err() when the caller's context is cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire(time.Now())
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire evicts expired timestamps and either records now (admitted) or
// returns how long to wait for the oldest remaining timestamp to expire.
func (l *Limiter) tryAcquire(now time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evict(now)

	if len(l.stamps) < l.maxCalls {
		l.stamps = append(l.stamps, now)
		return 0, true
	}

	wait := l.stamps[0].Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// evict must be called with l.mu held.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)

	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

// InFlight returns the number of calls recorded within the trailing window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evict(time.Now())
	return len(l.stamps)
}
