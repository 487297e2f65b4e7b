package accurate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// RateLimiter gates all outbound ERP traffic for the whole process. The
// quota is account-wide on the Accurate side, so there is exactly one
// limiter shared by every credential and every caller: at most
// maxConcurrent calls in flight and at least one pacing interval between
// consecutive grants.
type RateLimiter struct {
	sem      *semaphore.Weighted
	interval time.Duration

	mu        sync.Mutex
	lastGrant time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter builds a limiter allowing maxConcurrent in-flight calls
// and requestsPerSecond sustained.
func NewRateLimiter(maxConcurrent int64, requestsPerSecond int) *RateLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 8
	}
	return &RateLimiter{
		sem:      semaphore.NewWeighted(maxConcurrent),
		interval: time.Second / time.Duration(requestsPerSecond),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// SetClock replaces the time source and sleeper, for deterministic tests.
func (l *RateLimiter) SetClock(now func() time.Time, sleep func(context.Context, time.Duration) error) {
	l.now = now
	l.sleep = sleep
}

// Acquire blocks until a concurrency slot is free and the pacing interval
// since the previous grant has elapsed. On success the caller owns one
// slot and must call Release on every exit path.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	for {
		l.mu.Lock()
		now := l.now()
		wait := l.interval - now.Sub(l.lastGrant)
		if wait <= 0 {
			l.lastGrant = now
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()
		if err := l.sleep(ctx, wait); err != nil {
			l.sem.Release(1)
			return err
		}
	}
}

// Release frees the concurrency slot taken by Acquire.
func (l *RateLimiter) Release() {
	l.sem.Release(1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
