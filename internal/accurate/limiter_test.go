package accurate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock advances only when a waiter sleeps, so pacing behavior is
// deterministic regardless of scheduler jitter.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func TestRateLimiterPacing(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(8, 8)
	limiter.SetClock(clock.now, clock.sleep)

	ctx := context.Background()
	var grants []time.Time
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Acquire(ctx))
		grants = append(grants, clock.now())
		limiter.Release()
	}

	for i := 1; i < len(grants); i++ {
		gap := grants[i].Sub(grants[i-1])
		require.GreaterOrEqual(t, gap, 125*time.Millisecond, "grant %d too close to previous", i)
	}
}

func TestRateLimiterConcurrencyBound(t *testing.T) {
	// High request rate so only the concurrency gate is exercised.
	limiter := NewRateLimiter(8, 100000)

	var active, peak int64
	var wg sync.WaitGroup
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, limiter.Acquire(ctx))
			cur := atomic.AddInt64(&active, 1)
			for {
				prev := atomic.LoadInt64(&peak)
				if cur <= prev || atomic.CompareAndSwapInt64(&peak, prev, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&active, -1)
			limiter.Release()
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(8))
}

func TestRateLimiterAcquireHonorsCancellation(t *testing.T) {
	limiter := NewRateLimiter(1, 8)

	ctx := context.Background()
	require.NoError(t, limiter.Acquire(ctx))

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := limiter.Acquire(cancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	limiter.Release()

	// The slot freed above must be grantable again.
	require.NoError(t, limiter.Acquire(ctx))
	limiter.Release()
}
