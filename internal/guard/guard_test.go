package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := rl.Check(ctx, "test-key")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	ctx := context.Background()

	rl.Check(ctx, "test-key")
	rl.Check(ctx, "test-key")
	result := rl.Check(ctx, "test-key")

	assert.False(t, result.Allowed)
	assert.Equal(t, "rate_limiter", result.Guard)
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	ctx := context.Background()

	r1 := rl.Check(ctx, "key-a")
	r2 := rl.Check(ctx, "key-b")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, rl.Check(ctx, "k").Allowed)
	assert.False(t, rl.Check(ctx, "k").Allowed)

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Check(ctx, "k").Allowed)
}

func TestRateLimiter_ZeroLimitDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Check(context.Background(), "k").Allowed)
	}
}

func TestLocalLease_Exclusive(t *testing.T) {
	lease := NewLocalLease()
	ctx := context.Background()

	release, ok, err := lease.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	again, ok, err := lease.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, again)

	require.NoError(t, release(ctx))
	_, ok, err = lease.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLease_DoubleReleaseIsSafe(t *testing.T) {
	lease := NewLocalLease()
	ctx := context.Background()

	release, ok, _ := lease.TryAcquire(ctx)
	require.True(t, ok)
	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	// A stale release must not free a lease taken by someone else.
	_, ok, _ = lease.TryAcquire(ctx)
	require.True(t, ok)
	require.NoError(t, release(ctx))
	_, ok, _ = lease.TryAcquire(ctx)
	assert.False(t, ok)
}

func TestLocalLease_OneHolderUnderContention(t *testing.T) {
	lease := NewLocalLease()
	ctx := context.Background()

	var holders, maxHolders atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, ok, err := lease.TryAcquire(ctx)
			if err != nil || !ok {
				return
			}
			n := holders.Add(1)
			for {
				m := maxHolders.Load()
				if n <= m || maxHolders.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			holders.Add(-1)
			_ = release(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxHolders.Load())
}
