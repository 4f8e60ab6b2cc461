package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/listingsync/internal/domain/integration"
)

func TestInMemoryListingLocker_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("locks are per listing", func(t *testing.T) {
		locker := NewInMemoryListingLocker(LockOptions{Wait: -1})
		first, second := uuid.New(), uuid.New()

		releaseFirst, err := locker.Acquire(ctx, first)
		require.NoError(t, err)
		releaseSecond, err := locker.Acquire(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, 2, locker.Size())

		releaseFirst()
		releaseSecond()
		assert.Zero(t, locker.Size())
	})

	t.Run("busy listing reports ErrListingLocked after the wait", func(t *testing.T) {
		locker := NewInMemoryListingLocker(LockOptions{Wait: 20 * time.Millisecond})
		id := uuid.New()

		release, err := locker.Acquire(ctx, id)
		require.NoError(t, err)
		defer release()

		_, err = locker.Acquire(ctx, id)
		assert.ErrorIs(t, err, integration.ErrListingLocked)
	})

	t.Run("waiter proceeds once the holder releases", func(t *testing.T) {
		locker := NewInMemoryListingLocker(LockOptions{Wait: time.Second})
		id := uuid.New()

		release, err := locker.Acquire(ctx, id)
		require.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			release()
		}()

		releaseAgain, err := locker.Acquire(ctx, id)
		require.NoError(t, err)
		releaseAgain()
	})

	t.Run("release is idempotent", func(t *testing.T) {
		locker := NewInMemoryListingLocker(LockOptions{})
		id := uuid.New()

		release, err := locker.Acquire(ctx, id)
		require.NoError(t, err)
		release()
		release()

		next, err := locker.Acquire(ctx, id)
		require.NoError(t, err)
		release()
		assert.Equal(t, 1, locker.Size(), "stale release must not free the new holder")
		next()
	})

	t.Run("cancelled context", func(t *testing.T) {
		locker := NewInMemoryListingLocker(LockOptions{Wait: time.Second})
		id := uuid.New()
		release, err := locker.Acquire(ctx, id)
		require.NoError(t, err)
		defer release()

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = locker.Acquire(cctx, id)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestInMemoryListingLocker_MutualExclusion(t *testing.T) {
	locker := NewInMemoryListingLocker(LockOptions{Wait: 5 * time.Second})
	id := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), id)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}
