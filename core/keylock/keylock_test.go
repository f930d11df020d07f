package keylock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_SerialisesSameKey(t *testing.T) {
	var l Locker
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "discord:1")
			require.NoError(t, err)
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
	assert.Equal(t, 0, l.Held())
}

func TestAcquire_DifferentKeysRunInParallel(t *testing.T) {
	var l Locker
	release, err := l.Acquire(context.Background(), "discord:1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	other, err := l.Acquire(ctx, "discord:2")
	require.NoError(t, err)
	other()
}

func TestAcquire_ContextCancelledWhileWaiting(t *testing.T) {
	var l Locker
	release, err := l.Acquire(context.Background(), "ckey:alice")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "discord:9", "ckey:alice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Equal(t, 0, l.Held())
}

func TestAcquire_DuplicateKeysAndDoubleRelease(t *testing.T) {
	var l Locker
	release, err := l.Acquire(context.Background(), "a", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, l.Held())

	release()
	release()
	assert.Equal(t, 0, l.Held())
}
