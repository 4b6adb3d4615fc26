package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxntd/pkg/errors"
)

func TestMutex_LockUnlock(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, nil)
	ctx := context.Background()

	lock := factory.NewMutex("watch:/data/in/a.tsv", WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))
	assert.True(t, mr.Exists("rxntd:lock:watch:/data/in/a.tsv"))

	ttl, err := lock.TTL(ctx)
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, lock.Unlock(ctx))
	assert.False(t, mr.Exists("rxntd:lock:watch:/data/in/a.tsv"))
}

func TestMutex_Contention(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, nil)
	ctx := context.Background()

	first := factory.NewMutex("f", WithRetryCount(1), WithRetryDelay(10*time.Millisecond))
	second := factory.NewMutex("f", WithRetryCount(1), WithRetryDelay(10*time.Millisecond))

	require.NoError(t, first.Lock(ctx))
	err := second.Lock(ctx)
	assert.Equal(t, ErrLockNotAcquired, err)

	ok, err := second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, ErrLockNotHeld, second.Unlock(ctx))

	require.NoError(t, first.Unlock(ctx))
	require.NoError(t, second.Lock(ctx))
}

func TestMutex_Extend(t *testing.T) {
	client, mr := newTestClient(t)
	lock := NewLockFactory(client, nil).NewMutex("e", WithLockTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, lock.Lock(ctx))
	ok, err := lock.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, mr.TTL("rxntd:lock:e"), 30*time.Second)

	mr.FastForward(2 * time.Minute)
	ok, err = lock.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMutex_LockCancelled(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, nil)

	holder := factory.NewMutex("c")
	require.NoError(t, holder.Lock(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := factory.NewMutex("c", WithRetryDelay(time.Second)).Lock(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCancelled))
}

func TestMutex_Watchdog(t *testing.T) {
	client, _ := newTestClient(t)
	lock := NewLockFactory(client, nil).NewMutex("w",
		WithLockTTL(300*time.Millisecond), WithWatchdog(true), WithWatchdogInterval(50*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, lock.Lock(ctx))
	time.Sleep(200 * time.Millisecond)
	ttl, err := lock.TTL(ctx)
	require.NoError(t, err)
	assert.Greater(t, ttl, 150*time.Millisecond)
	require.NoError(t, lock.Unlock(ctx))
}
