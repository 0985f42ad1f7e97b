package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*redis.Locker, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return redis.NewLocker(client, "arbor:"), mr
}

func TestLocker_AcquireRelease(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "telegram:42", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("arbor:lock:telegram:42"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("arbor:lock:telegram:42"))
}

func TestLocker_HeldLockBlocksUntilTimeout(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "web:1", 5*time.Second)
	require.NoError(t, err)
	defer func() { _ = unlock(ctx) }()

	// A second holder must not acquire while the first holds the key.
	shortCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(shortCtx, "web:1", 5*time.Second)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)
}

func TestLocker_ExpiredLockIsReacquirable(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	_, err := locker.Lock(ctx, "web:2", time.Second)
	require.NoError(t, err)

	// The first holder crashed; its key expires via TTL.
	mr.FastForward(2 * time.Second)

	unlock, err := locker.Lock(ctx, "web:2", time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestLocker_UnlockIgnoresStolenKey(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "web:3", time.Second)
	require.NoError(t, err)

	// Simulate expiry plus reacquisition by someone else.
	mr.FastForward(2 * time.Second)
	unlock2, err := locker.Lock(ctx, "web:3", 5*time.Second)
	require.NoError(t, err)

	// The stale holder's unlock must not delete the new holder's key.
	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("arbor:lock:web:3"))

	require.NoError(t, unlock2(ctx))
}
