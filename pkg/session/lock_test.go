package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/ports"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("telegram:%d", i)
		_ = mgr.WithLock(ctx, key, func(ctx context.Context) error { return nil })
	}

	// If reference counting works, the map is empty once the turns end.
	if leaked := len(mgr.locks); leaked != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining after %d turns", leaked, count)
	}
}

// recordingLocker captures lock/unlock calls for assertion.
type recordingLocker struct {
	locked   []string
	unlocked []string
}

func (r *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	r.locked = append(r.locked, key)
	return func(ctx context.Context) error {
		r.unlocked = append(r.unlocked, key)
		return nil
	}, nil
}

func TestManager_DistributedLockerInvoked(t *testing.T) {
	locker := &recordingLocker{}
	mgr := NewManager(WithLocker(locker))

	err := mgr.WithLock(context.Background(), "web:7", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}

	if len(locker.locked) != 1 || locker.locked[0] != "web:7" {
		t.Errorf("expected one distributed lock on web:7, got %v", locker.locked)
	}
	if len(locker.unlocked) != 1 {
		t.Errorf("expected distributed lock released, got %v", locker.unlocked)
	}
}
