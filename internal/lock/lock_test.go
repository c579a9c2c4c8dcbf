package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMutexLockerExclusion(t *testing.T) {
	locker := NewMutexLocker(50 * time.Millisecond)

	release, err := locker.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// A second acquire must time out while the lock is held.
	if _, err := locker.Acquire(context.Background()); !errors.Is(err, ErrLockTimeout) {
		t.Errorf("second acquire returned %v, want ErrLockTimeout", err)
	}

	release()
	release2, err := locker.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release2()
}

func TestMutexLockerContextCancel(t *testing.T) {
	locker := NewMutexLocker(time.Minute)

	release, err := locker.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := locker.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("acquire on cancelled context returned %v", err)
	}
}

func TestFileLockerAcquireRelease(t *testing.T) {
	root := t.TempDir()
	locker := NewFileLocker(root, time.Second)

	release, err := locker.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	release()

	// Reacquirable after release.
	release, err = locker.Acquire(context.Background())
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	release()
}

func TestFileLockerCreatesStateDir(t *testing.T) {
	root := t.TempDir() + "/nested/state"
	locker := NewFileLocker(root, time.Second)

	release, err := locker.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire with missing dir failed: %v", err)
	}
	release()
}
