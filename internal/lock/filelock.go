// internal/lock/filelock.go
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// retryDelay is how often a waiter re-attempts the OS lock.
const retryDelay = 25 * time.Millisecond

// FileLocker is a cross-process advisory lock on <root>/coordination.lock.
// The kernel releases the lock when the holding process exits, so a
// crashed holder never deadlocks waiters. The wait is bounded: acquisition
// fails with ErrLockTimeout instead of blocking forever.
type FileLocker struct {
	path    string
	timeout time.Duration
}

// NewFileLocker creates a file locker for the given state root.
func NewFileLocker(root string, timeout time.Duration) *FileLocker {
	return &FileLocker{
		path:    filepath.Join(root, "coordination.lock"),
		timeout: timeout,
	}
}

// Acquire takes the advisory lock or fails with ErrLockTimeout.
func (l *FileLocker) Acquire(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	fl := flock.New(l.path)
	locked, err := fl.TryLockContext(lockCtx, retryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, fmt.Errorf("acquire file lock: %w", err)
	}
	if !locked {
		return nil, ErrLockTimeout
	}
	return func() { _ = fl.Unlock() }, nil
}
