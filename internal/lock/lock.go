// Package lock provides the mutual-exclusion primitive serializing all
// writes to a shared coordination root. The primitive is an interface so
// the coordinator can run against an in-process mutex in tests and a
// cross-process file lock in production.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLockTimeout is returned when the bounded wait for the lock expires.
// Callers can retry or surface the condition; they are never blocked
// indefinitely.
var ErrLockTimeout = errors.New("timed out waiting for coordination lock")

// Locker grants exclusive access to the shared state root. Acquire blocks
// up to the locker's configured wait and returns a release function.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// MutexLocker is an in-process Locker for tests and single-process
// simulation harnesses.
type MutexLocker struct {
	timeout time.Duration
	sem     chan struct{}
}

// NewMutexLocker creates an in-process locker with the given bounded wait.
func NewMutexLocker(timeout time.Duration) *MutexLocker {
	return &MutexLocker{
		timeout: timeout,
		sem:     make(chan struct{}, 1),
	}
}

// Acquire takes the lock or fails with ErrLockTimeout.
func (l *MutexLocker) Acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire lock: %w", ctx.Err())
	}
}
