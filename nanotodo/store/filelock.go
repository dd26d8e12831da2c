package store

import (
	"context"
	"time"

	"github.com/gofrs/flock"
)

// FileLock is an exclusive advisory lock shared between processes.
type FileLock interface {
	// TryLockContext retries every retryInterval until the lock is
	// acquired or ctx is done.
	TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error)
	Unlock() error
}

// FileLockFactory creates the lock guarding a given lock-file path.
type FileLockFactory interface {
	New(path string) FileLock
}

// FlockFactory creates locks backed by github.com/gofrs/flock.
type FlockFactory struct{}

// New implements FileLockFactory.New
func (FlockFactory) New(path string) FileLock {
	return flock.New(path)
}
