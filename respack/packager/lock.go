package packager

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
)

// FileLock guards an output directory against concurrent builds.
type FileLock interface {
	TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error)
	Unlock() error
}

// LockFactory creates the lock for an output directory's lock file.
type LockFactory func(path string) FileLock

type flockWrapper struct {
	flock *flock.Flock
}

func (f *flockWrapper) TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error) {
	return f.flock.TryLockContext(ctx, retryInterval)
}

func (f *flockWrapper) Unlock() error {
	return f.flock.Unlock()
}

// FlockFactory locks real files with flock(2).
func FlockFactory(path string) FileLock {
	return &flockWrapper{flock: flock.New(path)}
}

type noopLock struct{}

func (noopLock) TryLockContext(context.Context, time.Duration) (bool, error) { return true, nil }
func (noopLock) Unlock() error                                               { return nil }

// NoopFactory is used for filesystems no other process can see.
func NoopFactory(string) FileLock { return noopLock{} }

// defaultLockFactory picks flock for the OS filesystem.
func defaultLockFactory(fs afero.Fs) LockFactory {
	if _, ok := fs.(*afero.OsFs); ok {
		return FlockFactory
	}
	return NoopFactory
}

const lockRetryInterval = 100 * time.Millisecond

func acquire(ctx context.Context, lock FileLock, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("failed to acquire output lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("could not acquire output lock")
	}
	return nil
}
