package sandbox

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrLocked is returned when the lock is held by another process.
var ErrLocked = errors.New("sandbox is locked by another process")

// FileLock provides flock-based locking of a staging directory across
// processes. The lock file lives next to the locked path.
type FileLock struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewFileLock creates a new file lock for path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() bool {
	if !l.mu.TryLock() {
		return false
	}

	file, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		l.mu.Unlock()
		return false
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		l.mu.Unlock()
		return false
	}

	l.file = file
	return true
}

// LockWithin retries TryLock with exponential backoff until it succeeds or
// timeout elapses.
func (l *FileLock) LockWithin(timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = timeout

	return backoff.Retry(func() error {
		if l.TryLock() {
			return nil
		}
		return ErrLocked
	}, b)
}

// Unlock releases the lock. The lock file is left in place so that a
// waiting process never locks an unlinked inode.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	err := l.file.Close()

	l.file = nil
	l.mu.Unlock()

	return err
}
