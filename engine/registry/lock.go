package registry

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// pathLock serializes access to one on-disk path: an in-process RWMutex
// gives concurrent readers and an exclusive writer within this process
// (the single-writer invariant), and a gofrs/flock file lock extends that
// exclusivity to any other process sharing the same projects-file,
// mirroring the acquire/release shape of the upstream distributed
// LockManager but scoped to a local path instead of a Redis key.
type pathLock struct {
	mu   sync.RWMutex
	file *flock.Flock
}

var (
	pathLocksMu sync.Mutex
	pathLocks   = map[string]*pathLock{}
)

// newPathLock returns the process-wide pathLock for path, keyed by its
// resolved absolute path, so every Store opened on the same file shares it.
func newPathLock(path string) *pathLock {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	pathLocksMu.Lock()
	defer pathLocksMu.Unlock()
	if l, ok := pathLocks[key]; ok {
		return l
	}
	l := &pathLock{file: flock.New(path + ".lock")}
	pathLocks[key] = l
	return l
}

// acquireWrite blocks until the in-process write lock is held, then tries
// the OS file lock once without waiting, returning a release function. If
// another process holds the OS lock, the write proceeds under the
// in-process mutex alone, which still serializes this process's own
// writers. An error from the OS lock attempt releases the in-process lock
// and is returned.
func (l *pathLock) acquireWrite() (func(), error) {
	l.mu.Lock()
	locked, err := l.file.TryLock()
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("acquire file lock: %w", err)
	}
	release := func() {
		if locked {
			_ = l.file.Unlock()
		}
		l.mu.Unlock()
	}
	return release, nil
}

// acquireRead blocks until the in-process read lock is held. Reads do not
// take the OS file lock: they are safe to run concurrently with each other
// and only need to be excluded from an in-flight write by this process.
func (l *pathLock) acquireRead() func() {
	l.mu.RLock()
	return l.mu.RUnlock
}
