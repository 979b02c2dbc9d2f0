package session

import (
	"context"
	"sync"
	"syscall"
	"time"

	"github.com/calvinalkan/lockguard/internal/region"
)

// fcntl byte-range locks are per (inode, process), not per file descriptor:
// a second fcntl lock taken by this same process on a range it already
// holds succeeds immediately rather than blocking, because the kernel
// doesn't see two different holders. Two goroutines in one process racing
// to open the same lock file would therefore both appear to win the OS
// lock. registryEntry plugs that hole with an in-process RWMutex keyed by
// file identity, acquired before the OS-level region lock and held for the
// session's lifetime — mirroring pkg/slotcache's fileRegistry in the
// teacher, generalized from a single whole-file writer lock to the
// independent shared/exclusive state-region lock this protocol needs.
type fileIdentity struct {
	dev uint64
	ino uint64
}

type registryEntry struct {
	mu sync.RWMutex
}

var (
	registryMu sync.Mutex
	registry   = map[fileIdentity]*registryEntry{}
)

func identityOf(f interface{ Fd() uintptr }) (fileIdentity, error) {
	var stat syscall.Stat_t
	if err := syscall.Fstat(int(f.Fd()), &stat); err != nil {
		return fileIdentity{}, err
	}

	return fileIdentity{dev: uint64(stat.Dev), ino: stat.Ino}, nil //nolint:unconvert,gosec
}

func getRegistryEntry(id fileIdentity) *registryEntry {
	registryMu.Lock()
	defer registryMu.Unlock()

	e, ok := registry[id]
	if !ok {
		e = &registryEntry{}
		registry[id] = e
	}

	return e
}

// lockRegistryEntry acquires the in-process guard in the requested mode,
// polling with the same retry/deadline/onRetry shape as the OS-level
// region lock so the two compose into one observable wait.
func (s *Session) lockRegistryEntry(ctx context.Context, shared bool, deadline time.Time, onRetry func()) error {
	for {
		var ok bool
		if shared {
			ok = s.entry.mu.TryRLock()
		} else {
			ok = s.entry.mu.TryLock()
		}

		if ok {
			return nil
		}

		if onRetry != nil {
			onRetry()
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return region.ErrTimeout
		}

		select {
		case <-ctx.Done():
			return region.ErrInterrupted
		case <-time.After(region.RetryInterval):
		}
	}
}

func (s *Session) unlockRegistryEntry() {
	if s.entryShared {
		s.entry.mu.RUnlock()
	} else {
		s.entry.mu.Unlock()
	}

	s.entryHeld = false
}
