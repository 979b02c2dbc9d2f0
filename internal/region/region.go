// Package region wraps POSIX byte-range advisory locks (fcntl F_SETLK) with
// a bounded-wait retry loop.
//
// flock(2) locks an entire file and cannot hold two independent ranges on
// the same descriptor, which the lock-file protocol requires (the state
// region and the information region are locked independently). fcntl byte-range
// locks attach to (inode, process) rather than (file descriptor), so this
// package locks by absolute offset within the file, exactly like
// [unix.FcntlFlock] with an explicit Start/Len.
package region

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// RetryInterval is the fixed sleep between try-lock attempts.
const RetryInterval = 200 * time.Millisecond

// ErrWouldBlock is returned by [TryLock] when another process holds a
// conflicting lock on the requested range. [Lock] never returns it
// directly — internally it resolves ErrWouldBlock to either a retry or
// [ErrTimeout].
var ErrWouldBlock = errors.New("region: lock would block")

// ErrTimeout is returned by [Lock] when the deadline passes before the
// region could be acquired.
var ErrTimeout = errors.New("region: timed out waiting for lock")

// ErrInterrupted is returned by [Lock] when ctx is cancelled while waiting.
var ErrInterrupted = errors.New("region: interrupted while waiting for lock")

// Region is a held byte-range lock. Call [Region.Unlock] to release it.
type Region struct {
	fd       uintptr
	start    int64
	size     int64
	shared   bool
	released bool
}

// Shared reports whether the region is held in shared mode.
//
// F_SETLK either grants exactly the requested lock type or fails, so this
// is the mode the successful [TryLock] call locked with. Session code reads
// the held mode from here rather than from the mode a caller asked for.
func (r *Region) Shared() bool {
	return r.shared
}

// Unlock releases the region lock. Idempotent.
func (r *Region) Unlock() error {
	if r == nil || r.released {
		return nil
	}

	r.released = true

	return fcntlFlock(r.fd, unix.F_SETLK, &unix.Flock_t{
		Type:  unix.F_UNLCK,
		Start: r.start,
		Len:   r.size,
	})
}

// TryLock attempts, once, to acquire a byte-range lock on [start, start+size)
// of fd without blocking. Returns [ErrWouldBlock] if another process holds a
// conflicting lock on an overlapping range.
func TryLock(fd uintptr, start, size int64, shared bool) (*Region, error) {
	lockType := int16(unix.F_WRLCK)
	if shared {
		lockType = unix.F_RDLCK
	}

	err := fcntlFlock(fd, unix.F_SETLK, &unix.Flock_t{
		Type:  lockType,
		Start: start,
		Len:   size,
	})
	if err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return nil, ErrWouldBlock
		}

		return nil, fmt.Errorf("region: fcntl lock: %w", err)
	}

	return &Region{fd: fd, start: start, size: size, shared: shared}, nil
}

// Lock attempts to acquire a byte-range lock on [start, start+size) of fd,
// retrying every [RetryInterval] until deadline or ctx is done.
//
// onRetry runs once per failed attempt, right after it and before the
// deadline check and the sleep. It is the hook the state-region waiter uses for best-effort owner
// discovery and ping (see spec.md §4.D); callers with nothing to do there
// pass a no-op.
func Lock(ctx context.Context, fd uintptr, start, size int64, shared bool, deadline time.Time, onRetry func()) (*Region, error) {
	for {
		r, err := TryLock(fd, start, size, shared)
		if err == nil {
			return r, nil
		}

		if !errors.Is(err, ErrWouldBlock) {
			return nil, err
		}

		if onRetry != nil {
			onRetry()
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, ErrTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ErrInterrupted
		case <-time.After(RetryInterval):
		}
	}
}

// fcntlFlock retries on EINTR and translates EAGAIN/EACCES (lock contended)
// into ErrWouldBlock so callers have one sentinel to check regardless of
// platform.
func fcntlFlock(fd uintptr, cmd int, lk *unix.Flock_t) error {
	for {
		err := unix.FcntlFlock(fd, cmd, lk)
		if err == nil {
			return nil
		}

		if errors.Is(err, unix.EINTR) {
			continue
		}

		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EAGAIN) {
			return ErrWouldBlock
		}

		return err
	}
}
