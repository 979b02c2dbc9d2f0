package session

import "errors"

// Errors returned by session acquisition and guarded operations. See
// spec.md §7 for the policy governing each.
var (
	// ErrLockTimeout is returned when the state region cannot be acquired
	// before the deadline passes.
	ErrLockTimeout = errors.New("lockguard: timed out acquiring lock")

	// ErrCorruptLockFile is returned when a region's protocol byte doesn't
	// match what this package understands.
	ErrCorruptLockFile = errors.New("lockguard: corrupt lock file")

	// ErrFileIntegrityViolation is returned by ReadFile/UpdateFile when the
	// session's integrity flag is set (the previous writer didn't finish
	// cleanly, or a write is currently in progress).
	ErrFileIntegrityViolation = errors.New("lockguard: lock file integrity violated")

	// ErrInsufficientLockMode is returned by UpdateFile/WriteFile on a
	// session that only holds the lock in shared mode.
	ErrInsufficientLockMode = errors.New("lockguard: insufficient lock mode")

	// ErrClosedLock is returned by any guarded operation after Close.
	ErrClosedLock = errors.New("lockguard: session is closed")

	// ErrUnsupportedMode is returned at acquire time for Mode == None.
	ErrUnsupportedMode = errors.New("lockguard: unsupported lock mode")

	// ErrInterrupted is returned when the retry sleep is interrupted via
	// context cancellation.
	ErrInterrupted = errors.New("lockguard: interrupted while acquiring lock")

	// ErrInternal wraps unchecked OS/IO errors encountered during
	// acquisition or the info-region write.
	ErrInternal = errors.New("lockguard: internal lock error")
)
