// Package session implements one acquired lock's lifetime: opening the
// lock file, running the acquisition protocol, exposing guarded
// read/update/write operations, and releasing everything on Close.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calvinalkan/lockguard/internal/codec"
	"github.com/calvinalkan/lockguard/internal/identity"
	"github.com/calvinalkan/lockguard/internal/ping"
	"github.com/calvinalkan/lockguard/internal/region"
)

// Mode is the lock mode a caller requests or a session reports holding.
type Mode int

const (
	// None is not a valid mode to request; Acquire rejects it with
	// [ErrUnsupportedMode].
	None Mode = iota
	// Shared allows any number of concurrent holders, none exclusive.
	Shared
	// Exclusive allows at most one holder across all processes.
	Exclusive
)

func (m Mode) String() string {
	switch m {
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	default:
		return "none"
	}
}

// LockFilePath computes the sidecar lock-file path for target, per the
// rule in spec.md §3: a directory target gets its lock file inside
// itself, named after the directory's own basename; any other target
// gets a sibling lock file in its parent directory.
func LockFilePath(target string) string {
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		base := filepath.Base(filepath.Clean(target))
		return filepath.Join(target, base+".lock")
	}

	dir := filepath.Dir(target)
	base := filepath.Base(target)

	return filepath.Join(dir, base+".lock")
}

const dirPerm = 0o755

// Session is one acquired lock's lifetime. Not safe for concurrent use by
// multiple goroutines except for the idempotency of Close — callers must
// externally serialize calls, same as any non-reentrant advisory lock
// (spec.md §5).
type Session struct {
	target   string
	lockFile string

	file  *os.File
	state *region.Region

	entry       *registryEntry
	entryShared bool
	entryHeld   bool

	mode              Mode
	integrityViolated bool

	ownerDisplayName          string
	ownerOperationDisplayName string
	ownerPort                 int

	closeOnce sync.Once
	closed    bool

	contended atomic.Bool
	busy      atomic.Bool

	// Logf receives warnings from Close's best-effort cleanup. Defaults to
	// writing to stderr, matching the teacher's IO.ErrPrintln convention.
	Logf func(format string, args ...any)
}

// Options configures Acquire beyond the required parameters.
type Options struct {
	// DisplayName and OperationDisplayName are free-form strings folded
	// into LockTimeout error messages for diagnosis.
	DisplayName          string
	OperationDisplayName string
	// Port is written into the information region for peer discovery; the
	// caller's [ping.Transport] is expected to be reachable at this port
	// on the local machine.
	Port int
	// Timeout bounds the whole acquisition. Zero means "one attempt, no
	// retries" (spec.md §8 boundary behavior).
	Timeout time.Duration
	Logf    func(format string, args ...any)
}

// Acquire runs the acquisition protocol of spec.md §4.E against target
// and returns a held [Session], or an error from spec.md §7.
func Acquire(ctx context.Context, target string, mode Mode, idp identity.Provider, pinger ping.Transport, opts Options) (*Session, error) {
	if mode != Shared && mode != Exclusive {
		return nil, ErrUnsupportedMode
	}

	lockFile := LockFilePath(target)

	if err := os.MkdirAll(filepath.Dir(lockFile), dirPerm); err != nil {
		return nil, fmt.Errorf("%w: creating lock directory: %w", ErrInternal, err)
	}

	file, err := os.OpenFile(lockFile, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: opening lock file: %w", ErrInternal, err)
	}

	logf := opts.Logf
	if logf == nil {
		logf = defaultLogf
	}

	s := &Session{
		target:                    target,
		lockFile:                  lockFile,
		file:                      file,
		ownerDisplayName:          opts.DisplayName,
		ownerOperationDisplayName: opts.OperationDisplayName,
		ownerPort:                 opts.Port,
		Logf:                      logf,
	}

	if err := s.acquire(ctx, mode, idp, pinger, opts.Timeout); err != nil {
		s.releaseOnAcquireFailure()

		return nil, err
	}

	return s, nil
}

func defaultLogf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...) //nolint:errcheck
}

func (s *Session) acquire(ctx context.Context, requested Mode, idp identity.Provider, pinger ping.Transport, timeout time.Duration) error {
	id, err := identityOf(s.file)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	s.entry = getRegistryEntry(id)

	deadline := time.Now().Add(timeout)

	var lastOwnerAddr string

	onRetry := func() {
		lastOwnerAddr = s.peekOwnerAndPing(ctx, pinger)
	}

	shared := requested == Shared

	if err := s.lockRegistryEntry(ctx, shared, deadline, onRetry); err != nil {
		return translateAcquireErr(err, s, idp.Identifier(), lastOwnerAddr)
	}

	s.entryShared = shared
	s.entryHeld = true

	stateLock, err := region.Lock(ctx, s.file.Fd(), codec.StateRegionPos, codec.StateRegionSize, shared, deadline, onRetry)
	if err != nil {
		return translateAcquireErr(err, s, idp.Identifier(), lastOwnerAddr)
	}

	s.state = stateLock

	info, statErr := s.file.Stat()
	if statErr != nil {
		return fmt.Errorf("%w: %w", ErrInternal, statErr)
	}

	if info.Size() > 0 {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("%w: %w", ErrInternal, err)
		}

		if _, err := codec.ReadState(s.file); err != nil {
			if errors.Is(err, codec.ErrCorruptLockFile) {
				return ErrCorruptLockFile
			}

			return fmt.Errorf("%w: %w", ErrInternal, err)
		}
	}

	if !stateLock.Shared() {
		if err := s.acquireExclusive(ctx, idp, info.Size(), deadline); err != nil {
			return err
		}
	}

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	st, err := codec.ReadState(s.file)
	if err != nil {
		if errors.Is(err, codec.ErrCorruptLockFile) {
			return ErrCorruptLockFile
		}

		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	s.integrityViolated = !st.Clean

	if stateLock.Shared() {
		s.mode = Shared
	} else {
		s.mode = Exclusive
	}

	return nil
}

// acquireExclusive runs step 6 of spec.md §4.E: initialise a fresh state
// region, then record owner details in the information region under its
// own short-lived exclusive lock.
func (s *Session) acquireExclusive(ctx context.Context, idp identity.Provider, currentSize int64, deadline time.Time) error {
	if currentSize < codec.StateRegionSize {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("%w: %w", ErrInternal, err)
		}

		if err := codec.WriteState(s.file, false); err != nil {
			return fmt.Errorf("%w: %w", ErrInternal, err)
		}
	}

	infoLock, err := region.Lock(ctx, s.file.Fd(), codec.InformationRegionPos, 0, false, deadline, noopRetry)
	if err != nil {
		return fmt.Errorf("%w: acquiring information region: %w", ErrInternal, err)
	}
	defer func() { _ = infoLock.Unlock() }()

	if _, err := s.file.Seek(codec.InformationRegionPos, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	address := fmt.Sprintf("127.0.0.1:%d", s.ownerPort)
	if err := codec.WriteInfo(s.file, idp.Identifier(), address); err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	offset, err := s.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if err := s.file.Truncate(offset); err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return nil
}

// peekOwnerAndPing is the onRetry hook: best-effort, never blocks for long,
// never surfaces an error. Returns the owner address it discovered (or
// "unknown") so the eventual LockTimeout message can include it.
func (s *Session) peekOwnerAndPing(ctx context.Context, pinger ping.Transport) string {
	address := s.peekOwnerAddr()

	// Ping outside the info-region lock: neither collaborator contract is
	// invoked while holding it (spec.md §6), since the ping is a network
	// call that must never block another process's read of the region.
	if pinger != nil && address != "" && address != "unknown" {
		pinger.Ping(ctx, address, s.target)
	}

	return address
}

func (s *Session) peekOwnerAddr() string {
	infoLock, err := region.TryLock(s.file.Fd(), codec.InformationRegionPos, 0, true)
	if err != nil {
		return "unknown"
	}
	defer func() { _ = infoLock.Unlock() }()

	if _, err := s.file.Seek(codec.InformationRegionPos, io.SeekStart); err != nil {
		return "unknown"
	}

	info, err := codec.ReadInfo(s.file)
	if err != nil {
		return "unknown"
	}

	return info.Address
}

func noopRetry() {}

func translateAcquireErr(err error, s *Session, localPID string, ownerAddr string) error {
	switch {
	case errors.Is(err, region.ErrTimeout):
		return fmt.Errorf("%w: owner=%s waiter=%s(%s) op=%s lockFile=%s",
			ErrLockTimeout, ownerAddr, s.ownerDisplayName, localPID, s.ownerOperationDisplayName, s.lockFile)
	case errors.Is(err, region.ErrInterrupted):
		return ErrInterrupted
	default:
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
}

// releaseOnAcquireFailure unwinds whatever was acquired before a failed
// step, matching spec.md §4.E.8 and the "scoped release" discipline of
// §9: a failure during the info-region step must not leak the
// state-region lock or the in-process registry entry.
func (s *Session) releaseOnAcquireFailure() {
	if s.state != nil {
		_ = s.state.Unlock()
	}

	if s.entryHeld {
		s.unlockRegistryEntry()
	}

	if s.file != nil {
		_ = s.file.Close()
	}
}

// Target returns the path this session protects.
func (s *Session) Target() string { return s.target }

// LockFile returns the sidecar lock-file path.
func (s *Session) LockFile() string { return s.lockFile }

// Mode returns the effective mode the session holds, taken from the held
// state-region lock (see [region.Region.Shared]) rather than from the
// requested mode; callers that gate writes on mode must use this value,
// never the mode they asked for.
func (s *Session) Mode() Mode { return s.mode }

// IsLockFile reports whether path is this session's sidecar lock file.
func (s *Session) IsLockFile(path string) bool { return path == s.lockFile }

// UnlockedCleanly reports whether the clean flag was set at acquisition
// time (the same value as !integrityViolated at acquire).
func (s *Session) UnlockedCleanly() bool { return !s.integrityViolated }
