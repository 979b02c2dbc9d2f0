package session

import (
	"io"
	"sync/atomic"

	"github.com/calvinalkan/lockguard/internal/codec"
)

// assertOpen and assertIntegral are the two preconditions guarded
// operations check, per spec.md §4.E.
func (s *Session) assertOpen() error {
	if s.closed {
		return ErrClosedLock
	}

	return nil
}

func (s *Session) assertIntegral() error {
	if s.integrityViolated {
		return ErrFileIntegrityViolation
	}

	return nil
}

// ReadFile runs fn under the held lock. Allowed in either Shared or
// Exclusive mode. Fails with [ErrFileIntegrityViolation] if the previous
// writer didn't finish cleanly.
func (s *Session) ReadFile(fn func() error) error {
	if err := s.assertOpen(); err != nil {
		return err
	}

	if err := s.assertIntegral(); err != nil {
		return err
	}

	return fn()
}

// UpdateFile runs fn as a write-cycle, requiring the session to hold the
// lock exclusively and the lock file to be integral. Use [Session.WriteFile]
// instead to recover from a prior dirty state.
func (s *Session) UpdateFile(fn func() error) error {
	if err := s.assertOpen(); err != nil {
		return err
	}

	if err := s.assertIntegral(); err != nil {
		return err
	}

	if s.mode != Exclusive {
		return ErrInsufficientLockMode
	}

	return s.writeCycle(fn)
}

// WriteFile runs fn as a write-cycle. Unlike [Session.UpdateFile], this is
// allowed even when the lock file is currently marked dirty — it is the
// recovery entry point a caller uses to clear a prior integrity violation.
func (s *Session) WriteFile(fn func() error) error {
	if err := s.assertOpen(); err != nil {
		return err
	}

	if s.mode != Exclusive {
		return ErrInsufficientLockMode
	}

	return s.writeCycle(fn)
}

// writeCycle brackets fn with markDirty/markClean. If fn fails, the dirty
// flag (on disk and in s.integrityViolated) remains set, observable by the
// next acquirer and by this session's own subsequent ReadFile/UpdateFile
// calls.
func (s *Session) writeCycle(fn func() error) error {
	s.integrityViolated = true

	if err := s.markDirty(); err != nil {
		return err
	}

	if err := fn(); err != nil {
		return err
	}

	if err := s.markClean(); err != nil {
		return err
	}

	s.integrityViolated = false

	return nil
}

func (s *Session) markDirty() error {
	if _, err := s.file.Seek(codec.StateRegionPos, io.SeekStart); err != nil {
		return err
	}

	return codec.WriteState(s.file, false)
}

func (s *Session) markClean() error {
	if _, err := s.file.Seek(codec.StateRegionPos, io.SeekStart); err != nil {
		return err
	}

	return codec.WriteState(s.file, true)
}

// SetContended records whether a caller observed contention while
// attempting to acquire this target (purely informational; the session
// does not use it internally).
func (s *Session) SetContended(b bool) { storeBool(&s.contended, b) }

// IsContended returns the value last set by [Session.SetContended].
func (s *Session) IsContended() bool { return loadBool(&s.contended) }

// SetBusy records whether the protected target is currently mid-operation
// from the caller's point of view (purely informational).
func (s *Session) SetBusy(b bool) { storeBool(&s.busy, b) }

// IsBusy returns the value last set by [Session.SetBusy].
func (s *Session) IsBusy() bool { return loadBool(&s.busy) }

func storeBool(addr *atomic.Bool, v bool) { addr.Store(v) }
func loadBool(addr *atomic.Bool) bool     { return addr.Load() }

// Close releases the session. Idempotent: subsequent calls are no-ops that
// return nil. IO errors during release are logged via [Session.Logf] and
// swallowed — Close never fails.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true

		if s.mode == Exclusive {
			if err := s.file.Truncate(codec.InformationRegionPos); err != nil {
				s.Logf("truncating lock file on close: %v", err)
			}
		}

		if s.state != nil {
			if err := s.state.Unlock(); err != nil {
				s.Logf("releasing state region: %v", err)
			}
		}

		if s.entryHeld {
			s.unlockRegistryEntry()
		}

		if err := s.file.Close(); err != nil {
			s.Logf("closing lock file: %v", err)
		}

		s.file = nil
	})

	return nil
}
