// Package lockguard coordinates access to on-disk artifacts shared by
// independent processes on the same machine. Each protected target gets a
// sidecar lock file carrying a crash-tolerant integrity flag and the
// current owner's identity, so contended waiters can diagnose or ping the
// holder instead of blocking forever.
package lockguard

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/calvinalkan/lockguard/internal/identity"
	"github.com/calvinalkan/lockguard/internal/ping"
	"github.com/calvinalkan/lockguard/internal/session"
)

// Re-exported types so callers only ever import the root package.
type (
	// Session is one acquired lock's lifetime. See [Manager.Lock].
	Session = session.Session
	// Mode is the lock mode a caller requests or a session reports holding.
	Mode = session.Mode
)

// Lock modes.
const (
	Shared    = session.Shared
	Exclusive = session.Exclusive
)

// Errors surfaced by [Manager.Lock] and guarded [Session] operations. See
// spec.md §7 for the policy governing each.
var (
	ErrLockTimeout            = session.ErrLockTimeout
	ErrCorruptLockFile        = session.ErrCorruptLockFile
	ErrFileIntegrityViolation = session.ErrFileIntegrityViolation
	ErrInsufficientLockMode   = session.ErrInsufficientLockMode
	ErrClosedLock             = session.ErrClosedLock
	ErrUnsupportedMode        = session.ErrUnsupportedMode
	ErrInterrupted            = session.ErrInterrupted
	ErrInternal               = session.ErrInternal
)

// DefaultLockTimeout is used when Config.LockTimeout is zero.
const DefaultLockTimeout = 60 * time.Second

// Config configures a [Manager]. The zero value is valid and uses
// [DefaultLockTimeout] with the default process-identity provider and a
// UDP owner-ping transport.
type Config struct {
	// LockTimeout bounds how long [Manager.Lock] waits before failing
	// with [ErrLockTimeout]. Zero means [DefaultLockTimeout]; negative
	// means "try once, don't wait" (spec.md §8).
	LockTimeout time.Duration

	// Identity supplies the process identifier written into the
	// information region. Defaults to [identity.Default].
	Identity identity.Provider

	// Pinger notifies a suspected owner that a waiter wants the lock.
	// Defaults to [ping.NewUDPTransport].
	Pinger ping.Transport
}

// Manager is a stateless façade: it canonicalises target paths and
// constructs [Session] values. Safe for concurrent use.
type Manager struct {
	timeout  time.Duration
	identity identity.Provider
	pinger   ping.Transport
}

// New constructs a [Manager] from cfg.
func New(cfg Config) *Manager {
	timeout := cfg.LockTimeout
	if timeout == 0 {
		timeout = DefaultLockTimeout
	}

	idp := cfg.Identity
	if idp == nil {
		idp = identity.Default()
	}

	pinger := cfg.Pinger
	if pinger == nil {
		pinger = ping.NewUDPTransport()
	}

	return &Manager{timeout: timeout, identity: idp, pinger: pinger}
}

// Lock canonicalises target and acquires a session in the requested mode.
// port is written into the information region for peer discovery;
// displayName/operationDisplayName are folded into diagnostic messages.
func (m *Manager) Lock(ctx context.Context, target string, mode Mode, displayName, operationDisplayName string, port int) (*Session, error) {
	canonical, err := canonicalize(target)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizing target: %w", ErrInternal, err)
	}

	timeout := m.timeout
	if timeout < 0 {
		timeout = 0
	}

	s, err := session.Acquire(ctx, canonical, mode, m.identity, m.pinger, session.Options{
		DisplayName:          displayName,
		OperationDisplayName: operationDisplayName,
		Port:                 port,
		Timeout:              timeout,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// canonicalize resolves target to an absolute, symlink-free path when it
// exists, falling back to a plain absolute path for not-yet-created
// targets (the common case for a cache directory about to be populated).
func canonicalize(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, nil //nolint:nilerr // target may not exist yet; that's fine
	}

	return resolved, nil
}
