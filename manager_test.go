package lockguard_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/lockguard"
	"github.com/calvinalkan/lockguard/internal/identity"
)

func TestManagerLockAndClose(t *testing.T) {
	t.Parallel()

	mgr := lockguard.New(lockguard.Config{
		LockTimeout: time.Second,
		Identity:    identity.Static("host:1"),
	})

	target := filepath.Join(t.TempDir(), "artifact.bin")

	s, err := mgr.Lock(context.Background(), target, lockguard.Exclusive, "proc-1", "test-op", 9000)
	require.NoError(t, err)
	require.Equal(t, lockguard.Exclusive, s.Mode())
	require.NoError(t, s.Close())
}

func TestManagerLockCanonicalizesRelativeTargets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mgr := lockguard.New(lockguard.Config{LockTimeout: time.Second, Identity: identity.Static("host:1")})

	s, err := mgr.Lock(context.Background(), filepath.Join(dir, "a", "..", "artifact.bin"), lockguard.Exclusive, "", "", 0)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.Equal(t, filepath.Join(dir, "artifact.bin"), s.Target())
}

func TestManagerDefaultsTimeoutWhenZero(t *testing.T) {
	t.Parallel()

	mgr := lockguard.New(lockguard.Config{Identity: identity.Static("host:1")})
	target := filepath.Join(t.TempDir(), "artifact.bin")

	s, err := mgr.Lock(context.Background(), target, lockguard.Shared, "", "", 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
