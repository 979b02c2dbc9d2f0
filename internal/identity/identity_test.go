package identity_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/lockguard/internal/identity"
)

func TestDefaultIsStableAcrossCalls(t *testing.T) {
	t.Parallel()

	a := identity.Default().Identifier()
	b := identity.Default().Identifier()

	require.Equal(t, a, b)
	require.True(t, strings.Contains(a, ":"))
}

func TestStatic(t *testing.T) {
	t.Parallel()

	p := identity.Static("host-a:123")
	require.Equal(t, "host-a:123", p.Identifier())
}
