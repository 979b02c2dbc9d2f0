package ping_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/lockguard/internal/ping"
)

func TestRecordingTransportRecordsCalls(t *testing.T) {
	t.Parallel()

	rt := &ping.RecordingTransport{}
	rt.Ping(context.Background(), "127.0.0.1:9999", "/tmp/t")
	rt.Ping(context.Background(), "10.0.0.1:1", "/tmp/u")

	calls := rt.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, ping.Call{Address: "127.0.0.1:9999", Target: "/tmp/t"}, calls[0])
}

func TestUDPTransportIgnoresUnknownAddress(t *testing.T) {
	t.Parallel()

	// Must not block or panic for the sentinel "unknown" address.
	ping.NewUDPTransport().Ping(context.Background(), "unknown", "/tmp/t")
	ping.NewUDPTransport().Ping(context.Background(), "", "/tmp/t")
}
