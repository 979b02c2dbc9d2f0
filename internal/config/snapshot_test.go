package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/lockguard/internal/codec"
)

func TestDescribeMapsRegionsToSnapshot(t *testing.T) {
	t.Parallel()

	recorded := time.Unix(1700000000, 0).UTC()
	snap := Describe("/tmp/x.lock", codec.State{Clean: true}, codec.Info{PID: "host:1", Address: "127.0.0.1:9"}, recorded)

	want := Snapshot{
		Path:      "/tmp/x.lock",
		Clean:     true,
		OwnerPID:  "host:1",
		OwnerAddr: "127.0.0.1:9",
		Recorded:  recorded,
	}

	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("Describe() mismatch (-want +got):\n%s", diff)
	}
}

func TestPersistSnapshotWritesReadableJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.json")
	snap := Snapshot{Path: "/tmp/x.lock", Clean: false, OwnerPID: "host:2"}

	require.NoError(t, PersistSnapshot(path, snap))

	data, err := os.ReadFile(path) //nolint:gosec
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal(data, &got))

	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("round-tripped snapshot mismatch (-want +got):\n%s", diff)
	}
}
