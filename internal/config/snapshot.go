package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/calvinalkan/lockguard/internal/codec"
)

// Snapshot is a point-in-time, read-only diagnostic view of a lock file's
// two regions, as `lockguard status --save` records it. It is
// never used to drive an acquisition decision — only to persist an audit
// record for later inspection.
type Snapshot struct {
	Path      string    `json:"path"`
	Clean     bool      `json:"clean"`
	OwnerPID  string    `json:"owner_pid"`  //nolint:tagliatelle
	OwnerAddr string    `json:"owner_addr"` //nolint:tagliatelle
	Recorded  time.Time `json:"recorded"`
}

// Describe builds a [Snapshot] from a lock file's already-decoded state
// and information regions. It does no I/O and takes no lock; the caller
// (`lockguard status`) reads the regions.
func Describe(path string, state codec.State, info codec.Info, recorded time.Time) Snapshot {
	return Snapshot{
		Path:      path,
		Clean:     state.Clean,
		OwnerPID:  info.PID,
		OwnerAddr: info.Address,
		Recorded:  recorded,
	}
}

// PersistSnapshot writes snap as indented JSON to path using an
// atomic rename so a concurrent reader of the audit trail never observes a
// half-written file. Unlike the lock file itself, this artifact has no
// kernel-visible identity that an atomic rename could disturb, so the
// teacher's write-then-rename helper applies directly here.
func PersistSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := atomic.WriteFile(path, strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("persisting snapshot to %s: %w", path, err)
	}

	return nil
}
