package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/lockguard/internal/codec"
	"github.com/calvinalkan/lockguard/internal/config"
	"github.com/calvinalkan/lockguard/internal/region"
	"github.com/calvinalkan/lockguard/internal/session"
)

// StatusCmd returns the "status" command: a best-effort peek at a target's
// lock file under a shared state-region lock, for scripts and humans that
// want to know who holds a lock without contending for it themselves.
func StatusCmd(cfg config.Config) *Command {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	save := fs.String("save", "", "persist a JSON audit snapshot to `path`")

	return &Command{
		Flags: fs,
		Usage: "status <target> [flags]",
		Short: "Show the last known state of a target's lock file",
		Long: `Reads <target>'s lock file under a best-effort shared state-region
lock - no session is acquired and nothing is written. If the state
region is already held exclusively, the read proceeds unlocked rather
than waiting, so the result can still be stale the instant it's
printed. Use --save to persist the reading as a JSON audit snapshot.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execStatus(o, args, *save)
		},
	}
}

func execStatus(o *IO, args []string, savePath string) error {
	if len(args) == 0 {
		return errors.New("usage: lockguard status <target>")
	}

	target := args[0]
	lockFile := session.LockFilePath(target)

	file, err := os.Open(lockFile) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			o.Printf("%s: no lock file\n", target)
			return nil
		}

		return fmt.Errorf("opening %s: %w", lockFile, err)
	}
	defer func() { _ = file.Close() }()

	// Best-effort shared hold on the state region while reading: if another
	// process holds it exclusively, proceed unlocked rather than waiting -
	// status must never block a writer or another reader.
	stateLock, lockErr := region.TryLock(file.Fd(), codec.StateRegionPos, codec.StateRegionSize, true)
	if lockErr == nil {
		defer func() { _ = stateLock.Unlock() }()
	}

	info, statErr := file.Stat()
	if statErr != nil {
		return fmt.Errorf("statting %s: %w", lockFile, statErr)
	}

	state, err := codec.ReadState(file)
	if err != nil && !errors.Is(err, codec.ErrCorruptLockFile) {
		return fmt.Errorf("reading state region of %s: %w", lockFile, err)
	}

	if _, err := file.Seek(codec.InformationRegionPos, io.SeekStart); err != nil {
		return fmt.Errorf("seeking %s: %w", lockFile, err)
	}

	lockInfo, err := codec.ReadInfo(file)
	if err != nil && !errors.Is(err, codec.ErrCorruptLockFile) {
		return fmt.Errorf("reading information region of %s: %w", lockFile, err)
	}

	o.Printf("%s:\n", target)
	o.Printf("  lock file: %s\n", lockFile)
	o.Printf("  size:      %d\n", info.Size())
	o.Printf("  clean:     %t\n", state.Clean)
	o.Printf("  owner pid: %s\n", lockInfo.PID)
	o.Printf("  owner address: %s\n", lockInfo.Address)

	if savePath != "" {
		snap := config.Describe(lockFile, state, lockInfo, time.Now())
		if err := config.PersistSnapshot(savePath, snap); err != nil {
			return err
		}

		o.Printf("saved snapshot to %s\n", savePath)
	}

	return nil
}
