package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/lockguard"
	"github.com/calvinalkan/lockguard/internal/config"
)

// WithCmd returns the "with" command: hold a lock on a target for the
// duration of a child process.
func WithCmd(cfg config.Config) *Command {
	fs := flag.NewFlagSet("with", flag.ContinueOnError)
	shared := fs.Bool("shared", false, "acquire a shared rather than exclusive lock")
	port := fs.Int("port", 0, "local port to advertise as this holder's address")
	timeoutMs := fs.Int("timeout-ms", 0, "override the configured lock timeout in milliseconds")
	name := fs.String("name", "", "display name recorded for diagnostics")

	return &Command{
		Flags: fs,
		Usage: "with <target> -- <command> [args...]",
		Short: "Run a command while holding a lock on target",
		Long: `Acquires a lock on <target>, runs <command> with its stdio connected
to this process, waits for it to exit, then releases the lock. The
lock is held exclusively unless --shared is given; exit code matches
the child's, or 1 if the lock could not be acquired.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execWith(ctx, o, cfg, *shared, *port, *timeoutMs, *name, args)
		},
	}
}

func execWith(ctx context.Context, o *IO, cfg config.Config, shared bool, port, timeoutMs int, name string, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: lockguard with <target> -- <command> [args...]")
	}

	target := args[0]
	command := args[1:]

	timeout := cfg.Timeout()
	if timeoutMs != 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	} else if timeout == 0 {
		timeout = lockguard.DefaultLockTimeout
	}

	mode := lockguard.Exclusive
	if shared {
		mode = lockguard.Shared
	}

	mgr := lockguard.New(lockguard.Config{LockTimeout: timeout})

	session, err := mgr.Lock(ctx, target, mode, name, "with "+command[0], port)
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	defer func() { _ = session.Close() }()

	cmd := exec.CommandContext(ctx, command[0], command[1:]...) //nolint:gosec
	cmd.Stdin = os.Stdin
	cmd.Stdout = o.Out()
	cmd.Stderr = o.ErrOut()
	cmd.Env = append(os.Environ(), "LOCKGUARD_LOCK_FILE="+session.LockFile())

	run := func() error { return cmd.Run() }

	// The child's run is itself the write-cycle: a non-zero exit leaves
	// the lock file marked dirty, the same signal a crash mid-update
	// would leave for the next acquirer, and a zero exit marks it clean
	// again (including a fresh or previously dirty lock file). A shared
	// lock never writes, so there's nothing to bracket - just enforce the
	// integrity precondition. The choice follows the mode the session
	// reports holding, not the mode requested.
	var runErr error
	if session.Mode() == lockguard.Exclusive {
		runErr = session.WriteFile(run)
	} else {
		runErr = session.ReadFile(run)
	}

	var exitErr *exec.ExitError
	if runErr != nil {
		if errors.As(runErr, &exitErr) {
			os.Exit(exitErr.ExitCode()) //nolint:revive // relay the child's exit code
		}

		return fmt.Errorf("running %s: %w", strconv.Quote(command[0]), runErr)
	}

	return nil
}
