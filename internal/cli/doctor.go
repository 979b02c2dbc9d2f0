package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/lockguard/internal/codec"
	"github.com/calvinalkan/lockguard/internal/config"
	"github.com/calvinalkan/lockguard/internal/ping"
	"github.com/calvinalkan/lockguard/internal/session"
)

// DoctorCmd returns the "doctor" command: an interactive check for a stuck
// or contended lock, offering to ping the suspected owner.
func DoctorCmd(cfg config.Config) *Command {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt and ping unconditionally")

	return &Command{
		Flags: fs,
		Usage: "doctor <target> [flags]",
		Short: "Diagnose a target's lock file and optionally ping its owner",
		Long: `Reads <target>'s lock file and, if it looks held, asks for
confirmation before sending a best-effort UDP ping to the recorded
owner address - the same notification a contended acquirer would
trigger while waiting. Pass --yes to skip the prompt.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execDoctor(ctx, o, args, *yes)
		},
	}
}

func execDoctor(ctx context.Context, o *IO, args []string, assumeYes bool) error {
	if len(args) == 0 {
		return errors.New("usage: lockguard doctor <target>")
	}

	target := args[0]
	lockFile := session.LockFilePath(target)

	file, err := os.Open(lockFile) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			o.Printf("%s: no lock file, nothing to diagnose\n", target)
			return nil
		}

		return fmt.Errorf("opening %s: %w", lockFile, err)
	}
	defer func() { _ = file.Close() }()

	state, err := codec.ReadState(file)
	if err != nil && !errors.Is(err, codec.ErrCorruptLockFile) {
		return fmt.Errorf("reading state region: %w", err)
	}

	if _, err := file.Seek(codec.InformationRegionPos, io.SeekStart); err != nil {
		return fmt.Errorf("seeking %s: %w", lockFile, err)
	}

	info, err := codec.ReadInfo(file)
	if err != nil && !errors.Is(err, codec.ErrCorruptLockFile) {
		return fmt.Errorf("reading information region: %w", err)
	}

	if !state.Clean {
		o.WarnLLM(
			fmt.Sprintf("%s's lock file is marked dirty", target),
			"the last writer likely crashed mid-update; inspect the target before trusting its contents",
		)
	}

	if info.Address == "" || info.Address == "unknown" {
		o.Printf("%s: no known owner address to ping\n", target)
		return nil
	}

	o.Printf("recorded owner: pid=%s address=%s\n", info.PID, info.Address)

	if !assumeYes && !confirm(o, fmt.Sprintf("ping owner at %s now? [y/N] ", info.Address)) {
		o.Println("cancelled")
		return nil
	}

	transport := ping.NewUDPTransport()
	transport.Ping(ctx, info.Address, target)
	o.Printf("sent ping to %s\n", info.Address)

	return nil
}

// confirm prompts interactively via liner, the same readline-confirmation
// pattern the teacher's REPL uses before a destructive action.
func confirm(o *IO, prompt string) bool {
	line := liner.NewLiner()
	defer func() { _ = line.Close() }()

	line.SetCtrlCAborts(true)

	answer, err := line.Prompt(prompt)
	if err != nil {
		return false
	}

	answer = strings.TrimSpace(strings.ToLower(answer))

	return answer == "y" || answer == "yes"
}
