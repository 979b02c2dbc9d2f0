package cli_test

import (
	"path/filepath"
	"testing"

	"github.com/calvinalkan/lockguard/internal/cli"
)

func TestStatusOnMissingLockFile(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	target := filepath.Join(c.Dir, "artifact.bin")

	out := c.MustRun("status", target)
	cli.AssertContains(t, out, "no lock file")
}

func TestWithRunsCommandAndReleasesLock(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	target := filepath.Join(c.Dir, "artifact.bin")

	out := c.MustRun("with", target, "--", "echo", "hello")
	cli.AssertContains(t, out, "hello")

	status := c.MustRun("status", target)
	cli.AssertContains(t, status, "clean:     true")
}

func TestHelpListsCommands(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	out := c.MustRun("--help")
	cli.AssertContains(t, out, "with")
	cli.AssertContains(t, out, "status")
	cli.AssertContains(t, out, "doctor")
}

func TestUnknownCommandFails(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("bogus")
	cli.AssertContains(t, stderr, "unknown command")
}

func TestDoctorOnCleanLockWithNoOwnerSkipsPing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	target := filepath.Join(c.Dir, "artifact.bin")

	c.MustRun("with", target, "--", "true")

	out := c.MustRun("doctor", target)
	cli.AssertContains(t, out, "no known owner address to ping")
}
