package profiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"strings"

	"github.com/magefile/mage/sh"
)

// Command is a single child process invocation. Nil writers discard output.
// The child always inherits the parent's standard input, so a child that
// prompts blocks on the terminal instead of reading EOF.
type Command struct {
	Stdout io.Writer
	Stderr io.Writer
	Name   string
	Args   []string
}

// String renders c roughly as a shell would show it.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner resolves and executes external commands.
type Runner interface {
	// LookPath resolves name on the search path.
	LookPath(name string) (string, error)
	// Exec runs cmd to completion. A non-nil error means the command did not
	// start or exited non-zero; see [ExitStatus] and [Ran].
	Exec(ctx context.Context, cmd Command) error
}

// ShellRunner runs commands through [github.com/magefile/mage/sh].
//
// mage expands $VAR and ${VAR} in the command name and every argument, so
// callers must not pass paths containing '$'; see [Config.Layout].
type ShellRunner struct{}

// LookPath implements [Runner].
func (ShellRunner) LookPath(name string) (string, error) {
	//nolint:wrapcheck // The exec error already names the binary.
	return exec.LookPath(name)
}

// Exec implements [Runner]. Cancellation is only observed before the child
// starts; a running child is waited for.
func (ShellRunner) Exec(ctx context.Context, cmd Command) error {
	err := ctx.Err()
	if err != nil {
		return err //nolint:wrapcheck // Context errors are returned as-is.
	}

	// sh.Exec expands variables in place.
	args := slices.Clone(cmd.Args)

	ran, err := sh.Exec(nil, cmd.Stdout, cmd.Stderr, cmd.Name, args...)
	if err == nil {
		return nil
	}

	if ran {
		return &ExitError{Command: cmd.String(), Status: sh.ExitStatus(err), Err: err}
	}

	//nolint:wrapcheck // mage already names the command that failed to start.
	return err
}

// ExitError reports a child that started and exited with a non-zero status.
type ExitError struct {
	Err     error
	Command string
	Status  int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.Status)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitStatus returns the exit status carried by an error from
// [Runner.Exec]: 0 for nil, 1 when the status is unknown.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Status
	}

	return sh.ExitStatus(err)
}

// Ran reports whether the child process actually started, i.e. err is nil or
// describes a non-zero exit rather than a failure to launch.
func Ran(err error) bool {
	var exitErr *ExitError

	return err == nil || errors.As(err, &exitErr)
}
