// pkg/runner/runner.go - the single place where provision spawns processes.

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	perrors "github.com/windowsadmins/provision/pkg/errors"
	"github.com/windowsadmins/provision/pkg/logging"
)

// Command is one process invocation.
type Command struct {
	Args    []string      // program followed by its arguments
	Dir     string        // working directory, inherited when empty
	Capture bool          // collect stdout/stderr instead of streaming them
	Timeout time.Duration // zero waits until the process exits
}

// String renders the command for logs.
func (c Command) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		if strings.ContainsAny(a, " \t") {
			a = `"` + a + `"`
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}

// Result is what a finished process left behind.
type Result struct {
	ExitCode int
	Stdout   string // only with Capture
	Stderr   string // only with Capture
}

// Runner runs commands to completion. A non-zero exit is returned as
// *errors.ExitError; spawn failures and timeouts wrap errors.ErrProcessFailed.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Exec runs commands with os/exec. Uncaptured output goes to Stdout and
// Stderr, or to the process streams when those are nil.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
}

// New returns an Exec runner streaming to the console.
func New() *Exec { return &Exec{} }

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, c Command) (Result, error) {
	if len(c.Args) == 0 || c.Args[0] == "" {
		return Result{ExitCode: -1}, fmt.Errorf("%w: empty command", perrors.ErrProcessFailed)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	configure(cmd, c.Capture)

	var stdout, stderr bytes.Buffer
	if c.Capture {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		cmd.Stdout = orDefault(e.Stdout, os.Stdout)
		cmd.Stderr = orDefault(e.Stderr, os.Stderr)
	}

	logging.Debug("Running command", "command", c.String(), "dir", c.Dir, "timeout", c.Timeout.String())
	err := cmd.Run()
	res := Result{ExitCode: cmd.ProcessState.ExitCode(), Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		if cmd.Process != nil {
			killTree(cmd.Process.Pid)
		}
		return res, fmt.Errorf("%w: %s timed out after %s", perrors.ErrProcessFailed, c.Args[0], c.Timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, &perrors.ExitError{Args: c.Args, Code: exitErr.ExitCode()}
	}
	return Result{ExitCode: -1}, fmt.Errorf("%w: %s: %v", perrors.ErrProcessFailed, c.Args[0], err)
}

func orDefault(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}
