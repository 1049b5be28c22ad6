// Package exec runs external tools with a deadline and captures their output.
package exec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Exit codes reported for failures that never produced a process exit status.
const (
	ExitTimeout  = 124
	ExitNotFound = 127
)

// Result holds the execution result.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
}

// TimedOut reports whether the command was killed by its deadline.
func (r Result) TimedOut() bool { return r.ExitCode == ExitTimeout }

// NotFound reports whether the executable could not be started.
func (r Result) NotFound() bool { return r.ExitCode == ExitNotFound }

// Available reports whether name resolves on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Run executes a command with context/timeout, capturing output and duration.
// A non-zero exit is returned both as ExitCode and as err; callers decide
// whether it matters (npm outdated exits 1 when anything is outdated).
func Run(ctx context.Context, name string, args []string, dir string) (Result, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = 1
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.ExitCode = ExitTimeout
		} else if errors.Is(err, exec.ErrNotFound) {
			res.ExitCode = ExitNotFound
		}
	}

	return res, err
}
