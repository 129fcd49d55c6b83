package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait keeps reading pipes after a kill, for
// grandchildren that escaped the process group.
const waitDelay = 2 * time.Second

// processResult is the captured outcome of a finished process.
type processResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// TimeoutError reports a process killed at its deadline.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Command '%s' timed out after %d seconds", e.Command, int(e.Timeout/time.Second))
}

// runProcess runs name with args in dir and waits for it. A non-zero exit
// status is not an error. Timeouts return *TimeoutError and a cancelled
// parent context returns its error; in both cases the process group has
// been killed.
func runProcess(ctx context.Context, dir string, timeout time.Duration, display, name string, args ...string) (processResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	res := processResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, &TimeoutError{Command: display, Timeout: timeout}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}
