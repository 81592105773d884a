package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a single external invocation when the
// caller supplies no tighter deadline.
const DefaultCommandTimeout = 15 * time.Second

// Runner abstracts external command execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Result holds the captured output of one external invocation.
// Stderr is kept separate so failures can surface it without polluting
// the parseable stdout stream.
type Result struct {
	Stdout string
	Stderr string
}

// CommandError describes a failed external invocation. Err preserves the
// underlying cause (exec.ErrNotFound, context.DeadlineExceeded, or an
// *exec.ExitError) so callers can classify with errors.Is/As.
type CommandError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the external binary is missing or
// not executable.
func IsNotFound(err error) bool { return errors.Is(err, exec.ErrNotFound) }

// IsTimeout reports whether err means the invocation hit its deadline.
func IsTimeout(err error) bool { return errors.Is(err, context.DeadlineExceeded) }

// ExecRunner runs commands via os/exec with a bounded wait. Arguments are
// always passed as a discrete list; nothing is shell-interpreted.
type ExecRunner struct {
	// Timeout applies per call when the caller's context carries no
	// earlier deadline. Zero means DefaultCommandTimeout.
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Kill the whole process tree on cancellation so no grandchild
	// survives a timeout.
	setProcGroup(cmd)
	cmd.Cancel = func() error { return killProcGroup(cmd) }

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	cause := err
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		cause = context.DeadlineExceeded
	}
	return res, &CommandError{Name: name, Args: args, Stderr: res.Stderr, Err: cause}
}
