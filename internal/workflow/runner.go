// Package workflow drives the restore run: prepare the patched extension,
// extract the protected module and hand its bytecode to the decompiler.
package workflow

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

const defaultTailLines = 20

// Command is one subprocess invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes subprocesses. Run streams the merged stdout and stderr
// line by line. Output captures stdout only.
type Runner interface {
	Run(ctx context.Context, cmd Command, onLine func(string)) error
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// StepError reports a failed subprocess. ExitCode is -1 when the process
// never produced one.
type StepError struct {
	Step     string
	Command  string
	ExitCode int
	Tail     []string
	Err      error
}

func (e *StepError) Error() string {
	var b strings.Builder
	if e.Step != "" {
		fmt.Fprintf(&b, "%s: ", e.Step)
	}
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, "%q exited with code %d", e.Command, e.ExitCode)
	} else {
		fmt.Fprintf(&b, "%q failed: %v", e.Command, e.Err)
	}
	return b.String()
}

func (e *StepError) Unwrap() error { return e.Err }

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// TailLines is how much output a StepError keeps.
	TailLines int
}

// NewExecRunner builds the default runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{TailLines: defaultTailLines}
}

// Run executes cmd and calls onLine for every output line.
func (r *ExecRunner) Run(ctx context.Context, cmd Command, onLine func(string)) error {
	if strings.TrimSpace(cmd.Name) == "" {
		return errors.New("workflow: command name is required")
	}
	runCtx, cancel := withTimeout(ctx, cmd.Timeout)
	defer cancel()

	execCmd := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	execCmd.Dir = cmd.Dir

	pr, pw := io.Pipe()
	execCmd.Stdout = pw
	execCmd.Stderr = pw

	if err := execCmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return &StepError{Command: cmd.String(), ExitCode: -1, Err: err}
	}

	tail := newTail(r.tailLines())
	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r")
			tail.add(line)
			if onLine != nil {
				onLine(line)
			}
		}
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, pr)
	}()

	waitErr := execCmd.Wait()
	_ = pw.Close()
	<-scanned

	return exitError(runCtx, cmd, waitErr, tail.lines())
}

// Output executes cmd and returns its stdout. Stderr only surfaces in the
// StepError tail.
func (r *ExecRunner) Output(ctx context.Context, cmd Command) ([]byte, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return nil, errors.New("workflow: command name is required")
	}
	runCtx, cancel := withTimeout(ctx, cmd.Timeout)
	defer cancel()

	execCmd := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	execCmd.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()
	return stdout.Bytes(), exitError(runCtx, cmd, err, tailOf(stderr.Bytes(), r.tailLines()))
}

func (r *ExecRunner) tailLines() int {
	if r == nil || r.TailLines <= 0 {
		return defaultTailLines
	}
	return r.TailLines
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func exitError(ctx context.Context, cmd Command, err error, tail []string) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &StepError{Command: cmd.String(), ExitCode: -1, Tail: tail, Err: ctxErr}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &StepError{Command: cmd.String(), ExitCode: exitErr.ExitCode(), Tail: tail, Err: err}
	}
	return &StepError{Command: cmd.String(), ExitCode: -1, Tail: tail, Err: err}
}

type tailBuffer struct {
	max int
	buf []string
}

func newTail(max int) *tailBuffer { return &tailBuffer{max: max} }

func (t *tailBuffer) add(line string) {
	t.buf = append(t.buf, line)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
}

func (t *tailBuffer) lines() []string { return t.buf }

func tailOf(output []byte, max int) []string {
	text := strings.TrimRight(string(output), "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}
