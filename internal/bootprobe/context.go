package bootprobe

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
)

// CommandRunner executes a resolved command in dir and returns its stdout.
type CommandRunner func(ctx context.Context, dir, path string, args ...string) (string, error)

// Context provides helper methods for inspecting the working directory and
// interrogating the current execution environment. Tests supply fixture
// directories and replace command lookup and execution.
type Context struct {
	root     string
	lookPath func(string) (string, error)
	run      CommandRunner
}

// NewContext constructs a Context rooted at the provided path, made absolute
// so paths reported by other processes can be compared against it. Commands
// are resolved using exec.LookPath by default.
func NewContext(root string) *Context {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Context{
		root:     root,
		lookPath: exec.LookPath,
		run:      execOutput,
	}
}

// NewContextWithLookPath allows tests to override the command lookup
// implementation so that probes can be exercised without relying on tools being
// present on the host PATH.
func NewContextWithLookPath(root string, lookPath func(string) (string, error)) *Context {
	ctx := NewContext(root)
	if lookPath != nil {
		ctx.lookPath = lookPath
	}
	return ctx
}

// WithRunner replaces command execution and returns c.
func (c *Context) WithRunner(run CommandRunner) *Context {
	if run != nil {
		c.run = run
	}
	return c
}

// Abs resolves relPath against the root. Absolute paths are cleaned and
// returned as is.
func (c *Context) Abs(relPath string) string {
	if filepath.IsAbs(relPath) {
		return filepath.Clean(relPath)
	}
	return filepath.Clean(filepath.Join(c.root, relPath))
}

// HasFile reports whether a file exists relative to the root.
func (c *Context) HasFile(relPath string) bool {
	if relPath == "" {
		return false
	}
	info, err := os.Stat(c.Abs(relPath))
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// HasDir reports whether a directory exists relative to the root.
func (c *Context) HasDir(relPath string) bool {
	if relPath == "" {
		return false
	}
	info, err := os.Stat(c.Abs(relPath))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// CommandExists reports whether a command is available on PATH.
func (c *Context) CommandExists(name string) bool {
	if name == "" {
		return false
	}
	_, err := c.lookPath(name)
	return err == nil
}

// RunCommandOutput resolves and executes a command in the root directory,
// returning its stdout. Intended for short read-only probes.
func (c *Context) RunCommandOutput(ctx context.Context, name string, args ...string) (string, error) {
	if name == "" {
		return "", errors.New("command name must be provided")
	}
	path, err := c.lookPath(name)
	if err != nil {
		return "", err
	}
	return c.run(ctx, c.root, path, args...)
}

func execOutput(ctx context.Context, dir, path string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	return string(out), err
}
