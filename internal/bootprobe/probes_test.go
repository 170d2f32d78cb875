package bootprobe

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeLookPath(available ...string) func(string) (string, error) {
	set := map[string]bool{}
	for _, name := range available {
		set[name] = true
	}
	return func(name string) (string, error) {
		if set[name] {
			return filepath.Join("/usr/bin", name), nil
		}
		return "", exec.ErrNotFound
	}
}

func TestRunReportsCloneAndPatchState(t *testing.T) {
	dir := t.TempDir()
	clone := filepath.Join(dir, "msgpack-python")
	mustWriteFile(t, clone, "msgpack/_unpacker.pyx", "cdef x")
	mustWriteFile(t, clone, "msgpack/_unpacker.pyx.bak", "cdef x")

	var gotScript string
	c := NewContextWithLookPath(dir, fakeLookPath("git", "python")).
		WithRunner(func(_ context.Context, runDir, path string, args ...string) (string, error) {
			require.Equal(t, dir, runDir)
			require.Equal(t, "/usr/bin/python", path)
			gotScript = args[1]
			return filepath.Join(clone, "msgpack", "__init__.py") + "\n", nil
		})

	result := Run(context.Background(), c, Request{
		CloneDir:   "msgpack-python",
		TargetFile: "msgpack/_unpacker.pyx",
		Python:     "python",
		Module:     "msgpack",
		Commands:   []string{"git", "python", "cython"},
	})

	require.True(t, result.CloneExists)
	require.True(t, result.PatchApplied)
	require.True(t, result.Install.Installed)
	require.Equal(t, []string{"cython"}, result.Missing())
	require.Contains(t, gotScript, "import os, msgpack")

	summary := FormatSummary(result)
	require.True(t, strings.HasPrefix(summary, "OS:"))
	require.Contains(t, summary, "cython (missing)")
	require.Contains(t, summary, "Patched package installed: "+filepath.Join(clone, "msgpack", "__init__.py"))
}

func TestDetectInstallRejectsSystemPackage(t *testing.T) {
	dir := t.TempDir()
	c := NewContextWithLookPath(dir, fakeLookPath("python")).
		WithRunner(func(context.Context, string, string, ...string) (string, error) {
			return "/usr/lib/python3/site-packages/msgpack/__init__.py\n", nil
		})

	status := DetectInstall(context.Background(), c, "python", "msgpack", "msgpack-python")
	require.False(t, status.Installed)
	require.Equal(t, "/usr/lib/python3/site-packages/msgpack/__init__.py", status.Path)
}

func TestDetectInstallHandlesImportFailure(t *testing.T) {
	c := NewContextWithLookPath(t.TempDir(), fakeLookPath("python")).
		WithRunner(func(context.Context, string, string, ...string) (string, error) {
			return "", errors.New("exit status 1")
		})

	status := DetectInstall(context.Background(), c, "python", "msgpack", "clone")
	require.False(t, status.Installed)
	require.Contains(t, status.Detail, "not importable")
}

func TestDetectInstallValidatesModuleName(t *testing.T) {
	called := false
	c := NewContextWithLookPath(t.TempDir(), fakeLookPath("python")).
		WithRunner(func(context.Context, string, string, ...string) (string, error) {
			called = true
			return "", nil
		})

	status := DetectInstall(context.Background(), c, "python", "os; import sys", "clone")
	require.False(t, status.Installed)
	require.False(t, called)
}

func TestRunCommandOutputRequiresCommand(t *testing.T) {
	c := NewContextWithLookPath(t.TempDir(), fakeLookPath())
	_, err := c.RunCommandOutput(context.Background(), "")
	require.Error(t, err)
	_, err = c.RunCommandOutput(context.Background(), "python")
	require.ErrorIs(t, err, exec.ErrNotFound)
}

func TestContextFileHelpers(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, dir, "sub/file.txt", "x")
	c := NewContext(dir)

	require.True(t, c.HasFile("sub/file.txt"))
	require.False(t, c.HasFile("sub"))
	require.True(t, c.HasDir("sub"))
	require.False(t, c.HasDir(""))
	require.Equal(t, filepath.Join(dir, "sub"), c.Abs("sub"))
	require.Equal(t, "/abs/path", c.Abs("/abs/path/"))
}

func TestFormatOSLine(t *testing.T) {
	require.Equal(t, "OS: linux/amd64", FormatOSLine(OSResult{GOOS: "linux", GOARCH: "amd64"}))
	require.Equal(t, "OS: linux/arm64 (Debian)", FormatOSLine(OSResult{GOOS: "linux", GOARCH: "arm64", Distribution: "Debian"}))
}

func mustWriteFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestNewContextResolvesRootToAbsolute(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	c := NewContext(".")
	require.Equal(t, filepath.Join(cwd, "msgpack-python"), c.Abs("./msgpack-python"))
}

func TestDetectInstallRejectsCloneWithSameNameElsewhere(t *testing.T) {
	cases := []struct {
		name      string
		resolved  string
		installed bool
	}{
		{name: "other checkout", resolved: "/opt/old/msgpack-python/msgpack/__init__.py", installed: false},
		{name: "sibling prefix", resolved: "", installed: false},
		{name: "inside clone", resolved: "", installed: true},
	}

	cwd, err := os.Getwd()
	require.NoError(t, err)
	cases[1].resolved = filepath.Join(cwd, "msgpack-python-old", "msgpack", "__init__.py")
	cases[2].resolved = filepath.Join(cwd, "msgpack-python", "msgpack", "__init__.py")

	for _, tc := range cases {
		c := NewContextWithLookPath(".", fakeLookPath("python")).
			WithRunner(func(context.Context, string, string, ...string) (string, error) {
				return tc.resolved + "\n", nil
			})
		status := DetectInstall(context.Background(), c, "python", "msgpack", "./msgpack-python")
		if status.Installed != tc.installed {
			t.Fatalf("%s: Installed = %v, want %v (path %s)", tc.name, status.Installed, tc.installed, status.Path)
		}
	}
}
