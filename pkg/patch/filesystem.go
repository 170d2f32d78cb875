package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Status describes what ApplyFile did.
type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusDryRun  Status = "dry-run"
)

// DefaultBackupSuffix is appended to the source path when FileOptions.Backup
// is set and no suffix is given.
const DefaultBackupSuffix = ".bak"

// FileOptions augments Options with the paths used by ApplyFile.
type FileOptions struct {
	Options
	// Source is the file being patched.
	Source string
	// Patch is the diff script.
	Patch string
	// Output receives the patched file. Empty means overwrite Source.
	Output string
	// Backup copies Source aside before writing. An existing backup marks the
	// file as already patched and ApplyFile leaves everything untouched.
	Backup       bool
	BackupSuffix string
	// DryRun computes the result without writing anything.
	DryRun bool
}

// Result describes the outcome of ApplyFile.
type Result struct {
	Status      Status
	Source      string
	Output      string
	BackupPath  string
	Operations  int
	LinesBefore int
	LinesAfter  int
	Before      string
	After       string
}

// ApplyFile reads Source and Patch, applies the script and writes the result
// to Output, keeping the permissions of the source file.
func ApplyFile(ctx context.Context, opts FileOptions) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &Error{Message: err.Error(), Code: CodeCanceled, Err: err}
	}
	source := strings.TrimSpace(opts.Source)
	patchPath := strings.TrimSpace(opts.Patch)
	if source == "" || patchPath == "" {
		return Result{}, &Error{Message: "source and patch paths are required", Code: CodeReadFailed}
	}
	output := strings.TrimSpace(opts.Output)
	if output == "" {
		output = source
	}
	result := Result{Source: source, Output: output}

	if opts.Backup {
		suffix := opts.BackupSuffix
		if suffix == "" {
			suffix = DefaultBackupSuffix
		}
		result.BackupPath = source + suffix
		if _, err := os.Stat(result.BackupPath); err == nil {
			result.Status = StatusSkipped
			return result, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Result{}, &Error{Message: fmt.Sprintf("failed to stat %s: %v", result.BackupPath, err), Code: CodeReadFailed, Path: result.BackupPath, Err: err}
		}
	}

	info, err := os.Stat(source)
	if err != nil {
		return Result{}, &Error{Message: fmt.Sprintf("failed to read %s: %v", source, err), Code: CodeReadFailed, Path: source, Err: err}
	}
	if info.IsDir() {
		return Result{}, &Error{Message: fmt.Sprintf("cannot patch directory %s", source), Code: CodeReadFailed, Path: source}
	}
	content, err := os.ReadFile(source)
	if err != nil {
		return Result{}, &Error{Message: fmt.Sprintf("failed to read %s: %v", source, err), Code: CodeReadFailed, Path: source, Err: err}
	}
	diff, err := os.ReadFile(patchPath)
	if err != nil {
		return Result{}, &Error{Message: fmt.Sprintf("failed to read %s: %v", patchPath, err), Code: CodeReadFailed, Path: patchPath, Err: err}
	}

	before := SplitLines(string(content))
	script := Parse(string(diff))
	after, err := Apply(before, script, opts.Options)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = source
		}
		return Result{}, err
	}
	result.Operations = len(script)
	result.LinesBefore = len(before)
	result.LinesAfter = len(after)
	result.Before = string(content)
	result.After = JoinLines(after)

	if opts.DryRun {
		result.Status = StatusDryRun
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, &Error{Message: err.Error(), Code: CodeCanceled, Err: err}
	}

	perm := info.Mode() & fs.ModePerm
	if perm == 0 {
		perm = 0o644
	}
	if opts.Backup {
		if err := os.WriteFile(result.BackupPath, content, perm); err != nil {
			return Result{}, &Error{Message: fmt.Sprintf("failed to write %s: %v", result.BackupPath, err), Code: CodeWriteFailed, Path: result.BackupPath, Err: err}
		}
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return Result{}, &Error{Message: fmt.Sprintf("failed to create directory for %s: %v", output, err), Code: CodeWriteFailed, Path: output, Err: err}
	}
	if err := os.WriteFile(output, []byte(result.After), perm); err != nil {
		return Result{}, &Error{Message: fmt.Sprintf("failed to write %s: %v", output, err), Code: CodeWriteFailed, Path: output, Err: err}
	}
	result.Status = StatusApplied
	return result, nil
}
