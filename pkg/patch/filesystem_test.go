package patch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestApplyFileOverwritesSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := writeFixture(t, dir, "foo.txt", "one\ntwo\nthree", 0o600)
	diff := writeFixture(t, dir, "foo.diff", "2c2\n< two\n---\n> TWO\n", 0o644)

	result, err := ApplyFile(context.Background(), FileOptions{Source: source, Patch: diff})
	if err != nil {
		t.Fatalf("ApplyFile returned error: %v", err)
	}
	if result.Status != StatusApplied || result.Output != source || result.Operations != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	content, err := os.ReadFile(source)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(content) != "one\nTWO\nthree\n" {
		t.Fatalf("unexpected content: %q", content)
	}
	info, err := os.Stat(source)
	if err != nil {
		t.Fatalf("failed to stat file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("permissions not preserved: %v", info.Mode())
	}
}

func TestApplyFileWritesSeparateOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := writeFixture(t, dir, "in.txt", "alpha\nbeta\n", 0o644)
	diff := writeFixture(t, dir, "in.diff", "1a\n> inserted\n", 0o644)
	output := filepath.Join(dir, "out", "result.txt")

	if _, err := ApplyFile(context.Background(), FileOptions{Source: source, Patch: diff, Output: output}); err != nil {
		t.Fatalf("ApplyFile returned error: %v", err)
	}
	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if string(got) != "alpha\ninserted\nbeta\n" {
		t.Fatalf("unexpected output: %q", got)
	}
	original, _ := os.ReadFile(source)
	if string(original) != "alpha\nbeta\n" {
		t.Fatalf("source modified: %q", original)
	}
}

func TestApplyFileBackupSkipsSecondRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := writeFixture(t, dir, "mod.pyx", "a\nb\n", 0o644)
	diff := writeFixture(t, dir, "mod.diff", "2a\n> c\n", 0o644)
	opts := FileOptions{Source: source, Patch: diff, Backup: true}

	first, err := ApplyFile(context.Background(), opts)
	if err != nil {
		t.Fatalf("ApplyFile returned error: %v", err)
	}
	if first.Status != StatusApplied || first.BackupPath != source+".bak" {
		t.Fatalf("unexpected result: %#v", first)
	}
	backup, err := os.ReadFile(first.BackupPath)
	if err != nil || string(backup) != "a\nb\n" {
		t.Fatalf("backup missing or wrong: %q %v", backup, err)
	}

	second, err := ApplyFile(context.Background(), opts)
	if err != nil {
		t.Fatalf("ApplyFile returned error: %v", err)
	}
	if second.Status != StatusSkipped {
		t.Fatalf("expected skip, got %#v", second)
	}
	content, _ := os.ReadFile(source)
	if string(content) != "a\nb\nc\n" {
		t.Fatalf("file patched twice: %q", content)
	}
}

func TestApplyFileDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := writeFixture(t, dir, "x.txt", "a\n", 0o644)
	diff := writeFixture(t, dir, "x.diff", "1c1\n< a\n---\n> b\n", 0o644)

	result, err := ApplyFile(context.Background(), FileOptions{Source: source, Patch: diff, DryRun: true, Backup: true})
	if err != nil {
		t.Fatalf("ApplyFile returned error: %v", err)
	}
	if result.Status != StatusDryRun || result.After != "b\n" || result.Before != "a\n" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if _, err := os.Stat(source + ".bak"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run created a backup: %v", err)
	}
	content, _ := os.ReadFile(source)
	if string(content) != "a\n" {
		t.Fatalf("dry run modified source: %q", content)
	}
}

func TestApplyFileReportsPathOnApplyFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := writeFixture(t, dir, "short.txt", "a\n", 0o644)
	diff := writeFixture(t, dir, "short.diff", "7a\n> x\n", 0o644)

	_, err := ApplyFile(context.Background(), FileOptions{Source: source, Patch: diff})
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if pe.Code != CodeOutOfRange || pe.Path != source {
		t.Fatalf("unexpected error: %#v", pe)
	}
}

func TestApplyFileMissingSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	diff := writeFixture(t, dir, "p.diff", "1a\n> x\n", 0o644)

	_, err := ApplyFile(context.Background(), FileOptions{Source: filepath.Join(dir, "missing.txt"), Patch: diff})
	var pe *Error
	if !errors.As(err, &pe) || pe.Code != CodeReadFailed {
		t.Fatalf("expected read failure, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}

func TestApplyFileHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ApplyFile(ctx, FileOptions{Source: "a", Patch: "b"})
	var pe *Error
	if !errors.As(err, &pe) || pe.Code != CodeCanceled {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if !strings.Contains(pe.Message, "context canceled") {
		t.Fatalf("unexpected message: %q", pe.Message)
	}
}

func TestPreviewShowsChangedLines(t *testing.T) {
	t.Parallel()

	before := "1\n2\n3\n4\n5\n6\n7\n"
	after := "1\n2\n3\nFOUR\n5\n6\n7\n"

	got := Preview(before, after, 1)
	want := "...\n 3\n-4\n+FOUR\n 5\n...\n"
	if got != want {
		t.Fatalf("Preview() = %q, want %q", got, want)
	}
}
