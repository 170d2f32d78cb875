package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asynkron/edpatch/internal/bootprobe"
	"github.com/asynkron/edpatch/internal/decompile"
	"github.com/asynkron/edpatch/internal/logging"
	"github.com/asynkron/edpatch/internal/tui"
	"github.com/asynkron/edpatch/internal/workflow"
	"github.com/asynkron/edpatch/pkg/patch"
)

const previewContext = 2

func newApplyCmd(a *app) *cobra.Command {
	var (
		opts     patch.FileOptions
		showDiff bool
	)
	cmd := &cobra.Command{
		Use:   "apply <source> <patch>",
		Short: "Apply an ed-style diff script to a file",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Source = args[0]
			opts.Patch = args[1]
			ctx := cmd.Context()

			result, err := patch.ApplyFile(ctx, opts)
			if err != nil {
				return a.reportPatchError(ctx, err)
			}
			a.logger.Info(ctx, "patch processed",
				logging.F("status", result.Status),
				logging.F("source", result.Source),
				logging.F("operations", result.Operations))

			switch result.Status {
			case patch.StatusSkipped:
				fmt.Fprintf(a.stdout, "Skipped %s: backup %s exists, already patched\n", result.Source, result.BackupPath)
				return nil
			case patch.StatusDryRun:
				fmt.Fprintf(a.stdout, "Would apply %d operations to %s (%d -> %d lines)\n",
					result.Operations, result.Source, result.LinesBefore, result.LinesAfter)
				fmt.Fprint(a.stdout, patch.Preview(result.Before, result.After, previewContext))
				return nil
			}

			fmt.Fprintf(a.stdout, "Applied %d operations to %s (%d -> %d lines)\n",
				result.Operations, result.Output, result.LinesBefore, result.LinesAfter)
			if result.BackupPath != "" {
				fmt.Fprintf(a.stdout, "Backup: %s\n", result.BackupPath)
			}
			if showDiff {
				fmt.Fprint(a.stdout, patch.Preview(result.Before, result.After, previewContext))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.Output, "output", "o", "", "write the result here instead of overwriting the source")
	flags.BoolVar(&opts.Backup, "backup", false, "copy the source aside first; an existing backup skips patching")
	flags.StringVar(&opts.BackupSuffix, "backup-suffix", patch.DefaultBackupSuffix, "suffix of the backup file")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "show what would change without writing")
	flags.BoolVar(&opts.AllowOverlap, "allow-overlap", false, "apply overlapping or out-of-order operations as written")
	flags.BoolVar(&showDiff, "diff", false, "print the changed lines after applying")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		source       string
		allowOverlap bool
	)
	cmd := &cobra.Command{
		Use:   "check <patch>",
		Short: "Parse and validate a diff script",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			script := patch.Parse(string(data))
			for i, op := range script {
				fmt.Fprintf(a.stdout, "%d: %s %s\n", i+1, op.Control, describe(op))
			}
			if len(script) == 0 {
				fmt.Fprintln(a.stdout, "No operations found.")
			}

			if !allowOverlap {
				if err := patch.Validate(script); err != nil {
					return a.reportPatchError(ctx, withPath(err, args[0]))
				}
			}

			if source == "" {
				fmt.Fprintf(a.stdout, "OK: %d operations\n", len(script))
				return nil
			}
			text, err := os.ReadFile(source)
			if err != nil {
				return err
			}
			before := patch.SplitLines(string(text))
			after, err := patch.Apply(before, script, patch.Options{AllowOverlap: allowOverlap})
			if err != nil {
				return a.reportPatchError(ctx, withPath(err, source))
			}
			fmt.Fprintf(a.stdout, "OK: %d operations apply to %s (%d -> %d lines)\n", len(script), source, len(before), len(after))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "also check that every operation fits this file")
	cmd.Flags().BoolVar(&allowOverlap, "allow-overlap", false, "accept overlapping or out-of-order operations")
	return cmd
}

func describe(op patch.Operation) string {
	switch op.Type {
	case patch.OperationAppend:
		return fmt.Sprintf("append %d line(s) after line %d", len(op.Lines), op.Anchor)
	case patch.OperationChange:
		return fmt.Sprintf("replace %d line(s) at line %d with %d line(s)", op.RemoveCount, op.Anchor, len(op.Lines))
	default:
		return string(op.Type)
	}
}

func newFormatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "format <patch>",
		Short: "Print a diff script in canonical form",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, patch.Format(patch.Parse(string(data))))
			return nil
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	var noReport bool
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Recover the source of a protected Python module",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := a.options
			if err := opts.Validate(); err != nil {
				return usageError{err: err}
			}
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}

			fmt.Fprintln(a.stdout, tui.Banner("Sourcedefender Restore", "ed-style patching and bytecode recovery", opts.APIEndpoint))

			client := decompile.NewClient(opts.APIEndpoint, opts.HTTPTimeout)
			client.PollInterval = opts.PollInterval
			client.Logger = a.logger.WithFields(logging.F("component", "decompile"))

			restorer := &workflow.Restorer{
				Options:    opts,
				Runner:     workflow.NewExecRunner(),
				Decompiler: client,
				Logger:     a.logger.WithFields(logging.F("component", "workflow")),
			}

			var report workflow.Report
			runErr := tui.RunStatus(ctx, a.stdout, "Restoring "+args[0], opts.Plain, func(ctx context.Context, obs workflow.Observer) error {
				restorer.Observer = obs
				var err error
				report, err = restorer.Run(ctx, args[0])
				return err
			})

			if !noReport {
				rendered, err := tui.RenderReport(report, 80, opts.Plain)
				if err != nil {
					a.logger.Warn(ctx, "render report", logging.F("error", err))
					rendered = tui.ReportMarkdown(report)
				}
				fmt.Fprint(a.stdout, rendered)
			}
			if runErr != nil {
				a.logger.Error(ctx, "restore failed", runErr)
				printStepTail(a, runErr)
				return runErr
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noReport, "no-report", false, "skip the summary printed after the run")
	return cmd
}

func printStepTail(a *app, err error) {
	var stepErr *workflow.StepError
	if !errors.As(err, &stepErr) || len(stepErr.Tail) == 0 {
		return
	}
	fmt.Fprintf(a.stderr, "Last output of %s:\n", stepErr.Command)
	for _, line := range stepErr.Tail {
		fmt.Fprintf(a.stderr, "  %s\n", line)
	}
}

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report which tools and restore prerequisites are present",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			opts := a.options
			result := bootprobe.Run(cmd.Context(), bootprobe.NewContext(cwd), bootprobe.Request{
				CloneDir:   opts.CloneDir,
				TargetFile: opts.TargetFile,
				Python:     opts.Python,
				Module:     workflow.PatchedModule,
				Commands:   []string{"git", "cython", opts.Python},
			})
			fmt.Fprintln(a.stdout, bootprobe.FormatSummary(result))
			if missing := result.Missing(); len(missing) > 0 {
				fmt.Fprintf(a.stdout, "Missing: %s\n", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

// reportPatchError prints structured patch failures in full and returns
// errReported; other errors are returned unchanged.
func (a *app) reportPatchError(ctx context.Context, err error) error {
	var perr *patch.Error
	if !errors.As(err, &perr) {
		return err
	}
	a.logger.Error(ctx, "patch failed", err, logging.F("code", perr.Code))
	fmt.Fprintln(a.stderr, patch.FormatError(perr))
	return errReported
}

func withPath(err error, path string) error {
	var perr *patch.Error
	if errors.As(err, &perr) && perr.Path == "" {
		perr.Path = path
	}
	return err
}
