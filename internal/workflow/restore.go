package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/asynkron/edpatch/internal/bootprobe"
	"github.com/asynkron/edpatch/internal/config"
	"github.com/asynkron/edpatch/internal/decompile"
	"github.com/asynkron/edpatch/internal/logging"
	"github.com/asynkron/edpatch/pkg/patch"
)

// PatchedModule is the package rebuilt from the clone.
const PatchedModule = "msgpack"

// Decompiler turns .pyc bytes into source.
type Decompiler interface {
	Decompile(ctx context.Context, name string, payload []byte, onStage func(string)) (string, error)
}

// Restorer runs the whole restore for one protected file.
type Restorer struct {
	Options    config.Options
	Runner     Runner
	Decompiler Decompiler
	Observer   Observer
	Logger     logging.Logger
	// Probe inspects the host. Nil means the current directory.
	Probe *bootprobe.Context
	// LookPath resolves commands for the default probe. Nil means exec.LookPath.
	LookPath func(string) (string, error)
}

// Run prepares the patched package when needed, extracts file and
// decompiles the result. The report covers every step attempted, including
// the one that failed.
func (r *Restorer) Run(ctx context.Context, file string) (Report, error) {
	obs := r.observer()
	log := r.logger()
	report := Report{Input: file}

	record := func(result StepResult, err error) error {
		report.Steps = append(report.Steps, result)
		if err != nil {
			log.Error(ctx, "step failed", err, logging.F("step", result.Name))
		} else {
			log.Info(ctx, "step finished", logging.F("step", result.Name), logging.F("outcome", result.Outcome))
		}
		return err
	}

	var installed bool
	_ = record(runStep(StepProbe, "Checking for the patched package", obs, func() (Outcome, string, error) {
		status := bootprobe.DetectInstall(ctx, r.probe(), r.Options.Python, PatchedModule, r.Options.CloneDir)
		installed = status.Installed
		if installed {
			return OutcomeSkipped, "patched " + PatchedModule + " already installed at " + status.Path, nil
		}
		if status.Detail != "" {
			return OutcomeDone, status.Detail, nil
		}
		return OutcomeDone, PatchedModule + " resolves to " + status.Path, nil
	}))
	if installed {
		obs.Info("Custom " + PatchedModule + " already installed.")
	} else if err := r.prepare(ctx, obs, record); err != nil {
		return report, err
	}

	var extraction Extraction
	err := record(runStep(StepExtract, "Running the protected module to extract source", obs, func() (Outcome, string, error) {
		var err error
		extraction, err = Extractor{Runner: r.Runner, Python: r.Options.Python}.Extract(ctx, file)
		if err != nil {
			return OutcomeFailed, "", err
		}
		return OutcomeDone, "raw output saved to " + extraction.RawPath, nil
	}))
	if err != nil {
		return report, err
	}
	report.RawOutput = extraction.RawPath
	report.Bytecode = extraction.BytecodePath

	if extraction.Source {
		report.Recovered = extraction.RawPath
		obs.Info("Source code recovered at " + extraction.RawPath)
		return report, nil
	}

	err = record(runStep(StepDecompile, "Uploading bytecode for decompilation", obs, func() (Outcome, string, error) {
		if r.Decompiler == nil {
			return OutcomeFailed, "", fmt.Errorf("%s: no decompiler configured", StepDecompile)
		}
		code, err := r.Decompiler.Decompile(ctx, filepath.Base(extraction.BytecodePath), extraction.Bytecode, func(stage string) {
			obs.StepOutput(StepDecompile, "stage: "+stage)
		})
		if err != nil {
			return OutcomeFailed, "", err
		}
		dir := filepath.Dir(extraction.RawPath)
		report.Recovered = filepath.Join(dir, Stem(file)+"_pylingual.py")
		if err := os.WriteFile(report.Recovered, []byte(decompile.FilterComments(code)), 0o644); err != nil {
			report.Recovered = ""
			return OutcomeFailed, "", fmt.Errorf("%s: %w", StepDecompile, err)
		}
		report.Decompiled = true
		return OutcomeDone, "reconstructed source saved to " + report.Recovered, nil
	}))
	return report, err
}

func (r *Restorer) prepare(ctx context.Context, obs Observer, record func(StepResult, error) error) error {
	opts := r.Options
	cloner := Cloner{Runner: r.Runner, RepoURL: opts.RepoURL, Dir: opts.CloneDir}
	err := record(runStep(StepClone, "Cloning "+opts.RepoURL, obs, func() (Outcome, string, error) {
		outcome, err := cloner.Clone(ctx, func(line string) { obs.StepOutput(StepClone, line) })
		if outcome == OutcomeSkipped {
			return outcome, opts.CloneDir + " already exists", err
		}
		return outcome, opts.CloneDir, err
	}))
	if err != nil {
		return err
	}

	patcher := Patcher{Target: opts.TargetPath(), PatchFile: opts.PatchFile}
	err = record(runStep(StepPatch, "Applying patch to "+opts.TargetFile, obs, func() (Outcome, string, error) {
		result, err := patcher.Patch(ctx)
		if err != nil {
			return OutcomeFailed, "", fmt.Errorf("%s: %w", StepPatch, err)
		}
		if result.Status == patch.StatusSkipped {
			return OutcomeSkipped, "backup " + result.BackupPath + " exists, already patched", nil
		}
		return OutcomeDone, fmt.Sprintf("%d operations, %d -> %d lines", result.Operations, result.LinesBefore, result.LinesAfter), nil
	}))
	if err != nil {
		return err
	}

	installer := Installer{Runner: r.Runner, Steps: DefaultInstallSteps(opts.CloneDir, opts.Python)}
	results, err := installer.Install(ctx, obs)
	for i, result := range results {
		var stepErr error
		if i == len(results)-1 {
			stepErr = err
		}
		_ = record(result, stepErr)
	}
	return err
}

func (r *Restorer) probe() *bootprobe.Context {
	if r.Probe != nil {
		return r.Probe
	}
	return bootprobe.NewContextWithLookPath(".", r.LookPath).WithRunner(func(ctx context.Context, dir, path string, args ...string) (string, error) {
		out, err := r.Runner.Output(ctx, Command{Name: path, Args: args, Dir: dir})
		return string(out), err
	})
}

func (r *Restorer) observer() Observer {
	if r.Observer != nil {
		return r.Observer
	}
	return NopObserver{}
}

func (r *Restorer) logger() logging.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return &logging.NoOpLogger{}
}
