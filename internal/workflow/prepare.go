package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/asynkron/edpatch/pkg/patch"
)

// Cloner fetches the extension source.
type Cloner struct {
	Runner  Runner
	RepoURL string
	Dir     string
}

// Clone runs git clone unless Dir already exists.
func (c Cloner) Clone(ctx context.Context, onLine func(string)) (Outcome, error) {
	if info, err := os.Stat(c.Dir); err == nil && info.IsDir() {
		return OutcomeSkipped, nil
	}
	cmd := Command{Name: "git", Args: []string{"clone", c.RepoURL, c.Dir}}
	if err := c.Runner.Run(ctx, cmd, onLine); err != nil {
		return OutcomeFailed, withStep(StepClone, err)
	}
	return OutcomeDone, nil
}

// Patcher applies the ed-style diff to the target file inside the clone. The
// backup written next to the target marks the clone as patched.
type Patcher struct {
	Target       string
	PatchFile    string
	BackupSuffix string
}

// Patch applies the diff in place.
func (p Patcher) Patch(ctx context.Context) (patch.Result, error) {
	return patch.ApplyFile(ctx, patch.FileOptions{
		Source:       p.Target,
		Patch:        p.PatchFile,
		Backup:       true,
		BackupSuffix: p.BackupSuffix,
	})
}

// InstallStep is one command of the build.
type InstallStep struct {
	Name    string
	Title   string
	Command Command
}

// Installer compiles and installs the patched package from the clone.
type Installer struct {
	Runner Runner
	Steps  []InstallStep
}

// DefaultInstallSteps regenerates the C extension and installs the clone in
// editable mode with python's pip.
func DefaultInstallSteps(cloneDir, python string) []InstallStep {
	return []InstallStep{
		{
			Name:    StepCython,
			Title:   "Running Cython",
			Command: Command{Name: "cython", Args: []string{filepath.Join("msgpack", "_cmsgpack.pyx")}, Dir: cloneDir},
		},
		{
			Name:    StepPip,
			Title:   "Installing with pip",
			Command: Command{Name: python, Args: []string{"-m", "pip", "install", "-e", "."}, Dir: cloneDir},
		},
	}
}

// Install runs every step in order and stops at the first failure.
func (in Installer) Install(ctx context.Context, obs Observer) ([]StepResult, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	results := make([]StepResult, 0, len(in.Steps))
	for _, step := range in.Steps {
		result, err := runStep(step.Name, step.Title, obs, func() (Outcome, string, error) {
			err := in.Runner.Run(ctx, step.Command, func(line string) { obs.StepOutput(step.Name, line) })
			if err != nil {
				return OutcomeFailed, "", withStep(step.Name, err)
			}
			return OutcomeDone, step.Command.String(), nil
		})
		results = append(results, result)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// runStep times fn and reports it to obs.
func runStep(name, title string, obs Observer, fn func() (Outcome, string, error)) (StepResult, error) {
	obs.StepStarted(name, title)
	start := time.Now()
	outcome, detail, err := fn()
	result := StepResult{Name: name, Outcome: outcome, Detail: detail, Duration: time.Since(start)}
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Detail = err.Error()
	}
	obs.StepFinished(result)
	return result, err
}

func withStep(step string, err error) error {
	var se *StepError
	if errors.As(err, &se) {
		se.Step = step
		return se
	}
	return fmt.Errorf("%s: %w", step, err)
}
