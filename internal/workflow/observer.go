package workflow

import "time"

// Outcome is the result of a single step.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Step names used in reports and observer callbacks.
const (
	StepProbe     = "probe"
	StepClone     = "clone"
	StepPatch     = "patch"
	StepCython    = "cython"
	StepPip       = "pip"
	StepExtract   = "extract"
	StepDecompile = "decompile"
)

// StepResult records how a step went.
type StepResult struct {
	Name     string
	Outcome  Outcome
	Detail   string
	Duration time.Duration
}

// Observer receives progress while a Restorer runs. Calls happen on the
// goroutine running the workflow.
type Observer interface {
	StepStarted(name, title string)
	StepOutput(name, line string)
	StepFinished(result StepResult)
	Info(msg string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) StepStarted(string, string) {}
func (NopObserver) StepOutput(string, string)  {}
func (NopObserver) StepFinished(StepResult)    {}
func (NopObserver) Info(string)                {}

// Report summarises a whole run.
type Report struct {
	Input string
	Steps []StepResult
	// RawOutput is the file holding whatever the protected module printed.
	RawOutput string
	// Bytecode is the assembled .pyc, empty when the output was already source.
	Bytecode string
	// Recovered is the final source file.
	Recovered string
	// Decompiled is true when Recovered came from the decompilation service.
	Decompiled bool
}

// Failed reports whether any step failed.
func (r Report) Failed() bool {
	for _, step := range r.Steps {
		if step.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
