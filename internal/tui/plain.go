package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/asynkron/edpatch/internal/workflow"
)

// PlainObserver writes workflow progress as plain lines.
type PlainObserver struct {
	w io.Writer
}

// NewPlainObserver returns an observer writing to w.
func NewPlainObserver(w io.Writer) *PlainObserver {
	return &PlainObserver{w: w}
}

func (o *PlainObserver) StepStarted(_, title string) {
	fmt.Fprintf(o.w, "==> %s\n", title)
}

func (o *PlainObserver) StepOutput(_, line string) {
	fmt.Fprintf(o.w, "    %s\n", line)
}

func (o *PlainObserver) StepFinished(result workflow.StepResult) {
	fmt.Fprintf(o.w, "    %s (%s)", result.Outcome, result.Duration.Round(time.Millisecond))
	if result.Detail != "" {
		fmt.Fprintf(o.w, ": %s", result.Detail)
	}
	fmt.Fprintln(o.w)
}

func (o *PlainObserver) Info(msg string) {
	fmt.Fprintln(o.w, msg)
}
