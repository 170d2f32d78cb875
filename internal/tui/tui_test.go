package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/asynkron/edpatch/internal/workflow"
)

func init() {
	Configure(true)
}

func TestModelTracksStepsUntilDone(t *testing.T) {
	canceled := false
	m := newModel("Restoring secret.pye", func() { canceled = true })

	m.Update(stepStartedMsg{name: workflow.StepClone, title: "Cloning repo"})
	m.Update(stepOutputMsg{name: workflow.StepClone, line: "Receiving objects: 100%"})
	view := m.View()
	require.Contains(t, view, "Cloning repo")
	require.Contains(t, view, "Receiving objects: 100%")

	m.Update(stepFinishedMsg{result: workflow.StepResult{Name: workflow.StepClone, Outcome: workflow.OutcomeDone, Duration: 1500 * time.Millisecond}})
	m.Update(infoMsg{text: "Custom msgpack already installed."})
	view = m.View()
	require.Contains(t, view, "[x] Cloning repo (1.5s)")
	require.NotContains(t, view, "Receiving objects")
	require.Contains(t, view, "Custom msgpack already installed.")

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.True(t, canceled)
	require.Contains(t, m.View(), "canceling")

	_, cmd := m.Update(doneMsg{err: errors.New("boom")})
	require.NotNil(t, cmd)
	require.Equal(t, tea.QuitMsg{}, cmd())
	view = m.View()
	require.Contains(t, view, "[error] boom")
	require.NotContains(t, view, "canceling")
}

func TestStepTableRender(t *testing.T) {
	t.Parallel()

	table := NewStepTable()
	require.Equal(t, "", table.Render(80, ""))

	table.OutputTail = 2
	table.Start("cython", "Running Cython")
	for _, line := range []string{"one", "two", "three"} {
		table.Output("cython", line)
	}
	out := table.Render(60, "")
	require.Contains(t, out, "[~] Running Cython")
	require.NotContains(t, out, "one")
	require.Contains(t, out, "three")

	table.Finish(workflow.StepResult{Name: "cython", Outcome: workflow.OutcomeFailed, Detail: "exit 1"})
	table.Finish(workflow.StepResult{Name: "pip", Outcome: workflow.OutcomeSkipped})
	out = table.Render(60, "*")
	require.Contains(t, out, "[!] Running Cython")
	require.Contains(t, out, "exit 1")
	require.Contains(t, out, "[-] pip")
	require.Equal(t, 2, table.Len())

	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		require.LessOrEqual(t, len([]rune(line)), 60)
	}
}

func TestReportMarkdown(t *testing.T) {
	t.Parallel()

	md := ReportMarkdown(workflow.Report{
		Input: "secret.pye",
		Steps: []workflow.StepResult{
			{Name: "patch", Outcome: workflow.OutcomeSkipped, Detail: "a|b"},
			{Name: "decompile", Outcome: workflow.OutcomeDone, Duration: 2 * time.Second},
		},
		RawOutput:  "secret.py",
		Bytecode:   "secret.pyc",
		Recovered:  "secret_pylingual.py",
		Decompiled: true,
	})
	require.Contains(t, md, "Input: `secret.pye`")
	require.Contains(t, md, "| patch | skipped | 0s | a\\|b |")
	require.Contains(t, md, "| decompile | done | 2s |  |")
	require.Contains(t, md, "**Reconstructed source:** `secret_pylingual.py`")

	failed := ReportMarkdown(workflow.Report{Steps: []workflow.StepResult{{Name: "pip", Outcome: workflow.OutcomeFailed}}})
	require.Contains(t, failed, "Restore failed")
}

func TestRenderReportPlain(t *testing.T) {
	t.Parallel()

	out, err := RenderReport(workflow.Report{Input: "x.pye", Recovered: "x.py"}, 80, true)
	require.NoError(t, err)
	require.Contains(t, out, "Restore report")
	require.Contains(t, out, "x.py")
}

func TestBanner(t *testing.T) {
	t.Parallel()

	out := Banner("Restore", "by someone", "https://example.com")
	require.Contains(t, out, "Restore")
	require.Contains(t, out, "https://example.com")
	require.Contains(t, out, "╭")
}

func TestRunStatusPlain(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := RunStatus(context.Background(), &buf, "Restoring", true, func(_ context.Context, obs workflow.Observer) error {
		obs.StepStarted("clone", "Cloning")
		obs.StepOutput("clone", "remote: done")
		obs.StepFinished(workflow.StepResult{Name: "clone", Outcome: workflow.OutcomeDone, Detail: "./msgpack-python"})
		obs.Info("all good")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "Restoring...\n==> Cloning\n    remote: done\n    done (0s): ./msgpack-python\nall good\n", buf.String())
}

func TestHSLToHex(t *testing.T) {
	t.Parallel()

	cases := map[string][3]float64{
		"#FF0000": {0, 1, 0.5},
		"#00FF00": {120, 1, 0.5},
		"#0000FF": {240, 1, 0.5},
		"#FFFFFF": {0, 0, 1},
		"#000000": {0, 0, 0},
	}
	for want, hsl := range cases {
		if got := hslToHex(hsl[0], hsl[1], hsl[2]); got != want {
			t.Fatalf("hslToHex(%v) = %s, want %s", hsl, got, want)
		}
	}
}
