package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/asynkron/edpatch/internal/workflow"
)

const defaultOutputTail = 6

type rowState int

const (
	rowRunning rowState = iota
	rowDone
	rowSkipped
	rowFailed
)

type stepRow struct {
	name     string
	title    string
	state    rowState
	detail   string
	duration time.Duration
	output   []string
}

// StepTable tracks workflow steps and renders them as a checklist panel. The
// running step shows the tail of its output.
type StepTable struct {
	// OutputTail is how many output lines a running step shows.
	OutputTail int

	rows  []stepRow
	index map[string]int
	panel lipgloss.Style
}

// NewStepTable returns an empty table.
func NewStepTable() *StepTable {
	return &StepTable{
		OutputTail: defaultOutputTail,
		index:      map[string]int{},
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("129")).
			Foreground(lipgloss.Color("252")).
			PaddingLeft(1).
			PaddingRight(1),
	}
}

// Start adds name or marks it running again.
func (t *StepTable) Start(name, title string) {
	if idx, ok := t.index[name]; ok {
		t.rows[idx].state = rowRunning
		t.rows[idx].output = nil
		return
	}
	if strings.TrimSpace(title) == "" {
		title = name
	}
	t.rows = append(t.rows, stepRow{name: name, title: title})
	t.index[name] = len(t.rows) - 1
}

// Output records a line printed by step name.
func (t *StepTable) Output(name, line string) {
	idx, ok := t.index[name]
	if !ok {
		t.Start(name, name)
		idx = t.index[name]
	}
	row := &t.rows[idx]
	row.output = append(row.output, line)
	if limit := t.tail(); len(row.output) > limit {
		row.output = row.output[len(row.output)-limit:]
	}
}

// Finish stores the outcome of a step.
func (t *StepTable) Finish(result workflow.StepResult) {
	idx, ok := t.index[result.Name]
	if !ok {
		t.Start(result.Name, result.Name)
		idx = t.index[result.Name]
	}
	row := &t.rows[idx]
	row.detail = result.Detail
	row.duration = result.Duration
	switch result.Outcome {
	case workflow.OutcomeFailed:
		row.state = rowFailed
	case workflow.OutcomeSkipped:
		row.state = rowSkipped
	default:
		row.state = rowDone
	}
}

// Len reports the number of rows.
func (t *StepTable) Len() int { return len(t.rows) }

func (t *StepTable) tail() int {
	if t.OutputTail <= 0 {
		return defaultOutputTail
	}
	return t.OutputTail
}

// Render draws the table as a bordered panel that fits width. spin replaces
// the checkbox of running steps when non-empty. An empty table renders as "".
func (t *StepTable) Render(width int, spin string) string {
	if len(t.rows) == 0 {
		return ""
	}
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	var inner strings.Builder
	for i, row := range t.rows {
		var box, color string
		switch row.state {
		case rowDone:
			box, color = "[x]", "70"
		case rowFailed:
			box, color = "[!]", "196"
		case rowSkipped:
			box, color = "[-]", "244"
		default:
			box, color = "[~]", "214"
			if spin != "" {
				box = spin
			}
		}
		inner.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(box))
		inner.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Render(" " + row.title))
		if row.state != rowRunning {
			inner.WriteString(dim.Render(fmt.Sprintf(" (%s)", row.duration.Round(time.Millisecond))))
			if row.detail != "" {
				inner.WriteString("\n")
				inner.WriteString(dim.Render("    " + row.detail))
			}
		} else {
			for _, line := range row.output {
				inner.WriteString("\n")
				inner.WriteString(dim.Render("    " + line))
			}
		}
		if i < len(t.rows)-1 {
			inner.WriteString("\n")
		}
	}
	// 2 for padding, 2 for the border.
	panelWidth := width - 4
	if panelWidth < 1 {
		panelWidth = 1
	}
	return t.panel.Width(panelWidth).Render(inner.String()) + "\n"
}
