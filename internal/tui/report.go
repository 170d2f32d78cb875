package tui

import (
	"fmt"
	"strings"
	"time"

	glam "github.com/charmbracelet/glamour"

	"github.com/asynkron/edpatch/internal/workflow"
)

// ReportMarkdown describes a finished run as markdown.
func ReportMarkdown(report workflow.Report) string {
	var b strings.Builder
	b.WriteString("# Restore report\n\n")
	fmt.Fprintf(&b, "Input: `%s`\n\n", report.Input)
	if len(report.Steps) > 0 {
		b.WriteString("| Step | Outcome | Duration | Detail |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, step := range report.Steps {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				step.Name, step.Outcome, step.Duration.Round(time.Millisecond), escapeCell(step.Detail))
		}
		b.WriteString("\n")
	}
	if report.RawOutput != "" {
		fmt.Fprintf(&b, "- Raw output: `%s`\n", report.RawOutput)
	}
	if report.Bytecode != "" {
		fmt.Fprintf(&b, "- Bytecode: `%s`\n", report.Bytecode)
	}
	switch {
	case report.Recovered != "" && report.Decompiled:
		fmt.Fprintf(&b, "- **Reconstructed source:** `%s`\n", report.Recovered)
	case report.Recovered != "":
		fmt.Fprintf(&b, "- **Source recovered:** `%s`\n", report.Recovered)
	case report.Failed():
		b.WriteString("- **Restore failed.**\n")
	}
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// RenderReport renders ReportMarkdown for a terminal of the given width. Plain
// output uses glamour's style without colors.
func RenderReport(report workflow.Report, width int, plain bool) (string, error) {
	if width < 10 {
		width = 10
	}
	style := "dark"
	if plain {
		style = "ascii"
	}
	r, err := glam.NewTermRenderer(
		glam.WithStylePath(style),
		glam.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(ReportMarkdown(report))
}
