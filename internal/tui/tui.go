package tui

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/asynkron/edpatch/internal/workflow"
)

type stepStartedMsg struct{ name, title string }
type stepOutputMsg struct{ name, line string }
type stepFinishedMsg struct{ result workflow.StepResult }
type infoMsg struct{ text string }
type doneMsg struct{ err error }

type model struct {
	title  string
	cancel context.CancelFunc

	table *StepTable
	info  []string

	spin       spinner.Model
	width      int
	flashFrame int

	canceling bool
	done      bool
	err       error

	titleStyle lipgloss.Style
	infoStyle  lipgloss.Style
	errStyle   lipgloss.Style
}

func newModel(title string, cancel context.CancelFunc) *model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	return &model{
		title:      title,
		cancel:     cancel,
		table:      NewStepTable(),
		spin:       sp,
		width:      80,
		titleStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		infoStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("70")),
		errStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

func (m *model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		m.flashFrame++
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			// The workflow goroutine reports doneMsg once it notices.
			if m.cancel != nil && !m.canceling {
				m.cancel()
			}
			m.canceling = true
		}
		return m, nil
	case stepStartedMsg:
		m.table.Start(msg.name, msg.title)
	case stepOutputMsg:
		m.table.Output(msg.name, msg.line)
	case stepFinishedMsg:
		m.table.Finish(msg.result)
	case infoMsg:
		m.info = append(m.info, msg.text)
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) View() string {
	var b strings.Builder
	header := m.titleStyle.Render(m.title)
	if m.canceling && !m.done {
		header += m.errStyle.Render("  canceling…")
	}
	b.WriteString(header)
	b.WriteString("\n")
	if !m.done {
		b.WriteString(m.renderGradientBar(m.width - 2))
		b.WriteString("\n")
	}
	spin := ""
	if !m.done {
		spin = m.spin.View()
	}
	b.WriteString(m.table.Render(m.width, spin))
	for _, line := range m.info {
		b.WriteString(m.infoStyle.Render(line))
		b.WriteString("\n")
	}
	if m.done && m.err != nil {
		b.WriteString(m.errStyle.Render("[error] ") + m.err.Error() + "\n")
	}
	return b.String()
}

// renderGradientBar renders a full-width, color-cycling bar while the
// workflow is running.
func (m *model) renderGradientBar(width int) string {
	if width < 1 {
		width = 1
	}
	var b strings.Builder
	b.Grow(width * 10)
	baseHue := float64((m.flashFrame * 5) % 360)
	for i := 0; i < width; i++ {
		hue := math.Mod(baseHue+float64(i*3), 360.0)
		phase := (float64(i)/float64(width))*2*math.Pi + float64(m.flashFrame)/8.0
		light := 0.50 + 0.15*math.Sin(phase)
		seg := lipgloss.NewStyle().Foreground(lipgloss.Color(hslToHex(hue, 0.85, light))).Render("▔")
		b.WriteString(seg)
	}
	return b.String()
}

// hslToHex converts H,S,L (H in [0,360), S/L in [0,1]) to a #RRGGBB string.
func hslToHex(h, s, l float64) string {
	r, g, b := hslToRGB(h, s, l)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	hp := h / 60.0
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r1, g1, b1 float64
	switch {
	case 0 <= hp && hp < 1:
		r1, g1, b1 = c, x, 0
	case 1 <= hp && hp < 2:
		r1, g1, b1 = x, c, 0
	case 2 <= hp && hp < 3:
		r1, g1, b1 = 0, c, x
	case 3 <= hp && hp < 4:
		r1, g1, b1 = 0, x, c
	case 4 <= hp && hp < 5:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}
	m := l - c/2
	return uint8(clamp01(r1+m) * 255), uint8(clamp01(g1+m) * 255), uint8(clamp01(b1+m) * 255)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// programObserver forwards workflow events into a running program.
type programObserver struct {
	send func(tea.Msg)
}

func (o programObserver) StepStarted(name, title string) { o.send(stepStartedMsg{name: name, title: title}) }
func (o programObserver) StepOutput(name, line string)   { o.send(stepOutputMsg{name: name, line: line}) }
func (o programObserver) StepFinished(r workflow.StepResult) {
	o.send(stepFinishedMsg{result: r})
}
func (o programObserver) Info(msg string) { o.send(infoMsg{text: msg}) }

// RunStatus runs fn while showing a live step table with a spinner. In plain
// mode progress is written as lines to out instead. The error is fn's.
func RunStatus(ctx context.Context, out io.Writer, title string, plain bool, fn func(context.Context, workflow.Observer) error) error {
	if plain {
		fmt.Fprintf(out, "%s...\n", title)
		return fn(ctx, NewPlainObserver(out))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(title, cancel), tea.WithOutput(out))
	errCh := make(chan error, 1)
	go func() {
		err := fn(runCtx, programObserver{send: p.Send})
		p.Send(doneMsg{err: err})
		errCh <- err
	}()

	if _, err := p.Run(); err != nil {
		// The program is gone; stop the work and wait for it to unwind.
		cancel()
		if fnErr := <-errCh; fnErr != nil {
			return fnErr
		}
		return fmt.Errorf("tui: %w", err)
	}
	return <-errCh
}
