// Package tui is a terminal stand-in for the front panel: it shows the
// display text and receiver status, and maps keys 3, 4 and 5 to buttons.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gnss-clock/internal/receiver"
)

const refreshInterval = 500 * time.Millisecond

// TextMsg replaces the display text.
type TextMsg string

type snapshotMsg receiver.Snapshot

type Model struct {
	text    string
	snap    receiver.Snapshot
	buttons [3]*VirtualButton

	// status is polled on every refresh; nil hides the receiver panel.
	status func() receiver.Snapshot
}

// NewModel wires keys 3, 4 and 5 to sw3, sw4 and sw5.
func NewModel(sw3, sw4, sw5 *VirtualButton, status func() receiver.Snapshot) Model {
	return Model{
		text:    "--.--.--",
		buttons: [3]*VirtualButton{sw3, sw4, sw5},
		status:  status,
	}
}

func (m Model) Text() string { return m.text }

func (m Model) Init() tea.Cmd { return m.refresh() }

func (m Model) refresh() tea.Cmd {
	if m.status == nil {
		return nil
	}
	status := m.status
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return snapshotMsg(status())
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TextMsg:
		m.text = string(msg)
	case snapshotMsg:
		m.snap = receiver.Snapshot(msg)
		return m, m.refresh()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "3", "4", "5":
			if b := m.buttons[msg.Runes[0]-'3']; b != nil {
				b.Press()
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n   %s\n\n", m.text)
	if m.status != nil {
		s := m.snap
		state := s.State
		if state == "" {
			state = "-"
		}
		fmt.Fprintf(&sb, " receiver  %s (%d transitions)\n", state, s.Transitions)
		last := "-"
		if !s.LastDateTime.IsZero() {
			last = s.LastDateTime.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&sb, " last time %s  events %d  read errors %d\n", last, s.Events, s.ReadErrors)
		if s.HaveStatus {
			fmt.Fprintf(&sb, " fix       %d ok=%t\n", s.GPSFix, s.FixOK)
		}
		if s.HaveSpeed {
			fmt.Fprintf(&sb, " speed     %d m/h\n", s.GroundSpeedMH)
		}
		if s.LastError != "" {
			fmt.Fprintf(&sb, " error     %s\n", s.LastError)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(" [3] mode  [4] +  [5] -  [q] quit\n")
	return sb.String()
}

// Renderer forwards display text to a running program.
type Renderer struct {
	p *tea.Program
}

func NewRenderer(p *tea.Program) Renderer { return Renderer{p: p} }

func (r Renderer) Render(text string) { r.p.Send(TextMsg(text)) }

// Run blocks until the user quits or ctx is done.
func Run(ctx context.Context, p *tea.Program) error {
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// NewProgram builds a program bound to ctx.
func NewProgram(ctx context.Context, m Model, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(m, append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)
}
