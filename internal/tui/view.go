package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/nolook/internal/engine"
	"github.com/rbright/nolook/internal/fsm"
	"github.com/rbright/nolook/internal/notify"
)

const transcriptPlaceholder = "Waiting for speech..."

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	realStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	fakeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	lockStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	onStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gateStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("11")).
			Padding(0, 2)
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	toastStyles = map[notify.Kind]lipgloss.Style{
		notify.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		notify.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		notify.KindInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}
)

func (m Model) View() string {
	sections := []string{m.headerView()}
	if m.gate.Show {
		sections = append(sections, m.gateView())
	}
	sections = append(sections, m.transcriptView())
	if toasts := m.toastView(); toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections, m.helpView())
	return strings.Join(sections, "\n\n") + "\n"
}

func (m Model) headerView() string {
	conn := string(m.conn)
	if m.conn == fsm.StateConnecting || m.conn == fsm.StateReconnecting {
		conn = m.spinner.View() + " " + conn
	}

	modeStyle := realStyle
	if m.state.Mode == engine.ModeFake {
		modeStyle = fakeStyle
	}
	line := fmt.Sprintf("%s  %s  %s",
		titleStyle.Render("nolook"),
		modeStyle.Render(fmt.Sprintf("%s %d%%", m.state.Mode, m.state.RatioPercent())),
		dimStyle.Render(conn),
	)
	if m.state.LockedFake {
		line += "  " + lockStyle.Render("LOCKED")
	}

	flags := strings.Join([]string{
		flag("PauseFake", m.state.PauseFake),
		flag("ForceREAL", m.state.ForceReal),
		flag("Auto Macro", m.state.AssistantEnabled),
	}, "  ")

	out := line + "\n" + flags
	if len(m.state.Reasons) > 0 {
		out += "\n" + dimStyle.Render("reasons: "+strings.Join(m.state.Reasons, ", "))
	}
	return out
}

func flag(name string, on bool) string {
	if on {
		return onStyle.Render(name + " ON")
	}
	return dimStyle.Render(name + " OFF")
}

func (m Model) gateView() string {
	body := strings.Join([]string{
		lockStyle.Render(m.gate.Title()),
		m.gate.Description(),
		fmt.Sprintf("%s  %s", m.gate.Remaining(), m.progress.ViewAs(m.gate.Progress)),
	}, "\n")
	return gateStyle.Render(body)
}

func (m Model) transcriptView() string {
	out := []string{sectionStyle.Render("Transcript")}
	if len(m.lines) == 0 && m.current == "" {
		return strings.Join(append(out, dimStyle.Render(transcriptPlaceholder)), "\n")
	}
	out = append(out, m.lines...)
	if m.current != "" {
		out = append(out, "▶ "+m.current)
	}
	return strings.Join(out, "\n")
}

func (m Model) toastView() string {
	if len(m.toasts) == 0 {
		return ""
	}
	out := make([]string, 0, len(m.toasts))
	for _, n := range m.toasts {
		style, ok := toastStyles[n.Kind]
		if !ok {
			style = toastStyles[notify.KindInfo]
		}
		out = append(out, style.Render("• "+n.Message))
	}
	return strings.Join(out, "\n")
}

func (m Model) helpView() string {
	parts := make([]string, 0, len(keys.bindings()))
	for _, b := range keys.bindings() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return dimStyle.Render(strings.Join(parts, " • "))
}
