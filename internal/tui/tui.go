// Package tui is the terminal dashboard for a running client. It only reads
// the client's derived views and forwards key presses as commands.
package tui

import (
	"context"
	"errors"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rbright/nolook/internal/engine"
	"github.com/rbright/nolook/internal/fsm"
	"github.com/rbright/nolook/internal/notify"
	"github.com/rbright/nolook/internal/session"
	"github.com/rbright/nolook/internal/transcript"
)

// Controller is the client surface the dashboard renders and drives.
type Controller interface {
	Model() engine.State
	Gate() session.Gate
	Connection() fsm.State
	Transcript() *transcript.Buffer
	Notifications() *notify.Channel
	Updates() <-chan struct{}
	TogglePauseFake(ctx context.Context) error
	ToggleForceReal(ctx context.Context) error
	ResetLock(ctx context.Context) error
	ToggleAssistant(ctx context.Context) error
}

var copyToClipboard = clipboard.WriteAll

type keyMap struct {
	PauseFake key.Binding
	ForceReal key.Binding
	ResetLock key.Binding
	Assistant key.Binding
	Copy      key.Binding
	Quit      key.Binding
}

func (k keyMap) bindings() []key.Binding {
	return []key.Binding{k.PauseFake, k.ForceReal, k.ResetLock, k.Assistant, k.Copy, k.Quit}
}

var keys = keyMap{
	PauseFake: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause fake")),
	ForceReal: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "force real")),
	ResetLock: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset lock")),
	Assistant: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "assistant")),
	Copy:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy transcript")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type (
	updateMsg struct{}
	closedMsg struct{}
	toastMsg  struct{}
	copiedMsg struct{ err error }
)

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	ctx   context.Context
	ctl   Controller
	toast <-chan struct{}

	width    int
	spinner  spinner.Model
	progress progress.Model

	state   engine.State
	gate    session.Gate
	conn    fsm.State
	lines   []string
	current string
	toasts  []notify.Notification
}

// New builds a model reading from ctl. toast is a notification change signal
// from ctl.Notifications().Subscribe(); nil disables toast refreshes.
func New(ctx context.Context, ctl Controller, toast <-chan struct{}) Model {
	m := Model{
		ctx:      ctx,
		ctl:      ctl,
		toast:    toast,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
	m.refresh()
	return m
}

// Run drives the dashboard until the user quits, ctx ends, or ctl stops
// publishing updates.
func Run(ctx context.Context, ctl Controller) error {
	toast, cancel := ctl.Notifications().Subscribe()
	defer cancel()

	program := tea.NewProgram(New(ctx, ctl, toast), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.ctl.Updates()), waitForToast(m.toast))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(min(msg.Width-8, 60), 10)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case updateMsg:
		m.refresh()
		return m, waitForUpdate(m.ctl.Updates())
	case closedMsg:
		m.refresh()
		return m, tea.Quit
	case toastMsg:
		m.toasts = m.ctl.Notifications().List()
		return m, waitForToast(m.toast)
	case copiedMsg:
		if msg.err != nil {
			m.ctl.Notifications().Emit("Copy failed: "+msg.err.Error(), notify.KindError)
		} else {
			m.ctl.Notifications().Emit("Transcript copied", notify.KindInfo)
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.PauseFake):
		return m, m.command(m.ctl.TogglePauseFake)
	case key.Matches(msg, keys.ForceReal):
		return m, m.command(m.ctl.ToggleForceReal)
	case key.Matches(msg, keys.ResetLock):
		return m, m.command(m.ctl.ResetLock)
	case key.Matches(msg, keys.Assistant):
		return m, m.command(m.ctl.ToggleAssistant)
	case key.Matches(msg, keys.Copy):
		text := m.ctl.Transcript().Text()
		if text == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			return copiedMsg{err: copyToClipboard(text)}
		}
	}
	return m, nil
}

// command runs fn off the render loop. Failures are already logged by the
// dispatcher and stay off screen.
func (m Model) command(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_ = fn(ctx)
		return nil
	}
}

func (m *Model) refresh() {
	m.state = m.ctl.Model()
	m.gate = m.ctl.Gate()
	m.conn = m.ctl.Connection()
	m.lines = m.ctl.Transcript().Lines()
	m.current = m.ctl.Transcript().Current()
	m.toasts = m.ctl.Notifications().List()
}

func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return closedMsg{}
		}
		return updateMsg{}
	}
}

func waitForToast(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return toastMsg{}
	}
}
