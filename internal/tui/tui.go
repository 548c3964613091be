// Package tui is a terminal front end for the monitor. Keys map onto the
// same actions as the web control page.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bryanchriswhite/IPCamMonitor/internal/connection"
	"github.com/bryanchriswhite/IPCamMonitor/internal/display"
	"github.com/bryanchriswhite/IPCamMonitor/internal/logger"
	"github.com/bryanchriswhite/IPCamMonitor/internal/session"
)

// Controller is the set of monitor actions the terminal UI drives
type Controller interface {
	Connect(ctx context.Context, params connection.Params) error
	Disconnect() error
	ToggleFloating() error
	ToggleRecording() error
	Status() session.Status
	Subscribe() chan session.Status
	Unsubscribe(ch chan session.Status)
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Width(12)

	onStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("10"))

	recStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
)

// Messages

// statusMsg carries a status published by the monitor
type statusMsg session.Status

// closedMsg reports that the monitor closed the subscription
type closedMsg struct{}

// actionDoneMsg reports the result of a key-triggered action
type actionDoneMsg struct {
	action string
	err    error
}

// Model is the bubbletea model
type Model struct {
	ctrl    Controller
	camera  connection.Params
	updates chan session.Status

	status  session.Status
	busy    string
	lastErr string
	width   int
}

// New creates a model bound to ctrl. camera is used by the connect key.
func New(ctrl Controller, camera connection.Params) Model {
	return Model{
		ctrl:    ctrl,
		camera:  camera,
		updates: ctrl.Subscribe(),
		status:  ctrl.Status(),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForStatus(m.updates),
		tea.SetWindowTitle(display.MainTitle),
	)
}

func waitForStatus(ch chan session.Status) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return statusMsg(s)
	}
}

// run executes an action off the UI goroutine; Connect may block on the
// network
func run(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn()}
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case statusMsg:
		m.status = session.Status(msg)
		return m, waitForStatus(m.updates)

	case closedMsg:
		return m, tea.Quit

	case actionDoneMsg:
		if m.busy == msg.action {
			m.busy = ""
		}
		if msg.err != nil {
			m.lastErr = fmt.Sprintf("%s: %v", msg.action, msg.err)
		} else {
			m.lastErr = ""
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.ctrl.Unsubscribe(m.updates)
		return m, tea.Quit

	case "c":
		if m.busy != "" {
			return m, nil
		}
		m.busy = "connect"
		camera := m.camera
		return m, run("connect", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return m.ctrl.Connect(ctx, camera)
		})

	case "d":
		return m, run("disconnect", m.ctrl.Disconnect)

	case "f":
		return m, run("floating", m.ctrl.ToggleFloating)

	case "r":
		return m, run("recording", m.ctrl.ToggleRecording)
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(display.MainTitle))
	b.WriteString(dimStyle.Render(" - " + m.cameraLabel()))
	b.WriteString("\n\n")

	b.WriteString(boxStyle.Render(m.renderStatus()))
	b.WriteString("\n")

	if m.busy != "" {
		b.WriteString(dimStyle.Render(m.busy + "..."))
		b.WriteString("\n")
	}

	errText := m.lastErr
	if errText == "" {
		errText = m.status.LastError
	}
	if errText != "" {
		b.WriteString(errorStyle.Render("Error: " + errText))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) cameraLabel() string {
	conn, err := connection.Build(m.camera)
	if err != nil {
		return "no camera configured"
	}
	return connection.Redact(conn)
}

func (m Model) renderStatus() string {
	s := m.status
	var lines []string

	row := func(label, value string) {
		lines = append(lines, labelStyle.Render(label)+value)
	}

	if s.Connected {
		row("Camera", onStyle.Render("connected"))
		row("Source", s.Source)
		row("Backend", s.Backend)
	} else {
		row("Camera", dimStyle.Render("disconnected"))
	}

	row("View", fmt.Sprintf("%s (floating %s)", s.Target, s.Floating))

	if s.Recording {
		row("Recording", recStyle.Render("● REC")+" "+s.RecordingPath)
	} else {
		row("Recording", dimStyle.Render("off"))
	}

	row("Frames", fmt.Sprintf("%d shown, %d recorded", s.Frames, s.RecordedFrames))
	return strings.Join(lines, "\n")
}

func (m Model) renderHelp() string {
	sep := "  "
	var actions []string

	if m.status.Connected {
		actions = append(actions, keyStyle.Render("c")+helpStyle.Render(" reconnect"))
		actions = append(actions, keyStyle.Render("d")+helpStyle.Render(" disconnect"))
	} else {
		actions = append(actions, keyStyle.Render("c")+helpStyle.Render(" connect"))
	}
	actions = append(actions, keyStyle.Render("f")+helpStyle.Render(" floating"))

	if m.status.Recording {
		actions = append(actions, keyStyle.Render("r")+helpStyle.Render(" stop recording"))
	} else {
		actions = append(actions, keyStyle.Render("r")+helpStyle.Render(" record"))
	}
	actions = append(actions, keyStyle.Render("q")+helpStyle.Render(" quit"))

	return strings.Join(actions, sep)
}

// Run starts the terminal UI and blocks until the user quits or the monitor
// closes. Log output goes to logFile while the UI owns the terminal.
func Run(ctrl Controller, camera connection.Params, logFile string) error {
	var out io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	logger.SetOutput(out)
	defer logger.SetOutput(os.Stderr)

	p := tea.NewProgram(New(ctrl, camera), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
