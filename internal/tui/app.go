// Package tui provides the interactive terminal UI for running the pipeline.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"evoplan/internal/agent"
	"evoplan/internal/events"
	"evoplan/internal/models"
	"evoplan/internal/pipeline"
	"evoplan/internal/store"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	stageItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

// Options configures a TUI session. The pipeline runs in-process; Store may
// be nil to skip persistence.
type Options struct {
	Agents        map[string]*agent.Agent
	Mode          models.RunMode
	Checkpoint    bool
	MaxIterations int
	Seed          string
	Store         *store.Store
}

// App is the main TUI application model.
type App struct {
	opts     Options
	bus      *events.Bus
	eventsCh <-chan events.Event
	unsub    func()
	pipe     *pipeline.Pipeline

	run      *models.PipelineRun
	logLines []string
	mode     string // "pipeline", "checkpoint", "detail"
	selected int
	done     bool
	message  string

	notes      textarea.Model
	categories []categoryOption
	catIdx     int
	notesFocus bool

	viewport viewport.Model
	width    int
	height   int
}

type categoryOption struct {
	name     string
	count    int
	selected bool
}

// New creates a TUI application over its own event bus and pipeline.
func New(opts Options) (*App, error) {
	bus := events.NewBus()
	pipe, err := pipeline.New(opts.Agents, pipeline.Options{
		Mode:          opts.Mode,
		Checkpoint:    opts.Checkpoint,
		MaxIterations: opts.MaxIterations,
		Bus:           bus,
	})
	if err != nil {
		bus.Close()
		return nil, err
	}

	ch, unsub := bus.Subscribe(events.DefaultBuffer)

	ta := textarea.New()
	ta.Placeholder = "Notes for the planning stages (optional)"
	ta.SetHeight(4)
	ta.Focus()

	return &App{
		opts:       opts,
		bus:        bus,
		eventsCh:   ch,
		unsub:      unsub,
		pipe:       pipe,
		run:        pipe.Snapshot(),
		mode:       "pipeline",
		notes:      ta,
		notesFocus: true,
		viewport:   viewport.New(80, 20),
	}, nil
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	defer a.unsub()
	defer a.bus.Close()
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.startRun(), a.waitEvent())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.notes.SetWidth(msg.Width - 6)
		a.viewport.Width = msg.Width - 4
		a.viewport.Height = msg.Height - 8

	case busEventMsg:
		if le, ok := msg.event.(events.LogEvent); ok {
			a.logLines = append(a.logLines, le.Message)
		}
		a.run = a.pipe.Snapshot()
		return a, a.waitEvent()

	case busClosedMsg:
		return a, nil

	case runReturnedMsg:
		a.run = msg.run
		switch msg.run.State {
		case models.RunStateAwaitingInput:
			a.enterCheckpoint()
		case models.RunStateFinished:
			a.done = true
			a.persist()
		}
		return a, nil

	case errMsg:
		a.message = "Error: " + msg.err.Error()
		return a, nil
	}

	if a.mode == "checkpoint" && a.notesFocus {
		var cmd tea.Cmd
		a.notes, cmd = a.notes.Update(msg)
		return a, cmd
	}
	if a.mode == "detail" {
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	switch a.mode {
	case "checkpoint":
		return a.handleCheckpointKey(msg)

	case "detail":
		switch msg.String() {
		case "esc", "q":
			a.mode = "pipeline"
			return a, nil
		}
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd

	default: // pipeline
		switch msg.String() {
		case "q":
			if a.done {
				return a, tea.Quit
			}
		case "up", "k":
			if a.selected > 0 {
				a.selected--
			}
		case "down", "j":
			if a.selected < len(a.run.StageOrder)-1 {
				a.selected++
			}
		case "enter":
			return a, a.openDetail()
		}
	}
	return a, nil
}

func (a *App) openDetail() tea.Cmd {
	if len(a.run.StageOrder) == 0 {
		return nil
	}
	stageID := a.run.StageOrder[a.selected]
	task := a.run.Tasks[stageID]
	if task == nil || task.RawText == "" {
		a.message = fmt.Sprintf("No output yet for %s", stageID)
		return nil
	}
	a.mode = "detail"
	a.viewport.SetContent(task.RawText)
	a.viewport.GotoTop()
	return nil
}

func (a *App) startRun() tea.Cmd {
	return func() tea.Msg {
		run, err := a.pipe.Run(context.Background(), a.opts.Seed)
		if err != nil {
			return errMsg{err}
		}
		return runReturnedMsg{run}
	}
}

func (a *App) resume(input models.ResumeInput) tea.Cmd {
	return func() tea.Msg {
		run, err := a.pipe.Resume(context.Background(), input)
		if err != nil {
			return errMsg{err}
		}
		return runReturnedMsg{run}
	}
}

func (a *App) waitEvent() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-a.eventsCh
		if !ok {
			return busClosedMsg{}
		}
		return busEventMsg{e}
	}
}

func (a *App) persist() {
	if a.opts.Store == nil {
		return
	}
	if err := a.opts.Store.SaveRun(a.run); err != nil {
		a.message = "Error: " + err.Error()
	}
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	header := titleStyle.Render("EvoPlan Pipeline")
	header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(fmt.Sprintf("[%s]", a.run.Mode))
	header += "  " + a.renderRunState()
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 20)) + "\n")

	switch a.mode {
	case "checkpoint":
		b.WriteString(a.renderCheckpoint())
	case "detail":
		b.WriteString(a.renderDetail())
	default:
		b.WriteString(a.renderPipeline())
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	}

	b.WriteString("\n")
	b.WriteString(statusBarStyle.Width(max(a.width, 20)).Render(a.statusLine()))
	return b.String()
}

func (a *App) statusLine() string {
	switch a.mode {
	case "checkpoint":
		return " Tab:switch focus | Space:toggle category | Enter:continue | Ctrl+C:quit"
	case "detail":
		return " ↑↓:scroll | Esc:back | Ctrl+C:quit"
	default:
		if a.done {
			return " ↑↓:nav | Enter:view output | q:quit"
		}
		return " ↑↓:nav | Enter:view output | Ctrl+C:quit"
	}
}

func (a *App) renderRunState() string {
	switch a.run.State {
	case models.RunStateAwaitingInput:
		return lipgloss.NewStyle().Foreground(warningColor).Render("◐ AWAITING INPUT")
	case models.RunStateFinished:
		switch a.run.Outcome {
		case models.OutcomeComplete:
			return lipgloss.NewStyle().Foreground(successColor).Render("● COMPLETE")
		case models.OutcomePartial:
			return lipgloss.NewStyle().Foreground(warningColor).Render("◑ PARTIAL")
		default:
			return lipgloss.NewStyle().Foreground(errorColor).Render("✗ FAILED")
		}
	default:
		return lipgloss.NewStyle().Foreground(primaryColor).Render("◑ RUNNING")
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type runReturnedMsg struct {
	run *models.PipelineRun
}

type busEventMsg struct {
	event events.Event
}

type busClosedMsg struct{}

type errMsg struct {
	err error
}
