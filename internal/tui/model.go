package tui

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rastow/panerun/internal/track"
)

const defaultPollInterval = 1500 * time.Millisecond

var validTarget = regexp.MustCompile(`^[%@$a-zA-Z0-9_.:-]+$`)

type tickMsg time.Time

type executionsMsg []track.Execution

type submitResultMsg struct {
	Rec track.Execution
	Err error
}

type previewState struct {
	ID   string
	Pane string
}

type confirmAction struct {
	ID   string
	Pane string
}

type Model struct {
	engine   *track.Engine
	interval time.Duration

	executions    []track.Execution
	filtered      []track.Execution
	cursor        int
	scrollOffset  int
	input         textinput.Model
	preview       *previewState
	confirmCancel *confirmAction
	width, height int
	quitting      bool
	err           error
}

// NewModel builds the watch dashboard. interval is the poll cadence;
// zero picks a sane default.
func NewModel(engine *track.Engine, interval time.Duration) Model {
	ti := textinput.New()
	ti.Placeholder = "Type to filter or /run <pane> <command>..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 60

	if interval <= 0 {
		interval = defaultPollInterval
	}
	return Model{
		engine:   engine,
		interval: interval,
		input:    ti,
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.refreshExecutions,
		m.tickCmd(),
	)
}

// refreshExecutions polls every live execution once, then snapshots the
// registry. A failed poll surfaces as an error message and the next
// tick retries.
func (m Model) refreshExecutions() tea.Msg {
	ctx := context.Background()
	for _, rec := range m.engine.ListActive() {
		if _, err := m.engine.Poll(ctx, rec.ID); err != nil {
			return err
		}
	}
	return executionsMsg(m.engine.ListAll())
}

func (m Model) submitCmd(pane, command string) tea.Cmd {
	return func() tea.Msg {
		rec, err := m.engine.Submit(context.Background(), pane, command, track.SubmitOptions{})
		return submitResultMsg{Rec: rec, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case executionsMsg:
		m.err = nil
		m.executions = msg
		m.applyFilter()
		return m, nil

	case submitResultMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.input.SetValue("")
		// Jump straight into the new execution's output.
		m.preview = &previewState{ID: msg.Rec.ID, Pane: msg.Rec.PaneTarget}
		return m, m.refreshExecutions

	case error:
		m.err = msg
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.tickCmd(), m.refreshExecutions)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Ctrl+C always quits
	if key.Matches(msg, keys.CtrlC) {
		m.quitting = true
		return m, tea.Quit
	}

	// Escape
	if key.Matches(msg, keys.Escape) {
		if m.confirmCancel != nil {
			m.confirmCancel = nil
			return m, nil
		}
		if m.preview != nil {
			m.preview = nil
			m.input.SetValue("")
			m.applyFilter()
			return m, nil
		}
		m.input.SetValue("")
		m.applyFilter()
		return m, nil
	}

	// If cancel confirmation is pending, only Enter proceeds
	if m.confirmCancel != nil {
		if key.Matches(msg, keys.Enter) {
			return m.executeCancel()
		}
		// Any other key drops the confirmation
		m.confirmCancel = nil
		return m, nil
	}

	// Ctrl+K: cancel the selected execution
	if key.Matches(msg, keys.Cancel) {
		if sel := m.selectedExecution(); sel != nil && !sel.Terminal() {
			m.confirmCancel = &confirmAction{ID: sel.ID, Pane: sel.PaneTarget}
		}
		return m, nil
	}

	// q quits only when input is empty and no preview
	if key.Matches(msg, keys.Quit) && m.input.Value() == "" && m.preview == nil {
		m.quitting = true
		return m, tea.Quit
	}

	if m.preview != nil {
		return m.handlePreviewKey(msg)
	}
	return m.handleNormalKey(msg)
}

func (m Model) handleNormalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Navigation: only when input is empty
	if m.input.Value() == "" {
		if key.Matches(msg, keys.Up) {
			if m.cursor > 0 {
				m.cursor--
				m.ensureCursorVisible()
			}
			return m, nil
		}
		if key.Matches(msg, keys.Down) {
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
				m.ensureCursorVisible()
			}
			return m, nil
		}
	}

	// Enter
	if key.Matches(msg, keys.Enter) {
		text := strings.TrimSpace(m.input.Value())

		// /run command: submit onto a pane
		if cmd := m.parseRunCommand(text); cmd != nil {
			return m, cmd
		}

		// Open the selected execution's output
		sel := m.selectedExecution()
		if sel == nil {
			return m, nil
		}
		m.preview = &previewState{ID: sel.ID, Pane: sel.PaneTarget}
		m.input.SetValue("")
		return m, nil
	}

	// Default: update text input and refilter
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) handlePreviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Navigation: switch between executions while previewing
	if m.input.Value() == "" {
		if key.Matches(msg, keys.Up) {
			if m.cursor > 0 {
				m.cursor--
				m.ensureCursorVisible()
			}
			return m.switchPreview()
		}
		if key.Matches(msg, keys.Down) {
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
				m.ensureCursorVisible()
			}
			return m.switchPreview()
		}
	}

	// Enter
	if key.Matches(msg, keys.Enter) {
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			// Force a poll now instead of waiting for the tick
			return m, m.refreshExecutions
		}
		// Run the typed command on the previewed pane
		m.input.SetValue("")
		return m, m.submitCmd(m.preview.Pane, text)
	}

	// Default: update text input (no filtering in preview mode)
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) switchPreview() (tea.Model, tea.Cmd) {
	sel := m.selectedExecution()
	if sel == nil {
		return m, nil
	}
	m.preview.ID = sel.ID
	m.preview.Pane = sel.PaneTarget
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	// Ignore all mouse events in preview mode
	if m.preview != nil {
		return m, nil
	}

	// Normal mode: scroll wheel navigates executions
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if m.cursor > 0 {
			m.cursor--
			m.ensureCursorVisible()
		}
		return m, nil
	case tea.MouseButtonWheelDown:
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
			m.ensureCursorVisible()
		}
		return m, nil
	}

	return m, nil
}

func (m Model) executeCancel() (Model, tea.Cmd) {
	if m.confirmCancel == nil {
		return m, nil
	}
	if _, err := m.engine.Cancel(context.Background(), m.confirmCancel.ID); err != nil {
		m.err = err
	}
	m.confirmCancel = nil
	return m, m.refreshExecutions
}

func (m *Model) applyFilter() {
	query := strings.TrimSpace(m.input.Value())
	// Don't filter when typing a command (starts with /)
	if query == "" || strings.HasPrefix(query, "/") {
		m.filtered = m.executions
	} else {
		lower := strings.ToLower(query)
		m.filtered = nil
		for _, rec := range m.executions {
			if strings.Contains(strings.ToLower(rec.Command), lower) ||
				strings.Contains(strings.ToLower(rec.PaneTarget), lower) {
				m.filtered = append(m.filtered, rec)
			}
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
	m.ensureCursorVisible()
}

func (m Model) maxVisibleExecutions() int {
	if m.preview == nil {
		return len(m.filtered)
	}
	maxVis := m.height / 10
	if maxVis < 5 {
		maxVis = 5
	}
	if maxVis > len(m.filtered) {
		maxVis = len(m.filtered)
	}
	return maxVis
}

func (m *Model) ensureCursorVisible() {
	maxVis := m.maxVisibleExecutions()
	if maxVis <= 0 {
		m.scrollOffset = 0
		return
	}
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+maxVis {
		m.scrollOffset = m.cursor - maxVis + 1
	}
	// Clamp scrollOffset
	maxOffset := len(m.filtered) - maxVis
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.scrollOffset > maxOffset {
		m.scrollOffset = maxOffset
	}
}

func (m Model) selectedExecution() *track.Execution {
	if len(m.filtered) == 0 {
		return nil
	}
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return nil
	}
	rec := m.filtered[m.cursor]
	return &rec
}

// previewExecution resolves the previewed record against the latest
// snapshot, so output and status stay current across ticks.
func (m Model) previewExecution() *track.Execution {
	if m.preview == nil {
		return nil
	}
	for _, rec := range m.executions {
		if rec.ID == m.preview.ID {
			return &rec
		}
	}
	return nil
}

func (m Model) parseRunCommand(text string) tea.Cmd {
	rest, ok := strings.CutPrefix(text, "/run ")
	if !ok {
		return nil
	}
	pane, command, ok := strings.Cut(strings.TrimSpace(rest), " ")
	if !ok || !validTarget.MatchString(pane) {
		return nil
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}
	return m.submitCmd(pane, command)
}
