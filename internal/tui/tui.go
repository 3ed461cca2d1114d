// Package tui provides a Bubble Tea terminal user interface for audiobatch.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/handiism/audiobatch/internal/download"
	"github.com/handiism/audiobatch/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// maxVisibleItems bounds the per-item list while downloading.
const maxVisibleItems = 12

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateRunning
	StateComplete
	StateError
)

// Runner runs a batch. *download.Manager implements it.
type Runner interface {
	Run(ctx context.Context, refs []string, listener download.Listener) (*download.Batch, error)
}

// itemState is the live view of one work-list item.
type itemState struct {
	title    string
	fraction float64
	speed    float64
	phase    model.Phase
	attempt  int
	outcome  *model.Outcome
}

// Message types
type (
	// plannedMsg carries the flat work list once resolution finished.
	plannedMsg struct {
		Items []model.ItemDescriptor
	}

	// progressMsg carries one progress event.
	progressMsg struct {
		Event model.ProgressEvent
	}

	// finishedMsg carries one terminal outcome.
	finishedMsg struct {
		Outcome model.Outcome
	}

	// batchDoneMsg is sent when the batch and its archive are done.
	batchDoneMsg struct {
		Result  *model.BatchResult
		Written []string
		Err     error
	}
)

// listener forwards scheduler notifications into the UI event channel.
// Progress is dropped when the UI falls behind; plans and outcomes are not.
type listener struct {
	events chan<- tea.Msg
}

func (l listener) Planned(items []model.ItemDescriptor) {
	l.events <- plannedMsg{Items: items}
}

func (l listener) Report(ev model.ProgressEvent) {
	select {
	case l.events <- progressMsg{Event: ev}:
	default:
	}
}

func (l listener) Finished(o model.Outcome) {
	l.events <- finishedMsg{Outcome: o}
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state    State
	input    textarea.Model
	spinner  spinner.Model
	progress progress.Model
	runner   Runner
	outDir   string

	items   []itemState
	planned bool
	result  *model.BatchResult
	written []string
	err     error

	events chan tea.Msg
	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int
}

// NewModel creates a new TUI model that saves archives to outDir.
func NewModel(runner Runner, outDir string) Model {
	ta := textarea.New()
	ta.Placeholder = "https://www.youtube.com/playlist?list=...\nhttps://soundcloud.com/artist/track"
	ta.Focus()
	ta.CharLimit = 0
	ta.SetWidth(70)
	ta.SetHeight(6)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:    StateInput,
		input:    ta,
		spinner:  sp,
		progress: prog,
		runner:   runner,
		outDir:   outDir,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		m.input.SetWidth(min(max(msg.Width-6, 30), 100))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateRunning {
				// the batch returns with cancelled outcomes
				m.cancel()
			}

		case "ctrl+s":
			if m.state == StateInput {
				refs := model.ParseReferences(m.input.Value())
				if len(refs) == 0 {
					return m, nil
				}
				m.state = StateRunning
				m.input.Blur()
				m.events = make(chan tea.Msg, 256)
				return m, tea.Batch(m.startBatch(refs), waitForEvent(m.events), m.spinner.Tick)
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for a new batch
				m.state = StateInput
				m.items = nil
				m.planned = false
				m.result = nil
				m.written = nil
				m.err = nil
				m.events = nil
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.input.Reset()
				return m, m.input.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case plannedMsg:
		m.planned = true
		m.items = make([]itemState, len(msg.Items))
		for i, item := range msg.Items {
			m.items[i] = itemState{title: item.DisplayTitle(i)}
		}
		cmds = append(cmds, waitForEvent(m.events))

	case progressMsg:
		if it := m.item(msg.Event.ItemIndex); it != nil && it.outcome == nil {
			it.fraction = model.Clamp01(msg.Event.Fraction)
			it.speed = msg.Event.SpeedMbps
			it.phase = msg.Event.Phase
			it.attempt = msg.Event.Attempt
		}
		cmds = append(cmds, waitForEvent(m.events))

	case finishedMsg:
		if it := m.item(msg.Outcome.Index); it != nil {
			o := msg.Outcome
			it.outcome = &o
			it.speed = 0
			if o.Succeeded() {
				it.fraction = 1
			}
		}
		cmds = append(cmds, waitForEvent(m.events))

	case batchDoneMsg:
		m.result = msg.Result
		m.written = msg.Written
		switch {
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = errors.New("cancelled by user")
		default:
			m.state = StateComplete
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) item(index int) *itemState {
	if index < 0 || index >= len(m.items) {
		return nil
	}
	return &m.items[index]
}

// waitForEvent delivers the next listener notification.
func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		return <-events
	}
}

// startBatch runs the batch in the background and saves its archive.
func (m Model) startBatch(refs []string) tea.Cmd {
	runner, ctx, events, outDir := m.runner, m.ctx, m.events, m.outDir
	return func() tea.Msg {
		batch, err := runner.Run(ctx, refs, listener{events: events})
		if err != nil {
			return batchDoneMsg{Err: err}
		}
		defer batch.Release()

		done := batchDoneMsg{Result: batch.Result}
		if len(batch.Result.Successes) > 0 {
			done.Written, done.Err = batch.SaveArchive(filepath.Join(outDir, batch.ArchiveName()))
		}
		return done
	}
}

// Overall returns the mean completion and the summed speed of all items.
func (m Model) Overall() (fraction, speedMbps float64) {
	if len(m.items) == 0 {
		return 0, 0
	}
	for _, it := range m.items {
		if it.outcome != nil {
			fraction += 1
			continue
		}
		fraction += it.fraction
		speedMbps += it.speed
	}
	return fraction / float64(len(m.items)), speedMbps
}

// State returns the current UI state.
func (m Model) State() State {
	return m.state
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("♫ audiobatch"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Batch download audio into a single archive"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateRunning:
		b.WriteString(m.viewRunning())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Paste links, one per line:"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Archive folder: %s", m.outDir)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewRunning() string {
	var b strings.Builder

	if !m.planned {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(subtitleStyle.Render("Resolving links..."))
		b.WriteString("\n")
		return b.String()
	}

	fraction, speed := m.Overall()
	b.WriteString(m.progress.ViewAs(fraction))
	b.WriteString("\n")
	done := 0
	for _, it := range m.items {
		if it.outcome != nil {
			done++
		}
	}
	b.WriteString(infoStyle.Render(fmt.Sprintf("Items: %d/%d | Speed: %.1f Mbps", done, len(m.items), speed)))
	b.WriteString("\n\n")

	b.WriteString(m.renderItems())
	return b.String()
}

func (m Model) renderItems() string {
	var b strings.Builder

	// show active items first, then the most recent finished ones
	visible := make([]itemState, 0, maxVisibleItems)
	for _, it := range m.items {
		if it.outcome == nil && (it.fraction > 0 || it.phase != model.PhaseDownloading || it.attempt > 0) {
			visible = append(visible, it)
		}
	}
	for i := len(m.items) - 1; i >= 0 && len(visible) < maxVisibleItems; i-- {
		if m.items[i].outcome != nil {
			visible = append(visible, m.items[i])
		}
	}
	if len(visible) > maxVisibleItems {
		visible = visible[:maxVisibleItems]
	}

	for _, it := range visible {
		var line string
		switch {
		case it.outcome != nil && it.outcome.Succeeded():
			line = successStyle.Render("✓ " + it.title)
		case it.outcome != nil:
			line = errorStyle.Render("✗ " + it.title + ": " + it.outcome.Reason)
		case it.phase == model.PhaseRetrying:
			line = warningStyle.Render(fmt.Sprintf("! %s (retry %d)", it.title, it.attempt))
		default:
			line = fmt.Sprintf("%s %s %3.0f%% %s", it.phase, dimStyle.Render("›"), it.fraction*100, it.title)
			if it.speed > 0 {
				line += dimStyle.Render(fmt.Sprintf(" %.1f Mbps", it.speed))
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	var ok, failed, unresolved int
	if m.result != nil {
		ok, failed, unresolved = len(m.result.Successes), len(m.result.Failures), len(m.result.ResolutionFailures)
	}

	summary := fmt.Sprintf("✨ Batch Complete!\n\nDownloaded: %d\nFailed: %d\nUnresolved: %d", ok, failed, unresolved)
	if len(m.written) > 0 {
		summary += "\n\nArchive: " + m.written[0]
		if size, found := fileSize(m.written[0]); found {
			summary += " (" + humanize.IBytes(size) + ")"
		}
	}
	b.WriteString(boxStyle.Render(summary))
	b.WriteString("\n")

	if m.result != nil {
		for _, f := range m.result.Failures {
			b.WriteString(errorStyle.Render(fmt.Sprintf("✗ Failed to download %s: %s", f.Title(), f.Reason)))
			b.WriteString("\n")
		}
		for _, f := range m.result.ResolutionFailures {
			b.WriteString(warningStyle.Render(fmt.Sprintf("! Failed to resolve %s: %s", f.Title, f.Reason)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func fileSize(path string) (uint64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return uint64(info.Size()), true
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "ctrl+s: start • esc: quit"
	case StateRunning:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new batch • q: quit"
	}
	return ""
}

// Run starts the TUI application.
func Run(runner Runner, outDir string) error {
	p := tea.NewProgram(NewModel(runner, outDir), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
