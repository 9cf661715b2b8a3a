// Package tui provides a terminal user interface for handsplit
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/handsplit/pkg/instrument"
	"github.com/james-see/handsplit/pkg/splitter"
)

// Keyboard color scheme: ivory keys, ebony background, brass accents
var (
	ivory = lipgloss.Color("#FFFFF0")
	brass = lipgloss.Color("#D4A017")
	felt  = lipgloss.Color("#8B0000")
	ebony = lipgloss.Color("#1C1C1C")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ivory).
			Background(ebony).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0")).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(brass).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(brass).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(brass).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(felt).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateWorking
	StateResult
)

// Action is what a menu item does with the picked file
type Action int

const (
	ActionSplit Action = iota
	ActionInstrument
	ActionExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Action      Action
}

var menuItems = []MenuItem{
	{Title: "Split hands", Description: "Split a piano MIDI file into right-hand and left-hand tracks", Action: ActionSplit},
	{Title: "Change instrument", Description: "Switch every channel of a MIDI file to one program", Action: ActionInstrument},
	{Title: "Exit", Description: "Exit the application", Action: ActionExit},
}

// Options configures the work the TUI performs
type Options struct {
	Splitter    *splitter.Splitter
	FileOptions splitter.FileOptions
	Program     int
	Extensions  []string
}

// Model represents the TUI model
type Model struct {
	opts         Options
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	selectedFile string
	action       MenuItem
	outputs      []string
	summary      string
	err          error
	width        int
	height       int
}

// workDoneMsg signals that a split or rewrite finished
type workDoneMsg struct {
	outputs []string
	summary string
	err     error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model
func New(opts Options) Model {
	if opts.Splitter == nil {
		opts.Splitter = splitter.New(splitter.DefaultOptions(), nil)
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".mid", ".midi"}
	}

	// Initialize file picker
	fp := filepicker.New()
	fp.AllowedTypes = opts.Extensions
	fp.CurrentDirectory, _ = os.Getwd()

	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(brass)

	return Model{
		opts:       opts,
		state:      StateMenu,
		menuIndex:  0,
		filePicker: fp,
		spinner:    s,
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle file picker state first - it needs to receive all messages
	if m.state == StateFilePicker {
		// Check for escape/quit keys first
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		// Pass all other messages to the file picker
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		// Check if file was selected
		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateWorking
			return m, tea.Batch(m.spinner.Tick, m.perform())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case workDoneMsg:
		m.state = StateResult
		m.outputs = msg.outputs
		m.summary = msg.summary
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		item := menuItems[m.menuIndex]
		if item.Action == ActionExit {
			return m, tea.Quit
		}
		m.action = item
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		m.outputs = nil
		m.summary = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) perform() tea.Cmd {
	action := m.action.Action
	src := m.selectedFile
	opts := m.opts

	return func() tea.Msg {
		return run(action, src, opts)
	}
}

func run(action Action, src string, opts Options) workDoneMsg {
	switch action {
	case ActionSplit:
		fr, err := opts.Splitter.SplitFile(context.Background(), src, opts.FileOptions)
		if err != nil {
			return workDoneMsg{err: err}
		}
		summary := "no notes, split point used"
		if c := fr.Result.Centroids; c != nil {
			summary = fmt.Sprintf("pitch centroids %s", c)
		}
		return workDoneMsg{outputs: []string{fr.SimplePath, fr.SmartPath}, summary: summary}

	case ActionInstrument:
		dst, err := instrument.ChangeFile(src, "", opts.Program)
		if err != nil {
			return workDoneMsg{err: err}
		}
		return workDoneMsg{outputs: []string{dst}, summary: fmt.Sprintf("program %d", opts.Program)}
	}
	return workDoneMsg{err: fmt.Errorf("unknown action %d", action)}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	// Header
	s.WriteString(logo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateWorking:
		s.WriteString(m.viewWorking())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	// Footer help
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT ACTION "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(ivory).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT MIDI FILE "))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewWorking() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" WORKING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s %s: %s...\n", m.spinner.View(), m.action.Title, filepath.Base(m.selectedFile)))
	s.WriteString(statusStyle.Render("  " + m.action.Description))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s failed: %s", m.action.Title, m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render(fmt.Sprintf("✓ %s complete!", m.action.Title)))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:  %s\n", filepath.Base(m.selectedFile)))
		for _, out := range m.outputs {
			s.WriteString(fmt.Sprintf("Output: %s\n", filepath.Base(out)))
		}
		if m.summary != "" {
			s.WriteString(statusStyle.Render(m.summary))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func logo() string {
	logo := `
  _                     _           _ _ _
 | |__   __ _ _ __   __| |___ _ __ | (_) |_
 | '_ \ / _' | '_ \ / _' / __| '_ \| | | __|
 | | | | (_| | | | | (_| \__ \ |_) | | | |_
 |_| |_|\__,_|_| |_|\__,_|___/ .__/|_|_|\__|
                             |_|
`
	return lipgloss.NewStyle().Foreground(ivory).Render(logo)
}

// Run starts the TUI application
func Run(opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
