package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// state represents the current phase of the status flow.
type state int

const (
	stateInit      state = iota
	stateResolving       // waiting on the cloud API
	stateResolved        // status known
	stateDisabled        // module switched off
	stateError           // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the account status TUI.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	result MsgResolved
	notice string
	errMsg string

	statusLines []statusLine
}

var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleAccountBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("228")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("228")).
			Padding(0, 2)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	case MsgBanner:
		return m, nil

	case MsgConfigLoaded:
		if msg.BaseURL == "" {
			m.addStatus(statusWarn, "Base URL is not configured ("+msg.Backend+")")
		} else {
			m.addStatus(statusInfo, fmt.Sprintf("Using %s config, base URL %s", msg.Backend, msg.BaseURL))
		}
		return m, nil

	case MsgCallbackProvided:
		m.addStatus(statusInfo, "Callback token received")
		return m, nil

	case MsgResolving:
		m.state = stateResolving
		m.addStatus(statusInfo, "Refreshing account status...")
		return m, nil

	case MsgModuleDisabled:
		m.notice = msg.Notice
		m.state = stateDisabled
		return m, nil

	case MsgResolved:
		m.result = msg
		m.state = stateResolved
		if msg.Failed {
			m.addStatus(statusWarn, msg.StatusMessage)
		} else {
			m.addStatus(statusOK, msg.StatusMessage)
		}
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateResolved:
		return tea.NewView(m.viewResolved())
	case stateDisabled:
		return tea.NewView(m.viewDisabled())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  NeutromeLabs Account  "))
	b.WriteString("\n\n")

	b.WriteString(m.spinner.View())
	if m.state == stateResolving {
		b.WriteString(" Refreshing account status...\n")
	} else {
		b.WriteString(" Initializing...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewResolved() string {
	var b strings.Builder

	b.WriteString("\n")
	if m.result.SignedIn {
		b.WriteString(styleOK.Render("  ✓ Account linked"))
		b.WriteString("\n\n")
		b.WriteString(styleAccountBox.Render("  " + m.result.Email + "  "))
	} else {
		b.WriteString(styleWarn.Render("  ⚠ Not signed in"))
	}
	b.WriteString("\n\n")

	b.WriteString(styleBold.Render("Status:  "))
	b.WriteString(m.result.StatusMessage + "\n")

	if m.result.SignInURL != "" {
		b.WriteString(styleBold.Render("Sign in: "))
		b.WriteString(m.result.SignInURL + "\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewDisabled() string {
	return "\n" + styleDim.Render("  "+m.notice) + "\n" + m.viewStatusLog()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Account status unavailable"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}
