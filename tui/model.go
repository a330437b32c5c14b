package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// state represents the current phase of the demo flow.
type state int

const (
	stateInit      state = iota
	stateLoggingIn       // exchanging the Google credential
	stateCalling         // authenticated API call in flight
	stateSuccess         // all done
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

// toast is a notification banner rendered above the status log.
type toast struct {
	title       string
	description string
	severity    string
}

// Model is the BubbleTea model for the session demo TUI.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	// Success / error display
	tokenPreview string
	errMsg       string

	// Latest notification from the client library
	activeToast *toast

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles — defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleToastBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
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

	// ── Session flow messages ────────────────────────────────────────────────

	case MsgBanner:
		return m, nil

	case MsgSessionRestored:
		m.addStatus(statusOK, "Restored existing session from disk")
		return m, nil

	case MsgSessionEmpty:
		m.addStatus(statusInfo, "No persisted session found")
		return m, nil

	case MsgLoggingIn:
		m.state = stateLoggingIn
		m.addStatus(statusInfo, "Signing in with Google credential...")
		return m, nil

	case MsgLoginOK:
		m.addStatus(statusOK, "Signed in successfully")
		return m, nil

	case MsgLoginFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Login failed: %v", msg.Err))
		return m, nil

	case MsgRequestStart:
		m.state = stateCalling
		m.addStatus(statusInfo, "Calling "+msg.Path+"...")
		return m, nil

	case MsgRequestOK:
		m.addStatus(statusOK, fmt.Sprintf("Request completed with status %d", msg.Status))
		return m, nil

	case MsgRequestFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Request failed: %v", msg.Err))
		return m, nil

	case MsgTokenRefreshed:
		m.addStatus(statusOK, "Access token refreshed transparently")
		return m, nil

	case MsgToast:
		m.activeToast = &toast{
			title:       msg.Title,
			description: msg.Description,
			severity:    msg.Severity,
		}
		m.addStatus(statusWarn, msg.Title+": "+msg.Description)
		return m, nil

	case MsgDone:
		m.tokenPreview = msg.TokenPreview
		m.state = stateSuccess
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
	case stateSuccess:
		return tea.NewView(m.viewSuccess())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

// viewMain is shown during init, login, and API calls.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  Session Client  "))
	b.WriteString("\n\n")

	switch m.state {
	case stateLoggingIn:
		b.WriteString(m.spinner.View())
		b.WriteString(" Signing in...\n")

	case stateCalling:
		b.WriteString(m.spinner.View())
		b.WriteString(" Waiting for the API...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Initializing...\n")
	}

	b.WriteString(m.viewToast())
	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewSuccess is shown after the demo flow completes.
func (m Model) viewSuccess() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleOK.Render("  ✓ Session active"))
	b.WriteString("\n\n")

	b.WriteString(styleBold.Render("Access Token: "))
	b.WriteString(m.tokenPreview + "...\n")

	b.WriteString(m.viewToast())
	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Session flow failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewToast())
	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewToast renders the latest notification banner, if any.
func (m Model) viewToast() string {
	if m.activeToast == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styleToastBox.Render(
		"  " + m.activeToast.title + " — " + m.activeToast.description + "  ",
	))
	b.WriteString("\n")
	return b.String()
}

// viewStatusLog renders the scrolling status log.
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

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}
