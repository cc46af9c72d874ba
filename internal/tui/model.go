// Package tui provides the Bubble Tea terminal interface for parley.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/turn"
)

// State represents the TUI state machine. It shadows the session phase:
// StateInput while the session is idle, StateThinking while a turn is in
// flight.
type State int

// TUI state machine states.
const (
	StateInput    State = iota // Awaiting user input
	StateThinking              // Turn in flight, input disabled
)

// Memory bounds to prevent unbounded growth.
const (
	maxDisplayMessages = 100 // Maximum transcript messages rendered
	maxHistory         = 100 // Maximum command history entries
)

// turnTimeout bounds a single turn; on expiry the turn fails and the
// session rolls back like any other failure.
const turnTimeout = 2 * time.Minute

// Notice role constants for transient display lines.
const (
	noticeSystem = "system"
	noticeError  = "error"
)

// notice is a transient display line shown under the transcript, cleared
// on the next submit. At most one exists at a time, so a failed turn
// surfaces exactly one notification.
type notice struct {
	role string // noticeSystem or noticeError
	text string
}

// Sender runs one turn. Implemented by turn.Orchestrator.
type Sender interface {
	Send(ctx context.Context, text string) turn.Result
}

// Model is the Bubble Tea model for the parley terminal interface.
type Model struct {
	// Input (textarea for multi-line support, Shift+Enter for newline)
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state     State
	lastCtrlC time.Time

	// Output
	spinner spinner.Model
	viewBuf strings.Builder // Reusable buffer for View() to reduce allocations
	notice  notice

	// Scrollable transcript viewport
	viewport viewport.Model

	// Help bar for keyboard shortcuts
	help help.Model
	keys keyMap

	// Turn management.
	// Note: no sync.WaitGroup - Bubble Tea's event loop provides
	// synchronization. turnSeq guards against stale messages from a
	// canceled turn so exactly one resume reaches the machine.
	turnSeq    int
	turnCancel context.CancelFunc
	eventCh    <-chan turnEvent
	toolStatus string // Current tool status line, empty when none

	// Dependencies
	session *session.State
	sender  Sender
	ctx     context.Context
	cancel  context.CancelFunc // For canceling all operations on exit

	// Dimensions
	width  int
	height int

	// Styles
	styles Styles

	// Markdown rendering (nil = graceful degradation to plain text)
	markdown *markdownRenderer
}

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // Two separator lines (above and below input)
	helpLines      = 1 // Help bar height
	promptLines    = 1 // Prompt prefix line
	minViewport    = 3 // Minimum viewport height
)

// New creates a Model driving one conversation session.
//
// IMPORTANT: ctx MUST be the same context passed to tea.WithContext()
// to ensure consistent cancellation behavior.
func New(ctx context.Context, sender Sender, sess *session.State) (*Model, error) {
	if sender == nil {
		return nil, errors.New("tui.New: sender is required")
	}
	if sess == nil {
		return nil, errors.New("tui.New: session is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}

	ctx, cancel := context.WithCancel(ctx)

	// Enter submits, Shift+Enter adds newline (default behavior)
	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.SetHeight(1)
	ta.SetWidth(120) // Updated on WindowSizeMsg
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	// Minimal styling: no background colors, just text.
	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{
		Focused: cleanStyle,
		Blurred: cleanStyle,
	})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Viewport keyboard handling is disabled; keys are routed explicitly
	// in handleKey to avoid conflicts with textarea/history navigation.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{}

	h := help.New()

	return &Model{
		session:  sess,
		sender:   sender,
		ctx:      ctx,
		cancel:   cancel,
		input:    ta,
		spinner:  sp,
		viewport: vp,
		help:     h,
		keys:     newKeyMap(),
		styles:   DefaultStyles(),
		history:  make([]string, 0, maxHistory),
		markdown: newMarkdownRenderer(80),
		width:    80, // Default width until WindowSizeMsg arrives
	}, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.input.Focus(),
	)
}
