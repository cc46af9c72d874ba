package tui

import (
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/parleyhq/parley/internal/session"
)

// View implements tea.Model.
// Uses AltScreen with viewport for scrollable message history.
func (m *Model) View() tea.View {
	m.viewBuf.Reset()

	// Viewport (scrollable message area)
	_, _ = m.viewBuf.WriteString(m.viewport.View())
	_, _ = m.viewBuf.WriteString("\n")

	// Separator line above input
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	// Input prompt
	_, _ = m.viewBuf.WriteString(m.styles.Prompt.Render("> "))
	_, _ = m.viewBuf.WriteString(m.input.View())
	_, _ = m.viewBuf.WriteString("\n")

	// Separator line below input
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	// Help bar (keyboard shortcuts)
	_, _ = m.viewBuf.WriteString(m.renderStatusBar())

	v := tea.NewView(m.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the viewport content from the session
// transcript and the model state. Called when the transcript, notice, or
// state changes.
func (m *Model) rebuildViewportContent() {
	var b strings.Builder

	// Banner (ASCII art) and tips
	_, _ = b.WriteString(m.styles.RenderBanner())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.styles.RenderWelcomeTips())
	_, _ = b.WriteString("\n")

	// The session transcript is the single source of truth for messages.
	msgs := m.session.Messages()
	if len(msgs) > maxDisplayMessages {
		msgs = msgs[len(msgs)-maxDisplayMessages:]
	}
	for _, msg := range msgs {
		switch msg.Role {
		case session.RoleUser:
			_, _ = b.WriteString(m.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Text)
		case session.RoleAssistant:
			_, _ = b.WriteString(m.styles.Assistant.Render("Parley> "))
			_, _ = b.WriteString(m.markdown.Render(msg.Text))
		}
		_, _ = b.WriteString("\n\n")
	}

	// Transient notice (slash command output, turn failure, cancellation)
	if m.notice.text != "" {
		switch m.notice.role {
		case noticeError:
			_, _ = b.WriteString(m.styles.Error.Render(m.notice.text))
		default:
			_, _ = b.WriteString(m.styles.System.Render(m.notice.text))
		}
		_, _ = b.WriteString("\n\n")
	}

	// Turn-in-flight indicator: tool status when a tool is running,
	// otherwise a plain thinking line.
	if m.state == StateThinking {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" ")
		if m.toolStatus != "" {
			_, _ = b.WriteString(m.styles.System.Render(m.toolStatus))
		} else {
			_, _ = b.WriteString("Thinking...")
		}
		_, _ = b.WriteString("\n\n")
	}

	m.viewport.SetContent(b.String())
}

// renderSeparator returns a horizontal line separator.
func (m *Model) renderSeparator() string {
	width := m.width
	if width <= 0 {
		width = 80 // Default width
	}
	return m.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns state-appropriate keyboard shortcut help.
func (m *Model) renderStatusBar() string {
	var bindings []key.Binding
	switch m.state {
	case StateInput:
		bindings = []key.Binding{
			m.keys.Submit, m.keys.NewLine, m.keys.History,
			m.keys.Cancel, m.keys.Quit, m.keys.ScrollUp,
		}
	case StateThinking:
		bindings = []key.Binding{
			m.keys.EscCancel, m.keys.Cancel,
			m.keys.ScrollUp, m.keys.ScrollDown,
		}
	}
	return m.help.ShortHelpView(bindings)
}
