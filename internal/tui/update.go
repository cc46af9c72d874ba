package tui

import (
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/parleyhq/parley/internal/turn"
)

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo // Bubble Tea Update requires type switch on all message types
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Calculate viewport height: total - input - separators - help
		inputHeight := m.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(vpHeight)
		m.input.SetWidth(msg.Width - 4) // Room for "> " prompt
		m.help.SetWidth(msg.Width)
		m.markdown.UpdateWidth(msg.Width)

		m.rebuildViewportContent()
		return m, nil

	case tea.MouseWheelMsg:
		// Forward mouse wheel to viewport for scrolling
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		// Rebuild viewport so the spinner animates while a turn is running
		if m.state == StateThinking {
			m.rebuildViewportContent()
		}
		return m, cmd

	case turnStartedMsg:
		if msg.seq != m.turnSeq {
			// Started after cancellation; release its resources and drop it.
			msg.cancel()
			return m, nil
		}
		m.turnCancel = msg.cancel
		m.eventCh = msg.eventCh
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForTurn(msg.seq, msg.eventCh)

	case turnStatusMsg:
		if msg.seq != m.turnSeq {
			return m, nil
		}
		m.toolStatus = msg.status
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForTurn(msg.seq, m.eventCh)

	case turnDoneMsg:
		if msg.seq != m.turnSeq {
			return m, nil
		}
		return m.finishTurn(msg.result)
	}

	// Typing is only meaningful while awaiting input.
	if m.state == StateInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// finishTurn resolves the session machine with the turn result and
// returns the model to the input state.
func (m *Model) finishTurn(result turn.Result) (tea.Model, tea.Cmd) {
	m.state = StateInput
	m.toolStatus = ""

	if m.turnCancel != nil {
		m.turnCancel()
		m.turnCancel = nil
	}
	m.eventCh = nil

	if result.Err != "" {
		// Failed turn: the submitted message rolls back so a retry
		// starts from the same history.
		m.session.Fail()
		m.notice = notice{role: noticeError, text: result.Err}
	} else {
		m.session.Resolve(result.Response)
	}

	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, m.input.Focus()
}
