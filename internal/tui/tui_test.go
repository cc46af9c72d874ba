package tui

import (
	"context"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/turn"
)

// funcSender adapts a function to the Sender interface.
type funcSender func(ctx context.Context, text string) turn.Result

func (f funcSender) Send(ctx context.Context, text string) turn.Result {
	return f(ctx, text)
}

func echoSender() Sender {
	return funcSender(func(_ context.Context, text string) turn.Result {
		return turn.Result{Response: "echo: " + text}
	})
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	m, err := New(context.Background(), echoSender(), session.NewState())
	require.NoError(t, err)
	return m
}

// submit types text into the model and presses enter via the internal
// handler. The returned command is deliberately not executed, so no turn
// goroutine starts; tests drive the state machine with synthetic messages.
func submit(t *testing.T, m *Model, text string) tea.Cmd {
	t.Helper()
	m.input.SetValue(text)
	model, cmd := m.handleSubmit()
	require.Same(t, m, model)
	return cmd
}

func TestNewValidation(t *testing.T) {
	_, err := New(context.Background(), nil, session.NewState())
	assert.Error(t, err)

	_, err = New(context.Background(), echoSender(), nil)
	assert.Error(t, err)

	//nolint:staticcheck // Intentionally testing nil context handling
	_, err = New(nil, echoSender(), session.NewState())
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestModel(t)
	assert.NotNil(t, m.Init())
}

func TestSubmitStartsTurn(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestModel(t)
	cmd := submit(t, m, "  What is 2+2?  ")

	require.NotNil(t, cmd)
	assert.Equal(t, StateThinking, m.state)
	assert.Equal(t, session.AwaitingTurn, m.session.Phase())

	msgs := m.session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "What is 2+2?", msgs[0].Text)
	assert.Empty(t, m.input.Value())
}

func TestBlankSubmitIgnored(t *testing.T) {
	m := newTestModel(t)
	cmd := submit(t, m, "   ")

	assert.Nil(t, cmd)
	assert.Equal(t, StateInput, m.state)
	assert.Empty(t, m.session.Messages())
}

func TestSubmitWhileThinkingIgnored(t *testing.T) {
	m := newTestModel(t)
	submit(t, m, "first")
	seq := m.turnSeq

	cmd := submit(t, m, "second")
	assert.Nil(t, cmd)
	assert.Equal(t, seq, m.turnSeq)
	assert.Len(t, m.session.Messages(), 1)
}

func TestTurnDoneResolvesSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestModel(t)
	submit(t, m, "hello")

	model, _ := m.Update(turnDoneMsg{seq: m.turnSeq, result: turn.Result{Response: "Hi there."}})
	require.Same(t, m, model)

	assert.Equal(t, StateInput, m.state)
	assert.Equal(t, session.Idle, m.session.Phase())

	msgs := m.session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, session.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hi there.", msgs[1].Text)
}

func TestTurnFailureRollsBack(t *testing.T) {
	m := newTestModel(t)
	submit(t, m, "doomed")

	m.Update(turnDoneMsg{seq: m.turnSeq, result: turn.Result{Err: turn.GenericError}})

	assert.Equal(t, StateInput, m.state)
	assert.Equal(t, session.Idle, m.session.Phase())
	assert.Empty(t, m.session.Messages())

	// Exactly one error notification surfaces.
	assert.Equal(t, noticeError, m.notice.role)
	assert.Equal(t, turn.GenericError, m.notice.text)
}

func TestStaleTurnMessagesDropped(t *testing.T) {
	m := newTestModel(t)
	submit(t, m, "first")

	m.cancelTurn()
	assert.Equal(t, StateInput, m.state)
	assert.Empty(t, m.session.Messages())

	// The canceled turn completes late; its messages carry the old seq
	// and must not disturb the machine.
	stale := m.turnSeq - 1
	m.Update(turnDoneMsg{seq: stale, result: turn.Result{Response: "too late"}})
	m.Update(turnStatusMsg{seq: stale, status: "calculator..."})

	assert.Equal(t, StateInput, m.state)
	assert.Empty(t, m.session.Messages())
	assert.Empty(t, m.toolStatus)
}

func TestCancelTurnNotice(t *testing.T) {
	m := newTestModel(t)
	submit(t, m, "slow question")

	m.cancelTurn()

	assert.Equal(t, session.Idle, m.session.Phase())
	assert.Equal(t, noticeSystem, m.notice.role)
	assert.Equal(t, "(Canceled)", m.notice.text)

	// A fresh submit works immediately after cancellation.
	cmd := submit(t, m, "retry")
	assert.NotNil(t, cmd)
	assert.Equal(t, StateThinking, m.state)
}

func TestTurnStatusShowsToolName(t *testing.T) {
	m := newTestModel(t)
	submit(t, m, "What is 2+2?")

	m.Update(turnStatusMsg{seq: m.turnSeq, status: "calculator..."})
	assert.Equal(t, "calculator...", m.toolStatus)

	m.Update(turnDoneMsg{seq: m.turnSeq, result: turn.Result{Response: "4"}})
	assert.Empty(t, m.toolStatus)
}

func TestSlashCommands(t *testing.T) {
	t.Run("help", func(t *testing.T) {
		m := newTestModel(t)
		_, cmd := m.handleSlashCommand(cmdHelp)
		assert.Nil(t, cmd)
		assert.Equal(t, noticeSystem, m.notice.role)
		assert.Contains(t, m.notice.text, "/help")
	})

	t.Run("clear", func(t *testing.T) {
		m := newTestModel(t)
		submit(t, m, "hello")
		m.Update(turnDoneMsg{seq: m.turnSeq, result: turn.Result{Response: "hi"}})
		require.Len(t, m.session.Messages(), 2)

		_, cmd := m.handleSlashCommand(cmdClear)
		assert.Nil(t, cmd)
		assert.Empty(t, m.session.Messages())
	})

	t.Run("exit", func(t *testing.T) {
		m := newTestModel(t)
		_, cmd := m.handleSlashCommand(cmdExit)
		assert.NotNil(t, cmd)
	})

	t.Run("unknown", func(t *testing.T) {
		m := newTestModel(t)
		_, cmd := m.handleSlashCommand("/bogus")
		assert.Nil(t, cmd)
		assert.Equal(t, noticeError, m.notice.role)
		assert.Contains(t, m.notice.text, "/bogus")
	})
}

func TestHistoryNavigation(t *testing.T) {
	m := newTestModel(t)
	submit(t, m, "first")
	m.Update(turnDoneMsg{seq: m.turnSeq, result: turn.Result{Response: "ok"}})
	submit(t, m, "second")
	m.Update(turnDoneMsg{seq: m.turnSeq, result: turn.Result{Response: "ok"}})

	m.navigateHistory(-1)
	assert.Equal(t, "second", m.input.Value())

	m.navigateHistory(-1)
	assert.Equal(t, "first", m.input.Value())

	// Past the oldest entry stays at the oldest.
	m.navigateHistory(-1)
	assert.Equal(t, "first", m.input.Value())

	m.navigateHistory(1)
	m.navigateHistory(1)
	assert.Empty(t, m.input.Value())
}

func TestListenForTurnClosedChannel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ch := make(chan turnEvent)
	close(ch)

	msg := listenForTurn(7, ch)()
	done, ok := msg.(turnDoneMsg)
	require.True(t, ok)
	assert.Equal(t, 7, done.seq)
	assert.Equal(t, turn.GenericError, done.result.Err)
}

func TestListenForTurnSkipsEmptyEvents(t *testing.T) {
	ch := make(chan turnEvent, 2)
	ch <- turnEvent{} // neither status nor result
	ch <- turnEvent{result: &turn.Result{Response: "done"}}

	msg := listenForTurn(1, ch)()
	done, ok := msg.(turnDoneMsg)
	require.True(t, ok)
	assert.Equal(t, "done", done.result.Response)
}
