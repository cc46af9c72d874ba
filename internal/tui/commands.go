package tui

import (
	"context"
	"log/slog"

	tea "charm.land/bubbletea/v2"

	"github.com/parleyhq/parley/internal/tools"
	"github.com/parleyhq/parley/internal/turn"
)

// eventBufferSize keeps tool status events from backpressuring the turn
// goroutine while the UI renders.
const eventBufferSize = 16

// turnEvent is a discriminated union for all events from one in-flight
// turn. Exactly one field group is set per event.
type turnEvent struct {
	status string       // tool status line (when hasStatus)
	result *turn.Result // final result (when non-nil, the turn is over)

	hasStatus bool
}

// Turn message types for Bubble Tea. Every message carries the sequence
// number of the turn that produced it; stale messages from a canceled
// turn are dropped in Update so at most one resume reaches the machine.
type turnStartedMsg struct {
	seq     int
	eventCh <-chan turnEvent
	cancel  context.CancelFunc
}

type turnStatusMsg struct {
	seq    int
	status string
}

type turnDoneMsg struct {
	seq    int
	result turn.Result
}

// channelEmitter forwards tool lifecycle events into the turn event
// channel. Sends are non-blocking; a dropped status update is harmless.
type channelEmitter struct {
	ch chan<- turnEvent
}

func (e *channelEmitter) OnToolStart(name string) {
	select {
	case e.ch <- turnEvent{status: name + "...", hasStatus: true}:
	default:
	}
}

func (e *channelEmitter) OnToolComplete(name string) {
	select {
	case e.ch <- turnEvent{hasStatus: true}: // clear the status line
	default:
	}
}

func (e *channelEmitter) OnToolError(name string) {
	select {
	case e.ch <- turnEvent{hasStatus: true}:
	default:
	}
}

// startTurn creates a command that dispatches one turn.
//
// Goroutine lifecycle: the spawned goroutine exits when Send returns,
// which is bounded by the turn timeout. Channel closure signals
// completion - no WaitGroup needed.
func (m *Model) startTurn(seq int, text string) tea.Cmd {
	return func() tea.Msg {
		eventCh := make(chan turnEvent, eventBufferSize)

		ctx, cancel := context.WithTimeout(m.ctx, turnTimeout)

		go func() {
			defer cancel()
			defer close(eventCh)

			// Panic recovery to prevent TUI lockup
			defer func() {
				if r := recover(); r != nil {
					slog.Error("turn panic recovered", "panic", r)
					select {
					case eventCh <- turnEvent{result: &turn.Result{Err: turn.GenericError}}:
					default:
					}
				}
			}()

			ctx := tools.ContextWithEmitter(ctx, &channelEmitter{ch: eventCh})
			result := m.sender.Send(ctx, text)
			eventCh <- turnEvent{result: &result}
		}()

		return turnStartedMsg{
			seq:     seq,
			eventCh: eventCh,
			cancel:  cancel,
		}
	}
}

// listenForTurn creates a command to wait for the next turn event.
// Uses a single union channel; empty events are skipped via loop instead
// of recursion.
func listenForTurn(seq int, eventCh <-chan turnEvent) tea.Cmd {
	return func() tea.Msg {
		if eventCh == nil {
			return nil
		}

		for {
			event, ok := <-eventCh
			if !ok {
				// Channel closed without a result: the turn goroutine
				// died. Resolve the machine with the generic error.
				return turnDoneMsg{
					seq:    seq,
					result: turn.Result{Err: turn.GenericError},
				}
			}

			switch {
			case event.result != nil:
				return turnDoneMsg{seq: seq, result: *event.result}
			case event.hasStatus:
				return turnStatusMsg{seq: seq, status: event.status}
			default:
				continue
			}
		}
	}
}

var _ tools.EventEmitter = (*channelEmitter)(nil)
