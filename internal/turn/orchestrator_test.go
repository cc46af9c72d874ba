package turn_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/internal/engine"
	"github.com/parleyhq/parley/internal/log"
	"github.com/parleyhq/parley/internal/testutil"
	"github.com/parleyhq/parley/internal/tools"
	"github.com/parleyhq/parley/internal/turn"
)

// newOrchestrator wires a real engine and registry behind the orchestrator,
// with the scripted generator standing in for the model.
func newOrchestrator(t *testing.T, gen engine.Generator) *turn.Orchestrator {
	t.Helper()

	registry := tools.NewRegistry(log.NewNop())
	require.NoError(t, tools.RegisterBuiltins(registry))

	e, err := engine.New(engine.Config{
		Generator:   gen,
		Registry:    registry,
		Logger:      log.NewNop(),
		RateLimiter: rate.NewLimiter(rate.Inf, 1),
	})
	require.NoError(t, err)

	return turn.New(e, log.NewNop())
}

func TestSendEmptyMessage(t *testing.T) {
	o := newOrchestrator(t, testutil.NewScripted("unused"))

	for _, text := range []string{"", "   ", "\t\n"} {
		result := o.Send(context.Background(), text)
		assert.Equal(t, turn.EmptyMessageError, result.Err)
		assert.Empty(t, result.Response)
	}
}

func TestSendPlainReply(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddReply("hello", "Hi! How can I help?")

	o := newOrchestrator(t, gen)

	result := o.Send(context.Background(), "hello")
	assert.Empty(t, result.Err)
	assert.Equal(t, "Hi! How can I help?", result.Response)
}

func TestSendEndToEndCalculation(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddToolReplyFunc("what is 2+2",
		[]engine.ToolCall{{
			Name: "calculator",
			Args: json.RawMessage(`{"expression":"2+2"}`),
		}},
		func(results []engine.ToolResult) string {
			out := results[0].Output.(tools.CalculatorOutput)
			return fmt.Sprintf("2+2 equals %g.", out.Result)
		})

	o := newOrchestrator(t, gen)

	result := o.Send(context.Background(), "What is 2+2?")
	assert.Empty(t, result.Err)
	assert.Contains(t, result.Response, "4")
}

func TestSendMapsFailuresToGenericError(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testutil.ScriptedGenerator)
	}{
		{
			name: "generator error",
			setup: func(gen *testutil.ScriptedGenerator) {
				gen.FailNext(1, errors.New("model exploded"))
			},
		},
		{
			name: "empty generation",
			setup: func(gen *testutil.ScriptedGenerator) {
				// No rules and empty fallback: the engine reports a
				// generation failure.
			},
		},
		{
			name: "unknown tool requested",
			setup: func(gen *testutil.ScriptedGenerator) {
				gen.AddToolReply("anything",
					[]engine.ToolCall{{Name: "weather", Args: json.RawMessage(`{}`)}},
					"never reached")
			},
		},
		{
			name: "tool execution failure",
			setup: func(gen *testutil.ScriptedGenerator) {
				gen.AddToolReply("anything",
					[]engine.ToolCall{{
						Name: "calculator",
						Args: json.RawMessage(`{"expression":"1/0"}`),
					}},
					"never reached")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := testutil.NewScripted("")
			tt.setup(gen)

			o := newOrchestrator(t, gen)

			result := o.Send(context.Background(), "anything at all")
			assert.Equal(t, turn.GenericError, result.Err)
			assert.Empty(t, result.Response)
		})
	}
}

// panickingResponder stands in for an engine that panics mid-turn.
type panickingResponder struct{}

func (panickingResponder) Respond(ctx context.Context, message string) (string, error) {
	panic("engine bug")
}

func (panickingResponder) RespondDirect(ctx context.Context, message string) (string, error) {
	panic("engine bug")
}

func TestSendContainsPanics(t *testing.T) {
	o := turn.New(panickingResponder{}, log.NewNop())

	result := o.Send(context.Background(), "trigger the bug")
	assert.Equal(t, turn.GenericError, result.Err)
	assert.Empty(t, result.Response)
}

func TestSendDirectPlainReply(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddReply("write a haiku", "Autumn moonlight.")

	o := newOrchestrator(t, gen)

	result := o.SendDirect(context.Background(), "Write a haiku")
	assert.Empty(t, result.Err)
	assert.Equal(t, "Autumn moonlight.", result.Response)

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].System)
	assert.Empty(t, reqs[0].Tools)
}

func TestSendDirectEmptyMessage(t *testing.T) {
	o := newOrchestrator(t, testutil.NewScripted("unused"))

	result := o.SendDirect(context.Background(), "   ")
	assert.Equal(t, turn.EmptyMessageError, result.Err)
	assert.Empty(t, result.Response)
}

func TestSendDirectMapsFailuresToGenericError(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.FailNext(1, errors.New("model exploded"))

	o := newOrchestrator(t, gen)

	result := o.SendDirect(context.Background(), "anything at all")
	assert.Equal(t, turn.GenericError, result.Err)
	assert.Empty(t, result.Response)
}

func TestSendTrimsBeforeDispatch(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddReply("hello", "Hi!")

	o := newOrchestrator(t, gen)

	result := o.Send(context.Background(), "   hello   ")
	assert.Equal(t, "Hi!", result.Response)

	reqs := gen.Requests()
	require.NotEmpty(t, reqs)
	require.NotEmpty(t, reqs[0].Messages)
	assert.Equal(t, "hello", reqs[0].Messages[0].Text)
}
