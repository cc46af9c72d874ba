package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/internal/engine"
	"github.com/parleyhq/parley/internal/log"
	"github.com/parleyhq/parley/internal/testutil"
	"github.com/parleyhq/parley/internal/tools"
)

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(log.NewNop())
	require.NoError(t, tools.RegisterBuiltins(r))
	return r
}

func newEngine(t *testing.T, gen engine.Generator, registry *tools.Registry) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Config{
		Generator:   gen,
		Registry:    registry,
		Logger:      log.NewNop(),
		RateLimiter: rate.NewLimiter(rate.Inf, 1),
		RetryConfig: engine.RetryConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	return e
}

func calculatorCall(expression string) engine.ToolCall {
	return engine.ToolCall{
		Ref:  "call-1",
		Name: "calculator",
		Args: json.RawMessage(fmt.Sprintf(`{"expression":%q}`, expression)),
	}
}

func TestRespondPlainText(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddReply("hello", "Hi there!")

	e := newEngine(t, gen, newRegistry(t))

	got, err := e.Respond(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", got)
}

func TestRespondWithToolRound(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddToolReplyFunc("what is 2+2",
		[]engine.ToolCall{calculatorCall("2+2")},
		func(results []engine.ToolResult) string {
			require.Len(t, results, 1)
			out, ok := results[0].Output.(tools.CalculatorOutput)
			require.True(t, ok)
			return fmt.Sprintf("The answer is %g.", out.Result)
		})

	e := newEngine(t, gen, newRegistry(t))

	got, err := e.Respond(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	assert.Contains(t, got, "4")

	// Two generator rounds: one requesting the tool, one finalizing.
	assert.Len(t, gen.Requests(), 2)
}

func TestRespondToolResultsReachGenerator(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddToolReplyFunc("capital of france",
		[]engine.ToolCall{{
			Name: "knowledgeBase",
			Args: json.RawMessage(`{"query":"capital of france"}`),
		}},
		func(results []engine.ToolResult) string {
			out := results[0].Output.(tools.KnowledgeBaseOutput)
			return out.Answer
		})

	e := newEngine(t, gen, newRegistry(t))

	got, err := e.Respond(context.Background(), "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "The capital of France is Paris.", got)
}

func TestRespondUnknownToolFailsTurn(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddToolReply("weather",
		[]engine.ToolCall{{Name: "weather", Args: json.RawMessage(`{}`)}},
		"never reached")

	e := newEngine(t, gen, newRegistry(t))

	_, err := e.Respond(context.Background(), "weather in Paris?")
	require.ErrorIs(t, err, tools.ErrUnknownTool)
}

func TestRespondToolFailureFailsTurn(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddToolReply("divide",
		[]engine.ToolCall{calculatorCall("1/0")},
		"never reached")

	e := newEngine(t, gen, newRegistry(t))

	_, err := e.Respond(context.Background(), "divide by zero please")
	require.ErrorIs(t, err, tools.ErrToolExecutionFailed)
}

func TestRespondInvalidArgumentsFailTurn(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddToolReply("compute",
		[]engine.ToolCall{{
			Name: "calculator",
			Args: json.RawMessage(`{"expression": 42}`),
		}},
		"never reached")

	e := newEngine(t, gen, newRegistry(t))

	_, err := e.Respond(context.Background(), "compute something")
	require.ErrorIs(t, err, tools.ErrInvalidArguments)
}

func TestRespondEmptyReplyIsGenerationFailure(t *testing.T) {
	gen := testutil.NewScripted("") // empty fallback, no rules

	e := newEngine(t, gen, newRegistry(t))

	_, err := e.Respond(context.Background(), "anything")
	require.ErrorIs(t, err, engine.ErrGenerationFailed)
}

func TestRespondMaxTurnsExceeded(t *testing.T) {
	// The rule keeps requesting tools because finalize never fires: the
	// scripted generator only finalizes when results exist, so force the
	// loop by re-matching with fresh calls every round.
	gen := &loopingGenerator{}

	e, err := engine.New(engine.Config{
		Generator:   gen,
		Registry:    newRegistry(t),
		Logger:      log.NewNop(),
		MaxTurns:    3,
		RateLimiter: rate.NewLimiter(rate.Inf, 1),
	})
	require.NoError(t, err)

	_, err = e.Respond(context.Background(), "loop forever")
	require.ErrorIs(t, err, engine.ErrMaxTurnsExceeded)
	assert.Equal(t, 3, gen.calls)
}

// loopingGenerator requests a tool call on every round, never finalizing.
type loopingGenerator struct {
	calls int
}

func (g *loopingGenerator) Generate(ctx context.Context, req *engine.Request) (*engine.Reply, error) {
	g.calls++
	return &engine.Reply{
		ToolCalls: []engine.ToolCall{{
			Name: "calculator",
			Args: json.RawMessage(`{"expression":"1+1"}`),
		}},
	}, nil
}

func TestRespondRetriesTransientFailures(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddReply("hello", "Hi!")
	gen.FailNext(2, errors.New("503 service unavailable"))

	e := newEngine(t, gen, newRegistry(t))

	got, err := e.Respond(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi!", got)
	assert.Len(t, gen.Requests(), 3)
}

func TestRespondDoesNotRetryPermanentFailures(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddReply("hello", "Hi!")
	gen.FailNext(1, errors.New("invalid api key"))

	e := newEngine(t, gen, newRegistry(t))

	_, err := e.Respond(context.Background(), "hello")
	require.Error(t, err)
	assert.Len(t, gen.Requests(), 1)
}

func TestRespondGivesUpAfterMaxRetries(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddReply("hello", "Hi!")
	gen.FailNext(10, errors.New("429 too many requests"))

	e := newEngine(t, gen, newRegistry(t))

	_, err := e.Respond(context.Background(), "hello")
	require.Error(t, err)
	// 1 initial attempt + 2 retries.
	assert.Len(t, gen.Requests(), 3)
}

func TestRespondDirectSkipsToolCatalog(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddReply("write a haiku", "Autumn moonlight.")

	e := newEngine(t, gen, newRegistry(t))

	got, err := e.RespondDirect(context.Background(), "Write a haiku")
	require.NoError(t, err)
	assert.Equal(t, "Autumn moonlight.", got)

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].System)
	assert.Empty(t, reqs[0].Tools)
	require.Len(t, reqs[0].Messages, 1)
	assert.Equal(t, "Write a haiku", reqs[0].Messages[0].Text)
}

func TestRespondDirectEmptyReplyIsGenerationFailure(t *testing.T) {
	gen := testutil.NewScripted("") // empty fallback, no rules

	e := newEngine(t, gen, newRegistry(t))

	_, err := e.RespondDirect(context.Background(), "anything")
	require.ErrorIs(t, err, engine.ErrGenerationFailed)
}

func TestRespondDirectRetriesTransientFailures(t *testing.T) {
	gen := testutil.NewScripted("")
	gen.AddReply("hello", "Hi!")
	gen.FailNext(1, errors.New("503 service unavailable"))

	e := newEngine(t, gen, newRegistry(t))

	got, err := e.RespondDirect(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi!", got)
	assert.Len(t, gen.Requests(), 2)
}

func TestNewValidatesConfig(t *testing.T) {
	registry := newRegistry(t)
	gen := testutil.NewScripted("")

	_, err := engine.New(engine.Config{Registry: registry, Logger: log.NewNop()})
	assert.Error(t, err)

	_, err = engine.New(engine.Config{Generator: gen, Logger: log.NewNop()})
	assert.Error(t, err)

	_, err = engine.New(engine.Config{Generator: gen, Registry: registry})
	assert.Error(t, err)
}
