package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/log"
)

type echoInput struct {
	Text string `json:"text"`
}

type echoOutput struct {
	Text string `json:"text"`
}

func newEchoTool(t *testing.T) *Definition {
	t.Helper()
	def, err := New("echo", "Echoes the input text back.",
		func(ctx context.Context, in echoInput) (echoOutput, error) {
			return echoOutput{Text: in.Text}, nil
		})
	require.NoError(t, err)
	return def
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry(log.NewNop())

	require.NoError(t, r.Register(newEchoTool(t)))

	err := r.Register(newEchoTool(t))
	require.ErrorIs(t, err, ErrDuplicateTool)
	assert.Contains(t, err.Error(), "echo")

	// The first registration stays intact.
	def, ok := r.Lookup("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", def.Name())
}

func TestRegistryInvoke(t *testing.T) {
	r := NewRegistry(log.NewNop())
	require.NoError(t, r.Register(newEchoTool(t)))

	result, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"text":"hello"}`))
	require.NoError(t, err)

	out, ok := result.(echoOutput)
	require.True(t, ok)
	assert.Equal(t, "hello", out.Text)
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	r := NewRegistry(log.NewNop())

	_, err := r.Invoke(context.Background(), "nonexistent", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrUnknownTool)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestRegistryInvokeInvalidArguments(t *testing.T) {
	r := NewRegistry(log.NewNop())
	require.NoError(t, r.Register(newEchoTool(t)))

	tests := []struct {
		name string
		args json.RawMessage
	}{
		{"wrong type", json.RawMessage(`{"text": 42}`)},
		{"not an object", json.RawMessage(`"just a string"`)},
		{"malformed json", json.RawMessage(`{"text":`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Invoke(context.Background(), "echo", tt.args)
			assert.ErrorIs(t, err, ErrInvalidArguments)
		})
	}
}

func TestRegistryInvokeExecutionFailure(t *testing.T) {
	r := NewRegistry(log.NewNop())

	failing, err := New("failing", "Always fails.",
		func(ctx context.Context, in echoInput) (echoOutput, error) {
			return echoOutput{}, errors.New("backend unavailable")
		})
	require.NoError(t, err)
	require.NoError(t, r.Register(failing))

	_, err = r.Invoke(context.Background(), "failing", json.RawMessage(`{"text":"x"}`))
	require.ErrorIs(t, err, ErrToolExecutionFailed)
	assert.Contains(t, err.Error(), "failing")
	assert.Contains(t, err.Error(), "backend unavailable")
}

func TestRegistryInvokeContainsPanic(t *testing.T) {
	r := NewRegistry(log.NewNop())

	panicking, err := New("panicking", "Panics on invocation.",
		func(ctx context.Context, in echoInput) (echoOutput, error) {
			panic("boom")
		})
	require.NoError(t, err)
	require.NoError(t, r.Register(panicking))

	_, err = r.Invoke(context.Background(), "panicking", json.RawMessage(`{"text":"x"}`))
	require.ErrorIs(t, err, ErrToolExecutionFailed)
	assert.Contains(t, err.Error(), "boom")
}

func TestRegistryCatalogStableOrder(t *testing.T) {
	r := NewRegistry(log.NewNop())
	require.NoError(t, RegisterBuiltins(r))

	catalog := r.Catalog()
	require.Len(t, catalog, 2)
	assert.Equal(t, "calculator", catalog[0].Name)
	assert.Equal(t, "knowledgeBase", catalog[1].Name)

	for _, desc := range catalog {
		assert.NotEmpty(t, desc.Description)
		assert.NotNil(t, desc.InputSchema)
		assert.NotNil(t, desc.OutputSchema)
	}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEmitter) OnToolStart(name string) { e.record("start:" + name) }

func (e *recordingEmitter) OnToolComplete(name string) { e.record("complete:" + name) }

func (e *recordingEmitter) OnToolError(name string) { e.record("error:" + name) }

func (e *recordingEmitter) record(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func TestRegistryEmitsLifecycleEvents(t *testing.T) {
	r := NewRegistry(log.NewNop())
	require.NoError(t, RegisterBuiltins(r))

	emitter := &recordingEmitter{}
	ctx := ContextWithEmitter(context.Background(), emitter)

	_, err := r.Invoke(ctx, "calculator", json.RawMessage(`{"expression":"2+2"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"start:calculator", "complete:calculator"}, emitter.events)

	emitter.events = nil
	_, err = r.Invoke(ctx, "calculator", json.RawMessage(`{"expression":"1/0"}`))
	require.Error(t, err)
	assert.Equal(t, []string{"start:calculator", "error:calculator"}, emitter.events)
}
