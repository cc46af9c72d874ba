package turn

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
)

// Input defines the request payload for the chat flow.
type Input struct {
	Message string `json:"message"`
}

// Output defines the response payload from the chat flow. Exactly one
// field is set, mirroring Result.
type Output struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PromptInput defines the request payload for the direct-prompt flow:
// the text goes to the model without tools or a standing instruction.
type PromptInput struct {
	Prompt string `json:"prompt"`
}

// Registered flow names in Genkit.
const (
	FlowName       = "parley/chat"
	PromptFlowName = "parley/prompt"
)

// Flow and PromptFlow are the type aliases for the two flows.
// Exported for use with genkit.Handler().
type (
	Flow       = core.Flow[Input, Output, struct{}]
	PromptFlow = core.Flow[PromptInput, Output, struct{}]
)

// Package-level singletons to prevent panic on re-registration:
// genkit.DefineFlow registers globally and panics when called twice.
var (
	flowOnce sync.Once
	flow     *Flow

	promptFlowOnce sync.Once
	promptFlow     *PromptFlow
)

// NewFlow returns the chat flow singleton, initializing it on first call.
// Subsequent calls return the existing flow (parameters are ignored).
func NewFlow(g *genkit.Genkit, o *Orchestrator) *Flow {
	flowOnce.Do(func() {
		flow = defineFlow(g, o)
	})
	return flow
}

// NewPromptFlow returns the direct-prompt flow singleton, initializing it
// on first call. Subsequent calls return the existing flow.
func NewPromptFlow(g *genkit.Genkit, o *Orchestrator) *PromptFlow {
	promptFlowOnce.Do(func() {
		promptFlow = definePromptFlow(g, o)
	})
	return promptFlow
}

// ResetFlowForTesting resets the flow singletons so tests can initialize
// with different configurations. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
	promptFlowOnce = sync.Once{}
	promptFlow = nil
}

// defineFlow wraps the orchestrator as a Genkit flow for Dev UI tracing
// and HTTP exposure. The flow never returns a Go error: failures surface
// in Output.Error so the boundary contract holds on every transport.
func defineFlow(g *genkit.Genkit, o *Orchestrator) *Flow {
	return genkit.DefineFlow(g, FlowName,
		func(ctx context.Context, input Input) (Output, error) {
			result := o.Send(ctx, input.Message)
			return Output{
				Response: result.Response,
				Error:    result.Err,
			}, nil
		},
	)
}

// definePromptFlow wraps the toolless turn path as its own flow.
func definePromptFlow(g *genkit.Genkit, o *Orchestrator) *PromptFlow {
	return genkit.DefineFlow(g, PromptFlowName,
		func(ctx context.Context, input PromptInput) (Output, error) {
			result := o.SendDirect(ctx, input.Prompt)
			return Output{
				Response: result.Response,
				Error:    result.Err,
			}, nil
		},
	)
}
