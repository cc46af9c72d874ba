package tools

import (
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitRefs defines Genkit mirrors for the built-in tools and returns the
// refs to pass to ai.WithTools.
//
// The mirrors exist so the model sees the tool contracts; actual execution
// happens in the decision engine via Registry.Invoke, with generation
// configured to return tool requests instead of running them. The mirror
// handlers still delegate to the registry so behavior stays correct if a
// caller ever generates without that option.
func GenkitRefs(g *genkit.Genkit, r *Registry) ([]ai.ToolRef, error) {
	calc, err := mirror[CalculatorInput, CalculatorOutput](g, r, "calculator")
	if err != nil {
		return nil, err
	}
	kb, err := mirror[KnowledgeBaseInput, KnowledgeBaseOutput](g, r, "knowledgeBase")
	if err != nil {
		return nil, err
	}
	return []ai.ToolRef{calc, kb}, nil
}

// mirror defines one Genkit tool whose contract mirrors the registered
// definition and whose handler delegates to the registry.
func mirror[In, Out any](g *genkit.Genkit, r *Registry, name string) (ai.Tool, error) {
	def, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q not registered", ErrUnknownTool, name)
	}

	return genkit.DefineTool(g, def.Name(), def.Description(),
		func(tctx *ai.ToolContext, in In) (Out, error) {
			var zero Out
			raw, err := json.Marshal(in)
			if err != nil {
				return zero, fmt.Errorf("encoding arguments: %w", err)
			}
			out, err := r.Invoke(tctx.Context, name, raw)
			if err != nil {
				return zero, err
			}
			typed, ok := out.(Out)
			if !ok {
				return zero, fmt.Errorf("tool %q returned %T", name, out)
			}
			return typed, nil
		}), nil
}
