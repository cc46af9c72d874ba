package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/parleyhq/parley/internal/tools"
)

// GenkitGenerator is the production Generator, backed by genkit.Generate.
//
// Generation is configured with ai.WithReturnToolRequests so tool requests
// come back in the Reply for the engine to resolve, instead of being
// executed inside Genkit.
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string // Provider-qualified (e.g. "googleai/gemini-2.5-flash")
	toolRefs  []ai.ToolRef
	logger    *slog.Logger
}

// NewGenkitGenerator builds the production generator. Tool mirrors are
// defined on the Genkit instance so the model sees the registry's
// contracts.
func NewGenkitGenerator(g *genkit.Genkit, registry *tools.Registry, modelName string, logger *slog.Logger) (*GenkitGenerator, error) {
	refs, err := tools.GenkitRefs(g, registry)
	if err != nil {
		return nil, fmt.Errorf("defining tool mirrors: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenkitGenerator{
		g:         g,
		modelName: modelName,
		toolRefs:  refs,
		logger:    logger,
	}, nil
}

// Generate implements Generator.
func (gg *GenkitGenerator) Generate(ctx context.Context, req *Request) (*Reply, error) {
	messages, err := toGenkitMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	opts := []ai.GenerateOption{
		ai.WithMessages(messages...),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}
	// The catalog in the request decides whether tools ride along; the
	// direct-prompt path sends none.
	if len(req.Tools) > 0 {
		opts = append(opts,
			ai.WithTools(gg.toolRefs...),
			ai.WithReturnToolRequests(true),
		)
	}
	if gg.modelName != "" {
		opts = append(opts, ai.WithModelName(gg.modelName))
	}

	resp, err := genkit.Generate(ctx, gg.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("genkit generate: %w", err)
	}

	reply := &Reply{Text: resp.Text()}
	for _, tr := range resp.ToolRequests() {
		args, err := json.Marshal(tr.Input)
		if err != nil {
			return nil, fmt.Errorf("encoding tool request arguments for %q: %w", tr.Name, err)
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			Ref:  tr.Ref,
			Name: tr.Name,
			Args: args,
		})
	}

	gg.logger.Debug("model reply",
		"textLength", len(reply.Text),
		"toolCalls", len(reply.ToolCalls),
	)
	return reply, nil
}

// toGenkitMessages converts the engine transcript into Genkit messages.
func toGenkitMessages(msgs []Message) ([]*ai.Message, error) {
	out := make([]*ai.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(m.Text)))

		case RoleModel:
			parts := make([]*ai.Part, 0, len(m.ToolCalls)+1)
			if m.Text != "" {
				parts = append(parts, ai.NewTextPart(m.Text))
			}
			for _, call := range m.ToolCalls {
				var input any
				if len(call.Args) > 0 {
					if err := json.Unmarshal(call.Args, &input); err != nil {
						return nil, fmt.Errorf("decoding tool call arguments for %q: %w", call.Name, err)
					}
				}
				parts = append(parts, ai.NewToolRequestPart(&ai.ToolRequest{
					Name:  call.Name,
					Ref:   call.Ref,
					Input: input,
				}))
			}
			out = append(out, ai.NewModelMessage(parts...))

		case RoleTool:
			parts := make([]*ai.Part, 0, len(m.ToolResults))
			for _, result := range m.ToolResults {
				parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
					Name:   result.Name,
					Ref:    result.Ref,
					Output: result.Output,
				}))
			}
			out = append(out, ai.NewMessage(ai.RoleTool, nil, parts...))

		default:
			return nil, fmt.Errorf("unsupported transcript role %q", m.Role)
		}
	}
	return out, nil
}
