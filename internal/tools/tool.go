// Package tools provides the tool registry for the assistant: typed tool
// definitions with JSON-schema contracts, registration, and validated
// invocation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Definition is a registered tool: metadata, input/output contracts, and the
// type-erased execution function. Build one with New.
type Definition struct {
	name        string
	description string

	inputSchema  *jsonschema.Schema
	outputSchema *jsonschema.Schema

	// Resolved forms, used for validation on every invocation.
	inputResolved  *jsonschema.Resolved
	outputResolved *jsonschema.Resolved

	// handler is the type-erased execution function. Input arrives as the
	// already-validated raw JSON arguments.
	handler func(context.Context, json.RawMessage) (any, error)
}

// Name returns the tool's unique identifier.
func (d *Definition) Name() string { return d.name }

// Description returns the tool's functionality description.
// The model uses this to decide when to call the tool.
func (d *Definition) Description() string { return d.description }

// InputSchema returns the JSON schema describing the tool's arguments.
func (d *Definition) InputSchema() *jsonschema.Schema { return d.inputSchema }

// OutputSchema returns the JSON schema describing the tool's result.
func (d *Definition) OutputSchema() *jsonschema.Schema { return d.outputSchema }

// New creates a tool definition with type-safe input and output handling.
//
// Type safety is guaranteed at compile time via generics [In, Out]; type
// erasure is performed internally so heterogeneous tools can share one
// registry. Input and output schemas are inferred from the Go types, so the
// contract the model sees and the contract the handler receives cannot
// drift apart.
//
// Example:
//
//	calc := tools.New(
//	    "calculator",
//	    "Evaluates a mathematical expression.",
//	    func(ctx context.Context, in CalculatorInput) (CalculatorOutput, error) {
//	        ...
//	    },
//	)
func New[In, Out any](
	name string,
	description string,
	handler func(context.Context, In) (Out, error),
) (*Definition, error) {
	inputSchema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("inferring input schema for %q: %w", name, err)
	}
	outputSchema, err := jsonschema.For[Out](nil)
	if err != nil {
		return nil, fmt.Errorf("inferring output schema for %q: %w", name, err)
	}

	inputResolved, err := inputSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving input schema for %q: %w", name, err)
	}
	outputResolved, err := outputSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving output schema for %q: %w", name, err)
	}

	erased := func(ctx context.Context, raw json.RawMessage) (any, error) {
		var in In
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("decoding arguments: %w", err)
			}
		}
		return handler(ctx, in)
	}

	return &Definition{
		name:           name,
		description:    description,
		inputSchema:    inputSchema,
		outputSchema:   outputSchema,
		inputResolved:  inputResolved,
		outputResolved: outputResolved,
		handler:        erased,
	}, nil
}

// MustNew is New but panics on schema inference failure. Intended for
// built-in tools whose schemas are fixed at compile time.
func MustNew[In, Out any](
	name string,
	description string,
	handler func(context.Context, In) (Out, error),
) *Definition {
	def, err := New(name, description, handler)
	if err != nil {
		panic(fmt.Sprintf("BUG: building tool %q: %v", name, err))
	}
	return def
}

// Descriptor is the read-only view of a tool handed to the decision engine:
// enough to present the tool to a model, nothing that can execute it.
type Descriptor struct {
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	InputSchema  *jsonschema.Schema `json:"inputSchema"`
	OutputSchema *jsonschema.Schema `json:"outputSchema"`
}
