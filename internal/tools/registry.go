package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	// ErrDuplicateTool indicates a registration under an already-taken name.
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrUnknownTool indicates an invocation of a name that was never
	// registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments indicates arguments (or a tool's own output) that
	// violate the declared schema contract.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrToolExecutionFailed indicates the tool itself failed while running.
	ErrToolExecutionFailed = errors.New("tool execution failed")
)

// Registry stores tool definitions and invokes them with contract
// enforcement on both sides: arguments are validated against the input
// schema before execution, results against the output schema after.
//
// Safe for concurrent use. The expected lifecycle is register-at-startup,
// invoke-forever, but nothing depends on that.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Definition
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName: make(map[string]*Definition),
		logger: logger,
	}
}

// Register adds a tool definition. Names are unique; a second registration
// under the same name returns ErrDuplicateTool and leaves the first intact.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return errors.New("nil tool definition")
	}
	if def.name == "" {
		return errors.New("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[def.name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, def.name)
	}
	r.byName[def.name] = def
	return nil
}

// Lookup returns the definition registered under name, or false.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byName[name]
	return def, ok
}

// Catalog returns descriptors for every registered tool, sorted by name so
// the view handed to the model is stable across runs.
func (r *Registry) Catalog() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.byName))
	for _, def := range r.byName {
		out = append(out, Descriptor{
			Name:         def.name,
			Description:  def.description,
			InputSchema:  def.inputSchema,
			OutputSchema: def.outputSchema,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs the named tool against raw JSON arguments.
//
// Failure modes, in checking order:
//   - ErrUnknownTool: name was never registered
//   - ErrInvalidArguments: arguments violate the input schema
//   - ErrToolExecutionFailed: the handler returned an error or panicked
//   - ErrInvalidArguments (wrapping the output side): the handler's result
//     violates its own output schema
//
// All errors carry the tool name for caller diagnostics.
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs json.RawMessage) (any, error) {
	def, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if err := validateAgainst(def.inputResolved, rawArgs); err != nil {
		return nil, fmt.Errorf("%w: tool %q: %v", ErrInvalidArguments, name, err)
	}

	emitter := EmitterFromContext(ctx)
	if emitter != nil {
		emitter.OnToolStart(name)
	}

	result, err := r.execute(ctx, def, rawArgs)
	if err != nil {
		if emitter != nil {
			emitter.OnToolError(name)
		}
		r.logger.Error("tool execution failed", "tool", name, "error", err)
		return nil, fmt.Errorf("%w: %q: %v", ErrToolExecutionFailed, name, err)
	}

	// Output contract violations are integration bugs in the tool itself,
	// surfaced as invalid-arguments on the output side rather than being
	// passed through to the model.
	if err := validateOutput(def.outputResolved, result); err != nil {
		if emitter != nil {
			emitter.OnToolError(name)
		}
		r.logger.Error("tool output violates contract", "tool", name, "error", err)
		return nil, fmt.Errorf("%w: tool %q output: %v", ErrInvalidArguments, name, err)
	}

	if emitter != nil {
		emitter.OnToolComplete(name)
	}
	return result, nil
}

// execute runs the handler with panic containment so one misbehaving tool
// cannot take down the whole turn path.
func (r *Registry) execute(ctx context.Context, def *Definition, rawArgs json.RawMessage) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return def.handler(ctx, rawArgs)
}

// validateAgainst checks raw JSON against a resolved schema.
func validateAgainst(schema *jsonschema.Resolved, raw json.RawMessage) error {
	var instance any
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return schema.Validate(instance)
}

// validateOutput round-trips the typed result through JSON and checks it
// against the output schema.
func validateOutput(schema *jsonschema.Resolved, result any) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("result is not JSON-encodable: %w", err)
	}
	var instance any
	if err := json.Unmarshal(encoded, &instance); err != nil {
		return err
	}
	return schema.Validate(instance)
}
