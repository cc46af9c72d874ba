package tools

import (
	"context"
)

// emitterKey uses an empty struct for a zero-allocation context key.
type emitterKey struct{}

// EventEmitter receives tool lifecycle events during an invocation.
// The interface is minimal, only the tool name crosses it; presentation
// (messages, spinners) belongs to the client layer.
//
// Usage:
//  1. The client creates an emitter bound to its display.
//  2. The client stores it in the context via ContextWithEmitter.
//  3. The registry retrieves it via EmitterFromContext and calls
//     OnToolStart/OnToolComplete/OnToolError around execution.
type EventEmitter interface {
	// OnToolStart signals that a tool has started execution.
	OnToolStart(name string)

	// OnToolComplete signals that a tool completed successfully.
	OnToolComplete(name string)

	// OnToolError signals that a tool invocation failed.
	OnToolError(name string)
}

// EmitterFromContext retrieves the EventEmitter from context.
// Returns nil if not set; callers degrade gracefully and emit nothing.
func EmitterFromContext(ctx context.Context) EventEmitter {
	emitter, _ := ctx.Value(emitterKey{}).(EventEmitter)
	return emitter
}

// ContextWithEmitter stores the EventEmitter in context for per-request
// binding.
func ContextWithEmitter(ctx context.Context, emitter EventEmitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}
