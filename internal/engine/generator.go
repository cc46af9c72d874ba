// Package engine drives the tool-use decision loop: one user message in,
// one final reply out, with tool invocations resolved in between.
package engine

import (
	"context"
	"encoding/json"

	"github.com/parleyhq/parley/internal/tools"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// ToolCall is a model request to invoke a named tool with raw JSON
// arguments. Ref correlates the call with its result within one turn.
type ToolCall struct {
	Ref  string          `json:"ref,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolResult carries a tool's output back to the model.
type ToolResult struct {
	Ref    string `json:"ref,omitempty"`
	Name   string `json:"name"`
	Output any    `json:"output"`
}

// Message is one entry in the turn transcript handed to the generator.
// Exactly one payload is set for its role: Text for user messages,
// Text and/or ToolCalls for model messages, ToolResults for tool messages.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// Request is a single generation request: the standing instruction, the
// tool catalog the model may draw on, and the transcript so far.
type Request struct {
	System   string
	Tools    []tools.Descriptor
	Messages []Message
}

// Reply is the model's answer to one Request: final text, tool call
// requests, or both. An empty reply (neither) is a generation failure,
// handled by the engine.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// Generator is the opaque generation capability behind the engine.
// Production uses the Genkit-backed implementation; tests use a scripted
// one. Implementations must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Reply, error)
}
