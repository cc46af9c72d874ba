// Package turn is the request/response boundary of the assistant: one user
// message in, exactly one of a response or a user-safe error string out.
package turn

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// User-visible strings. Clients key UI behavior off these, so they are
// stable constants rather than formatted messages.
const (
	// EmptyMessageError is returned when the submitted message is empty
	// after trimming.
	EmptyMessageError = "Message cannot be empty."

	// GenericError is returned for every internal failure. Details stay in
	// the logs; nothing about the cause crosses this boundary.
	GenericError = "Sorry, I encountered an error. Please try again."
)

// ErrEmptyMessage indicates a message that is empty after trimming.
var ErrEmptyMessage = errors.New("message is empty")

// Responder resolves one user message into one final reply, either through
// the tool-use decision loop or as a single direct generation round.
// Implemented by engine.Engine.
type Responder interface {
	Respond(ctx context.Context, message string) (string, error)
	RespondDirect(ctx context.Context, message string) (string, error)
}

// Result is the outcome of one turn. Exactly one field is set.
type Result struct {
	Response string `json:"response,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Orchestrator owns the turn boundary over a Responder.
type Orchestrator struct {
	responder Responder
	logger    *slog.Logger
}

// New creates an Orchestrator.
func New(responder Responder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{responder: responder, logger: logger}
}

// Send runs one tool-augmented turn. The returned Result always has
// exactly one of Response or Err set; internal failures are logged here
// and mapped to the fixed generic error string. Send never panics past
// its boundary.
func (o *Orchestrator) Send(ctx context.Context, text string) Result {
	return o.run(ctx, text, o.responder.Respond)
}

// SendDirect runs one turn without tools: the message goes straight to
// the model. Boundary semantics are identical to Send.
func (o *Orchestrator) SendDirect(ctx context.Context, text string) Result {
	return o.run(ctx, text, o.responder.RespondDirect)
}

func (o *Orchestrator) run(ctx context.Context, text string, respond func(context.Context, string) (string, error)) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("panic during turn", "panic", rec)
			result = Result{Err: GenericError}
		}
	}()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		o.logger.Debug("rejecting empty message")
		return Result{Err: EmptyMessageError}
	}

	response, err := respond(ctx, trimmed)
	if err != nil {
		o.logger.Error("turn failed",
			"error", err,
			"messageLength", len(trimmed),
		)
		return Result{Err: GenericError}
	}

	return Result{Response: response}
}
