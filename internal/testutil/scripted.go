// Package testutil provides deterministic test doubles for the generation
// layer.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/parleyhq/parley/internal/engine"
)

// ScriptedGenerator provides deterministic replies for testing the decision
// loop. It matches the user message against registered patterns; a matching
// rule first returns its tool calls (if any), then its final text once the
// transcript carries tool results.
//
// Thread-safe for concurrent use.
type ScriptedGenerator struct {
	mu       sync.Mutex
	rules    []scriptRule
	fallback string
	failures int   // remaining Generate calls to fail
	failErr  error // error returned while failures > 0
	requests []*engine.Request
}

type scriptRule struct {
	pattern   string            // substring match in user message, lowercase
	toolCalls []engine.ToolCall // requested before any tool results exist
	finalText string            // final reply text

	// finalize overrides finalText when set, computing the final reply
	// from the fanned-in tool results.
	finalize func([]engine.ToolResult) string
}

// NewScripted creates a scripted generator with the given fallback text,
// returned when no pattern matches. An empty fallback produces an empty
// reply, which the engine treats as a generation failure.
func NewScripted(fallback string) *ScriptedGenerator {
	return &ScriptedGenerator{fallback: fallback}
}

// AddReply registers a pattern that yields a plain text reply.
// Patterns are checked in registration order; first match wins.
func (s *ScriptedGenerator) AddReply(pattern, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, scriptRule{
		pattern:   strings.ToLower(pattern),
		finalText: text,
	})
}

// AddToolReply registers a pattern that first requests the given tool calls
// and then, once their results are in the transcript, yields finalText.
func (s *ScriptedGenerator) AddToolReply(pattern string, calls []engine.ToolCall, finalText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, scriptRule{
		pattern:   strings.ToLower(pattern),
		toolCalls: calls,
		finalText: finalText,
	})
}

// AddToolReplyFunc is AddToolReply with the final text computed from the
// tool results, for tests that assert result plumbing.
func (s *ScriptedGenerator) AddToolReplyFunc(pattern string, calls []engine.ToolCall, finalize func([]engine.ToolResult) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, scriptRule{
		pattern:   strings.ToLower(pattern),
		toolCalls: calls,
		finalize:  finalize,
	})
}

// FailNext makes the next n Generate calls return err before normal
// behavior resumes. Used to exercise retry paths.
func (s *ScriptedGenerator) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
	s.failErr = err
}

// Requests returns a copy of every recorded Generate request.
func (s *ScriptedGenerator) Requests() []*engine.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]*engine.Request, len(s.requests))
	copy(cp, s.requests)
	return cp
}

// Generate implements engine.Generator.
func (s *ScriptedGenerator) Generate(ctx context.Context, req *engine.Request) (*engine.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)

	if s.failures > 0 {
		s.failures--
		err := s.failErr
		if err == nil {
			err = fmt.Errorf("scripted failure")
		}
		return nil, err
	}

	userText, results := inspect(req.Messages)

	lower := strings.ToLower(userText)
	for i := range s.rules {
		rule := &s.rules[i]
		if !strings.Contains(lower, rule.pattern) {
			continue
		}
		if len(rule.toolCalls) > 0 && results == nil {
			return &engine.Reply{ToolCalls: rule.toolCalls}, nil
		}
		if rule.finalize != nil {
			return &engine.Reply{Text: rule.finalize(results)}, nil
		}
		return &engine.Reply{Text: rule.finalText}, nil
	}

	return &engine.Reply{Text: s.fallback}, nil
}

// inspect extracts the last user message and the accumulated tool results
// from the transcript. results is nil when no tool round has happened yet.
func inspect(msgs []engine.Message) (userText string, results []engine.ToolResult) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == engine.RoleUser {
			userText = msgs[i].Text
			break
		}
	}
	for _, m := range msgs {
		if m.Role == engine.RoleTool {
			results = append(results, m.ToolResults...)
		}
	}
	return userText, results
}
