package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/internal/tools"
)

// systemInstruction is the standing instruction sent with every turn.
const systemInstruction = `You are a helpful chatbot that can use tools to provide more accurate or comprehensive responses.

If a user asks a question that can be answered by one of the available tools, use the tool to answer the question.
Think step by step, and respond directly to the user.`

// Sentinel errors for engine operations.
var (
	// ErrGenerationFailed indicates the generator produced no usable reply:
	// empty text and no tool calls.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrMaxTurnsExceeded indicates the generate/invoke loop hit its bound
	// without reaching a final reply.
	ErrMaxTurnsExceeded = errors.New("max turns exceeded")
)

// Config contains all required parameters for the engine.
type Config struct {
	Generator Generator
	Registry  *tools.Registry
	Logger    *slog.Logger

	// MaxTurns bounds the agentic loop (generate rounds per user message).
	// Zero uses the default of 5.
	MaxTurns int

	// RetryConfig controls retries around generator calls
	// (zero-value uses defaults).
	RetryConfig RetryConfig

	// RateLimiter optionally throttles generator attempts (nil = default).
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Registry == nil {
		return errors.New("tool registry is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Engine resolves one user message into one final reply, invoking tools
// through the registry as the model requests them.
//
// Engine is stateless across turns and safe for concurrent use; all
// configuration is captured immutably at construction.
type Engine struct {
	generator   Generator
	registry    *tools.Registry
	logger      *slog.Logger
	maxTurns    int
	retryConfig RetryConfig
	rateLimiter *rate.Limiter

	// Catalog is stable for the process lifetime, cached at construction.
	catalog   []tools.Descriptor
	toolNames string
}

// New creates an Engine with required configuration.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	catalog := cfg.Registry.Catalog()
	names := make([]string, len(catalog))
	for i, d := range catalog {
		names[i] = d.Name
	}

	e := &Engine{
		generator:   cfg.Generator,
		registry:    cfg.Registry,
		logger:      cfg.Logger,
		maxTurns:    maxTurns,
		retryConfig: retryConfig,
		rateLimiter: rl,
		catalog:     catalog,
		toolNames:   strings.Join(names, ", "),
	}

	e.logger.Info("engine initialized",
		"tools", e.toolNames,
		"maxTurns", e.maxTurns,
	)
	return e, nil
}

// Respond runs the decision loop for one user message and returns the
// final reply text.
//
// Each round the generator either produces final text (done) or requests
// tool calls; requested calls are invoked through the registry in order,
// their results appended to the transcript, and the loop regenerates.
// Any tool failure fails the whole turn. The loop is bounded by maxTurns.
func (e *Engine) Respond(ctx context.Context, message string) (string, error) {
	start := time.Now()

	req := &Request{
		System: systemInstruction,
		Tools:  e.catalog,
		Messages: []Message{
			{Role: RoleUser, Text: message},
		},
	}

	for turn := 1; turn <= e.maxTurns; turn++ {
		reply, err := e.generateWithRetry(ctx, req)
		if err != nil {
			return "", fmt.Errorf("generating reply (turn %d): %w", turn, err)
		}

		if len(reply.ToolCalls) == 0 {
			text := strings.TrimSpace(reply.Text)
			if text == "" {
				e.logger.Warn("model returned empty reply with no tool calls",
					"turn", turn)
				return "", ErrGenerationFailed
			}
			e.logger.Debug("turn resolved",
				"rounds", turn,
				"elapsed", time.Since(start),
			)
			return text, nil
		}

		results, err := e.invokeAll(ctx, reply.ToolCalls)
		if err != nil {
			return "", err
		}

		req.Messages = append(req.Messages,
			Message{Role: RoleModel, Text: reply.Text, ToolCalls: reply.ToolCalls},
			Message{Role: RoleTool, ToolResults: results},
		)
	}

	e.logger.Warn("decision loop exhausted its turn bound",
		"maxTurns", e.maxTurns,
		"elapsed", time.Since(start),
	)
	return "", fmt.Errorf("%w: %d", ErrMaxTurnsExceeded, e.maxTurns)
}

// RespondDirect resolves one message in a single generation round with no
// tool catalog and no standing instruction: the text goes to the model as
// given and the reply comes back verbatim. Retry policy matches Respond.
func (e *Engine) RespondDirect(ctx context.Context, message string) (string, error) {
	req := &Request{
		Messages: []Message{
			{Role: RoleUser, Text: message},
		},
	}

	reply, err := e.generateWithRetry(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generating direct reply: %w", err)
	}

	text := strings.TrimSpace(reply.Text)
	if text == "" {
		e.logger.Warn("model returned empty direct reply")
		return "", ErrGenerationFailed
	}
	return text, nil
}

// invokeAll runs the requested tool calls sequentially in request order and
// fans the results in. The first failure fails the turn; no partial result
// set is ever synthesized into the transcript.
func (e *Engine) invokeAll(ctx context.Context, calls []ToolCall) ([]ToolResult, error) {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		e.logger.Debug("invoking tool", "tool", call.Name)
		output, err := e.registry.Invoke(ctx, call.Name, call.Args)
		if err != nil {
			return nil, fmt.Errorf("invoking tool %q: %w", call.Name, err)
		}
		results = append(results, ToolResult{
			Ref:    call.Ref,
			Name:   call.Name,
			Output: output,
		})
	}
	return results, nil
}
