package tools

import (
	"context"
	"fmt"
	"strings"
)

// CalculatorInput is the argument contract for the calculator tool.
type CalculatorInput struct {
	Expression string `json:"expression" jsonschema:"The mathematical expression to evaluate."`
}

// CalculatorOutput is the result contract for the calculator tool.
type CalculatorOutput struct {
	Result float64 `json:"result"`
}

// KnowledgeBaseInput is the argument contract for the knowledgeBase tool.
type KnowledgeBaseInput struct {
	Query string `json:"query" jsonschema:"The question to ask the knowledge base."`
}

// KnowledgeBaseOutput is the result contract for the knowledgeBase tool.
type KnowledgeBaseOutput struct {
	Answer string `json:"answer"`
}

// NoAnswerText is returned by the knowledgeBase tool when no fact matches.
// It is a successful tool result, not an error.
const NoAnswerText = "I am sorry, I do not have the answer to that question."

// knowledgeFact pairs match keywords with the canned answer. Every keyword
// must appear in the query (case-insensitive) for the fact to match.
type knowledgeFact struct {
	keywords []string
	answer   string
}

var knowledgeFacts = []knowledgeFact{
	{
		keywords: []string{"capital", "france"},
		answer:   "The capital of France is Paris.",
	},
	{
		keywords: []string{"square root", "9"},
		answer:   "The square root of 9 is 3.",
	},
}

// NewCalculator builds the calculator tool: a constrained arithmetic
// evaluator over numeric literals, + - * / ( ) and unary minus. Malformed
// expressions and division by zero are execution failures.
func NewCalculator() *Definition {
	return MustNew(
		"calculator",
		"A calculator that can perform basic arithmetic operations.",
		func(ctx context.Context, in CalculatorInput) (CalculatorOutput, error) {
			result, err := evaluate(in.Expression)
			if err != nil {
				return CalculatorOutput{}, fmt.Errorf("evaluating %q: %w", in.Expression, err)
			}
			return CalculatorOutput{Result: result}, nil
		},
	)
}

// NewKnowledgeBase builds the knowledgeBase tool: a case-insensitive lookup
// over a fixed fact table with a fixed no-answer fallback.
func NewKnowledgeBase() *Definition {
	return MustNew(
		"knowledgeBase",
		"A knowledge base that can answer questions about general knowledge topics.",
		func(ctx context.Context, in KnowledgeBaseInput) (KnowledgeBaseOutput, error) {
			query := strings.ToLower(in.Query)
			for _, fact := range knowledgeFacts {
				if matchesAll(query, fact.keywords) {
					return KnowledgeBaseOutput{Answer: fact.answer}, nil
				}
			}
			return KnowledgeBaseOutput{Answer: NoAnswerText}, nil
		},
	)
}

func matchesAll(query string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(query, kw) {
			return false
		}
	}
	return true
}

// RegisterBuiltins registers the built-in tool catalog on the registry.
func RegisterBuiltins(r *Registry) error {
	for _, def := range []*Definition{NewCalculator(), NewKnowledgeBase()} {
		if err := r.Register(def); err != nil {
			return fmt.Errorf("registering %s: %w", def.Name(), err)
		}
	}
	return nil
}
