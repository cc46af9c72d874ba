package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       float64
	}{
		{"addition", "2+2", 4},
		{"subtraction", "10 - 3", 7},
		{"multiplication", "6*7", 42},
		{"division", "15 / 4", 3.75},
		{"precedence", "2+3*4", 14},
		{"parentheses", "(2+3)*4", 20},
		{"nested parentheses", "((1+2)*(3+4))", 21},
		{"unary minus", "-5+8", 3},
		{"double negation", "--5", 5},
		{"negative factor", "2*-3", -6},
		{"decimals", "0.1+0.2", 0.30000000000000004},
		{"leading dot", ".5*2", 1},
		{"whitespace", "  1 +   1 ", 2},
		{"single number", "42", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluate(tt.expression)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"letters", "two plus two"},
		{"trailing garbage", "2+2; rm -rf /"},
		{"trailing operand", "2 2"},
		{"dangling operator", "2+"},
		{"unclosed paren", "(1+2"},
		{"stray closing paren", "1+2)"},
		{"lone dot", "."},
		{"double dot", "1.2.3"},
		{"division by zero", "1/0"},
		{"division by zero in subterm", "5+3/(2-2)"},
		{"exponent not supported", "2^3"},
		{"function call", "sqrt(9)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evaluate(tt.expression)
			assert.Error(t, err)
		})
	}
}
