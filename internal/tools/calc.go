package tools

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"
)

// evaluate parses and evaluates a constrained arithmetic expression.
//
// Grammar (standard precedence, left-associative):
//
//	expr   = term   { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = number | "-" factor | "(" expr ")"
//
// Only numeric literals and the five operators above are accepted. Anything
// else, including trailing garbage after a complete expression, is an
// error. Division by zero is an error, never Inf or NaN.
func evaluate(expression string) (float64, error) {
	p := &exprParser{input: expression}
	p.skipSpaces()
	if p.eof() {
		return 0, errors.New("empty expression")
	}
	result, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if !p.eof() {
		return 0, fmt.Errorf("unexpected %q at position %d", p.rest(), p.pos)
	}
	return result, nil
}

// exprParser is a recursive-descent parser over a byte offset. Expressions
// are short, so there is no separate tokenizer.
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) eof() bool { return p.pos >= len(p.input) }

func (p *exprParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) rest() string {
	if p.eof() {
		return ""
	}
	end := min(p.pos+10, len(p.input))
	return p.input[p.pos:end]
}

func (p *exprParser) skipSpaces() {
	for !p.eof() && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpaces()
	if p.eof() {
		return 0, errors.New("unexpected end of expression")
	}

	switch c := p.peek(); {
	case c == '-':
		p.pos++
		value, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -value, nil

	case c == '(':
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if p.peek() != ')' {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return value, nil

	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()

	default:
		return 0, fmt.Errorf("unexpected %q at position %d", p.rest(), p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	seenDot := false
	for !p.eof() {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			p.pos++
			continue
		}
		break
	}
	literal := p.input[start:p.pos]
	if literal == "" || literal == "." {
		return 0, fmt.Errorf("invalid number at position %d", start)
	}
	value, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", literal, err)
	}
	return value, nil
}
