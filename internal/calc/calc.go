// Package calc evaluates the arithmetic expressions the cost model builds.
// The evaluator is deliberately restricted: only digits, + - * / ( ) . and
// whitespace are accepted, and anything else is rejected before parsing.
// Totals are load-bearing, so a rejected expression is a fatal error.
package calc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/bikepass-cli/internal/model"
)

// Eval evaluates a restricted arithmetic expression.
func Eval(expression string) (float64, error) {
	if strings.TrimSpace(expression) == "" {
		return 0, &model.CalculationError{Expression: expression, Reason: "expression must be provided"}
	}
	for _, r := range expression {
		if !allowedRune(r) {
			return 0, &model.CalculationError{Expression: expression, Reason: "expression contains unsupported characters"}
		}
	}

	p := &parser{input: expression}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, p.errorf("unexpected character at position %d", p.pos)
	}
	return value, nil
}

func allowedRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')' || r == '.':
		return true
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return true
	}
	return false
}

// parser is a recursive-descent parser over the allow-listed charset.
// Grammar: expr = term (('+'|'-') term)*; term = factor (('*'|'/') factor)*;
// factor = '-' factor | '(' expr ')' | number.
type parser struct {
	input string
	pos   int
}

func (p *parser) errorf(format string, args ...any) error {
	return &model.CalculationError{Expression: p.input, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *parser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '+' && op != '-') {
			return value, nil
		}
		p.pos++
		rhs, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			value += rhs
		} else {
			value -= rhs
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '*' && op != '/') {
			return value, nil
		}
		p.pos++
		rhs, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			value *= rhs
		} else {
			if rhs == 0 {
				return 0, p.errorf("division by zero")
			}
			value /= rhs
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	c, ok := p.peek()
	if !ok {
		return 0, p.errorf("unexpected end of expression")
	}

	switch {
	case c == '-':
		p.pos++
		value, err := p.parseFactor()
		return -value, err
	case c == '(':
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		closing, ok := p.peek()
		if !ok || closing != ')' {
			return 0, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	default:
		return p.parseNumber()
	}
}

func (p *parser) parseNumber() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return 0, p.errorf("expected a number at position %d", start)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, p.errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}
