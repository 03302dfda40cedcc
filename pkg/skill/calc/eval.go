package calc

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

var (
	errDivideByZero = errors.New("calc: divide by zero")
	errBadExpr      = errors.New("calc: malformed expression")
)

// evaluate computes a cleaned infix expression with +, -, *, /, unary
// minus and parentheses, using the usual precedence.
func evaluate(expr string) (float64, error) {
	p := &parser{tokens: tokenize(expr)}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, errBadExpr
	}
	return v, nil
}

func tokenize(expr string) []string {
	var tokens []string
	var num strings.Builder
	flush := func() {
		if num.Len() > 0 {
			tokens = append(tokens, num.String())
			num.Reset()
		}
	}
	for _, r := range expr {
		switch {
		case unicode.IsDigit(r) || r == '.':
			num.WriteRune(r)
		case r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')':
			flush()
			tokens = append(tokens, string(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case "+":
			p.next()
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case "-":
			p.next()
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

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case "*":
			p.next()
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case "/":
			p.next()
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, errDivideByZero
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	switch tok := p.next(); tok {
	case "":
		return 0, errBadExpr
	case "-":
		v, err := p.parseFactor()
		return -v, err
	case "(":
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.next() != ")" {
			return 0, errBadExpr
		}
		return v, nil
	default:
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, errBadExpr
		}
		return v, nil
	}
}
