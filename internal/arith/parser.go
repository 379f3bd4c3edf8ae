package arith

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// eval parses and evaluates a whitelisted expression. Grammar, with usual
// precedence:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "%") unary }
//	unary   = { "-" } primary
//	primary = number | "(" expr ")"
//
// "%" between operands is the modulo operator; "a% z b" percentages are
// rewritten before parsing ever sees them.
func eval(expr string) (float64, error) {
	p := &parser{src: expr}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.src) {
		return 0, fmt.Errorf("arith: trailing input at offset %d", p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("arith: non-finite result")
	}
	return v, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("arith: division by zero")
			}
			v /= rhs
		case '%':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("arith: modulo by zero")
			}
			m := math.Mod(v, rhs)
			// Python-style modulo: result takes the sign of the divisor.
			if m != 0 && (m < 0) != (rhs < 0) {
				m += rhs
			}
			v = m
		default:
			return v, nil
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	neg := false
	for p.peek() == '-' {
		neg = !neg
		p.pos++
	}
	v, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}

func (p *parser) parsePrimary() (float64, error) {
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("arith: missing closing parenthesis at offset %d", p.pos)
		}
		p.pos++
		return v, nil
	}

	start := p.pos
	for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
	lit := p.src[start:p.pos]
	if lit == "" || lit == "." || strings.Count(lit, ".") > 1 {
		return 0, fmt.Errorf("arith: expected number at offset %d", start)
	}
	return strconv.ParseFloat(lit, 64)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
