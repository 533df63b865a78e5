package questions

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Solve evaluates an arithmetic prompt as the engine renders it: integers,
// + - × ÷ with the usual precedence, and parentheses. The ASCII aliases *
// and / are accepted too.
func Solve(prompt string) (float64, error) {
	p := &parser{input: prompt}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.runes()) {
		return 0, fmt.Errorf("unexpected %q at offset %d", p.peek(), p.pos)
	}
	return v, nil
}

type parser struct {
	input string
	cache []rune
	pos   int
}

func (p *parser) runes() []rune {
	if p.cache == nil {
		p.cache = []rune(p.input)
	}
	return p.cache
}

func (p *parser) peek() rune {
	r := p.runes()
	if p.pos >= len(r) {
		return 0
	}
	return r[p.pos]
}

func (p *parser) skipSpace() {
	r := p.runes()
	for p.pos < len(r) && unicode.IsSpace(r[p.pos]) {
		p.pos++
	}
}

func (p *parser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			t, err := p.term()
			if err != nil {
				return 0, err
			}
			v += t
		case '-':
			p.pos++
			t, err := p.term()
			if err != nil {
				return 0, err
			}
			v -= t
		default:
			return v, nil
		}
	}
}

func (p *parser) term() (float64, error) {
	v, err := p.factor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '×', '*':
			p.pos++
			f, err := p.factor()
			if err != nil {
				return 0, err
			}
			v *= f
		case '÷', '/':
			p.pos++
			f, err := p.factor()
			if err != nil {
				return 0, err
			}
			if f == 0 {
				return 0, fmt.Errorf("division by zero in %q", p.input)
			}
			v /= f
		default:
			return v, nil
		}
	}
}

func (p *parser) factor() (float64, error) {
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing paren in %q", p.input)
		}
		p.pos++
		return v, nil
	}

	r := p.runes()
	start := p.pos
	if p.pos < len(r) && (r[p.pos] == '-' || r[p.pos] == '+') {
		p.pos++
	}
	for p.pos < len(r) && (unicode.IsDigit(r[p.pos]) || r[p.pos] == '.') {
		p.pos++
	}
	if p.pos == start {
		return 0, fmt.Errorf("expected number at offset %d in %q", start, p.input)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(r[start:p.pos])), 64)
	if err != nil {
		return 0, fmt.Errorf("parse number: %w", err)
	}
	return v, nil
}
