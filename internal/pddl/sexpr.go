package pddl

import (
	"fmt"
	"strings"

	"github.com/gitrdm/vhplan/pkg/planner"
)

// sexpr is one node of a parsed S-expression: either an atom (a bare
// token) or a list of child nodes. This is the generic syntax layer the
// PDDL-specific reader (reader.go) walks; it knows nothing about domains,
// types, or actions.
type sexpr struct {
	atom   string
	list   []sexpr
	isAtom bool
}

func (s sexpr) String() string {
	if s.isAtom {
		return s.atom
	}
	parts := make([]string, len(s.list))
	for i, c := range s.list {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// parseSexprs tokenizes and parses data into a sequence of top-level
// S-expressions (normally exactly one: the (define ...) form).
func parseSexprs(filename string, data []byte) ([]sexpr, error) {
	toks, err := tokenize(filename, data)
	if err != nil {
		return nil, err
	}
	var out []sexpr
	pos := 0
	for pos < len(toks) {
		s, next, err := parseOne(filename, toks, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		pos = next
	}
	return out, nil
}

type token struct {
	text string
	line int
}

func tokenize(filename string, data []byte) ([]token, error) {
	var toks []token
	line := 1
	i := 0
	n := len(data)
	for i < n {
		c := data[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == ';':
			for i < n && data[i] != '\n' {
				i++
			}
		case c == '(' || c == ')':
			toks = append(toks, token{text: string(c), line: line})
			i++
		default:
			start := i
			for i < n && !isDelim(data[i]) {
				i++
			}
			if i == start {
				return nil, planner.NewParseError(filename, line, fmt.Sprintf("unexpected character %q", string(c)))
			}
			toks = append(toks, token{text: string(data[start:i]), line: line})
		}
	}
	return toks, nil
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', ' ', '\t', '\r', '\n', ';':
		return true
	default:
		return false
	}
}

func parseOne(filename string, toks []token, pos int) (sexpr, int, error) {
	if pos >= len(toks) {
		return sexpr{}, pos, planner.NewParseError(filename, 0, "unexpected end of input")
	}
	t := toks[pos]
	if t.text == ")" {
		return sexpr{}, pos, planner.NewParseError(filename, t.line, "unexpected ')'")
	}
	if t.text != "(" {
		return sexpr{atom: t.text, isAtom: true}, pos + 1, nil
	}
	pos++
	var list []sexpr
	for {
		if pos >= len(toks) {
			return sexpr{}, pos, planner.NewParseError(filename, t.line, "unterminated '('")
		}
		if toks[pos].text == ")" {
			return sexpr{list: list}, pos + 1, nil
		}
		child, next, err := parseOne(filename, toks, pos)
		if err != nil {
			return sexpr{}, pos, err
		}
		list = append(list, child)
		pos = next
	}
}
