package ometa

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Base is the root grammar every grammar extends by default. It defines the
// primitive and derived built-in rules.
var Base = newBase()

func newBase() *Grammar {
	g := NewGrammar("OMeta", nil)
	g.Define("anything", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Anything()
	})
	g.Define("end", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Not(func() (any, bool) { return m.Apply("anything") })
	})
	g.Define("pos", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Pos(), true
	})
	g.Define("empty", 0, func(m *Matcher, _ []any) (any, bool) {
		return true, true
	})
	g.Define("apply", 1, func(m *Matcher, args []any) (any, bool) {
		name, ok := args[0].(string)
		if !ok {
			return m.Abort(fmt.Errorf("apply: rule name must be a string, got %T: %w", args[0], ErrConfig))
		}
		return m.Apply(name)
	})
	g.Define("foreign", 2, func(m *Matcher, args []any) (any, bool) {
		fg, ok := args[0].(*Grammar)
		if !ok {
			return m.Abort(fmt.Errorf("foreign: expected a grammar, got %T: %w", args[0], ErrConfig))
		}
		name, ok := args[1].(string)
		if !ok {
			return m.Abort(fmt.Errorf("foreign: rule name must be a string, got %T: %w", args[1], ErrConfig))
		}
		return m.Foreign(fg, name)
	})
	g.Define("exactly", 1, func(m *Matcher, args []any) (any, bool) {
		return m.Exactly(args[0])
	})

	g.Define("true", 0, anythingWhere(func(v any) bool { return v == true }))
	g.Define("false", 0, anythingWhere(func(v any) bool { return v == false }))
	g.Define("nil", 0, anythingWhere(func(v any) bool { return v == nil }))
	g.Define("undefined", 0, anythingWhere(func(v any) bool { return v == nil }))
	g.Define("number", 0, anythingWhere(IsNumber))
	g.Define("string", 0, anythingWhere(func(v any) bool {
		_, ok := AsString(v)
		return ok
	}))
	g.Define("char", 0, anythingWhere(func(v any) bool {
		_, ok := AsChar(v)
		return ok
	}))

	g.Define("space", 0, charWhere(func(r rune) bool { return r <= ' ' }))
	g.Define("spaces", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Many(func() (any, bool) { return m.Apply("space") })
	})
	g.Define("digit", 0, charWhere(func(r rune) bool { return r >= '0' && r <= '9' }))
	g.Define("lower", 0, charWhere(func(r rune) bool { return r >= 'a' && r <= 'z' }))
	g.Define("upper", 0, charWhere(func(r rune) bool { return r >= 'A' && r <= 'Z' }))
	g.Define("letter", 0, charWhere(func(r rune) bool {
		return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
	}))
	g.Define("letterOrDigit", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return m.Apply("letter") },
			func() (any, bool) { return m.Apply("digit") },
		)
	})
	g.Define("lowerCaseAnything", 0, func(m *Matcher, _ []any) (any, bool) {
		v, ok := m.Apply("anything")
		if !ok {
			return nil, false
		}
		switch x := v.(type) {
		case rune:
			return unicode.ToLower(x), true
		case string:
			return strings.ToLower(x), true
		}
		return nil, false
	})

	g.Define("firstAndRest", 2, func(m *Matcher, args []any) (any, bool) {
		first, rest, ok := twoNames(args)
		if !ok {
			return nil, false
		}
		v, ok := m.Apply(first)
		if !ok {
			return nil, false
		}
		return m.many(func() (any, bool) { return m.Apply(rest) }, []any{v})
	})
	g.Define("seq", 1, func(m *Matcher, args []any) (any, bool) {
		return m.Seq(args[0])
	})
	g.Define("notLast", 1, func(m *Matcher, args []any) (any, bool) {
		name, ok := args[0].(string)
		if !ok {
			return nil, false
		}
		v, ok := m.Apply(name)
		if !ok {
			return nil, false
		}
		if _, ok := m.Lookahead(func() (any, bool) { return m.Apply(name) }); !ok {
			return nil, false
		}
		return v, true
	})
	g.Define("listOf", 2, func(m *Matcher, args []any) (any, bool) {
		name, ok := args[0].(string)
		if !ok {
			return nil, false
		}
		delim := args[1]
		return m.Or(
			func() (any, bool) {
				v, ok := m.Apply(name)
				if !ok {
					return nil, false
				}
				return m.many(func() (any, bool) {
					if _, ok := m.ApplyWithArgs("token", delim); !ok {
						return nil, false
					}
					return m.Apply(name)
				}, []any{v})
			},
			func() (any, bool) { return []any{}, true },
		)
	})
	g.Define("token", 1, func(m *Matcher, args []any) (any, bool) {
		if _, ok := m.Apply("spaces"); !ok {
			return nil, false
		}
		return m.ApplyWithArgs("seq", args[0])
	})
	g.Define("fromTo", 2, func(m *Matcher, args []any) (any, bool) {
		from, to := args[0], args[1]
		return m.ConsumedBy(func() (any, bool) {
			if _, ok := m.ApplyWithArgs("seq", from); !ok {
				return nil, false
			}
			_, ok := m.Many(func() (any, bool) {
				if _, ok := m.Not(func() (any, bool) { return m.ApplyWithArgs("seq", to) }); !ok {
					return nil, false
				}
				return m.Apply("char")
			})
			if !ok {
				return nil, false
			}
			return m.ApplyWithArgs("seq", to)
		})
	})
	g.Define("hexDigit", 0, func(m *Matcher, _ []any) (any, bool) {
		v, ok := m.Apply("char")
		if !ok {
			return nil, false
		}
		r, _ := AsChar(v)
		d := strings.IndexRune("0123456789abcdef", unicode.ToLower(r))
		if d < 0 {
			return nil, false
		}
		return d, true
	})
	g.Define("escapedChar", 0, escapedChar)
	g.Define("range", 2, func(m *Matcher, args []any) (any, bool) {
		lo, ok1 := AsChar(args[0])
		hi, ok2 := AsChar(args[1])
		if !ok1 || !ok2 {
			return nil, false
		}
		v, ok := m.Apply("char")
		if !ok {
			return nil, false
		}
		r, _ := AsChar(v)
		if r < lo || r > hi {
			return nil, false
		}
		return v, true
	})
	return g
}

func anythingWhere(pred func(any) bool) RuleFunc {
	return func(m *Matcher, _ []any) (any, bool) {
		v, ok := m.Apply("anything")
		if !ok || !pred(v) {
			return nil, false
		}
		return v, true
	}
}

func charWhere(pred func(rune) bool) RuleFunc {
	return func(m *Matcher, _ []any) (any, bool) {
		v, ok := m.Apply("char")
		if !ok {
			return nil, false
		}
		r, _ := AsChar(v)
		if !pred(r) {
			return nil, false
		}
		return v, true
	}
}

func twoNames(args []any) (string, string, bool) {
	a, ok1 := args[0].(string)
	b, ok2 := args[1].(string)
	return a, b, ok1 && ok2
}

var escapes = map[rune]string{
	'\'': "'",
	'"':  "\"",
	'\\': "\\",
	'b':  "\b",
	'f':  "\f",
	'n':  "\n",
	'r':  "\r",
	't':  "\t",
	'v':  "\v",
}

func escapedChar(m *Matcher, _ []any) (any, bool) {
	if _, ok := m.ApplyWithArgs("exactly", "\\"); !ok {
		return nil, false
	}
	v, ok := m.Apply("anything")
	if !ok {
		return nil, false
	}
	c, isChar := AsChar(v)
	if !isChar {
		return v, true
	}
	if s, ok := escapes[c]; ok {
		return s, true
	}
	digits := 0
	switch c {
	case 'u':
		digits = 4
	case 'x':
		digits = 2
	default:
		return string(c), true
	}
	hex, ok := m.ConsumedBy(func() (any, bool) {
		for range digits {
			if _, ok := m.Apply("hexDigit"); !ok {
				return nil, false
			}
		}
		return true, true
	})
	if !ok {
		return nil, false
	}
	text, isText := hex.(string)
	if !isText {
		xs, _ := hex.([]any)
		text = Join(xs, "")
	}
	n, err := strconv.ParseUint(text, 16, 32)
	if err != nil {
		return nil, false
	}
	return string(rune(n)), true
}
