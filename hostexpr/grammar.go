// Package hostexpr is the expression language of semantic actions and
// predicates.
//
// Its parser is an ometa grammar, so the grammar front end can delegate to it
// with a foreign application and take the consumed text as the payload. The
// compiler turns payload text into closures over a rule's frame of locals.
//
// Expressions are small: literals, lists, locals, builtin calls, indexing,
// field access and the operators
//
//	or  and  == != < <= > >=  + -  * / %  unary - !
//
// with the ternary c ? a : b only where it cannot be confused with a
// predicate. Blocks { a = x; a + 1 } assign locals and yield their last
// statement.
package hostexpr

import (
	"strconv"

	"github.com/dhamidi/ometa/ometa"
)

// Grammar parses host expressions. Its entry rules are "expr", "prim" (an
// expression without the ternary operator, for payloads that are followed
// by more grammar), "curly" (a braced block) and "program" (a whole payload
// text).
var Grammar = newGrammar()

// reserved words are not identifiers.
var reserved = map[string]bool{
	"true": true, "false": true, "nil": true, "undefined": true,
	"or": true, "and": true,
}

var keywords = map[string]any{
	"true":      true,
	"false":     false,
	"nil":       nil,
	"undefined": nil,
}

func newGrammar() *ometa.Grammar {
	g := ometa.NewGrammar("HostExpr", ometa.Base)
	g.TokenRules = []string{"strLit", "numLit", "ident", "kw"}

	g.Define("program", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		v, ok := m.Or(
			func() (any, bool) { return m.Apply("curly") },
			func() (any, bool) { return m.Apply("expr") },
		)
		if !ok {
			return nil, false
		}
		if _, ok := m.Apply("spaces"); !ok {
			return nil, false
		}
		if _, ok := m.Apply("end"); !ok {
			return nil, false
		}
		return v, true
	})
	g.Define("expr", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		c, ok := m.Apply("disj")
		if !ok {
			return nil, false
		}
		rest, _ := m.Opt(func() (any, bool) {
			if !tok(m, "?") {
				return nil, false
			}
			a, ok := m.Apply("expr")
			if !ok || !tok(m, ":") {
				return nil, false
			}
			b, ok := m.Apply("expr")
			if !ok {
				return nil, false
			}
			return [2]node{a.(node), b.(node)}, true
		})
		if rest == nil {
			return c, true
		}
		ab := rest.([2]node)
		return &cond{c: c.(node), a: ab[0], b: ab[1]}, true
	})
	g.Define("prim", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Apply("disj")
	})
	g.Define("curly", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		if !tok(m, "{") {
			return nil, false
		}
		first, ok := m.Opt(func() (any, bool) { return m.Apply("stmt") })
		if !ok {
			return nil, false
		}
		b := &block{}
		if first != nil {
			b.stmts = append(b.stmts, first.(node))
			more, _ := m.Many(func() (any, bool) {
				if !tok(m, ";") {
					return nil, false
				}
				return m.Apply("stmt")
			})
			for _, s := range more.([]any) {
				b.stmts = append(b.stmts, s.(node))
			}
			m.Opt(func() (any, bool) { return m.ApplyWithArgs("token", ";") })
		}
		if !tok(m, "}") {
			return nil, false
		}
		return b, true
	})
	g.Define("stmt", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				if _, ok := m.Apply("spaces"); !ok {
					return nil, false
				}
				name, ok := m.Apply("ident")
				if !ok || !tok(m, "=") {
					return nil, false
				}
				if _, ok := m.Not(func() (any, bool) { return m.ApplyWithArgs("exactly", "=") }); !ok {
					return nil, false
				}
				x, ok := m.Apply("expr")
				if !ok {
					return nil, false
				}
				return &assign{name: name.(string), x: x.(node)}, true
			},
			func() (any, bool) { return m.Apply("expr") },
		)
	})

	g.Define("disj", 0, binaryLevel("conj", "or"))
	g.Define("conj", 0, binaryLevel("cmp", "and"))
	g.Define("cmp", 0, binaryLevel("sum", "==", "!=", "<=", ">=", "<", ">"))
	g.Define("sum", 0, binaryLevel("term", "+", "-"))
	g.Define("term", 0, binaryLevel("unary", "*", "/", "%"))
	g.Define("unary", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				op, ok := m.Or(
					func() (any, bool) { return m.ApplyWithArgs("token", "-") },
					func() (any, bool) { return m.ApplyWithArgs("token", "!") },
				)
				if !ok {
					return nil, false
				}
				x, ok := m.Apply("unary")
				if !ok {
					return nil, false
				}
				return &unary{op: op.(string), x: x.(node)}, true
			},
			func() (any, bool) { return m.Apply("postfix") },
		)
	})
	g.Define("postfix", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		x, ok := m.Apply("primary")
		if !ok {
			return nil, false
		}
		cur := x.(node)
		// Postfix operators must follow their operand without spaces.
		_, ok = m.Many(func() (any, bool) {
			return m.Or(
				func() (any, bool) {
					if _, ok := m.ApplyWithArgs("exactly", "["); !ok {
						return nil, false
					}
					i, ok := m.Apply("expr")
					if !ok || !tok(m, "]") {
						return nil, false
					}
					cur = &index{x: cur, i: i.(node)}
					return cur, true
				},
				func() (any, bool) {
					if _, ok := m.ApplyWithArgs("exactly", "."); !ok {
						return nil, false
					}
					name, ok := m.Apply("ident")
					if !ok {
						return nil, false
					}
					cur = &field{x: cur, name: name.(string)}
					return cur, true
				},
			)
		})
		if !ok {
			return nil, false
		}
		return cur, true
	})
	g.Define("primary", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		if _, ok := m.Apply("spaces"); !ok {
			return nil, false
		}
		return m.Or(
			func() (any, bool) {
				if !tok(m, "(") {
					return nil, false
				}
				x, ok := m.Apply("expr")
				if !ok || !tok(m, ")") {
					return nil, false
				}
				return x, true
			},
			func() (any, bool) {
				if !tok(m, "[") {
					return nil, false
				}
				xs, ok := m.Apply("exprList")
				if !ok || !tok(m, "]") {
					return nil, false
				}
				return &list{elems: xs.([]node)}, true
			},
			func() (any, bool) { return m.Apply("numLit") },
			func() (any, bool) { return m.Apply("strLit") },
			func() (any, bool) { return m.Apply("kw") },
			func() (any, bool) {
				name, ok := m.Apply("ident")
				if !ok {
					return nil, false
				}
				if _, ok := m.ApplyWithArgs("exactly", "("); !ok {
					return nil, false
				}
				args, ok := m.Apply("exprList")
				if !ok || !tok(m, ")") {
					return nil, false
				}
				return &call{fn: name.(string), args: args.([]node)}, true
			},
			func() (any, bool) {
				name, ok := m.Apply("ident")
				if !ok {
					return nil, false
				}
				return &ref{name: name.(string)}, true
			},
		)
	})
	g.Define("exprList", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		var out []node
		_, ok := m.Opt(func() (any, bool) {
			first, ok := m.Apply("expr")
			if !ok {
				return nil, false
			}
			rest, _ := m.Many(func() (any, bool) {
				if !tok(m, ",") {
					return nil, false
				}
				return m.Apply("expr")
			})
			out = append(out, first.(node))
			for _, x := range rest.([]any) {
				out = append(out, x.(node))
			}
			return true, true
		})
		if !ok {
			return nil, false
		}
		return out, true
	})

	g.Define("numLit", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		text, ok := m.ConsumedBy(func() (any, bool) {
			if _, ok := m.Many1(func() (any, bool) { return m.Apply("digit") }); !ok {
				return nil, false
			}
			return m.Opt(func() (any, bool) {
				if _, ok := m.ApplyWithArgs("exactly", "."); !ok {
					return nil, false
				}
				return m.Many1(func() (any, bool) { return m.Apply("digit") })
			})
		})
		if !ok {
			return nil, false
		}
		s := text.(string)
		if n, err := strconv.Atoi(s); err == nil {
			return &lit{v: n}, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return &lit{v: f}, true
	})
	g.Define("strLit", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return quoted(m, "'") },
			func() (any, bool) { return quoted(m, `"`) },
			func() (any, bool) {
				if _, ok := m.Or(
					func() (any, bool) { return m.ApplyWithArgs("exactly", "#") },
					func() (any, bool) { return m.ApplyWithArgs("exactly", "`") },
				); !ok {
					return nil, false
				}
				name, ok := m.Apply("name")
				if !ok {
					return nil, false
				}
				return &lit{v: name}, true
			},
		)
	})
	g.Define("kw", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		w, ok := m.Apply("name")
		if !ok {
			return nil, false
		}
		v, ok := keywords[w.(string)]
		if !ok {
			return nil, false
		}
		return &lit{v: v}, true
	})
	g.Define("ident", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		w, ok := m.Apply("name")
		if !ok || reserved[w.(string)] {
			return nil, false
		}
		return w, true
	})
	g.Define("name", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.ConsumedBy(func() (any, bool) {
			if _, ok := m.Apply("nameFirst"); !ok {
				return nil, false
			}
			return m.Many(func() (any, bool) { return m.Apply("nameRest") })
		})
	})
	g.Define("nameFirst", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return m.Apply("letter") },
			func() (any, bool) { return m.ApplyWithArgs("exactly", "_") },
			func() (any, bool) { return m.ApplyWithArgs("exactly", "$") },
		)
	})
	g.Define("nameRest", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return m.Apply("nameFirst") },
			func() (any, bool) { return m.Apply("digit") },
		)
	})
	return g
}

func tok(m *ometa.Matcher, s string) bool {
	_, ok := m.ApplyWithArgs("token", s)
	return ok
}

// binaryLevel parses next (op next)* and folds the operands to the left. Word
// operators must not run into a following name.
func binaryLevel(next string, ops ...string) ometa.RuleFunc {
	return func(m *ometa.Matcher, _ []any) (any, bool) {
		l, ok := m.Apply(next)
		if !ok {
			return nil, false
		}
		alts := make([]ometa.Pattern, len(ops))
		for i, op := range ops {
			alts[i] = func() (any, bool) {
				v, ok := m.ApplyWithArgs("token", op)
				if !ok {
					return nil, false
				}
				if isWord(op) {
					if _, ok := m.Not(func() (any, bool) { return m.Apply("nameRest") }); !ok {
						return nil, false
					}
				}
				return v, true
			}
		}
		acc := l.(node)
		_, ok = m.Many(func() (any, bool) {
			op, ok := m.Or(alts...)
			if !ok {
				return nil, false
			}
			r, ok := m.Apply(next)
			if !ok {
				return nil, false
			}
			acc = &binary{op: op.(string), l: acc, r: r.(node)}
			return acc, true
		})
		if !ok {
			return nil, false
		}
		return acc, true
	}
}

func isWord(op string) bool {
	return op == "or" || op == "and"
}

func quoted(m *ometa.Matcher, q string) (any, bool) {
	if _, ok := m.ApplyWithArgs("exactly", q); !ok {
		return nil, false
	}
	parts, ok := m.Many(func() (any, bool) {
		return m.Or(
			func() (any, bool) { return m.Apply("escapedChar") },
			func() (any, bool) {
				if _, ok := m.Not(func() (any, bool) { return m.ApplyWithArgs("exactly", q) }); !ok {
					return nil, false
				}
				return m.Apply("char")
			},
		)
	})
	if !ok {
		return nil, false
	}
	if _, ok := m.ApplyWithArgs("exactly", q); !ok {
		return nil, false
	}
	return &lit{v: ometa.Join(parts.([]any), "")}, true
}
