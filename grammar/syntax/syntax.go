// Package syntax parses grammar descriptions into grammar ASTs.
//
// The parser is itself an ometa grammar extending the base grammar. Action,
// predicate and argument payloads are delegated to the hostexpr grammar with
// foreign applications; their text is kept as an opaque ast.Host payload, or
// folded into an ast.Lit when it is a literal.
package syntax

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dhamidi/ometa/grammar/ast"
	"github.com/dhamidi/ometa/hostexpr"
	"github.com/dhamidi/ometa/ometa"
)

// Grammar is the meta grammar. Its entry rules are "grammar", "topLevel"
// (one or more grammars up to the end of input) and "expr".
var Grammar = newGrammar()

// TokenRules are the rules recorded when highlighting grammar sources.
var TokenRules = []string{"keyword", "ruleName", "seqString", "tokenString", "string"}

type rulePart struct {
	params []string
	body   ast.Node
}

func newGrammar() *ometa.Grammar {
	g := ometa.NewGrammar("MetaSyntax", ometa.Base)
	g.TokenRules = TokenRules

	g.Define("space", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return m.SuperApply(g, "space") },
			func() (any, bool) { return m.ApplyWithArgs("fromTo", "//", "\n") },
			func() (any, bool) { return m.ApplyWithArgs("fromTo", "/*", "*/") },
			func() (any, bool) {
				// A line comment that runs to the end of input.
				return m.ConsumedBy(func() (any, bool) {
					if _, ok := m.ApplyWithArgs("seq", "//"); !ok {
						return nil, false
					}
					if _, ok := m.Many(func() (any, bool) { return m.Apply("char") }); !ok {
						return nil, false
					}
					return m.Apply("end")
				})
			},
		)
	})
	g.Define("nameFirst", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return exactly(m, "$") },
			func() (any, bool) { return exactly(m, "_") },
			func() (any, bool) { return m.Apply("letter") },
		)
	})
	g.Define("nameRest", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return m.Apply("nameFirst") },
			func() (any, bool) { return m.Apply("digit") },
		)
	})
	g.Define("tsName", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.ConsumedBy(func() (any, bool) {
			if _, ok := m.Apply("nameFirst"); !ok {
				return nil, false
			}
			return m.Many(func() (any, bool) { return m.Apply("nameRest") })
		})
	})
	g.Define("name", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		if _, ok := m.Apply("spaces"); !ok {
			return nil, false
		}
		return m.Apply("tsName")
	})
	g.Define("eChar", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return m.Apply("escapedChar") },
			func() (any, bool) { return m.Apply("char") },
		)
	})
	g.Define("tsString", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return delimited(m, "'", "'")
	})
	g.Define("seqString", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		s, ok := delimited(m, "``", "''")
		if !ok {
			return nil, false
		}
		return &ast.App{Rule: "seq", Args: []ast.Payload{ast.Lit{Value: s}}}, true
	})
	g.Define("tokenString", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		s, ok := delimited(m, `"`, `"`)
		if !ok {
			return nil, false
		}
		return &ast.App{Rule: "token", Args: []ast.Payload{ast.Lit{Value: s}}}, true
	})
	g.Define("string", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		s, ok := m.Or(
			func() (any, bool) {
				if _, ok := m.Or(
					func() (any, bool) { return exactly(m, "#") },
					func() (any, bool) { return exactly(m, "`") },
				); !ok {
					return nil, false
				}
				return m.Apply("tsName")
			},
			func() (any, bool) { return m.Apply("tsString") },
		)
		if !ok {
			return nil, false
		}
		return ast.Exactly(s), true
	})
	g.Define("number", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		text, ok := m.ConsumedBy(func() (any, bool) {
			m.Opt(func() (any, bool) { return exactly(m, "-") })
			return m.Many1(func() (any, bool) { return m.Apply("digit") })
		})
		if !ok {
			return nil, false
		}
		n, err := strconv.Atoi(text.(string))
		if err != nil {
			return m.Abort(fmt.Errorf("number literal %q: %w", text, err))
		}
		return ast.Exactly(n), true
	})
	g.Define("keyword", 1, func(m *ometa.Matcher, args []any) (any, bool) {
		if _, ok := m.ApplyWithArgs("token", args[0]); !ok {
			return nil, false
		}
		if _, ok := m.Not(func() (any, bool) { return m.Apply("letterOrDigit") }); !ok {
			return nil, false
		}
		return args[0], true
	})

	g.Define("args", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				if _, ok := exactly(m, "("); !ok {
					return nil, false
				}
				xs, ok := m.ApplyWithArgs("listOf", "hostExpr", ",")
				if !ok || !tok(m, ")") {
					return nil, false
				}
				out := make([]ast.Payload, 0, len(xs.([]any)))
				for _, x := range xs.([]any) {
					out = append(out, x.(ast.Payload))
				}
				return out, true
			},
			func() (any, bool) { return []ast.Payload(nil), true },
		)
	})
	g.Define("application", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				if !tok(m, "^") {
					return nil, false
				}
				rule, ok := m.Apply("name")
				if !ok {
					return nil, false
				}
				as, ok := m.Apply("args")
				if !ok {
					return nil, false
				}
				args := append([]ast.Payload{ast.Lit{Value: rule}}, as.([]ast.Payload)...)
				return &ast.App{Rule: "super", Args: args}, true
			},
			func() (any, bool) {
				grm, ok := m.Apply("name")
				if !ok || !tok(m, ".") {
					return nil, false
				}
				rule, ok := m.Apply("name")
				if !ok {
					return nil, false
				}
				as, ok := m.Apply("args")
				if !ok {
					return nil, false
				}
				args := append([]ast.Payload{ast.Lit{Value: grm}, ast.Lit{Value: rule}}, as.([]ast.Payload)...)
				return &ast.App{Rule: "foreign", Args: args}, true
			},
			func() (any, bool) {
				rule, ok := m.Apply("name")
				if !ok {
					return nil, false
				}
				as, ok := m.Apply("args")
				if !ok {
					return nil, false
				}
				return &ast.App{Rule: rule.(string), Args: as.([]ast.Payload)}, true
			},
		)
	})

	g.Define("hostExpr", 0, hostPayload("expr"))
	g.Define("curlyHostExpr", 0, hostPayload("curly"))
	g.Define("primHostExpr", 0, hostPayload("prim"))
	g.Define("atomicHostExpr", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return m.Apply("curlyHostExpr") },
			func() (any, bool) { return m.Apply("primHostExpr") },
		)
	})
	g.Define("semAction", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				x, ok := m.Apply("curlyHostExpr")
				if !ok {
					return nil, false
				}
				return &ast.Act{Expr: x.(ast.Payload)}, true
			},
			func() (any, bool) {
				if !tok(m, "!") {
					return nil, false
				}
				x, ok := m.Apply("atomicHostExpr")
				if !ok {
					return nil, false
				}
				return &ast.Act{Expr: x.(ast.Payload)}, true
			},
		)
	})
	g.Define("arrSemAction", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		if !tok(m, "->") {
			return nil, false
		}
		x, ok := m.Apply("atomicHostExpr")
		if !ok {
			return nil, false
		}
		return &ast.Act{Expr: x.(ast.Payload)}, true
	})
	g.Define("semPred", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		if !tok(m, "?") {
			return nil, false
		}
		x, ok := m.Apply("atomicHostExpr")
		if !ok {
			return nil, false
		}
		return &ast.Pred{Expr: x.(ast.Payload)}, true
	})

	g.Define("expr", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		orig := m.Input()
		x, ok := m.ApplyWithArgs("expr5", true)
		if !ok {
			m.SetInput(orig)
			return m.ApplyWithArgs("expr5", false)
		}
		rest := m.Input()
		choice := func(sep string) (any, bool) {
			return m.Many1(func() (any, bool) {
				if !tok(m, sep) {
					return nil, false
				}
				return m.ApplyWithArgs("expr5", true)
			})
		}
		if xs, ok := choice("|"); ok {
			return &ast.Or{Alts: nodes(x, xs)}, true
		}
		m.SetInput(rest)
		if xs, ok := choice("||"); ok {
			return &ast.XOr{Alts: nodes(x, xs)}, true
		}
		m.SetInput(rest)
		return x, true
	})
	g.Define("expr5", 1, func(m *ometa.Matcher, args []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				x, ok := m.Apply("interleavePart")
				if !ok {
					return nil, false
				}
				xs, ok := m.Many1(func() (any, bool) {
					if !tok(m, "&&") {
						return nil, false
					}
					return m.Apply("interleavePart")
				})
				if !ok {
					return nil, false
				}
				parts := []ast.Part{x.(ast.Part)}
				for _, p := range xs.([]any) {
					parts = append(parts, p.(ast.Part))
				}
				return &ast.Interleave{Parts: parts}, true
			},
			func() (any, bool) { return m.ApplyWithArgs("expr4", args[0]) },
		)
	})
	g.Define("interleavePart", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				if !tok(m, "(") {
					return nil, false
				}
				x, ok := m.ApplyWithArgs("expr4", true)
				if !ok || !tok(m, ")") {
					return nil, false
				}
				return ast.Part{Mode: ast.One, Expr: x.(ast.Node)}, true
			},
			func() (any, bool) {
				x, ok := m.ApplyWithArgs("expr4", true)
				if !ok {
					return nil, false
				}
				return modedPart(x.(ast.Node)), true
			},
		)
	})
	g.Define("expr4", 1, func(m *ometa.Matcher, args []any) (any, bool) {
		nonEmpty, _ := args[0].(bool)
		return m.Or(
			func() (any, bool) {
				xs, ok := m.Many(func() (any, bool) { return m.Apply("expr3") })
				if !ok {
					return nil, false
				}
				act, ok := m.Apply("arrSemAction")
				if !ok {
					return nil, false
				}
				return &ast.And{Exprs: nodes(nil, append(xs.([]any), act))}, true
			},
			func() (any, bool) {
				if !nonEmpty {
					return nil, false
				}
				xs, ok := m.Many1(func() (any, bool) { return m.Apply("expr3") })
				if !ok {
					return nil, false
				}
				return &ast.And{Exprs: nodes(nil, xs)}, true
			},
			func() (any, bool) {
				if nonEmpty {
					return nil, false
				}
				xs, ok := m.Many(func() (any, bool) { return m.Apply("expr3") })
				if !ok {
					return nil, false
				}
				return &ast.And{Exprs: nodes(nil, xs)}, true
			},
		)
	})
	g.Define("optIter", 1, func(m *ometa.Matcher, args []any) (any, bool) {
		x := args[0].(ast.Node)
		v, ok := m.Opt(func() (any, bool) {
			c, ok := m.Apply("anything")
			if !ok {
				return nil, false
			}
			switch r, _ := ometa.AsChar(c); r {
			case '*':
				return &ast.Many{Expr: x}, true
			case '+':
				return &ast.Many1{Expr: x}, true
			case '?':
				return &ast.Opt{Expr: x}, true
			}
			return nil, false
		})
		if !ok {
			return nil, false
		}
		if v == nil {
			return x, true
		}
		return v, true
	})
	g.Define("optBind", 1, func(m *ometa.Matcher, args []any) (any, bool) {
		x := args[0].(ast.Node)
		v, ok := m.Opt(func() (any, bool) {
			if _, ok := exactly(m, ":"); !ok {
				return nil, false
			}
			n, ok := m.Apply("name")
			if !ok {
				return nil, false
			}
			return &ast.Set{Name: n.(string), Expr: x}, true
		})
		if !ok {
			return nil, false
		}
		if v == nil {
			return x, true
		}
		return v, true
	})
	g.Define("expr3", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				if !tok(m, ":") {
					return nil, false
				}
				n, ok := m.Apply("name")
				if !ok {
					return nil, false
				}
				return &ast.Set{Name: n.(string), Expr: &ast.App{Rule: "anything"}}, true
			},
			func() (any, bool) {
				e, ok := m.Or(
					func() (any, bool) {
						x, ok := m.Apply("expr2")
						if !ok {
							return nil, false
						}
						return m.ApplyWithArgs("optIter", x)
					},
					func() (any, bool) { return m.Apply("semAction") },
				)
				if !ok {
					return nil, false
				}
				return m.ApplyWithArgs("optBind", e)
			},
			func() (any, bool) { return m.Apply("semPred") },
		)
	})
	g.Define("expr2", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				if !tok(m, "~") {
					return nil, false
				}
				x, ok := m.Apply("expr2")
				if !ok {
					return nil, false
				}
				return &ast.Not{Expr: x.(ast.Node)}, true
			},
			func() (any, bool) {
				if !tok(m, "&") {
					return nil, false
				}
				x, ok := m.Apply("expr1")
				if !ok {
					return nil, false
				}
				return &ast.Lookahead{Expr: x.(ast.Node)}, true
			},
			func() (any, bool) { return m.Apply("expr1") },
		)
	})
	g.Define("expr1", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				kw, ok := m.Or(
					func() (any, bool) { return m.ApplyWithArgs("keyword", "undefined") },
					func() (any, bool) { return m.ApplyWithArgs("keyword", "nil") },
					func() (any, bool) { return m.ApplyWithArgs("keyword", "true") },
					func() (any, bool) { return m.ApplyWithArgs("keyword", "false") },
				)
				if !ok {
					return nil, false
				}
				return ast.Exactly(keywordValues[kw.(string)]), true
			},
			func() (any, bool) { return m.Apply("application") },
			func() (any, bool) {
				if _, ok := m.Apply("spaces"); !ok {
					return nil, false
				}
				return m.Or(
					func() (any, bool) { return m.Apply("seqString") },
					func() (any, bool) { return m.Apply("tokenString") },
					func() (any, bool) { return m.Apply("string") },
					func() (any, bool) { return m.Apply("number") },
				)
			},
			bracketed(m, "[", "]", func(x ast.Node) ast.Node { return &ast.Form{Expr: x} }),
			bracketed(m, "<", ">", func(x ast.Node) ast.Node { return &ast.ConsBy{Expr: x} }),
			bracketed(m, "@<", ">", func(x ast.Node) ast.Node { return &ast.IdxConsBy{Expr: x} }),
			bracketed(m, "(", ")", func(x ast.Node) ast.Node { return x }),
		)
	})

	g.Define("param", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		if !tok(m, ":") {
			return nil, false
		}
		return m.Apply("name")
	})
	g.Define("ruleName", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return m.Apply("name") },
			func() (any, bool) {
				if _, ok := m.Apply("spaces"); !ok {
					return nil, false
				}
				return m.Apply("tsString")
			},
		)
	})
	g.Define("rulePart", 1, func(m *ometa.Matcher, args []any) (any, bool) {
		n, ok := m.Apply("ruleName")
		if !ok || n != args[0] {
			return nil, false
		}
		return m.Or(
			func() (any, bool) {
				ps, ok := m.Many(func() (any, bool) { return m.Apply("param") })
				if !ok || !tok(m, "=") {
					return nil, false
				}
				b, ok := m.Apply("expr")
				if !ok {
					return nil, false
				}
				part := rulePart{body: b.(ast.Node)}
				for _, p := range ps.([]any) {
					part.params = append(part.params, p.(string))
				}
				return part, true
			},
			func() (any, bool) {
				b, ok := m.Apply("expr")
				if !ok {
					return nil, false
				}
				return rulePart{body: b.(ast.Node)}, true
			},
		)
	})
	g.Define("rule", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		n, ok := m.Lookahead(func() (any, bool) { return m.Apply("ruleName") })
		if !ok {
			return nil, false
		}
		first, ok := m.ApplyWithArgs("rulePart", n)
		if !ok {
			return nil, false
		}
		rest, ok := m.Many(func() (any, bool) {
			if !tok(m, ",") {
				return nil, false
			}
			return m.ApplyWithArgs("rulePart", n)
		})
		if !ok {
			return nil, false
		}
		return newRule(n.(string), append([]any{first}, rest.([]any)...)), true
	})
	g.Define("grammar", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		exported, _ := m.Or(
			func() (any, bool) {
				if _, ok := m.ApplyWithArgs("keyword", "export"); !ok {
					return nil, false
				}
				return true, true
			},
			func() (any, bool) { return false, true },
		)
		if _, ok := m.ApplyWithArgs("keyword", "ometa"); !ok {
			return nil, false
		}
		name, ok := m.Apply("name")
		if !ok {
			return nil, false
		}
		parent, ok := m.Or(
			func() (any, bool) {
				if !tok(m, "<:") {
					return nil, false
				}
				return m.Apply("name")
			},
			func() (any, bool) { return ometa.Base.Name, true },
		)
		if !ok || !tok(m, "{") {
			return nil, false
		}
		rs, ok := m.ApplyWithArgs("listOf", "rule", ",")
		if !ok || !tok(m, "}") {
			return nil, false
		}
		gr := &ast.Grammar{Exported: exported.(bool), Name: name.(string), Parent: parent.(string)}
		for _, r := range rs.([]any) {
			gr.Rules = append(gr.Rules, r.(*ast.Rule))
		}
		return gr, true
	})
	g.Define("exprFile", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		x, ok := m.Apply("expr")
		if !ok {
			return nil, false
		}
		if _, ok := m.Apply("spaces"); !ok {
			return nil, false
		}
		if _, ok := m.Apply("end"); !ok {
			return nil, false
		}
		return x, true
	})
	g.Define("topLevel", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
		gs, ok := m.Many1(func() (any, bool) {
			gr, ok := m.Apply("grammar")
			if !ok {
				return nil, false
			}
			m.Opt(func() (any, bool) { return m.ApplyWithArgs("token", ";") })
			return gr, true
		})
		if !ok {
			return nil, false
		}
		if _, ok := m.Apply("spaces"); !ok {
			return nil, false
		}
		if _, ok := m.Apply("end"); !ok {
			return nil, false
		}
		return gs, true
	})
	return g
}

var keywordValues = map[string]any{
	"undefined": nil,
	"nil":       nil,
	"true":      true,
	"false":     false,
}

func exactly(m *ometa.Matcher, s string) (any, bool) {
	return m.ApplyWithArgs("exactly", s)
}

func tok(m *ometa.Matcher, s string) bool {
	_, ok := m.ApplyWithArgs("token", s)
	return ok
}

// delimited matches open, escaped characters up to close, and close.
func delimited(m *ometa.Matcher, open, close string) (string, bool) {
	if _, ok := m.ApplyWithArgs("seq", open); !ok {
		return "", false
	}
	xs, ok := m.Many(func() (any, bool) {
		if _, ok := m.Not(func() (any, bool) { return m.ApplyWithArgs("seq", close) }); !ok {
			return nil, false
		}
		return m.Apply("eChar")
	})
	if !ok {
		return "", false
	}
	if _, ok := m.ApplyWithArgs("seq", close); !ok {
		return "", false
	}
	return ometa.Join(xs.([]any), ""), true
}

func bracketed(m *ometa.Matcher, open, close string, wrap func(ast.Node) ast.Node) ometa.Pattern {
	return func() (any, bool) {
		if !tok(m, open) {
			return nil, false
		}
		x, ok := m.Apply("expr")
		if !ok || !tok(m, close) {
			return nil, false
		}
		return wrap(x.(ast.Node)), true
	}
}

// hostPayload parses a payload with the given entry rule of the host
// grammar and returns its text.
func hostPayload(entry string) ometa.RuleFunc {
	return func(m *ometa.Matcher, _ []any) (any, bool) {
		text, ok := m.ConsumedBy(func() (any, bool) {
			return m.Foreign(hostexpr.Grammar, entry)
		})
		if !ok {
			return nil, false
		}
		return payload(strings.TrimSpace(text.(string))), true
	}
}

func payload(src string) ast.Payload {
	if v, ok := hostexpr.Constant(src); ok {
		return ast.Lit{Value: v}
	}
	return ast.Host{Src: src}
}

// modedPart turns a repeated sequence of one element into a repeated part.
func modedPart(x ast.Node) ast.Part {
	if and, ok := x.(*ast.And); ok && len(and.Exprs) == 1 {
		switch inner := and.Exprs[0].(type) {
		case *ast.Many:
			return ast.Part{Mode: ast.ZeroOrMore, Expr: inner.Expr}
		case *ast.Many1:
			return ast.Part{Mode: ast.OneOrMore, Expr: inner.Expr}
		case *ast.Opt:
			return ast.Part{Mode: ast.ZeroOrOne, Expr: inner.Expr}
		}
	}
	return ast.Part{Mode: ast.One, Expr: x}
}

func nodes(first any, rest any) []ast.Node {
	var out []ast.Node
	if first != nil {
		out = append(out, first.(ast.Node))
	}
	for _, x := range rest.([]any) {
		out = append(out, x.(ast.Node))
	}
	if out == nil {
		out = []ast.Node{}
	}
	return out
}

func newRule(name string, parts []any) *ast.Rule {
	r := &ast.Rule{Name: name}
	seen := make(map[string]bool)
	alts := make([]ast.Node, 0, len(parts))
	for _, p := range parts {
		part := p.(rulePart)
		for _, param := range part.params {
			if !seen[param] {
				seen[param] = true
				r.Params = append(r.Params, param)
			}
		}
		alts = append(alts, part.body)
	}
	r.Body = &ast.Or{Alts: alts}
	r.Locals = ast.BoundNames(r.Body)
	return r
}
