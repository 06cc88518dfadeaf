package codegen

import (
	"fmt"

	"github.com/dhamidi/ometa/grammar/ast"
	"github.com/dhamidi/ometa/ometa"
)

// jumpTable reads one element and continues with the case keyed by it. A
// character element selects the case whose key is that character.
func (rc *ruleCompiler) jumpTable(x *ast.JumpTable) (expr, error) {
	cases := make(map[string]expr, len(x.Cases))
	for _, c := range x.Cases {
		if _, dup := cases[c.Key]; dup {
			return nil, fmt.Errorf("jump table: duplicate case %q", c.Key)
		}
		body, err := rc.lower(c.Body)
		if err != nil {
			return nil, err
		}
		cases[c.Key] = body
	}
	return func(m *ometa.Matcher, f []any) (any, bool) {
		orig := m.Input()
		v, ok := m.Anything()
		if !ok {
			return nil, false
		}
		key, ok := ometa.AsString(v)
		if !ok {
			m.SetInput(orig)
			return nil, false
		}
		body, ok := cases[key]
		if !ok {
			m.SetInput(orig)
			return nil, false
		}
		out, ok := body(m, f)
		if !ok {
			m.SetInput(orig)
			return nil, false
		}
		return out, true
	}, nil
}

var modes = map[ast.Mode]ometa.Mode{
	ast.One:        ometa.ExactlyOne,
	ast.ZeroOrMore: ometa.ZeroOrMore,
	ast.OneOrMore:  ometa.OneOrMore,
	ast.ZeroOrOne:  ometa.ZeroOrOne,
}

func (rc *ruleCompiler) interleave(x *ast.Interleave) (expr, error) {
	type part struct {
		mode ometa.Mode
		e    expr
	}
	parts := make([]part, len(x.Parts))
	for i, p := range x.Parts {
		e, err := rc.lower(p.Expr)
		if err != nil {
			return nil, err
		}
		parts[i] = part{mode: modes[p.Mode], e: e}
	}
	return func(m *ometa.Matcher, f []any) (any, bool) {
		ps := make([]ometa.Part, len(parts))
		for i, p := range parts {
			ps[i] = ometa.Part{Mode: p.mode, Pattern: func() (any, bool) { return p.e(m, f) }}
		}
		return m.Interleave(ps...)
	}, nil
}
