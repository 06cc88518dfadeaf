package optimize

import (
	"sort"

	"github.com/dhamidi/ometa/grammar/ast"
)

// SeqInliner expands seq over a string literal into one exactly per
// character, followed by an action returning the string.
var SeqInliner = Pass{Name: "seq-inliner", rewrite: func(rw *rewriter, n ast.Node) (ast.Node, bool) {
	app, ok := n.(*ast.App)
	if !ok || app.Rule != "seq" || len(app.Args) != 1 {
		return nil, false
	}
	lit, ok := app.Args[0].(ast.Lit)
	if !ok {
		return nil, false
	}
	s, ok := lit.Value.(string)
	if !ok {
		return nil, false
	}
	xs := make([]ast.Node, 0, len(s)+1)
	for _, r := range s {
		xs = append(xs, ast.Exactly(string(r)))
	}
	xs = append(xs, &ast.Act{Expr: ast.Lit{Value: s}})
	rw.helped = true
	return &ast.And{Exprs: xs}, true
}}

// Associative flattens nested sequences and choices of the same kind and
// replaces single-child ones by their child.
var Associative = Pass{Name: "associative", rewrite: func(rw *rewriter, n ast.Node) (ast.Node, bool) {
	var children []ast.Node
	var rebuild func([]ast.Node) ast.Node
	switch x := n.(type) {
	case *ast.And:
		children, rebuild = x.Exprs, func(xs []ast.Node) ast.Node { return &ast.And{Exprs: xs} }
	case *ast.Or:
		children, rebuild = x.Alts, func(xs []ast.Node) ast.Node { return &ast.Or{Alts: xs} }
	case *ast.XOr:
		children, rebuild = x.Alts, func(xs []ast.Node) ast.Node { return &ast.XOr{Alts: xs} }
	default:
		return nil, false
	}
	if len(children) == 1 {
		rw.helped = true
		return rw.trans(children[0]), true
	}
	kind := n.Kind()
	flat, changed := rw.flatten(kind, children)
	if !changed {
		return n, true
	}
	return rebuild(flat), true
}}

func (rw *rewriter) flatten(kind ast.Kind, ns []ast.Node) ([]ast.Node, bool) {
	out := make([]ast.Node, 0, len(ns))
	changed := false
	for i, n := range ns {
		// An empty trailing sequence supplies the value nil.
		emptyLast := kind == ast.KindAnd && i == len(ns)-1 && len(ast.Children(n)) == 0
		if n.Kind() == kind && !emptyLast {
			inner, _ := rw.flatten(kind, ast.Children(n))
			out = append(out, inner...)
			rw.helped = true
			changed = true
			continue
		}
		t := rw.trans(n)
		if t != n {
			changed = true
		}
		out = append(out, t)
	}
	return out, changed
}

// PushDownSet moves a binding of a sequence onto the sequence's last
// element, which supplies the bound value.
var PushDownSet = Pass{Name: "push-down-set", rewrite: func(rw *rewriter, n ast.Node) (ast.Node, bool) {
	set, ok := n.(*ast.Set)
	if !ok {
		return nil, false
	}
	and, ok := set.Expr.(*ast.And)
	if !ok || len(and.Exprs) == 0 {
		return nil, false
	}
	last := len(and.Exprs) - 1
	xs := make([]ast.Node, 0, len(and.Exprs))
	for _, x := range and.Exprs[:last] {
		xs = append(xs, rw.trans(x))
	}
	xs = append(xs, &ast.Set{Name: set.Name, Expr: rw.trans(and.Exprs[last])})
	rw.helped = true
	return &ast.And{Exprs: xs}, true
}}

// AnythingInliner replaces applications of anything by the primitive.
var AnythingInliner = Pass{Name: "anything-inliner", rewrite: func(rw *rewriter, n ast.Node) (ast.Node, bool) {
	app, ok := n.(*ast.App)
	if !ok || app.Rule != "anything" || len(app.Args) != 0 {
		return nil, false
	}
	rw.helped = true
	return &ast.Act{Expr: ast.Builtin{Op: "anything"}}, true
}}

// JumpTables groups runs of alternatives that start by matching a string
// literal into a table keyed by that literal.
var JumpTables = Pass{Name: "jump-tables", rewrite: func(rw *rewriter, n ast.Node) (ast.Node, bool) {
	switch x := n.(type) {
	case *ast.Or:
		if alts, changed := rw.jumpTables(x.Alts, false); changed {
			return &ast.Or{Alts: alts}, true
		}
		return n, true
	case *ast.XOr:
		if alts, changed := rw.jumpTables(x.Alts, true); changed {
			return &ast.XOr{Alts: alts}, true
		}
		return n, true
	}
	return nil, false
}}

func (rw *rewriter) jumpTables(alts []ast.Node, xor bool) ([]ast.Node, bool) {
	var out []ast.Node
	var table *jumpTable
	changed := false
	for _, alt := range alts {
		key, body, ok := jumpChoice(alt)
		if !ok {
			if table != nil {
				out = append(out, table.node())
				table = nil
			}
			t := rw.trans(alt)
			changed = changed || t != alt
			out = append(out, t)
			continue
		}
		changed = true
		if table == nil {
			table = &jumpTable{xor: xor, cases: make(map[string]ast.Node)}
			rw.helped = true
		}
		table.add(key, body)
	}
	if table != nil {
		out = append(out, table.node())
	}
	return out, changed
}

// jumpChoice splits an alternative into its leading string literal and the
// continuation after it.
func jumpChoice(n ast.Node) (string, ast.Node, bool) {
	if s, ok := ast.ExactlyString(n); ok {
		return s, &ast.Act{Expr: ast.Lit{Value: s}}, true
	}
	and, ok := n.(*ast.And)
	if !ok || len(and.Exprs) == 0 {
		return "", nil, false
	}
	s, ok := ast.ExactlyString(and.Exprs[0])
	if !ok {
		return "", nil, false
	}
	rest := and.Exprs[1:]
	if len(rest) == 0 {
		return s, &ast.Act{Expr: ast.Lit{Value: s}}, true
	}
	return s, &ast.And{Exprs: rest}, true
}

type jumpTable struct {
	xor   bool
	cases map[string]ast.Node
}

// add appends body to the choice under key.
func (t *jumpTable) add(key string, body ast.Node) {
	prev, ok := t.cases[key]
	if !ok {
		t.cases[key] = body
		return
	}
	if t.xor {
		if x, ok := prev.(*ast.XOr); ok {
			t.cases[key] = &ast.XOr{Alts: append(append([]ast.Node(nil), x.Alts...), body)}
			return
		}
		t.cases[key] = &ast.XOr{Alts: []ast.Node{prev, body}}
		return
	}
	if x, ok := prev.(*ast.Or); ok {
		t.cases[key] = &ast.Or{Alts: append(append([]ast.Node(nil), x.Alts...), body)}
		return
	}
	t.cases[key] = &ast.Or{Alts: []ast.Node{prev, body}}
}

func (t *jumpTable) node() *ast.JumpTable {
	keys := make([]string, 0, len(t.cases))
	for k := range t.cases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	jt := &ast.JumpTable{XOr: t.xor, Cases: make([]ast.Case, len(keys))}
	for i, k := range keys {
		jt.Cases[i] = ast.Case{Key: k, Body: t.cases[k]}
	}
	return jt
}
