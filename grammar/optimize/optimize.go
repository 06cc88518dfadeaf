// Package optimize rewrites grammar ASTs into equivalent, faster ones.
//
// Every pass rebuilds only the nodes it improves and shares the rest. A pass
// reports whether it helped; the driver runs the sequence inliner once and
// then the remaining passes, restarting from the first, until none helps.
package optimize

import (
	"github.com/dhamidi/ometa/grammar/ast"
)

// Pass is a single rewrite.
type Pass struct {
	Name string
	// rewrite handles the nodes the pass improves. It reports false for
	// nodes it leaves to the generic traversal.
	rewrite func(rw *rewriter, n ast.Node) (ast.Node, bool)
}

// Apply runs p over n and reports whether it changed anything.
func (p Pass) Apply(n ast.Node) (ast.Node, bool) {
	rw := &rewriter{pass: p}
	out := rw.trans(n)
	return out, rw.helped
}

type rewriter struct {
	pass   Pass
	helped bool
}

func (rw *rewriter) trans(n ast.Node) ast.Node {
	if n == nil {
		return nil
	}
	if out, ok := rw.pass.rewrite(rw, n); ok {
		return out
	}
	return rw.descend(n)
}

func (rw *rewriter) transAll(ns []ast.Node) ([]ast.Node, bool) {
	var out []ast.Node
	for i, n := range ns {
		t := rw.trans(n)
		if t != n && out == nil {
			out = make([]ast.Node, len(ns))
			copy(out, ns[:i])
		}
		if out != nil {
			out[i] = t
		}
	}
	if out == nil {
		return ns, false
	}
	return out, true
}

// descend rebuilds n with its children transformed. Nodes without
// sub-expressions are returned as they are.
func (rw *rewriter) descend(n ast.Node) ast.Node {
	switch x := n.(type) {
	case *ast.Or:
		if alts, changed := rw.transAll(x.Alts); changed {
			return &ast.Or{Alts: alts}
		}
	case *ast.XOr:
		if alts, changed := rw.transAll(x.Alts); changed {
			return &ast.XOr{Alts: alts}
		}
	case *ast.And:
		if xs, changed := rw.transAll(x.Exprs); changed {
			return &ast.And{Exprs: xs}
		}
	case *ast.Opt:
		if e := rw.trans(x.Expr); e != x.Expr {
			return &ast.Opt{Expr: e}
		}
	case *ast.Many:
		if e := rw.trans(x.Expr); e != x.Expr {
			return &ast.Many{Expr: e}
		}
	case *ast.Many1:
		if e := rw.trans(x.Expr); e != x.Expr {
			return &ast.Many1{Expr: e}
		}
	case *ast.Set:
		if e := rw.trans(x.Expr); e != x.Expr {
			return &ast.Set{Name: x.Name, Expr: e}
		}
	case *ast.Not:
		if e := rw.trans(x.Expr); e != x.Expr {
			return &ast.Not{Expr: e}
		}
	case *ast.Lookahead:
		if e := rw.trans(x.Expr); e != x.Expr {
			return &ast.Lookahead{Expr: e}
		}
	case *ast.Form:
		if e := rw.trans(x.Expr); e != x.Expr {
			return &ast.Form{Expr: e}
		}
	case *ast.ConsBy:
		if e := rw.trans(x.Expr); e != x.Expr {
			return &ast.ConsBy{Expr: e}
		}
	case *ast.IdxConsBy:
		if e := rw.trans(x.Expr); e != x.Expr {
			return &ast.IdxConsBy{Expr: e}
		}
	case *ast.JumpTable:
		var cases []ast.Case
		for i, c := range x.Cases {
			b := rw.trans(c.Body)
			if b != c.Body && cases == nil {
				cases = append([]ast.Case(nil), x.Cases...)
			}
			if cases != nil {
				cases[i].Body = b
			}
		}
		if cases != nil {
			return &ast.JumpTable{XOr: x.XOr, Cases: cases}
		}
	case *ast.Interleave:
		var parts []ast.Part
		for i, p := range x.Parts {
			e := rw.trans(p.Expr)
			if e != p.Expr && parts == nil {
				parts = append([]ast.Part(nil), x.Parts...)
			}
			if parts != nil {
				parts[i].Expr = e
			}
		}
		if parts != nil {
			return &ast.Interleave{Parts: parts}
		}
	case *ast.Rule:
		if b := rw.trans(x.Body); b != x.Body {
			return &ast.Rule{Name: x.Name, Params: x.Params, Locals: x.Locals, Body: b}
		}
	}
	return n
}

// Option configures the driver.
type Option func(*driver)

// WithoutJumpTables disables jump-table construction. Jump tables read
// elements directly, so they are only equivalent to applications of exactly
// when the grammar does not override it.
func WithoutJumpTables() Option {
	return func(d *driver) { d.noJumpTables = true }
}

// WithTrace calls fn each time a pass helps on a rule.
func WithTrace(fn func(rule, pass string)) Option {
	return func(d *driver) { d.trace = fn }
}

type driver struct {
	noJumpTables bool
	trace        func(rule, pass string)
}

func (d *driver) loop() []Pass {
	passes := []Pass{Associative}
	if !d.noJumpTables {
		passes = append(passes, JumpTables)
	}
	return append(passes, PushDownSet, AnythingInliner)
}

func (d *driver) helped(rule string, p Pass) {
	if d.trace != nil {
		d.trace(rule, p.Name)
	}
}

// Rule optimizes the body of r.
func Rule(r *ast.Rule, opts ...Option) *ast.Rule {
	d := &driver{}
	for _, opt := range opts {
		opt(d)
	}
	return d.rule(r)
}

func (d *driver) rule(r *ast.Rule) *ast.Rule {
	body := r.Body
	if out, ok := SeqInliner.Apply(body); ok {
		body = out
		d.helped(r.Name, SeqInliner)
	}
	passes := d.loop()
	for progress := true; progress; {
		progress = false
		for _, p := range passes {
			if out, ok := p.Apply(body); ok {
				body = out
				d.helped(r.Name, p)
				progress = true
				break
			}
		}
	}
	if body == r.Body {
		return r
	}
	return &ast.Rule{Name: r.Name, Params: r.Params, Locals: r.Locals, Body: body}
}

// Grammar optimizes every rule of g.
func Grammar(g *ast.Grammar, opts ...Option) *ast.Grammar {
	d := &driver{}
	for _, opt := range opts {
		opt(d)
	}
	out := &ast.Grammar{Exported: g.Exported, Name: g.Name, Parent: g.Parent}
	out.Rules = make([]*ast.Rule, len(g.Rules))
	for i, r := range g.Rules {
		out.Rules[i] = d.rule(r)
	}
	return out
}
