// Package codegen lowers a grammar AST into an executable ometa.Grammar.
//
// Every rule becomes a closure over a frame holding its parameters and
// locals. Semantic actions and predicates are compiled by a Host.
package codegen

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dhamidi/ometa/grammar/ast"
	"github.com/dhamidi/ometa/ometa"
)

// Action is a compiled semantic action. frame holds the values of the
// rule's parameters and locals, in the order of the scope the action was
// compiled against.
type Action func(m *ometa.Matcher, frame []any) (any, error)

// Host compiles host-language payloads.
type Host interface {
	Compile(src string, scope []string) (Action, error)
}

var (
	// ErrUnresolved is wrapped by errors for parent or foreign grammars
	// that cannot be found.
	ErrUnresolved = errors.New("unresolved grammar")
	// ErrNoHost is wrapped when a payload needs compiling but no host was
	// configured.
	ErrNoHost = errors.New("no host language configured")
)

// Error reports a failure to generate a rule.
type Error struct {
	Grammar string
	Rule    string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generate %s.%s: %v", e.Grammar, e.Rule, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Option configures Generate.
type Option func(*generator)

// WithHost sets the compiler of action and predicate payloads.
func WithHost(h Host) Option {
	return func(g *generator) { g.host = h }
}

// WithGrammars sets how parent and foreign grammar names are resolved. The
// base grammar is always available as "OMeta".
func WithGrammars(lookup func(name string) (*ometa.Grammar, bool)) Option {
	return func(g *generator) { g.lookup = lookup }
}

type generator struct {
	host   Host
	lookup func(string) (*ometa.Grammar, bool)
	self   *ometa.Grammar
}

// expr is a lowered expression evaluated against a frame.
type expr func(m *ometa.Matcher, f []any) (any, bool)

// value is a lowered argument or action payload.
type value func(m *ometa.Matcher, f []any) (any, error)

// Generate builds the grammar described by g.
func Generate(g *ast.Grammar, opts ...Option) (*ometa.Grammar, error) {
	gen := &generator{}
	for _, opt := range opts {
		opt(gen)
	}
	parent, err := gen.resolve(g.Parent)
	if err != nil {
		return nil, &Error{Grammar: g.Name, Rule: "", Err: err}
	}
	gen.self = ometa.NewGrammar(g.Name, parent)
	for _, r := range g.Rules {
		if err := gen.rule(r); err != nil {
			return nil, &Error{Grammar: g.Name, Rule: r.Name, Err: err}
		}
	}
	return gen.self, nil
}

func (gen *generator) resolve(name string) (*ometa.Grammar, error) {
	switch {
	case name == "" || name == ometa.Base.Name:
		return ometa.Base, nil
	case gen.self != nil && name == gen.self.Name:
		return gen.self, nil
	case gen.lookup != nil:
		if g, ok := gen.lookup(name); ok {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnresolved)
}

// Scope returns the frame layout of r: its parameters followed by every
// other name bound in the rule.
func Scope(r *ast.Rule) []string {
	scope := slices.Clone(r.Params)
	seen := make(map[string]bool, len(scope))
	for _, p := range scope {
		seen[p] = true
	}
	names := append(slices.Clone(r.Locals), ast.BoundNames(r.Body)...)
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			scope = append(scope, n)
		}
	}
	return scope
}

func (gen *generator) rule(r *ast.Rule) error {
	scope := Scope(r)
	slots := make(map[string]int, len(scope))
	for i, n := range scope {
		slots[n] = i
	}
	rc := &ruleCompiler{gen: gen, scope: scope, slots: slots}
	body, err := rc.lower(r.Body)
	if err != nil {
		return err
	}
	size := len(scope)
	gen.self.Define(r.Name, len(r.Params), func(m *ometa.Matcher, args []any) (any, bool) {
		f := make([]any, size)
		copy(f, args)
		return body(m, f)
	})
	return nil
}

type ruleCompiler struct {
	gen   *generator
	scope []string
	slots map[string]int
}

func (rc *ruleCompiler) lower(n ast.Node) (expr, error) {
	switch x := n.(type) {
	case *ast.App:
		return rc.app(x)
	case *ast.Act:
		if b, ok := x.Expr.(ast.Builtin); ok && b.Op == "anything" {
			return func(m *ometa.Matcher, _ []any) (any, bool) { return m.Anything() }, nil
		}
		v, err := rc.payload(x.Expr)
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, f []any) (any, bool) {
			out, err := v(m, f)
			if err != nil {
				return m.ActionFailed(err)
			}
			return out, true
		}, nil
	case *ast.Pred:
		v, err := rc.payload(x.Expr)
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, f []any) (any, bool) {
			out, err := v(m, f)
			if err != nil {
				return m.ActionFailed(err)
			}
			return m.Pred(ometa.Truthy(out))
		}, nil
	case *ast.Or:
		alts, err := rc.lowerAll(x.Alts)
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, f []any) (any, bool) {
			return m.Or(patterns(m, f, alts)...)
		}, nil
	case *ast.XOr:
		alts, err := rc.lowerAll(x.Alts)
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, f []any) (any, bool) {
			return m.XOr(patterns(m, f, alts)...)
		}, nil
	case *ast.And:
		return rc.and(x.Exprs)
	case *ast.Opt:
		return rc.wrap(x.Expr, (*ometa.Matcher).Opt)
	case *ast.Many:
		return rc.wrap(x.Expr, (*ometa.Matcher).Many)
	case *ast.Many1:
		return rc.wrap(x.Expr, (*ometa.Matcher).Many1)
	case *ast.Not:
		return rc.wrap(x.Expr, (*ometa.Matcher).Not)
	case *ast.Lookahead:
		return rc.wrap(x.Expr, (*ometa.Matcher).Lookahead)
	case *ast.Form:
		return rc.wrap(x.Expr, (*ometa.Matcher).Form)
	case *ast.ConsBy:
		return rc.wrap(x.Expr, (*ometa.Matcher).ConsumedBy)
	case *ast.IdxConsBy:
		return rc.wrap(x.Expr, (*ometa.Matcher).IdxConsumedBy)
	case *ast.Set:
		i, ok := rc.slots[x.Name]
		if !ok {
			return nil, fmt.Errorf("local %q is not in scope", x.Name)
		}
		sub, err := rc.lower(x.Expr)
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, f []any) (any, bool) {
			v, ok := sub(m, f)
			if ok {
				f[i] = v
			}
			return v, ok
		}, nil
	case *ast.JumpTable:
		return rc.jumpTable(x)
	case *ast.Interleave:
		return rc.interleave(x)
	}
	return nil, fmt.Errorf("cannot generate code for %T", n)
}

func (rc *ruleCompiler) lowerAll(ns []ast.Node) ([]expr, error) {
	out := make([]expr, len(ns))
	for i, n := range ns {
		e, err := rc.lower(n)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func patterns(m *ometa.Matcher, f []any, es []expr) []ometa.Pattern {
	ps := make([]ometa.Pattern, len(es))
	for i, e := range es {
		ps[i] = func() (any, bool) { return e(m, f) }
	}
	return ps
}

func (rc *ruleCompiler) wrap(n ast.Node, comb func(*ometa.Matcher, ometa.Pattern) (any, bool)) (expr, error) {
	sub, err := rc.lower(n)
	if err != nil {
		return nil, err
	}
	return func(m *ometa.Matcher, f []any) (any, bool) {
		return comb(m, func() (any, bool) { return sub(m, f) })
	}, nil
}

func (rc *ruleCompiler) and(ns []ast.Node) (expr, error) {
	es, err := rc.lowerAll(ns)
	if err != nil {
		return nil, err
	}
	if len(es) == 1 {
		return es[0], nil
	}
	return func(m *ometa.Matcher, f []any) (any, bool) {
		var v any
		for _, e := range es {
			var ok bool
			if v, ok = e(m, f); !ok {
				return nil, false
			}
		}
		return v, true
	}, nil
}

func (rc *ruleCompiler) app(x *ast.App) (expr, error) {
	switch x.Rule {
	case "super":
		name, rest, err := leadingName(x.Args)
		if err != nil {
			return nil, fmt.Errorf("super: %w", err)
		}
		args, err := rc.payloads(rest)
		if err != nil {
			return nil, err
		}
		self := rc.gen.self
		return func(m *ometa.Matcher, f []any) (any, bool) {
			vs, ok := evalArgs(m, f, args)
			if !ok {
				return nil, false
			}
			return m.SuperApply(self, name, vs...)
		}, nil
	case "foreign":
		grammarName, rest, err := leadingName(x.Args)
		if err != nil {
			return nil, fmt.Errorf("foreign: %w", err)
		}
		rule, rest, err := leadingName(rest)
		if err != nil {
			return nil, fmt.Errorf("foreign: %w", err)
		}
		target, err := rc.gen.resolve(grammarName)
		if err != nil {
			return nil, err
		}
		args, err := rc.payloads(rest)
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, f []any) (any, bool) {
			vs, ok := evalArgs(m, f, args)
			if !ok {
				return nil, false
			}
			return m.Foreign(target, rule, vs...)
		}, nil
	}
	name := x.Rule
	if len(x.Args) == 0 {
		return func(m *ometa.Matcher, _ []any) (any, bool) { return m.Apply(name) }, nil
	}
	args, err := rc.payloads(x.Args)
	if err != nil {
		return nil, err
	}
	return func(m *ometa.Matcher, f []any) (any, bool) {
		vs, ok := evalArgs(m, f, args)
		if !ok {
			return nil, false
		}
		return m.ApplyWithArgs(name, vs...)
	}, nil
}

func leadingName(args []ast.Payload) (string, []ast.Payload, error) {
	if len(args) == 0 {
		return "", nil, errors.New("missing name argument")
	}
	lit, ok := args[0].(ast.Lit)
	if !ok {
		return "", nil, fmt.Errorf("name argument must be a literal, got %T", args[0])
	}
	s, ok := lit.Value.(string)
	if !ok {
		return "", nil, fmt.Errorf("name argument must be a string, got %T", lit.Value)
	}
	return s, args[1:], nil
}

func evalArgs(m *ometa.Matcher, f []any, args []value) ([]any, bool) {
	vs := make([]any, len(args))
	for i, a := range args {
		v, err := a(m, f)
		if err != nil {
			m.ActionFailed(err)
			return nil, false
		}
		vs[i] = v
	}
	return vs, true
}

func (rc *ruleCompiler) payloads(ps []ast.Payload) ([]value, error) {
	out := make([]value, len(ps))
	for i, p := range ps {
		v, err := rc.payload(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (rc *ruleCompiler) payload(p ast.Payload) (value, error) {
	switch x := p.(type) {
	case ast.Lit:
		v := x.Value
		return func(*ometa.Matcher, []any) (any, error) { return v, nil }, nil
	case ast.Builtin:
		return nil, fmt.Errorf("builtin %q is not a value", x.Op)
	case ast.Host:
		if rc.gen.host == nil {
			return nil, ErrNoHost
		}
		act, err := rc.gen.host.Compile(x.Src, rc.scope)
		if err != nil {
			return nil, err
		}
		return value(act), nil
	}
	return nil, fmt.Errorf("unexpected payload %T", p)
}
