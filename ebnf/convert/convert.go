// Package convert turns EBNF grammars, as read by golang.org/x/exp/ebnf, into
// grammar trees the compiler accepts.
//
// Productions whose name does not start with an upper-case letter are
// lexical: their literals are matched character by character with seq and
// nothing is skipped between them. All other productions match literals with
// token and skip leading whitespace before every literal, range and
// reference to a lexical production.
package convert

import (
	"fmt"
	"io"
	"sort"
	"unicode"
	"unicode/utf8"

	"golang.org/x/exp/ebnf"

	"github.com/dhamidi/ometa/grammar/ast"
	"github.com/dhamidi/ometa/ometa"
)

type config struct {
	start  string
	parent string
}

type Option func(*config)

// WithStart verifies the grammar from the production start and makes it the
// first rule.
func WithStart(start string) Option {
	return func(c *config) { c.start = start }
}

// WithParent sets the grammar the result extends. The default is the base
// grammar.
func WithParent(parent string) Option {
	return func(c *config) { c.parent = parent }
}

// Parse reads an EBNF grammar from src and converts it into a grammar called
// name.
func Parse(filename string, src io.Reader, name string, opts ...Option) (*ast.Grammar, error) {
	g, err := ebnf.Parse(filename, src)
	if err != nil {
		return nil, fmt.Errorf("parse ebnf: %w", err)
	}
	return Grammar(g, name, opts...)
}

// Grammar converts g into a grammar called name with one rule per
// production. Rules are sorted by name, after the start production when one
// is given.
func Grammar(g ebnf.Grammar, name string, opts ...Option) (*ast.Grammar, error) {
	c := config{parent: ometa.Base.Name}
	for _, opt := range opts {
		opt(&c)
	}
	if c.start != "" {
		if err := ebnf.Verify(g, c.start); err != nil {
			return nil, fmt.Errorf("verify ebnf: %w", err)
		}
	}

	names := make([]string, 0, len(g))
	for n := range g {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == c.start) != (names[j] == c.start) {
			return names[i] == c.start
		}
		return names[i] < names[j]
	})

	out := &ast.Grammar{Name: name, Parent: c.parent}
	for _, n := range names {
		r, err := production(g[n])
		if err != nil {
			return nil, err
		}
		out.Rules = append(out.Rules, r)
	}
	return out, nil
}

// IsLexical reports whether the production called name is lexical.
func IsLexical(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return !unicode.IsUpper(r)
}

func production(p *ebnf.Production) (*ast.Rule, error) {
	cv := converter{lexical: IsLexical(p.Name.String)}
	body, err := cv.expr(p.Expr)
	if err != nil {
		return nil, fmt.Errorf("production %s: %w", p.Name.String, err)
	}
	return &ast.Rule{
		Name:   p.Name.String,
		Body:   &ast.Or{Alts: []ast.Node{body}},
		Locals: []string{},
	}, nil
}

type converter struct {
	lexical bool
}

func (c converter) expr(e ebnf.Expression) (ast.Node, error) {
	switch x := e.(type) {
	case nil:
		return &ast.And{Exprs: []ast.Node{}}, nil
	case ebnf.Alternative:
		alts, err := c.all(x)
		if err != nil {
			return nil, err
		}
		return &ast.Or{Alts: alts}, nil
	case ebnf.Sequence:
		xs, err := c.all(x)
		if err != nil {
			return nil, err
		}
		return &ast.And{Exprs: xs}, nil
	case *ebnf.Group:
		return c.expr(x.Body)
	case *ebnf.Option:
		body, err := c.expr(x.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Opt{Expr: body}, nil
	case *ebnf.Repetition:
		body, err := c.expr(x.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Many{Expr: body}, nil
	case *ebnf.Name:
		app := &ast.App{Rule: x.String}
		if !c.lexical && IsLexical(x.String) {
			return c.skipped(app), nil
		}
		return app, nil
	case *ebnf.Token:
		if c.lexical {
			return &ast.App{Rule: "seq", Args: []ast.Payload{ast.Lit{Value: x.String}}}, nil
		}
		return &ast.App{Rule: "token", Args: []ast.Payload{ast.Lit{Value: x.String}}}, nil
	case *ebnf.Range:
		lo, hi := x.Begin.String, x.End.String
		if utf8.RuneCountInString(lo) != 1 || utf8.RuneCountInString(hi) != 1 {
			return nil, fmt.Errorf("%s: range bounds must be single characters", x.Pos())
		}
		app := &ast.App{Rule: "range", Args: []ast.Payload{ast.Lit{Value: lo}, ast.Lit{Value: hi}}}
		if c.lexical {
			return app, nil
		}
		return c.skipped(app), nil
	case *ebnf.Bad:
		return nil, fmt.Errorf("%s: %s", x.Pos(), x.Error)
	}
	return nil, fmt.Errorf("%s: unsupported expression %T", e.Pos(), e)
}

func (c converter) all(es []ebnf.Expression) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(es))
	for _, e := range es {
		n, err := c.expr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (converter) skipped(n ast.Node) ast.Node {
	return &ast.And{Exprs: []ast.Node{&ast.App{Rule: "spaces"}, n}}
}
