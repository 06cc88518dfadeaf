package syntax

import (
	"errors"
	"fmt"

	"github.com/dhamidi/ometa/grammar/ast"
	"github.com/dhamidi/ometa/ometa"
)

// Error reports a syntax error in a grammar source.
type Error struct {
	Index  int
	Line   int
	Column int
	// Near is the source text starting at the error position.
	Near string
	Err  *ometa.MatchError
}

const nearLength = 20

func (e *Error) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("syntax error at line %d, column %d: unexpected end of input", e.Line, e.Column)
	}
	return fmt.Sprintf("syntax error at line %d, column %d near %q", e.Line, e.Column, e.Near)
}

func (e *Error) Unwrap() error { return e.Err }

// Parse parses a source holding exactly one grammar.
func Parse(src string) (*ast.Grammar, error) {
	gs, err := ParseAll(src)
	if err != nil {
		return nil, err
	}
	if len(gs) != 1 {
		return nil, fmt.Errorf("expected one grammar, found %d", len(gs))
	}
	return gs[0], nil
}

// ParseAll parses a source holding one or more grammars, optionally
// separated by semicolons.
func ParseAll(src string) ([]*ast.Grammar, error) {
	v, err := Grammar.MatchAll(src, "topLevel")
	if err != nil {
		return nil, wrap(src, err)
	}
	xs := v.([]any)
	out := make([]*ast.Grammar, len(xs))
	for i, x := range xs {
		out[i] = x.(*ast.Grammar)
	}
	return out, nil
}

// ParseExpr parses a single rule body expression.
func ParseExpr(src string) (ast.Node, error) {
	m, err := Grammar.NewMatcher()
	if err != nil {
		return nil, err
	}
	v, err := m.MatchAll(src, "exprFile")
	if err != nil {
		return nil, wrap(src, err)
	}
	return v.(ast.Node), nil
}

func wrap(src string, err error) error {
	var merr *ometa.MatchError
	if !errors.As(err, &merr) {
		return err
	}
	rs := []rune(src)
	near := ""
	if merr.Index < len(rs) {
		end := min(merr.Index+nearLength, len(rs))
		near = string(rs[merr.Index:end])
	}
	return &Error{Index: merr.Index, Line: merr.Line, Column: merr.Column, Near: near, Err: merr}
}
