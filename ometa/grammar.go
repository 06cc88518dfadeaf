// Package ometa implements the matching engine: a stateful cursor over a
// stream together with the combinator primitives, the rule-application
// protocol (memoization, left recursion, delegation) and grammar registries.
//
// A Grammar is a table of named rules. A grammar may extend a parent; lookups
// check the child first and then walk the parent chain, and a "super"
// application resolves directly against the parent of the grammar the caller
// was defined in.
//
//	digits := ometa.NewGrammar("Digits", ometa.Base)
//	digits.Define("number", 0, func(m *ometa.Matcher, _ []any) (any, bool) {
//		return m.ConsumedBy(func() (any, bool) {
//			return m.Many1(func() (any, bool) { return m.Apply("digit") })
//		})
//	})
//	v, err := digits.MatchAll("123", "number")
package ometa

import (
	"fmt"
	"slices"
)

// RuleFunc is the body of a rule. args holds the values of the declared
// parameters; extra arguments have been prepended onto the input.
type RuleFunc func(m *Matcher, args []any) (any, bool)

// Rule is a named entry of a grammar.
type Rule struct {
	Name string
	// Arity is the number of arguments passed directly to Fn.
	Arity   int
	Fn      RuleFunc
	Grammar *Grammar
}

// Grammar is a registry of rules with an optional parent.
//
// A grammar is built with Define and must not be modified once matching
// with it has started; after that it is safe for concurrent use by any
// number of matchers.
type Grammar struct {
	Name   string
	Parent *Grammar
	// TokenRules are the rules whose spans are recorded when token
	// recording is requested without an explicit list, including foreign
	// invocations of this grammar.
	TokenRules []string
	// SideEffects names rules whose memo entries are never reused.
	SideEffects []string

	rules map[string]*Rule
	order []string
}

// NewGrammar returns an empty grammar delegating to parent.
func NewGrammar(name string, parent *Grammar) *Grammar {
	return &Grammar{
		Name:   name,
		Parent: parent,
		rules:  make(map[string]*Rule),
	}
}

// Define adds or replaces the rule name in g and returns g.
func (g *Grammar) Define(name string, arity int, fn RuleFunc) *Grammar {
	if _, ok := g.rules[name]; !ok {
		g.order = append(g.order, name)
	}
	g.rules[name] = &Rule{Name: name, Arity: arity, Fn: fn, Grammar: g}
	return g
}

// Lookup resolves name in g and then along the parent chain.
func (g *Grammar) Lookup(name string) (*Rule, bool) {
	for cur := g; cur != nil; cur = cur.Parent {
		if r, ok := cur.rules[name]; ok {
			return r, true
		}
	}
	return nil, false
}

// Super resolves name starting at the parent of g, bypassing g's own
// override.
func (g *Grammar) Super(name string) (*Rule, bool) {
	if g.Parent == nil {
		return nil, false
	}
	return g.Parent.Lookup(name)
}

// RuleNames returns the names of the rules defined on g in definition order.
func (g *Grammar) RuleNames() []string {
	return slices.Clone(g.order)
}

// AllRuleNames returns every rule name reachable from g, sorted.
func (g *Grammar) AllRuleNames() []string {
	seen := make(map[string]bool)
	var names []string
	for cur := g; cur != nil; cur = cur.Parent {
		for _, n := range cur.order {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	slices.Sort(names)
	return names
}

// Extends reports whether g is other or delegates to it.
func (g *Grammar) Extends(other *Grammar) bool {
	for cur := g; cur != nil; cur = cur.Parent {
		if cur == other {
			return true
		}
	}
	return false
}

func (g *Grammar) String() string {
	if g.Parent == nil {
		return g.Name
	}
	return fmt.Sprintf("%s <: %s", g.Name, g.Parent.Name)
}
