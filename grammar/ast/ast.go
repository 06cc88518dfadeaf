// Package ast defines the tree a grammar description is parsed into.
//
// Trees are immutable once built. Rewrites produce new trees and share the
// subtrees they leave alone.
package ast

import (
	"fmt"
	"sort"
)

type Kind int

const (
	KindApp Kind = iota
	KindAct
	KindPred
	KindOr
	KindXOr
	KindAnd
	KindOpt
	KindMany
	KindMany1
	KindSet
	KindNot
	KindLookahead
	KindForm
	KindConsBy
	KindIdxConsBy
	KindJumpTable
	KindInterleave
	KindRule
	KindGrammar
)

var kindNames = [...]string{
	KindApp:        "App",
	KindAct:        "Act",
	KindPred:       "Pred",
	KindOr:         "Or",
	KindXOr:        "XOr",
	KindAnd:        "And",
	KindOpt:        "Opt",
	KindMany:       "Many",
	KindMany1:      "Many1",
	KindSet:        "Set",
	KindNot:        "Not",
	KindLookahead:  "Lookahead",
	KindForm:       "Form",
	KindConsBy:     "ConsBy",
	KindIdxConsBy:  "IdxConsBy",
	KindJumpTable:  "JumpTable",
	KindInterleave: "Interleave",
	KindRule:       "Rule",
	KindGrammar:    "Grammar",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is an expression of a rule body.
type Node interface {
	Kind() Kind
}

// Payload is an argument of an application or the body of an action or
// predicate.
type Payload interface {
	payload()
}

// Lit is a constant: a string, a number, a bool or nil.
type Lit struct {
	Value any
}

// Host is host-language source, evaluated by the code generator's host.
type Host struct {
	Src string
}

// Builtin is a primitive operation of the matcher that the optimizer
// substitutes for a rule application. The only operation is "anything".
type Builtin struct {
	Op string
}

func (Lit) payload()     {}
func (Host) payload()    {}
func (Builtin) payload() {}

// App applies Rule to Args. The rule "super" takes the name of the parent
// rule as its first argument; "foreign" takes a grammar name and a rule name.
type App struct {
	Rule string
	Args []Payload
}

type Act struct{ Expr Payload }

type Pred struct{ Expr Payload }

type Or struct{ Alts []Node }

type XOr struct{ Alts []Node }

type And struct{ Exprs []Node }

type Opt struct{ Expr Node }

type Many struct{ Expr Node }

type Many1 struct{ Expr Node }

// Set binds the value of Expr to the local Name.
type Set struct {
	Name string
	Expr Node
}

type Not struct{ Expr Node }

type Lookahead struct{ Expr Node }

type Form struct{ Expr Node }

type ConsBy struct{ Expr Node }

type IdxConsBy struct{ Expr Node }

// Case is a branch of a jump table, taken when the discriminating element
// equals Key.
type Case struct {
	Key  string
	Body Node
}

// JumpTable consumes one element and continues with the case whose key it
// equals. XOr records whether it was built from an exclusive choice.
type JumpTable struct {
	XOr   bool
	Cases []Case
}

type Mode int

const (
	One Mode = iota
	ZeroOrMore
	OneOrMore
	ZeroOrOne
)

func (m Mode) String() string {
	switch m {
	case ZeroOrMore:
		return "*"
	case OneOrMore:
		return "+"
	case ZeroOrOne:
		return "?"
	default:
		return "1"
	}
}

type Part struct {
	Mode Mode
	Expr Node
}

type Interleave struct{ Parts []Part }

// Rule is a named rule. Locals are sorted and hold every name bound in Body.
type Rule struct {
	Name   string
	Params []string
	Locals []string
	Body   Node
}

type Grammar struct {
	Exported bool
	Name     string
	Parent   string
	Rules    []*Rule
}

func (*App) Kind() Kind        { return KindApp }
func (*Act) Kind() Kind        { return KindAct }
func (*Pred) Kind() Kind       { return KindPred }
func (*Or) Kind() Kind         { return KindOr }
func (*XOr) Kind() Kind        { return KindXOr }
func (*And) Kind() Kind        { return KindAnd }
func (*Opt) Kind() Kind        { return KindOpt }
func (*Many) Kind() Kind       { return KindMany }
func (*Many1) Kind() Kind      { return KindMany1 }
func (*Set) Kind() Kind        { return KindSet }
func (*Not) Kind() Kind        { return KindNot }
func (*Lookahead) Kind() Kind  { return KindLookahead }
func (*Form) Kind() Kind       { return KindForm }
func (*ConsBy) Kind() Kind     { return KindConsBy }
func (*IdxConsBy) Kind() Kind  { return KindIdxConsBy }
func (*JumpTable) Kind() Kind  { return KindJumpTable }
func (*Interleave) Kind() Kind { return KindInterleave }
func (*Rule) Kind() Kind       { return KindRule }
func (*Grammar) Kind() Kind    { return KindGrammar }

// Rule returns the rule called name.
func (g *Grammar) Rule(name string) (*Rule, bool) {
	for _, r := range g.Rules {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Children returns the direct sub-expressions of n in order.
func Children(n Node) []Node {
	switch x := n.(type) {
	case *Or:
		return x.Alts
	case *XOr:
		return x.Alts
	case *And:
		return x.Exprs
	case *Opt:
		return []Node{x.Expr}
	case *Many:
		return []Node{x.Expr}
	case *Many1:
		return []Node{x.Expr}
	case *Set:
		return []Node{x.Expr}
	case *Not:
		return []Node{x.Expr}
	case *Lookahead:
		return []Node{x.Expr}
	case *Form:
		return []Node{x.Expr}
	case *ConsBy:
		return []Node{x.Expr}
	case *IdxConsBy:
		return []Node{x.Expr}
	case *JumpTable:
		out := make([]Node, len(x.Cases))
		for i, c := range x.Cases {
			out[i] = c.Body
		}
		return out
	case *Interleave:
		out := make([]Node, len(x.Parts))
		for i, p := range x.Parts {
			out[i] = p.Expr
		}
		return out
	case *Rule:
		return []Node{x.Body}
	case *Grammar:
		out := make([]Node, len(x.Rules))
		for i, r := range x.Rules {
			out[i] = r
		}
		return out
	}
	return nil
}

// Inspect calls fn for n and its descendants in depth-first order. When fn
// returns false the children of that node are skipped.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, fn)
	}
}

// BoundNames returns the sorted, distinct names bound by Set nodes in n.
func BoundNames(n Node) []string {
	seen := make(map[string]bool)
	Inspect(n, func(c Node) bool {
		if s, ok := c.(*Set); ok {
			seen[s.Name] = true
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExactlyString reports the string literal n matches when n is an
// application of exactly to a string.
func ExactlyString(n Node) (string, bool) {
	app, ok := n.(*App)
	if !ok || app.Rule != "exactly" || len(app.Args) != 1 {
		return "", false
	}
	lit, ok := app.Args[0].(Lit)
	if !ok {
		return "", false
	}
	s, ok := lit.Value.(string)
	return s, ok
}

// Exactly returns the application of exactly to v.
func Exactly(v any) *App {
	return &App{Rule: "exactly", Args: []Payload{Lit{Value: v}}}
}
