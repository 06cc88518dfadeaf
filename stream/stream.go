// Package stream provides lazily expanding, memoizing input streams for the
// matching engine.
//
// A stream is a chain of immutable nodes. Every node knows its head element
// and creates its tail on first access, caching it for every later caller, so
// backtracking branches share nodes by reference. Each node also owns a memo
// table keyed by rule application.
package stream

import (
	"strings"
)

// Kind describes the shape of the collection a stream walks over.
type Kind int

const (
	KindList Kind = iota
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	default:
		return "list"
	}
}

// Node is one position of a stream.
type Node interface {
	// Head returns the element at this position. It reports false at the end
	// of the input.
	Head() (any, bool)
	// Tail returns the node of the next position, creating it on first use.
	// It reports false at the end of the input.
	Tail() (Node, bool)
	// Index is the absolute offset of this node in the underlying input.
	Index() int
	Kind() Kind
	// Memo is the memo table of this node.
	Memo() Memo

	tables() *memoTable
}

// memoTable holds the per-node mutable bookkeeping: memo entries and, when
// parameter memoization is on, the prepended nodes shared by value.
type memoTable struct {
	memo      Memo
	prepended map[any]*Prepended
}

func (t *memoTable) tables() *memoTable { return t }

// Memo returns the memo table, allocating it lazily.
func (t *memoTable) Memo() Memo {
	if t.memo == nil {
		t.memo = make(Memo)
	}
	return t.memo
}

type source struct {
	kind  Kind
	text  string
	runes []rune
	list  []any
}

func (s *source) len() int {
	if s.kind == KindText {
		return len(s.runes)
	}
	return len(s.list)
}

func (s *source) at(i int) any {
	if s.kind == KindText {
		return s.runes[i]
	}
	return s.list[i]
}

// Cell is a node over the underlying input collection. A cell whose index
// equals the input length is the end-of-stream node: its Head and Tail
// always fail.
type Cell struct {
	memoTable
	src    *source
	idx    int
	tail   *Cell
	tokens []Token
}

// FromText returns the first node of a stream over the runes of s.
func FromText(s string) *Cell {
	return &Cell{src: &source{kind: KindText, text: s, runes: []rune(s)}}
}

// FromList returns the first node of a stream over xs.
func FromList(xs []any) *Cell {
	return &Cell{src: &source{kind: KindList, list: xs}}
}

// From builds a stream over a sequenceable value: a string, a rune slice or
// a slice of values. It reports false for anything else.
func From(v any) (*Cell, bool) {
	switch xs := v.(type) {
	case string:
		return FromText(xs), true
	case []rune:
		return FromText(string(xs)), true
	case []any:
		return FromList(xs), true
	case []string:
		list := make([]any, len(xs))
		for i, x := range xs {
			list[i] = x
		}
		return FromList(list), true
	}
	return nil, false
}

// IsSequence reports whether v can be turned into a stream by From.
func IsSequence(v any) bool {
	switch v.(type) {
	case string, []rune, []any, []string:
		return true
	}
	return false
}

func (c *Cell) Head() (any, bool) {
	if c.idx >= c.src.len() {
		return nil, false
	}
	return c.src.at(c.idx), true
}

func (c *Cell) Tail() (Node, bool) {
	if c.idx >= c.src.len() {
		return nil, false
	}
	if c.tail == nil {
		c.tail = &Cell{src: c.src, idx: c.idx + 1}
	}
	return c.tail, true
}

func (c *Cell) Index() int { return c.idx }

func (c *Cell) Kind() Kind { return c.src.kind }

// AtEnd reports whether c is the end-of-stream node.
func (c *Cell) AtEnd() bool { return c.idx >= c.src.len() }

// Text returns the underlying text of a text stream.
func (c *Cell) Text() (string, bool) {
	if c.src.kind != KindText {
		return "", false
	}
	return c.src.text, true
}

// Len is the length of the underlying input.
func (c *Cell) Len() int { return c.src.len() }

// Next returns the cached tail without creating it.
func (c *Cell) Next() *Cell { return c.tail }

// Prepended is a virtual node whose head is a synthetic value placed in
// front of an existing node. Rule arguments travel this way.
type Prepended struct {
	memoTable
	head any
	tail Node
}

// Prepend returns a node with head v in front of n. When share is true and
// v is an immutable scalar, equal values prepended onto the same node yield
// the same virtual node, so memo entries recorded on it can be reused.
func Prepend(n Node, v any, share bool) Node {
	if !share {
		return &Prepended{head: v, tail: n}
	}
	key, ok := ScalarKey(v)
	if !ok {
		return &Prepended{head: v, tail: n}
	}
	t := n.tables()
	if p, ok := t.prepended[key]; ok {
		return p
	}
	if t.prepended == nil {
		t.prepended = make(map[any]*Prepended)
	}
	p := &Prepended{head: v, tail: n}
	t.prepended[key] = p
	return p
}

func (p *Prepended) Head() (any, bool) { return p.head, true }
func (p *Prepended) Tail() (Node, bool) { return p.tail, true }
func (p *Prepended) Index() int         { return p.tail.Index() }
func (p *Prepended) Kind() Kind         { return p.tail.Kind() }

// Proxy wraps a node of another stream so that a different grammar can match
// over it with its own memo tables.
type Proxy struct {
	memoTable
	target Node
	tail   *Proxy
}

// NewProxy returns a proxy view starting at target.
func NewProxy(target Node) *Proxy {
	return &Proxy{target: target}
}

func (p *Proxy) Head() (any, bool) { return p.target.Head() }

func (p *Proxy) Tail() (Node, bool) {
	if p.tail == nil {
		next, ok := p.target.Tail()
		if !ok {
			return nil, false
		}
		p.tail = &Proxy{target: next}
	}
	return p.tail, true
}

func (p *Proxy) Index() int { return p.target.Index() }
func (p *Proxy) Kind() Kind { return p.target.Kind() }

// Target returns the wrapped node.
func (p *Proxy) Target() Node { return p.target }

// Unwrap strips proxies off n and returns the node they stand for.
func Unwrap(n Node) Node {
	for {
		p, ok := n.(*Proxy)
		if !ok {
			return n
		}
		n = p.target
	}
}

// UpTo concatenates the heads from `from` until `to` is reached. Text
// streams yield a string, list streams a []any. It reports false when `to`
// is not reachable from `from`.
func UpTo(from, to Node) (any, bool) {
	var xs []any
	var sb strings.Builder
	text := from.Kind() == KindText
	for cur := from; cur != to; {
		hd, ok := cur.Head()
		if !ok {
			return nil, false
		}
		if text {
			writeElement(&sb, hd)
		} else {
			xs = append(xs, hd)
		}
		if cur, ok = cur.Tail(); !ok {
			return nil, false
		}
	}
	if text {
		return sb.String(), true
	}
	if xs == nil {
		xs = []any{}
	}
	return xs, true
}

func writeElement(sb *strings.Builder, v any) {
	switch x := v.(type) {
	case rune:
		sb.WriteRune(x)
	case string:
		sb.WriteString(x)
	}
}

// Walk calls fn for every materialized cell starting at head, without
// creating new tails.
func Walk(head *Cell, fn func(*Cell) bool) {
	for c := head; c != nil; c = c.tail {
		if !fn(c) {
			return
		}
	}
}
