package stream

import (
	"testing"
)

func cellAt(t *testing.T, head *Cell, idx int) *Cell {
	t.Helper()
	var cur Node = head
	for i := 0; i < idx; i++ {
		next, ok := cur.Tail()
		if !ok {
			t.Fatalf("stream ended before index %d", idx)
		}
		cur = next
	}
	return cur.(*Cell)
}

func TestCell_TailIsCreatedOnceAndShared(t *testing.T) {
	head := FromText("ab")
	if head.Next() != nil {
		t.Fatalf("tail materialized before first access")
	}
	t1, ok := head.Tail()
	if !ok {
		t.Fatal("Tail() failed on non-empty stream")
	}
	t2, _ := head.Tail()
	if t1 != t2 {
		t.Errorf("Tail() returned different nodes: %p and %p", t1, t2)
	}
	if t1.Index() != 1 {
		t.Errorf("tail index = %d, want 1", t1.Index())
	}
}

func TestCell_EndOfStream(t *testing.T) {
	end := cellAt(t, FromText("a"), 1)
	if !end.AtEnd() {
		t.Fatalf("cell at index 1 of %q is not at end", "a")
	}
	if _, ok := end.Head(); ok {
		t.Errorf("Head() succeeded at end of input")
	}
	if _, ok := end.Tail(); ok {
		t.Errorf("Tail() succeeded at end of input")
	}
}

func TestCell_TextElementsAreRunes(t *testing.T) {
	head := FromText("héllo")
	second := cellAt(t, head, 1)
	hd, _ := second.Head()
	if hd != 'é' {
		t.Errorf("Head() = %#v, want %q", hd, 'é')
	}
	if head.Len() != 5 {
		t.Errorf("Len() = %d, want 5", head.Len())
	}
}

func TestFrom(t *testing.T) {
	tests := []struct {
		name  string
		input any
		ok    bool
		kind  Kind
	}{
		{"string", "abc", true, KindText},
		{"runes", []rune("abc"), true, KindText},
		{"list", []any{1, 2}, true, KindList},
		{"strings", []string{"a"}, true, KindList},
		{"number", 42, false, KindList},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := From(tt.input)
			if ok != tt.ok {
				t.Fatalf("From(%#v) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && c.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", c.Kind(), tt.kind)
			}
			if IsSequence(tt.input) != tt.ok {
				t.Errorf("IsSequence(%#v) = %v", tt.input, !tt.ok)
			}
		})
	}
}

func TestUpTo(t *testing.T) {
	text := FromText("abcd")
	got, ok := UpTo(text, cellAt(t, text, 3))
	if !ok || got != "abc" {
		t.Errorf("UpTo over text = %#v, %v; want \"abc\"", got, ok)
	}

	list := FromList([]any{1, "x", true})
	got, ok = UpTo(list, cellAt(t, list, 2))
	xs, isList := got.([]any)
	if !ok || !isList || len(xs) != 2 || xs[0] != 1 || xs[1] != "x" {
		t.Errorf("UpTo over list = %#v, %v; want [1 x]", got, ok)
	}

	got, ok = UpTo(list, list)
	if xs, _ := got.([]any); !ok || xs == nil || len(xs) != 0 {
		t.Errorf("empty UpTo over list = %#v, %v; want empty list", got, ok)
	}

	if _, ok := UpTo(cellAt(t, text, 2), text); ok {
		t.Errorf("UpTo succeeded for an unreachable node")
	}
}

func TestPrepend(t *testing.T) {
	head := FromText("a")
	p := Prepend(head, "x", false)
	hd, _ := p.Head()
	if hd != "x" {
		t.Errorf("Head() = %#v, want \"x\"", hd)
	}
	tl, _ := p.Tail()
	if tl != Node(head) {
		t.Errorf("Tail() of prepended node is not the original node")
	}
	if p.Index() != head.Index() {
		t.Errorf("Index() = %d, want %d", p.Index(), head.Index())
	}

	if Prepend(head, "x", false) == p {
		t.Errorf("unshared prepends returned the same node")
	}
	s1, s2 := Prepend(head, "x", true), Prepend(head, "x", true)
	if s1 != s2 {
		t.Errorf("shared prepends of equal scalars returned different nodes")
	}
	if Prepend(head, 1, true) == Prepend(head, "1", true) {
		t.Errorf("scalars of different kinds share a prepended node")
	}
	list := []any{1}
	if Prepend(head, list, true) == Prepend(head, list, true) {
		t.Errorf("non-scalar arguments share a prepended node")
	}
}

func TestProxy(t *testing.T) {
	head := FromText("ab")
	p := NewProxy(head)
	tl, ok := p.Tail()
	if !ok {
		t.Fatal("proxy Tail() failed")
	}
	if tl.Index() != 1 {
		t.Errorf("proxy tail index = %d, want 1", tl.Index())
	}
	if Unwrap(tl) != Node(cellAt(t, head, 1)) {
		t.Errorf("Unwrap did not return the underlying node")
	}
	tl.Memo()[Key{Rule: "x"}] = &Entry{}
	if len(cellAt(t, head, 1).Memo()) != 0 {
		t.Errorf("proxy shares a memo table with its target")
	}
}

func TestArgsKey(t *testing.T) {
	a, ok := ArgsKey([]any{1, "1"})
	if !ok {
		t.Fatal("ArgsKey failed for scalars")
	}
	b, _ := ArgsKey([]any{"1", 1})
	if a == b {
		t.Errorf("ArgsKey does not distinguish argument kinds: %q", a)
	}
	c, _ := ArgsKey([]any{'a'})
	d, _ := ArgsKey([]any{"a"})
	if c == d {
		t.Errorf("ArgsKey conflates rune and string: %q", c)
	}
	if _, ok := ArgsKey([]any{[]any{1}}); ok {
		t.Errorf("ArgsKey accepted a list argument")
	}
}

func TestAddToken(t *testing.T) {
	head := FromText("abc")
	two := cellAt(t, head, 2)
	AddToken(head, two, "word", nil)
	AddToken(head, two, "word", nil)
	AddToken(head, head, "word", nil)
	AddToken(NewProxy(head), two, "other", nil)

	toks := head.Tokens()
	if len(toks) != 2 {
		t.Fatalf("len(Tokens()) = %d, want 2: %#v", len(toks), toks)
	}
	if toks[0].End != 2 || toks[0].Rule != "word" {
		t.Errorf("first token = %#v", toks[0])
	}
	if toks[1].Rule != "other" {
		t.Errorf("token recorded through a proxy = %#v", toks[1])
	}
}

func TestDivergencePoint(t *testing.T) {
	tests := []struct {
		old, new string
		want     int
	}{
		{"abc", "abc", 4},
		{"abcdef", "abcxef", 2},
		{"abc def", "abc xef", 2},
		{"abc", "xbc", -1},
		{"ab", "abc", 1},
	}
	for _, tt := range tests {
		if got := DivergencePoint(tt.old, tt.new); got != tt.want {
			t.Errorf("DivergencePoint(%q, %q) = %d, want %d", tt.old, tt.new, got, tt.want)
		}
	}
}

func TestReuse(t *testing.T) {
	head := FromText("abcdef")
	c1, c3, c4 := cellAt(t, head, 1), cellAt(t, head, 3), cellAt(t, head, 4)

	head.Memo()[Key{Rule: "early"}] = &Entry{Value: "a", Next: c1, Reach: 0, Furthest: 0}
	head.Memo()[Key{Rule: "peeks"}] = &Entry{Value: "a", Next: c1, Reach: 3, Furthest: 0}
	head.Memo()[Key{Rule: "failed"}] = &Entry{Pending: true, Failed: true}
	head.Memo()[Key{Rule: "effect"}] = &Entry{Value: "a", Next: c1}
	c1.Memo()[Key{Rule: "long"}] = &Entry{Value: "bcd", Next: c4, Reach: 3, Furthest: 3}
	AddToken(head, c1, "early", nil)
	AddToken(head, c3, "long", nil)

	got, ok := Reuse(head, "abcxef", map[string]bool{"effect": true})
	if !ok {
		t.Fatal("Reuse reported nothing reusable")
	}
	if got != head {
		t.Errorf("Reuse returned a different head")
	}
	if text, _ := head.Text(); text != "abcxef" {
		t.Errorf("Text() = %q after reuse", text)
	}
	if _, kept := head.Memo()[Key{Rule: "early"}]; !kept {
		t.Errorf("entry ending before the divergence point was purged")
	}
	for _, rule := range []string{"peeks", "failed", "effect"} {
		if _, kept := head.Memo()[Key{Rule: rule}]; kept {
			t.Errorf("entry %q survived reuse", rule)
		}
	}
	if len(c1.Memo()) != 0 {
		t.Errorf("entry crossing the divergence point survived: %#v", c1.Memo())
	}
	if c1.Next() != nil {
		t.Errorf("stream was not cut at the divergence point")
	}
	if toks := head.Tokens(); len(toks) != 0 {
		t.Errorf("tokens after reuse = %#v", toks)
	}
	tl, _ := c1.Tail()
	if hd, _ := tl.Head(); hd != 'c' {
		t.Errorf("head at index 2 = %#v, want 'c'", hd)
	}
}

func TestReuse_FallsBack(t *testing.T) {
	head := FromText("abc")
	if _, ok := Reuse(head, "xbc", nil); ok {
		t.Errorf("Reuse succeeded with a divergence at the first element")
	}
	if _, ok := Reuse(head, "abd", nil); ok {
		t.Errorf("Reuse succeeded without any memo entries")
	}
	if _, ok := Reuse(FromList([]any{1}), "a", nil); ok {
		t.Errorf("Reuse succeeded on a list stream")
	}
}
