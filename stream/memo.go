package stream

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a rule application in a memo table. Args is empty for
// plain applications and holds the encoded scalar arguments otherwise.
type Key struct {
	Rule string
	Args string
}

// Entry is a memo record. A pending entry marks an application that is in
// progress or has failed; a completed one holds the value and the node the
// application finished at.
type Entry struct {
	Value   any
	Next    Node
	Pending bool
	// Failed marks a pending entry whose application has finished without a
	// match.
	Failed bool
	// Recursed is set when the application was attempted again at the same
	// node while still pending.
	Recursed bool
	// Reach is the furthest index whose head was examined while computing
	// the entry, including failed reads at the end of input.
	Reach int
	// Furthest is the furthest index whose head was read successfully.
	Furthest int
	// Spans are the token spans recorded while computing the entry. They are
	// replayed when the entry is reused.
	Spans []Span
}

// Memo maps rule applications to their records.
type Memo map[Key]*Entry

// Token is a span recorded for a tracked rule, attached to the node the
// application started at.
type Token struct {
	End  int
	Rule string
	Args []any
}

// Span is a token span that has not been attached to its start node yet.
type Span struct {
	Start, End Node
	Rule       string
	Args       []any
}

// AddToken records a token span from start to end for rule. Proxies are
// unwrapped so the span lands on the underlying stream. Empty spans and
// duplicates are ignored.
func AddToken(start, end Node, rule string, args []any) {
	s, ok := Unwrap(start).(*Cell)
	if !ok {
		return
	}
	e := Unwrap(end)
	if e.Index() == s.idx {
		return
	}
	for _, t := range s.tokens {
		if t.End == e.Index() && t.Rule == rule {
			return
		}
	}
	s.tokens = append(s.tokens, Token{End: e.Index(), Rule: rule, Args: args})
}

// Tokens returns the spans recorded on c.
func (c *Cell) Tokens() []Token { return c.tokens }

// ScalarKey returns a comparable key for immutable scalar values. Values of
// different kinds never share a key, even when they print the same.
func ScalarKey(v any) (any, bool) {
	switch v.(type) {
	case nil, bool, string, rune, int, int64, float64, uint8:
		return v, true
	}
	return nil, false
}

// ArgsKey encodes a list of scalar arguments for a memo Key. It reports
// false when an argument is not a scalar and so has no stable identity.
func ArgsKey(args []any) (string, bool) {
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteByte('|')
		}
		switch x := a.(type) {
		case nil:
			sb.WriteString("nil")
		case bool:
			sb.WriteString("B" + strconv.FormatBool(x))
		case string:
			sb.WriteString("S" + strconv.Quote(x))
		case rune:
			sb.WriteString("R" + strconv.QuoteRune(x))
		case int:
			sb.WriteString("N" + strconv.Itoa(x))
		case int64:
			sb.WriteString("N" + strconv.FormatInt(x, 10))
		case float64:
			sb.WriteString("F" + strconv.FormatFloat(x, 'g', -1, 64))
		case uint8:
			sb.WriteString(fmt.Sprintf("U%d", x))
		default:
			return "", false
		}
	}
	return sb.String(), true
}
