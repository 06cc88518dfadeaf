package ometa

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/ometa/stream"
)

// calc is  expr = expr:a '+' num:b -> a+b | num,  num = digit:d -> d.
func calc() *Grammar {
	g := NewGrammar("Calc", Base)
	g.Define("expr", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				a, ok := m.Apply("expr")
				if !ok {
					return nil, false
				}
				if _, ok := m.Exactly('+'); !ok {
					return nil, false
				}
				b, ok := m.Apply("num")
				if !ok {
					return nil, false
				}
				return a.(int) + b.(int), true
			},
			func() (any, bool) { return m.Apply("num") },
		)
	})
	g.Define("num", 0, func(m *Matcher, _ []any) (any, bool) {
		v, ok := m.Apply("digit")
		if !ok {
			return nil, false
		}
		r, _ := AsChar(v)
		return int(r - '0'), true
	})
	g.Define("all", 0, func(m *Matcher, _ []any) (any, bool) {
		v, ok := m.Apply("expr")
		if !ok {
			return nil, false
		}
		if _, ok := m.Apply("end"); !ok {
			return nil, false
		}
		return v, true
	})
	return g
}

func TestMatchAll_LeftRecursion(t *testing.T) {
	g := calc()
	tests := []struct {
		input string
		want  int
	}{
		{"1+2+3", 6},
		{"3", 3},
		{"1+2+3+4", 10},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := g.MatchAll(tt.input, "expr")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchAll_FailurePosition(t *testing.T) {
	_, err := calc().MatchAll("+1", "expr")
	var merr *MatchError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 0, merr.Index)
	assert.Equal(t, 1, merr.Line)
	assert.Equal(t, 1, merr.Column)
	assert.True(t, IsMatchFailure(err))
}

func TestMatchAll_WithoutMemoizationAgrees(t *testing.T) {
	g := calc()
	for _, input := range []string{"1+2+3", "3", "+1", "1+", "9+9+9+9"} {
		memoized, err1 := g.MatchAll(input, "expr")
		m, err := g.NewMatcher(WithoutMemoization())
		require.NoError(t, err)
		plain, err2 := m.MatchAll(input, "expr")
		assert.Equal(t, memoized, plain, input)
		assert.Equal(t, err1, err2, input)
	}
}

func TestMatchAll_Idempotent(t *testing.T) {
	m, err := calc().NewMatcher()
	require.NoError(t, err)
	for _, input := range []string{"1+2", "+"} {
		v1, err1 := m.MatchAll(input, "expr")
		v2, err2 := m.MatchAll(input, "expr")
		assert.Equal(t, v1, v2)
		assert.Equal(t, err1, err2)
	}
}

func TestOr_PrefersFirstSuccess(t *testing.T) {
	g := NewGrammar("Choice", Base)
	g.Define("start", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return "first", true },
			func() (any, bool) { return "second", true },
		)
	})
	got, err := g.MatchAll("", "start")
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}

func xorGrammar() *Grammar {
	g := NewGrammar("Xor", Base)
	g.Define("start", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.XOr(
			func() (any, bool) { return m.Apply("letter") },
			func() (any, bool) { return m.Exactly('a') },
			func() (any, bool) { return m.Apply("digit") },
		)
	})
	return g
}

func TestXOr(t *testing.T) {
	g := xorGrammar()

	got, err := g.MatchAll("b", "start")
	require.NoError(t, err)
	assert.Equal(t, 'b', got)

	_, err = g.MatchAll("a", "start")
	var xerr *XorError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "start", xerr.Rule)
	assert.False(t, IsMatchFailure(err))

	m, err := g.NewMatcher(WithoutXORs())
	require.NoError(t, err)
	got, err = m.MatchAll("a", "start")
	require.NoError(t, err)
	assert.Equal(t, 'a', got)
}

func TestXOr_ErrorIsNotRecoveredByChoice(t *testing.T) {
	g := NewGrammar("Outer", xorGrammar())
	g.Define("outer", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) { return m.Apply("start") },
			func() (any, bool) { return "fallback", true },
		)
	})
	_, err := g.MatchAll("a", "outer")
	var xerr *XorError
	assert.ErrorAs(t, err, &xerr)
}

func TestConsumedBy(t *testing.T) {
	g := NewGrammar("Span", Base)
	letters := func(m *Matcher) Pattern {
		return func() (any, bool) {
			return m.Many(func() (any, bool) { return m.Apply("letter") })
		}
	}
	g.Define("text", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.ConsumedBy(letters(m))
	})
	g.Define("span", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.IdxConsumedBy(letters(m))
	})

	got, err := g.MatchAll("abc", "text")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	got, err = g.MatchAll("abc", "span")
	require.NoError(t, err)
	assert.Equal(t, IndexSpan{From: 0, To: 3}, got)
}

func TestCombinators(t *testing.T) {
	g := NewGrammar("Combinators", Base)
	g.Define("notDigit", 0, func(m *Matcher, _ []any) (any, bool) {
		if _, ok := m.Not(func() (any, bool) { return m.Apply("digit") }); !ok {
			return nil, false
		}
		return m.Apply("anything")
	})
	g.Define("peek", 0, func(m *Matcher, _ []any) (any, bool) {
		v, ok := m.Lookahead(func() (any, bool) { return m.Apply("letter") })
		if !ok {
			return nil, false
		}
		return []any{v, m.Pos()}, true
	})
	g.Define("maybe", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Opt(func() (any, bool) { return m.Apply("digit") })
	})
	g.Define("digits", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Many1(func() (any, bool) { return m.Apply("digit") })
	})
	g.Define("many1Restores", 0, func(m *Matcher, _ []any) (any, bool) {
		if _, ok := m.Many1(func() (any, bool) {
			if _, ok := m.Exactly('a'); !ok {
				return nil, false
			}
			return m.Exactly('b')
		}); ok {
			return nil, false
		}
		return m.Pos(), true
	})

	tests := []struct {
		name    string
		rule    string
		input   string
		want    any
		wantErr bool
	}{
		{"not succeeds", "notDigit", "a", 'a', false},
		{"not fails", "notDigit", "1", nil, true},
		{"lookahead restores", "peek", "ab", []any{'a', 0}, false},
		{"opt default", "maybe", "x", nil, false},
		{"opt value", "maybe", "7", '7', false},
		{"many1", "digits", "123x", []any{'1', '2', '3'}, false},
		{"many1 needs one", "digits", "x", nil, true},
		{"many1 restores on failure", "many1Restores", "ax", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.MatchAll(tt.input, tt.rule)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMany_StopsWithoutProgress(t *testing.T) {
	g := NewGrammar("Loop", Base)
	g.Define("start", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Many(func() (any, bool) { return m.Apply("empty") })
	})
	got, err := g.MatchAll("abc", "start")
	require.NoError(t, err)
	assert.Equal(t, []any{true}, got)
}

func TestForm(t *testing.T) {
	g := NewGrammar("Tree", Base)
	g.Define("pair", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Form(func() (any, bool) {
			if _, ok := m.Apply("number"); !ok {
				return nil, false
			}
			return m.Apply("number")
		})
	})

	got, err := g.Match([]any{1, 2}, "pair")
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, got)

	_, err = g.Match([]any{1, 2, 3}, "pair")
	assert.Error(t, err)

	_, err = g.Match(7, "pair")
	assert.Error(t, err)
}

func TestInterleave(t *testing.T) {
	g := NewGrammar("Interleave", Base)
	g.Define("start", 0, func(m *Matcher, _ []any) (any, bool) {
		v, ok := m.Interleave(
			Part{Mode: ExactlyOne, Pattern: func() (any, bool) { return m.Exactly('a') }},
			Part{Mode: ZeroOrMore, Pattern: func() (any, bool) { return m.Exactly('b') }},
			Part{Mode: ZeroOrOne, Pattern: func() (any, bool) { return m.Exactly('c') }},
		)
		if !ok {
			return nil, false
		}
		if _, ok := m.Apply("end"); !ok {
			return nil, false
		}
		return v, true
	})

	got, err := g.MatchAll("bab", "start")
	require.NoError(t, err)
	assert.Equal(t, []any{'a', []any{'b', 'b'}, nil}, got)

	got, err = g.MatchAll("cab", "start")
	require.NoError(t, err)
	assert.Equal(t, []any{'a', []any{'b'}, 'c'}, got)

	_, err = g.MatchAll("bb", "start")
	assert.Error(t, err)

	_, err = g.MatchAll("aa", "start")
	assert.Error(t, err)
}

func TestSuperApply(t *testing.T) {
	parent := calc()
	child := NewGrammar("Child", parent)
	child.Define("digit", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				if _, ok := m.Exactly('x'); !ok {
					return nil, false
				}
				return '0', true
			},
			func() (any, bool) { return m.SuperApply(child, "digit") },
		)
	})

	got, err := child.MatchAll("x+4", "expr")
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	_, err = parent.MatchAll("x+4", "expr")
	assert.Error(t, err)
}

func TestForeign(t *testing.T) {
	digits := calc()
	outer := NewGrammar("Outer", Base)
	outer.Define("two", 0, func(m *Matcher, _ []any) (any, bool) {
		a, ok := m.Foreign(digits, "num")
		if !ok {
			return nil, false
		}
		if _, ok := m.Apply("space"); !ok {
			return nil, false
		}
		b, ok := m.ApplyWithArgs("foreign", digits, "num")
		if !ok {
			return nil, false
		}
		if _, ok := m.Apply("end"); !ok {
			return nil, false
		}
		return []any{a, b}, true
	})

	got, err := outer.MatchAll("1 2", "two")
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, got)

	_, err = outer.MatchAll("1 x", "two")
	var merr *MatchError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 2, merr.Index)
}

func TestWithState_SharedWithForeign(t *testing.T) {
	inner := NewGrammar("Inner", Base)
	inner.Define("read", 0, func(m *Matcher, _ []any) (any, bool) { return m.State(), true })
	outer := NewGrammar("Outer", Base)
	outer.Define("start", 0, func(m *Matcher, _ []any) (any, bool) { return m.Foreign(inner, "read") })

	m, err := outer.NewMatcher(WithState("shared"))
	require.NoError(t, err)
	got, err := m.MatchAll("", "start")
	require.NoError(t, err)
	assert.Equal(t, "shared", got)

	got, err = outer.MatchAll("", "start")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestApply_UnknownRule(t *testing.T) {
	g := calc()
	g.Define("start", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Apply("exprr")
	})
	_, err := g.MatchAll("1", "start")
	var uerr *UnknownRuleError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "exprr", uerr.Rule)
	assert.Contains(t, uerr.Hints, "expr")
	assert.Contains(t, err.Error(), "did you mean")
}

func TestApplyWithArgs_PrependsExtraArguments(t *testing.T) {
	g := NewGrammar("Args", Base)
	g.Define("pair", 0, func(m *Matcher, _ []any) (any, bool) {
		a, _ := m.Apply("anything")
		b, _ := m.Apply("anything")
		return []any{a, b, m.Pos()}, true
	})
	g.Define("start", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.ApplyWithArgs("pair", "x", "y")
	})
	got, err := g.MatchAll("abc", "start")
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y", 0}, got)
}

func TestWithMemoizedParameters(t *testing.T) {
	calls := 0
	g := NewGrammar("Params", Base)
	g.Define("lit", 1, func(m *Matcher, args []any) (any, bool) {
		calls++
		return m.Exactly(args[0])
	})
	g.Define("start", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				if _, ok := m.ApplyWithArgs("lit", 'a'); !ok {
					return nil, false
				}
				return m.Exactly('x')
			},
			func() (any, bool) { return m.ApplyWithArgs("lit", 'a') },
		)
	})

	_, err := g.MatchAll("a", "start")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	m, err := g.NewMatcher(WithMemoizedParameters())
	require.NoError(t, err)
	got, err := m.MatchAll("a", "start")
	require.NoError(t, err)
	assert.Equal(t, 'a', got)
	assert.Equal(t, 1, calls)
}

func TestWithTokens(t *testing.T) {
	g := calc()
	m, err := g.NewMatcher(WithTokens("num", "expr"))
	require.NoError(t, err)
	_, err = m.MatchAll("1+2", "expr")
	require.NoError(t, err)

	toks := m.Head().Tokens()
	var ends []int
	for _, tok := range toks {
		if tok.Rule == "num" {
			ends = append(ends, tok.End)
		}
	}
	assert.Equal(t, []int{1}, ends)

	assert.ErrorIs(t, m.EnableTokens(), ErrConfig)
}

func TestWithTokens_NotSuppressesRecording(t *testing.T) {
	g := calc()
	g.Define("start", 0, func(m *Matcher, _ []any) (any, bool) {
		if _, ok := m.Not(func() (any, bool) { return m.Apply("letter") }); !ok {
			return nil, false
		}
		if _, ok := m.Not(func() (any, bool) {
			if _, ok := m.Apply("num"); !ok {
				return nil, false
			}
			return m.Apply("num")
		}); !ok {
			return nil, false
		}
		return m.Apply("letterOrDigit")
	})
	m, err := g.NewMatcher(WithTokens("num", "letterOrDigit"))
	require.NoError(t, err)
	_, err = m.MatchAll("5", "start")
	require.NoError(t, err)
	toks := m.Head().Tokens()
	require.Len(t, toks, 1)
	assert.Equal(t, "letterOrDigit", toks[0].Rule)
}

func TestWithBranchTracking(t *testing.T) {
	g := calc()
	m, err := g.NewMatcher(WithBranchTracking("num"))
	require.NoError(t, err)
	_, err = m.MatchAll("1+2", "expr")
	require.NoError(t, err)
	branches := m.Branches()
	assert.Contains(t, branches[0], "num")
	assert.Contains(t, branches[2], "num")
	assert.NotContains(t, branches[0], "expr")
	assert.ErrorIs(t, m.EnableBranchTracking("num"), ErrConfig)
}

func TestWithMemoReuse_MatchesFreshParse(t *testing.T) {
	g := calc()
	m, err := g.NewMatcher(WithMemoReuse())
	require.NoError(t, err)

	edits := []string{"1+2+3+4", "1+2+3+5", "1+2+3+5+6", "1+2", "7", "7+1"}
	for _, input := range edits {
		got, err := m.MatchAll(input, "expr")
		fresh, freshErr := g.MatchAll(input, "expr")
		assert.Equal(t, fresh, got, input)
		assert.Equal(t, freshErr, err, input)
	}
	assert.ErrorIs(t, m.EnableMemoReuse(), ErrConfig)
}

func tokenSpans(m *Matcher) []string {
	var out []string
	stream.Walk(m.Head(), func(c *stream.Cell) bool {
		for _, tok := range c.Tokens() {
			out = append(out, fmt.Sprintf("%d-%d:%s", c.Index(), tok.End, tok.Rule))
		}
		return true
	})
	sort.Strings(out)
	return out
}

func TestWithMemoReuse_TokensMatchFreshParse(t *testing.T) {
	// s = first "aaz" | second "aay",  first = 'a',  second = 'a'
	g := NewGrammar("Alt", Base)
	lit := func(m *Matcher, s string) (any, bool) {
		for _, r := range s {
			if _, ok := m.Exactly(r); !ok {
				return nil, false
			}
		}
		return s, true
	}
	g.Define("first", 0, func(m *Matcher, _ []any) (any, bool) { return m.Exactly('a') })
	g.Define("second", 0, func(m *Matcher, _ []any) (any, bool) { return m.Exactly('a') })
	g.Define("s", 0, func(m *Matcher, _ []any) (any, bool) {
		return m.Or(
			func() (any, bool) {
				if _, ok := m.Apply("first"); !ok {
					return nil, false
				}
				return lit(m, "aaz")
			},
			func() (any, bool) {
				if _, ok := m.Apply("second"); !ok {
					return nil, false
				}
				return lit(m, "aay")
			},
		)
	})

	tests := []struct {
		grammar *Grammar
		rule    string
		tokens  []string
		edits   []string
	}{
		{g, "s", []string{"first", "second"}, []string{"aaay", "aaaz", "aaay"}},
		{calc(), "expr", []string{"digit", "num"}, []string{"1+2+3+4", "1+2+3+5", "1+2+3+5+6", "1+2"}},
	}
	for _, tt := range tests {
		m, err := tt.grammar.NewMatcher(WithTokens(tt.tokens...), WithMemoReuse())
		require.NoError(t, err)
		for _, input := range tt.edits {
			fresh, err := tt.grammar.NewMatcher(WithTokens(tt.tokens...))
			require.NoError(t, err)
			_, err = m.MatchAll(input, tt.rule)
			require.NoError(t, err, input)
			_, err = fresh.MatchAll(input, tt.rule)
			require.NoError(t, err, input)
			assert.Equal(t, tokenSpans(fresh), tokenSpans(m), input)
		}
	}
}

func TestWithTokens_ReplayedAfterNegation(t *testing.T) {
	// start = ~(num letter) num: num is first computed inside the negation,
	// then taken from the memo table.
	g := calc()
	g.Define("start", 0, func(m *Matcher, _ []any) (any, bool) {
		if _, ok := m.Not(func() (any, bool) {
			if _, ok := m.Apply("num"); !ok {
				return nil, false
			}
			return m.Apply("letter")
		}); !ok {
			return nil, false
		}
		return m.Apply("num")
	})
	m, err := g.NewMatcher(WithTokens("digit"))
	require.NoError(t, err)
	_, err = m.MatchAll("5", "start")
	require.NoError(t, err)
	assert.Equal(t, []string{"0-1:digit"}, tokenSpans(m))
}

func TestWithFailureHandler(t *testing.T) {
	m, err := calc().NewMatcher(WithFailureHandler(func(_ *Matcher, merr *MatchError) (any, error) {
		return merr.Index, nil
	}))
	require.NoError(t, err)
	got, err := m.MatchAll("1+x", "all")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestMatchAll_RejectsNonSequence(t *testing.T) {
	_, err := calc().MatchAll(42, "expr")
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestLineColumn(t *testing.T) {
	tests := []struct {
		text      string
		idx       int
		line, col int
	}{
		{"abc", 0, 1, 1},
		{"abc", 2, 1, 3},
		{"ab\ncd", 3, 2, 1},
		{"ab\ncd", 4, 2, 2},
	}
	for _, tt := range tests {
		line, col := lineColumn(tt.text, tt.idx)
		if line != tt.line || col != tt.col {
			t.Errorf("lineColumn(%q, %d) = %d:%d, want %d:%d", tt.text, tt.idx, line, col, tt.line, tt.col)
		}
	}
}
