package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/ometa/grammar/ast"
	"github.com/dhamidi/ometa/grammar/syntax"
	"github.com/dhamidi/ometa/ometa"
)

const calcSource = `
ometa Calc {
  Expr = Expr:a "+" Num:b -> a+b
       | Num,
  Num  = <digit+>:d -> int(d)
}`

func compileOne(t *testing.T, src string, opts ...Option) *ometa.Grammar {
	t.Helper()
	c, err := New(opts...)
	require.NoError(t, err)
	gs, err := c.Compile(src)
	require.NoError(t, err)
	require.NotEmpty(t, gs)
	return gs[len(gs)-1]
}

func TestCompile_LeftRecursion(t *testing.T) {
	g := compileOne(t, calcSource)
	tests := []struct {
		input string
		want  any
	}{
		{"1+2+3", 6},
		{"3", 3},
		{"10+20", 30},
	}
	for _, tt := range tests {
		got, err := g.MatchAll(tt.input, "Expr")
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	_, err := g.MatchAll("+1", "Expr")
	var merr *ometa.MatchError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 0, merr.Index)
	assert.Equal(t, 1, merr.Line)
	assert.Equal(t, 1, merr.Column)
}

// corpus pairs grammar sources with the inputs they are exercised on.
var corpus = []struct {
	name   string
	src    string
	rule   string
	inputs []any
}{
	{"calc", calcSource, "Expr", []any{"1+2+3", "3", "+1", "12+", ""}},
	{
		"keywords",
		"ometa Kw { kw = ``if'' -> 'IF' | ``in'' -> 'IN' | ``else'' | letter+ }",
		"kw",
		[]any{"if", "in", "else", "elz", "x", "", "i", "9"},
	},
	{
		"characters",
		"ometa Ch { c = 'a' 'x' -> 3 | 'a' -> 1 | 'b' -> 2 | digit:d 'a' -> d | 'c' }",
		"c",
		[]any{"a", "b", "ax", "c", "1a", "1", "z", ""},
	},
	{
		"trees",
		"ometa T { exp = [#add exp:a exp:b] -> a + b | [#neg exp:a] -> -a | number }",
		"exp",
		[]any{
			[]any{[]any{"add", 1, []any{"add", 2, 3}}},
			[]any{[]any{"neg", 4}},
			[]any{[]any{"mul", 1, 2}},
			[]any{7},
		},
	},
	{
		"bindings",
		"ometa B { pair = <letter+>:k spaces '=' spaces (digit digit):v -> [k, v], start = pair:p ?(len(p) == 2) -> p }",
		"start",
		[]any{"ab = 12", "ab=1", "=12"},
	},
	{
		"super",
		"ometa Dig { digit = 'o' -> '0' | ^digit, ds = digit+:xs -> join(xs) }",
		"ds",
		[]any{"1o2", "o", "x"},
	},
}

func TestCompile_OptimizationIsSound(t *testing.T) {
	for _, tt := range corpus {
		t.Run(tt.name, func(t *testing.T) {
			plain := compileOne(t, tt.src, WithoutOptimization())
			fast := compileOne(t, tt.src)
			for _, input := range tt.inputs {
				want, wantErr := plain.MatchAll(input, tt.rule)
				got, gotErr := fast.MatchAll(input, tt.rule)
				assert.Equal(t, want, got, "%v", input)
				assert.Equal(t, wantErr, gotErr, "%v", input)
			}
		})
	}
}

func TestCompile_MemoizationIsTransparent(t *testing.T) {
	for _, tt := range corpus {
		t.Run(tt.name, func(t *testing.T) {
			g := compileOne(t, tt.src)
			for _, input := range tt.inputs {
				want, wantErr := g.MatchAll(input, tt.rule)
				m, err := g.NewMatcher(ometa.WithoutMemoization())
				require.NoError(t, err)
				got, gotErr := m.MatchAll(input, tt.rule)
				assert.Equal(t, want, got, "%v", input)
				assert.Equal(t, wantErr, gotErr, "%v", input)
			}
		})
	}
}

func TestCompile_Idempotent(t *testing.T) {
	g := compileOne(t, calcSource)
	m, err := g.NewMatcher()
	require.NoError(t, err)
	for _, input := range []string{"1+2", "1+"} {
		v1, err1 := m.MatchAll(input, "Expr")
		v2, err2 := m.MatchAll(input, "Expr")
		assert.Equal(t, v1, v2)
		assert.Equal(t, err1, err2)
	}
}

func TestCompile_CorpusResults(t *testing.T) {
	tests := []struct {
		grammar string
		input   any
		want    any
	}{
		{"keywords", "if", "IF"},
		{"keywords", "else", "else"},
		{"keywords", "elz", []any{'e', 'l', 'z'}},
		{"characters", "ax", 3},
		{"characters", "a", 1},
		{"characters", "1a", "1"},
		{"trees", []any{[]any{"add", 1, []any{"add", 2, 3}}}, 6},
		{"bindings", "ab = 12", []any{"ab", "2"}},
		{"super", "1o2", "102"},
	}
	byName := make(map[string]int)
	for i, c := range corpus {
		byName[c.name] = i
	}
	for _, tt := range tests {
		c := corpus[byName[tt.grammar]]
		g := compileOne(t, c.src)
		got, err := g.MatchAll(tt.input, c.rule)
		require.NoError(t, err, "%s %v", tt.grammar, tt.input)
		assert.Equal(t, tt.want, got, "%s %v", tt.grammar, tt.input)
	}
}

func TestCompile_Environment(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	_, err = c.Compile("ometa Num { num = <digit+>:d -> int(d) }")
	require.NoError(t, err)

	gs, err := c.Compile(`
ometa Sum <: Num { sum = sum:a "+" num:b -> a + b | num };
ometa Use { start = Sum.sum:s ";" -> s }`)
	require.NoError(t, err)
	require.Len(t, gs, 2)

	num, ok := c.Env().Lookup("Num")
	require.True(t, ok)
	assert.True(t, gs[0].Extends(num))

	got, err := gs[1].MatchAll("1+2+3;", "start")
	require.NoError(t, err)
	assert.Equal(t, 6, got)
	assert.Equal(t, []string{"Num", "OMeta", "Sum", "Use"}, c.Env().Names())
}

func TestCompile_Errors(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	_, err = c.Compile("ometa G { a = ")
	var serr *syntax.Error
	assert.ErrorAs(t, err, &serr)

	_, err = c.Compile("ometa G <: Missing { a = 'a' }")
	assert.Error(t, err)

	_, err = c.Compile("ometa G { a = -> nope }")
	assert.Error(t, err)

	g := compileOne(t, "ometa X { x = 'a' || 'a' 'b'? }")
	_, err = g.MatchAll("ab", "x")
	var xerr *ometa.XorError
	assert.True(t, errors.As(err, &xerr), "%v", err)
}

func TestCompile_CacheReusesGrammars(t *testing.T) {
	c, err := New(WithCacheSize(4))
	require.NoError(t, err)
	first, err := c.Compile(calcSource)
	require.NoError(t, err)
	second, err := c.Compile(calcSource)
	require.NoError(t, err)
	assert.Same(t, first[0], second[0])

	uncached, err := New(WithCacheSize(0))
	require.NoError(t, err)
	a := uncached.MustCompile(calcSource)
	b := uncached.MustCompile(calcSource)
	assert.NotSame(t, a[0], b[0])
}

func TestCompile_CacheRebuildsWhenParentChanges(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	c.MustCompile("ometa P { p = 'a' }")
	child := c.MustCompile("ometa C <: P { c = p }")
	c.MustCompile("ometa P { p = 'b' }")
	again := c.MustCompile("ometa C <: P { c = p }")
	assert.NotSame(t, child[0], again[0])
	_, err = again[0].MatchAll("b", "c")
	assert.NoError(t, err)
}

func TestCompile_CacheRebuildsWhenForeignGrammarChanges(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	c.MustCompile("ometa O { o = 'a' }")
	user := c.MustCompile("ometa U { u = O.o }")
	c.MustCompile("ometa O { o = 'b' }")
	again := c.MustCompile("ometa U { u = O.o }")
	assert.NotSame(t, user[0], again[0])
	_, err = again[0].MatchAll("b", "u")
	assert.NoError(t, err)
	_, err = again[0].MatchAll("a", "u")
	assert.Error(t, err)
}

func TestCompile_FailureLeavesEnvironmentUnchanged(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	first := c.MustCompile("ometa A { a = 'x' }")

	_, err = c.Compile(`
ometa A { a = 'y' };
ometa Fresh { f = 'f' };
ometa B <: Missing { b = 'b' }`)
	require.Error(t, err)

	a, ok := c.Env().Lookup("A")
	require.True(t, ok)
	assert.Same(t, first[0], a)
	_, ok = c.Env().Lookup("Fresh")
	assert.False(t, ok)
	assert.Equal(t, []string{"A", "OMeta"}, c.Env().Names())
}

func TestCompile_OverriddenExactlyDisablesJumpTables(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	trees, err := c.Translate(`ometa U { exactly :x = ^exactly(x) | ^exactly(x), u = 'a' | 'b' }`)
	require.NoError(t, err)
	ast.Inspect(trees[0], func(n ast.Node) bool {
		assert.NotEqual(t, ast.KindJumpTable, n.Kind())
		return true
	})

	trees, err = c.Translate(`ometa V { v = 'a' | 'b' }`)
	require.NoError(t, err)
	r, ok := trees[0].Rule("v")
	require.True(t, ok)
	assert.Equal(t, ast.KindJumpTable, r.Body.Kind())
}
