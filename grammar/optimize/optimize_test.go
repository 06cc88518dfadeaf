package optimize_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/ometa/grammar/ast"
	"github.com/dhamidi/ometa/grammar/codegen"
	"github.com/dhamidi/ometa/grammar/optimize"
	"github.com/dhamidi/ometa/hostexpr"
	"github.com/dhamidi/ometa/ometa"
)

func app(rule string, args ...ast.Payload) *ast.App { return &ast.App{Rule: rule, Args: args} }

func and(xs ...ast.Node) *ast.And { return &ast.And{Exprs: xs} }

func or(xs ...ast.Node) *ast.Or { return &ast.Or{Alts: xs} }

func act(v any) *ast.Act { return &ast.Act{Expr: ast.Lit{Value: v}} }

func exactly(s string) *ast.App { return ast.Exactly(s) }

func TestPasses(t *testing.T) {
	tests := []struct {
		name   string
		pass   optimize.Pass
		in     ast.Node
		want   ast.Node
		helped bool
	}{
		{
			name:   "seq inlined",
			pass:   optimize.SeqInliner,
			in:     app("seq", ast.Lit{Value: "ab"}),
			want:   and(exactly("a"), exactly("b"), act("ab")),
			helped: true,
		},
		{
			name: "seq over a host value kept",
			pass: optimize.SeqInliner,
			in:   app("seq", ast.Host{Src: "x"}),
			want: app("seq", ast.Host{Src: "x"}),
		},
		{
			name:   "nested sequences flattened",
			pass:   optimize.Associative,
			in:     and(app("a"), and(app("b"), and(app("c"))), app("d")),
			want:   and(app("a"), app("b"), app("c"), app("d")),
			helped: true,
		},
		{
			name:   "single alternative unwrapped",
			pass:   optimize.Associative,
			in:     or(and(app("a"))),
			want:   app("a"),
			helped: true,
		},
		{
			name: "different kinds kept apart",
			pass: optimize.Associative,
			in:   or(and(app("a"), app("b")), &ast.XOr{Alts: []ast.Node{app("c"), app("d")}}),
			want: or(and(app("a"), app("b")), &ast.XOr{Alts: []ast.Node{app("c"), app("d")}}),
		},
		{
			name: "trailing empty sequence kept",
			pass: optimize.Associative,
			in:   and(app("a"), and()),
			want: and(app("a"), and()),
		},
		{
			name:   "set pushed to last element",
			pass:   optimize.PushDownSet,
			in:     &ast.Set{Name: "x", Expr: and(app("a"), app("b"))},
			want:   and(app("a"), &ast.Set{Name: "x", Expr: app("b")}),
			helped: true,
		},
		{
			name:   "anything inlined",
			pass:   optimize.AnythingInliner,
			in:     &ast.Many{Expr: app("anything")},
			want:   &ast.Many{Expr: &ast.Act{Expr: ast.Builtin{Op: "anything"}}},
			helped: true,
		},
		{
			name: "jump table groups literal alternatives",
			pass: optimize.JumpTables,
			in: or(
				and(exactly("b"), app("x")),
				exactly("a"),
				and(exactly("b"), app("y")),
				app("z"),
				exactly("c"),
			),
			want: or(
				&ast.JumpTable{Cases: []ast.Case{
					{Key: "a", Body: act("a")},
					{Key: "b", Body: or(and(app("x")), and(app("y")))},
				}},
				app("z"),
				&ast.JumpTable{Cases: []ast.Case{{Key: "c", Body: act("c")}}},
			),
			helped: true,
		},
		{
			name: "exclusive jump table",
			pass: optimize.JumpTables,
			in:   &ast.XOr{Alts: []ast.Node{exactly("a"), and(exactly("a"), app("x"))}},
			want: &ast.XOr{Alts: []ast.Node{&ast.JumpTable{XOr: true, Cases: []ast.Case{
				{Key: "a", Body: &ast.XOr{Alts: []ast.Node{act("a"), and(app("x"))}}},
			}}}},
			helped: true,
		},
		{
			name: "unrecognized nodes untouched",
			pass: optimize.JumpTables,
			in:   or(app("a"), &ast.Act{Expr: ast.Host{Src: "1"}}),
			want: or(app("a"), &ast.Act{Expr: ast.Host{Src: "1"}}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, helped := tt.pass.Apply(tt.in)
			assert.Equal(t, tt.helped, helped)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("%s mismatch (-want +got):\n%s", tt.pass.Name, diff)
			}
			if !tt.helped {
				assert.Same(t, tt.in, got)
			}
		})
	}
}

func TestRule_RunsToFixpoint(t *testing.T) {
	r := &ast.Rule{Name: "kw", Body: or(
		and(app("seq", ast.Lit{Value: "if"})),
		and(app("seq", ast.Lit{Value: "in"})),
	)}
	var trace []string
	got := optimize.Rule(r, optimize.WithTrace(func(rule, pass string) {
		trace = append(trace, rule+":"+pass)
	}))
	want := &ast.Rule{Name: "kw", Body: &ast.JumpTable{Cases: []ast.Case{
		{Key: "i", Body: &ast.JumpTable{Cases: []ast.Case{
			{Key: "f", Body: act("if")},
			{Key: "n", Body: act("in")},
		}}},
	}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rule mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "kw:seq-inliner", trace[0])
	assert.Contains(t, trace, "kw:jump-tables")

	plain := optimize.Rule(r, optimize.WithoutJumpTables())
	ast.Inspect(plain.Body, func(n ast.Node) bool {
		assert.NotEqual(t, ast.KindJumpTable, n.Kind())
		return true
	})
}

func TestRule_UnchangedRuleIsShared(t *testing.T) {
	r := &ast.Rule{Name: "r", Body: and(app("a"), app("b"))}
	assert.Same(t, r, optimize.Rule(r))
}

func generate(t *testing.T, g *ast.Grammar) *ometa.Grammar {
	t.Helper()
	out, err := codegen.Generate(g, codegen.WithHost(hostexpr.Language{}))
	require.NoError(t, err)
	return out
}

func TestJumpTable_MatchesSameCharacters(t *testing.T) {
	alts := make([]ast.Node, 0, 10)
	for _, c := range "0123456789" {
		alts = append(alts, exactly(string(c)))
	}
	source := &ast.Grammar{Name: "Digits", Rules: []*ast.Rule{{Name: "d", Body: or(alts...)}}}
	optimized := optimize.Grammar(source)

	var hasTable bool
	ast.Inspect(optimized, func(n ast.Node) bool {
		hasTable = hasTable || n.Kind() == ast.KindJumpTable
		return true
	})
	require.True(t, hasTable)

	plain, fast := generate(t, source), generate(t, optimized)
	for r := rune(0); r < 128; r++ {
		want, wantErr := plain.MatchAll(string(r), "d")
		got, gotErr := fast.MatchAll(string(r), "d")
		if strings.ContainsRune("0123456789", r) {
			require.NoError(t, wantErr)
			require.NoError(t, gotErr)
			assert.Equal(t, want, got, "%q", r)
			continue
		}
		assert.Error(t, wantErr, "%q", r)
		assert.Error(t, gotErr, "%q", r)
	}
}
