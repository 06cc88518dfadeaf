package format

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/ometa/grammar/ast"
	"github.com/dhamidi/ometa/grammar/syntax"
)

func TestASTJSONEncoder(t *testing.T) {
	x, err := syntax.ParseExpr("a:x -> 1")
	require.NoError(t, err)

	text, err := NewASTJSONEncoder(nil).MarshalText(x)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "And",
		"children": [
			{"kind": "Set", "name": "x", "children": [{"kind": "App", "name": "a"}]},
			{"kind": "Act", "payload": {"kind": "lit", "value": 1}}
		]
	}`, string(text))
}

func TestASTJSONEncoder_TablesAndParts(t *testing.T) {
	n := &ast.And{Exprs: []ast.Node{
		&ast.JumpTable{XOr: true, Cases: []ast.Case{{Key: "", Body: &ast.Act{Expr: ast.Builtin{Op: "anything"}}}}},
		&ast.Interleave{Parts: []ast.Part{{Mode: ast.OneOrMore, Expr: &ast.App{Rule: "d", Args: []ast.Payload{ast.Host{Src: "y"}}}}}},
	}}
	var buf bytes.Buffer
	require.NoError(t, NewASTJSONEncoder(&buf).Encode(n))
	assert.JSONEq(t, `{
		"kind": "And",
		"children": [
			{"kind": "JumpTable", "xor": true, "children": [
				{"kind": "Case", "key": "", "children": [
					{"kind": "Act", "payload": {"kind": "builtin", "src": "anything"}}
				]}
			]},
			{"kind": "Interleave", "children": [
				{"kind": "Part", "mode": "+", "children": [
					{"kind": "App", "name": "d", "args": [{"kind": "host", "src": "y"}]}
				]}
			]}
		]
	}`, buf.String())
}

func TestASTJSONEncoder_Grammar(t *testing.T) {
	g, err := syntax.Parse("export ometa G <: P { r :a = :b -> b }")
	require.NoError(t, err)
	text, err := NewASTJSONEncoder(nil).MarshalText(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "Grammar", "name": "G", "parent": "P", "exported": true,
		"children": [
			{"kind": "Rule", "name": "r", "params": ["a"], "locals": ["b"], "children": [
				{"kind": "Or", "children": [
					{"kind": "And", "children": [
						{"kind": "Set", "name": "b", "children": [{"kind": "App", "name": "anything"}]},
						{"kind": "Act", "payload": {"kind": "host", "src": "b"}}
					]}
				]}
			]}
		]
	}`, string(text))
}

func TestLineEncoder(t *testing.T) {
	g, err := syntax.Parse("ometa G <: P { r :a = :b -> b, s = r | 'x' }")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewLineEncoder(&buf).Encode(g))
	assert.Equal(t,
		"grammar\tG\tP\t-\n"+
			"rule\tr\ta\tb\t:b -> b\n"+
			"rule\ts\t-\t-\tr | 'x'\n",
		buf.String())

	buf.Reset()
	require.NoError(t, NewLineEncoder(&buf).Encode(&ast.Many{Expr: &ast.App{Rule: "x"}}))
	assert.Equal(t, "expr\tx*\n", buf.String())

	_, err = NewLineEncoder(&buf).MarshalText()
	assert.Error(t, err)
}
