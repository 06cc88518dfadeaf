package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhamidi/ometa/grammar/ast"
)

// LineEncoder writes one tab separated line per grammar and rule:
//
//	grammar	<name>	<parent>	<flags>
//	rule	<name>	<params>	<locals>	<body>
//
// Empty lists and flags are written as "-".
type LineEncoder struct {
	w    io.Writer
	node ast.Node
}

func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{w: w}
}

func (e *LineEncoder) Encode(node ast.Node) error {
	e.node = node
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *LineEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder

	switch n := e.node.(type) {
	case *ast.Grammar:
		fmt.Fprintf(&sb, "grammar\t%s\t%s\t%s\n", n.Name, orDash(n.Parent), e.grammarFlagsStr(n))
		for _, r := range n.Rules {
			e.writeRule(&sb, r)
		}
	case *ast.Rule:
		e.writeRule(&sb, n)
	case nil:
		return nil, fmt.Errorf("no node to encode")
	default:
		fmt.Fprintf(&sb, "expr\t%s\n", Expr(n))
	}

	return []byte(sb.String()), nil
}

func (e *LineEncoder) writeRule(sb *strings.Builder, r *ast.Rule) {
	fmt.Fprintf(sb, "rule\t%s\t%s\t%s\t%s\n",
		r.Name,
		listStr(r.Params),
		listStr(r.Locals),
		Expr(r.Body),
	)
}

func (e *LineEncoder) grammarFlagsStr(g *ast.Grammar) string {
	if g.Exported {
		return "exported"
	}
	return "-"
}

func listStr(xs []string) string {
	if len(xs) == 0 {
		return "-"
	}
	return strings.Join(xs, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
