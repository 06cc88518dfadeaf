package format

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/dhamidi/ometa/grammar/ast"
	"github.com/dhamidi/ometa/grammar/syntax"
	"github.com/dhamidi/ometa/ometa"
)

// GrammarPrinter writes grammar trees back as meta syntax. Parsing the output
// yields a tree that matches the same input as the printed one. Comments are
// not part of the tree and are lost.
type GrammarPrinter struct {
	w         io.Writer
	indentStr string
	maxColumn int
}

func NewGrammarPrinter(w io.Writer) *GrammarPrinter {
	return &GrammarPrinter{
		w:         w,
		indentStr: "  ",
		maxColumn: 80,
	}
}

// PrettyPrint parses every grammar in source and prints it again.
func PrettyPrint(source []byte) ([]byte, error) {
	gs, err := syntax.ParseAll(string(source))
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	p := NewGrammarPrinter(&sb)
	if err := p.Print(gs...); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// Print writes gs separated by blank lines.
func (p *GrammarPrinter) Print(gs ...*ast.Grammar) error {
	var sb strings.Builder
	for i, g := range gs {
		if i > 0 {
			sb.WriteString("\n")
		}
		p.writeGrammar(&sb, g)
	}
	_, err := io.WriteString(p.w, sb.String())
	return err
}

// Encode writes a grammar or rule as source and any other node as a single
// expression line.
func (p *GrammarPrinter) Encode(node ast.Node) error {
	var sb strings.Builder
	switch n := node.(type) {
	case *ast.Grammar:
		p.writeGrammar(&sb, n)
	case *ast.Rule:
		p.writeRule(&sb, n, "")
		sb.WriteString("\n")
	default:
		sb.WriteString(Expr(n))
		sb.WriteString("\n")
	}
	_, err := io.WriteString(p.w, sb.String())
	return err
}

func (p *GrammarPrinter) writeGrammar(sb *strings.Builder, g *ast.Grammar) {
	if g.Exported {
		sb.WriteString("export ")
	}
	sb.WriteString("ometa ")
	sb.WriteString(g.Name)
	if g.Parent != "" && g.Parent != ometa.Base.Name {
		sb.WriteString(" <: ")
		sb.WriteString(g.Parent)
	}
	sb.WriteString(" {\n")
	for i, r := range g.Rules {
		p.writeRule(sb, r, p.indentStr)
		if i < len(g.Rules)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
}

// writeRule writes every alternative of the rule body as its own part.
func (p *GrammarPrinter) writeRule(sb *strings.Builder, r *ast.Rule, indent string) {
	parts := []ast.Node{r.Body}
	if or, ok := r.Body.(*ast.Or); ok && len(or.Alts) > 0 {
		parts = or.Alts
	}
	for i, part := range parts {
		if i > 0 {
			sb.WriteString(",\n")
		}
		head := indent + ruleName(r.Name)
		if i == 0 {
			for _, param := range r.Params {
				head += " :" + param
			}
		}
		head += " ="
		body := Expr(part)
		sb.WriteString(head)
		if body == "" {
			continue
		}
		if len(head)+1+len(body) > p.maxColumn {
			if alts, sep, ok := choiceAlts(part); ok {
				p.writeWrapped(sb, indent, alts, sep)
				continue
			}
		}
		sb.WriteString(" ")
		sb.WriteString(body)
	}
}

func (p *GrammarPrinter) writeWrapped(sb *strings.Builder, indent string, alts []ast.Node, sep string) {
	for i, alt := range alts {
		sb.WriteString("\n")
		sb.WriteString(indent + p.indentStr + p.indentStr)
		if i > 0 {
			sb.WriteString(sep + " ")
		} else {
			sb.WriteString(strings.Repeat(" ", len(sep)+1))
		}
		writeChoiceAlt(sb, alt)
	}
}

func choiceAlts(n ast.Node) ([]ast.Node, string, bool) {
	switch x := n.(type) {
	case *ast.Or:
		return x.Alts, "|", len(x.Alts) > 1
	case *ast.XOr:
		return x.Alts, "||", len(x.Alts) > 1
	}
	return nil, "", false
}

// Expr returns the meta syntax of n on one line.
func Expr(n ast.Node) string {
	var sb strings.Builder
	writeChoice(&sb, n)
	return sb.String()
}

func writeChoice(sb *strings.Builder, n ast.Node) {
	alts, sep, ok := choiceAlts(n)
	if !ok {
		switch x := n.(type) {
		case *ast.Or:
			if len(x.Alts) == 1 {
				writeChoice(sb, x.Alts[0])
				return
			}
			sb.WriteString("~()")
			return
		case *ast.XOr:
			if len(x.Alts) == 1 {
				writeChoice(sb, x.Alts[0])
				return
			}
			sb.WriteString("~()")
			return
		}
		writeAlt(sb, n)
		return
	}
	for i, alt := range alts {
		if i > 0 {
			sb.WriteString(" " + sep + " ")
		}
		writeChoiceAlt(sb, alt)
	}
}

// writeChoiceAlt brackets an empty sequence, which a choice only accepts
// in that form.
func writeChoiceAlt(sb *strings.Builder, n ast.Node) {
	if and, ok := n.(*ast.And); ok && len(and.Exprs) == 0 {
		sb.WriteString("()")
		return
	}
	writeAlt(sb, n)
}

func writeAlt(sb *strings.Builder, n ast.Node) {
	switch x := n.(type) {
	case *ast.Interleave:
		for i, part := range x.Parts {
			if i > 0 {
				sb.WriteString(" && ")
			}
			if part.Mode == ast.One {
				sb.WriteString("(")
				writeSeq(sb, part.Expr)
				sb.WriteString(")")
				continue
			}
			writePrefix(sb, part.Expr)
			sb.WriteString(part.Mode.String())
		}
	case *ast.Or, *ast.XOr:
		writeAtom(sb, n)
	default:
		writeSeq(sb, n)
	}
}

// writeSeq writes the elements of a sequence. A trailing action is written
// with an arrow.
func writeSeq(sb *strings.Builder, n ast.Node) {
	xs := []ast.Node{n}
	if and, ok := n.(*ast.And); ok {
		xs = and.Exprs
	}
	for i, x := range xs {
		if i > 0 {
			sb.WriteString(" ")
		}
		if act, ok := x.(*ast.Act); ok && i == len(xs)-1 && !isBuiltin(act) {
			sb.WriteString("-> ")
			sb.WriteString(payload(act.Expr))
			continue
		}
		writeItem(sb, x)
	}
}

func writeItem(sb *strings.Builder, n ast.Node) {
	switch x := n.(type) {
	case *ast.Set:
		if app, ok := x.Expr.(*ast.App); ok && app.Rule == "anything" && len(app.Args) == 0 {
			sb.WriteString(":" + x.Name)
			return
		}
		if act, ok := x.Expr.(*ast.Act); ok && !isBuiltin(act) {
			writeSemAction(sb, act)
		} else {
			writeTerm(sb, x.Expr)
		}
		sb.WriteString(":" + x.Name)
	case *ast.Pred:
		sb.WriteString("?")
		sb.WriteString(payload(x.Expr))
	case *ast.Act:
		if isBuiltin(x) {
			writeTerm(sb, n)
			return
		}
		writeSemAction(sb, x)
	default:
		writeTerm(sb, n)
	}
}

func writeSemAction(sb *strings.Builder, act *ast.Act) {
	if h, ok := act.Expr.(ast.Host); ok && strings.HasPrefix(h.Src, "{") {
		sb.WriteString(h.Src)
		return
	}
	sb.WriteString("!")
	sb.WriteString(payload(act.Expr))
}

func writeTerm(sb *strings.Builder, n ast.Node) {
	switch x := n.(type) {
	case *ast.Many:
		writePrefix(sb, x.Expr)
		sb.WriteString("*")
	case *ast.Many1:
		writePrefix(sb, x.Expr)
		sb.WriteString("+")
	case *ast.Opt:
		writePrefix(sb, x.Expr)
		sb.WriteString("?")
	default:
		writePrefix(sb, n)
	}
}

func writePrefix(sb *strings.Builder, n ast.Node) {
	switch x := n.(type) {
	case *ast.Not:
		sb.WriteString("~")
		writePrefix(sb, x.Expr)
	case *ast.Lookahead:
		sb.WriteString("&")
		writeAtom(sb, x.Expr)
	default:
		writeAtom(sb, n)
	}
}

func writeAtom(sb *strings.Builder, n ast.Node) {
	switch x := n.(type) {
	case *ast.App:
		writeApp(sb, x)
	case *ast.Form:
		sb.WriteString("[")
		writeChoice(sb, x.Expr)
		sb.WriteString("]")
	case *ast.ConsBy:
		sb.WriteString("<")
		writeChoice(sb, x.Expr)
		sb.WriteString(">")
	case *ast.IdxConsBy:
		sb.WriteString("@<")
		writeChoice(sb, x.Expr)
		sb.WriteString(">")
	case *ast.Act:
		if b, ok := x.Expr.(ast.Builtin); ok {
			sb.WriteString(b.Op)
			return
		}
		sb.WriteString("(")
		writeChoice(sb, n)
		sb.WriteString(")")
	case *ast.JumpTable:
		writeJumpTable(sb, x)
	case *ast.And:
		sb.WriteString("(")
		writeSeq(sb, x)
		sb.WriteString(")")
	default:
		sb.WriteString("(")
		writeChoice(sb, n)
		sb.WriteString(")")
	}
}

// writeJumpTable writes a table as the choice it was built from.
func writeJumpTable(sb *strings.Builder, jt *ast.JumpTable) {
	sep := " | "
	if jt.XOr {
		sep = " || "
	}
	sb.WriteString("(")
	for i, c := range jt.Cases {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(quote(c.Key, '\''))
		if act, ok := c.Body.(*ast.Act); ok {
			if lit, ok := act.Expr.(ast.Lit); ok && lit.Value == c.Key {
				continue
			}
		}
		sb.WriteString(" ")
		writeSeq(sb, c.Body)
	}
	sb.WriteString(")")
}

func writeApp(sb *strings.Builder, app *ast.App) {
	if len(app.Args) == 1 {
		if lit, ok := app.Args[0].(ast.Lit); ok {
			s, isString := lit.Value.(string)
			switch {
			case app.Rule == "exactly" && isString:
				sb.WriteString(quote(s, '\''))
				return
			case app.Rule == "exactly":
				switch v := lit.Value.(type) {
				case nil, bool, int:
					sb.WriteString(literal(v))
					return
				}
			case app.Rule == "seq" && isString:
				q := quote(s, '\'')
				sb.WriteString("``")
				sb.WriteString(q[1 : len(q)-1])
				sb.WriteString("''")
				return
			case app.Rule == "token" && isString:
				sb.WriteString(quote(s, '"'))
				return
			}
		}
	}
	args := app.Args
	switch {
	case app.Rule == "super" && len(args) > 0 && isStringLit(args[0]):
		sb.WriteString("^")
		sb.WriteString(args[0].(ast.Lit).Value.(string))
		args = args[1:]
	case app.Rule == "foreign" && len(args) > 1 && isStringLit(args[0]) && isStringLit(args[1]):
		sb.WriteString(args[0].(ast.Lit).Value.(string))
		sb.WriteString(".")
		sb.WriteString(args[1].(ast.Lit).Value.(string))
		args = args[2:]
	default:
		sb.WriteString(app.Rule)
	}
	if len(args) == 0 {
		return
	}
	sb.WriteString("(")
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(payload(a))
	}
	sb.WriteString(")")
}

func isStringLit(p ast.Payload) bool {
	lit, ok := p.(ast.Lit)
	if !ok {
		return false
	}
	_, ok = lit.Value.(string)
	return ok
}

func isBuiltin(act *ast.Act) bool {
	_, ok := act.Expr.(ast.Builtin)
	return ok
}

func payload(p ast.Payload) string {
	switch x := p.(type) {
	case ast.Lit:
		return literal(x.Value)
	case ast.Host:
		return x.Src
	case ast.Builtin:
		return x.Op
	}
	return fmt.Sprint(p)
}

// literal writes v as a host expression.
func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case string:
		return quote(x, '\'')
	}
	return fmt.Sprint(v)
}

// quote delimits s by q, escaping q, backslashes and control characters.
func quote(s string, q rune) string {
	var sb strings.Builder
	sb.WriteRune(q)
	for _, r := range s {
		switch {
		case r == q || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteRune(q)
	return sb.String()
}

func ruleName(name string) string {
	for i, r := range name {
		if r == '$' || r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return quote(name, '\'')
	}
	if name == "" {
		return "''"
	}
	return name
}
