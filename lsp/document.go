package lsp

import (
	"errors"
	"sort"
	"unicode/utf16"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/dhamidi/ometa/highlight"
	"github.com/dhamidi/ometa/ometa"
)

// TokenTypes is the semantic token legend announced to clients.
var TokenTypes = []string{
	"keyword",
	"function",
	"string",
	"number",
	"variable",
	"type",
	"comment",
	"operator",
	"parameter",
	"property",
}

// DefaultStyles maps the token rules of the meta grammar to token types.
var DefaultStyles = map[string]string{
	"keyword":     "keyword",
	"ruleName":    "function",
	"seqString":   "string",
	"tokenString": "string",
	"string":      "string",
}

const fallbackType = "variable"

type document struct {
	uri     string
	version protocol.Integer
	text    string
	lines   *lineIndex
	h       *highlight.Highlighter
	result  *highlight.Result
	err     error
}

func (d *document) update(text string) {
	d.text = text
	d.lines = newLineIndex(text)
	d.result, d.err = d.h.Update(text)
}

// lineIndex converts rune offsets to LSP positions, whose characters count
// UTF-16 code units.
type lineIndex struct {
	runes []rune
	// starts holds the rune offset of the first rune of every line.
	starts []int
}

func newLineIndex(text string) *lineIndex {
	li := &lineIndex{runes: []rune(text), starts: []int{0}}
	for i, r := range li.runes {
		if r == '\n' {
			li.starts = append(li.starts, i+1)
		}
	}
	return li
}

func (li *lineIndex) position(off int) protocol.Position {
	off = min(max(off, 0), len(li.runes))
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > off }) - 1
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(utf16Len(li.runes[li.starts[line]:off])),
	}
}

func utf16Len(rs []rune) int {
	n := 0
	for _, r := range rs {
		n += utf16.RuneLen(r)
	}
	return n
}

// encodeTokens encodes disjoint single-line segments as relative semantic
// token data. Segments whose rule has no type are skipped.
func encodeTokens(li *lineIndex, segs []highlight.Range, typeOf func(rule string) (int, bool)) []protocol.UInteger {
	data := make([]protocol.UInteger, 0, 5*len(segs))
	var prevLine, prevChar protocol.UInteger
	for _, s := range segs {
		typ, ok := typeOf(s.Rule)
		if !ok {
			continue
		}
		start := li.position(s.Start)
		length := utf16Len(li.runes[s.Start:min(s.End, len(li.runes))])
		deltaChar := start.Character
		if start.Line == prevLine {
			deltaChar -= prevChar
		}
		data = append(data,
			start.Line-prevLine,
			deltaChar,
			protocol.UInteger(length),
			protocol.UInteger(typ),
			0,
		)
		prevLine, prevChar = start.Line, start.Character
	}
	return data
}

// diagnostics reports a match failure, or a hard error at the start of the
// document.
func diagnostics(li *lineIndex, res *highlight.Result, err error) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError
	source := lsName

	var merr *ometa.MatchError
	switch {
	case err != nil && !errors.As(err, &merr):
		out = append(out, protocol.Diagnostic{
			Range:    protocol.Range{Start: li.position(0), End: li.position(0)},
			Severity: &severity,
			Source:   &source,
			Message:  err.Error(),
		})
	case res != nil && res.Failure != nil:
		merr = res.Failure
		fallthrough
	case merr != nil:
		out = append(out, protocol.Diagnostic{
			Range:    protocol.Range{Start: li.position(merr.Index), End: li.position(merr.Index + 1)},
			Severity: &severity,
			Source:   &source,
			Message:  merr.Error(),
		})
	}
	return out
}
