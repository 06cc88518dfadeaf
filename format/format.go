// Package format writes grammar trees as meta syntax source, as JSON and as
// tab separated lines.
package format

import (
	"fmt"
	"io"

	"github.com/dhamidi/ometa/grammar/ast"
)

// Encoder writes a grammar tree in one output format.
type Encoder interface {
	Encode(node ast.Node) error
}

// Formats lists the names accepted by NewEncoder.
var Formats = []string{"ometa", "json", "line"}

// NewEncoder returns the encoder called name writing to w.
func NewEncoder(name string, w io.Writer) (Encoder, error) {
	switch name {
	case "ometa":
		return NewGrammarPrinter(w), nil
	case "json":
		return NewASTJSONEncoder(w), nil
	case "line":
		return NewLineEncoder(w), nil
	}
	return nil, fmt.Errorf("unknown format: %s", name)
}
