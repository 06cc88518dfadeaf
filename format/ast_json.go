package format

import (
	"encoding/json"
	"io"

	"github.com/dhamidi/ometa/grammar/ast"
)

type ASTJSONEncoder struct {
	w io.Writer
}

func NewASTJSONEncoder(w io.Writer) *ASTJSONEncoder {
	return &ASTJSONEncoder{w: w}
}

func (e *ASTJSONEncoder) Encode(node ast.Node) error {
	text, err := e.MarshalText(node)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(text); err != nil {
		return err
	}
	_, err = io.WriteString(e.w, "\n")
	return err
}

func (e *ASTJSONEncoder) MarshalText(node ast.Node) ([]byte, error) {
	return json.MarshalIndent(nodeToJSON(node), "", "  ")
}

type astJSONNode struct {
	Kind     string           `json:"kind"`
	Name     string           `json:"name,omitempty"`
	Parent   string           `json:"parent,omitempty"`
	Exported bool             `json:"exported,omitempty"`
	Params   []string         `json:"params,omitempty"`
	Locals   []string         `json:"locals,omitempty"`
	Args     []astJSONPayload `json:"args,omitempty"`
	Payload  *astJSONPayload  `json:"payload,omitempty"`
	Key      *string          `json:"key,omitempty"`
	Mode     string           `json:"mode,omitempty"`
	XOr      bool             `json:"xor,omitempty"`
	Children []*astJSONNode   `json:"children,omitempty"`
}

type astJSONPayload struct {
	Kind  string `json:"kind"`
	Value any    `json:"value,omitempty"`
	Src   string `json:"src,omitempty"`
}

func payloadToJSON(p ast.Payload) astJSONPayload {
	switch x := p.(type) {
	case ast.Lit:
		return astJSONPayload{Kind: "lit", Value: x.Value}
	case ast.Host:
		return astJSONPayload{Kind: "host", Src: x.Src}
	case ast.Builtin:
		return astJSONPayload{Kind: "builtin", Src: x.Op}
	}
	return astJSONPayload{Kind: "unknown"}
}

func nodeToJSON(n ast.Node) *astJSONNode {
	jn := &astJSONNode{
		Kind: n.Kind().String(),
	}

	switch x := n.(type) {
	case *ast.Grammar:
		jn.Name = x.Name
		jn.Parent = x.Parent
		jn.Exported = x.Exported
	case *ast.Rule:
		jn.Name = x.Name
		jn.Params = x.Params
		jn.Locals = x.Locals
	case *ast.App:
		jn.Name = x.Rule
		for _, a := range x.Args {
			jn.Args = append(jn.Args, payloadToJSON(a))
		}
	case *ast.Act:
		p := payloadToJSON(x.Expr)
		jn.Payload = &p
	case *ast.Pred:
		p := payloadToJSON(x.Expr)
		jn.Payload = &p
	case *ast.Set:
		jn.Name = x.Name
	case *ast.JumpTable:
		jn.XOr = x.XOr
		for _, c := range x.Cases {
			key := c.Key
			jn.Children = append(jn.Children, &astJSONNode{
				Kind:     "Case",
				Key:      &key,
				Children: []*astJSONNode{nodeToJSON(c.Body)},
			})
		}
		return jn
	case *ast.Interleave:
		for _, p := range x.Parts {
			jn.Children = append(jn.Children, &astJSONNode{
				Kind:     "Part",
				Mode:     p.Mode.String(),
				Children: []*astJSONNode{nodeToJSON(p.Expr)},
			})
		}
		return jn
	}

	children := ast.Children(n)
	if len(children) > 0 {
		jn.Children = make([]*astJSONNode, len(children))
		for i, child := range children {
			jn.Children[i] = nodeToJSON(child)
		}
	}

	return jn
}
