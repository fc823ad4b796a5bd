// Package astdump turns a parse tree into a self-contained snapshot and
// encodes it as JSON, YAML or canonical CBOR.
//
// A snapshot owns its data: text is copied out of the source and handles are
// resolved, so it stays valid after the arena it was built from is reused.
package astdump

import (
	"github.com/aledsdavies/bloom/runtime/parser"
)

// Snapshot is a flat, arena-free copy of a tree.
type Snapshot struct {
	Nodes   []Node  `json:"nodes" yaml:"nodes"`
	Errors  []Error `json:"errors,omitempty" yaml:"errors,omitempty"`
	Dropped int     `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// Node mirrors parser.Node with text resolved. Parent and Value are node
// indexes, -1 when absent.
type Node struct {
	Kind     string  `json:"kind" yaml:"kind"`
	Parent   int     `json:"parent" yaml:"parent"`
	Line     int     `json:"line" yaml:"line"`
	Column   int     `json:"column" yaml:"column"`
	Name     string  `json:"name,omitempty" yaml:"name,omitempty"`
	Left     string  `json:"left,omitempty" yaml:"left,omitempty"`
	Right    string  `json:"right,omitempty" yaml:"right,omitempty"`
	Value    int     `json:"value" yaml:"value"`
	Int      *int64  `json:"int,omitempty" yaml:"int,omitempty"`
	Constant bool    `json:"constant,omitempty" yaml:"constant,omitempty"`
	Params   []Param `json:"params,omitempty" yaml:"params,omitempty"`
	Returns  string  `json:"returns,omitempty" yaml:"returns,omitempty"`
	Children []int   `json:"children,omitempty" yaml:"children,omitempty"`
}

// Param is a procedure parameter.
type Param struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// Error is a recorded parse error.
type Error struct {
	Kind    string `json:"kind" yaml:"kind"`
	Line    int    `json:"line" yaml:"line"`
	Column  int    `json:"column" yaml:"column"`
	Message string `json:"message" yaml:"message"`
}

// Build copies tree into a snapshot. The tree must carry its source.
func Build(tree *parser.Tree) *Snapshot {
	snap := &Snapshot{Nodes: make([]Node, len(tree.Nodes))}

	for i, n := range tree.Nodes {
		ref := parser.NodeRef(i)
		out := Node{
			Kind:     n.Kind.String(),
			Parent:   int(n.Parent),
			Line:     n.Position.Line,
			Column:   n.Position.Column,
			Value:    int(n.Value),
			Constant: n.Constant,
		}

		switch n.Kind {
		case parser.NodeProcDef:
			def := tree.ProcDef(ref)
			out.Name = tree.Text(def.Name)
			for _, p := range def.Params {
				out.Params = append(out.Params, Param{Name: tree.Text(p.Name), Type: tree.Text(p.Type)})
			}
			if def.ReturnType != nil {
				out.Returns = tree.Text(def.ReturnType.Name)
			}
		case parser.NodeBinaryAdd:
			out.Left = tree.Text(n.Left)
			out.Right = tree.Text(n.Right)
		case parser.NodeIntegerLiteral:
			v := n.Int
			out.Int = &v
		case parser.NodeIdentifier, parser.NodeStringLiteral, parser.NodeProcCall, parser.NodeVarDef:
			out.Name = tree.Text(n.Name)
		}

		for _, c := range tree.Children(ref) {
			out.Children = append(out.Children, int(c))
		}
		snap.Nodes[i] = out
	}

	if tree.Errors != nil {
		for _, e := range tree.Errors.All() {
			snap.Errors = append(snap.Errors, Error{
				Kind:    e.Kind.String(),
				Line:    e.Position.Line,
				Column:  e.Position.Column,
				Message: e.Message(),
			})
		}
		snap.Dropped = tree.Errors.Dropped()
	}
	return snap
}
