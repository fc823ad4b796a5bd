package diag

import (
	"fmt"
	"strings"

	"github.com/aledsdavies/bloom/runtime/parser"
)

// Outline writes tree as an indented node listing, one node per line.
func (r *Renderer) Outline(tree *parser.Tree) {
	var walk func(ref parser.NodeRef, depth int)
	walk = func(ref parser.NodeRef, depth int) {
		n := tree.Node(ref)
		fmt.Fprintf(r.w, "%s%s%s %s\n", strings.Repeat("  ", depth),
			r.location.Render(n.Kind.String()), describe(tree, ref), r.muted.Render("("+n.Position.String()+")"))

		switch n.Kind {
		case parser.NodeVarDef, parser.NodeReturn:
			walk(n.Value, depth+1)
		default:
			for _, child := range tree.Children(ref) {
				walk(child, depth+1)
			}
		}
	}

	for _, ref := range tree.TopLevel() {
		walk(ref, 0)
	}
}

// describe returns the text after the node kind, with a leading space.
func describe(tree *parser.Tree, ref parser.NodeRef) string {
	n := tree.Node(ref)
	switch n.Kind {
	case parser.NodeProcDef:
		def := tree.ProcDef(ref)
		var b strings.Builder
		b.WriteString(" " + tree.Text(def.Name) + "(")
		for i, p := range def.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(tree.Text(p.Name) + ": " + tree.Text(p.Type))
		}
		b.WriteString(")")
		if def.ReturnType != nil {
			b.WriteString(" -> " + tree.Text(def.ReturnType.Name))
		}
		return b.String()
	case parser.NodeVarDef:
		binder := ":="
		if n.Constant {
			binder = "::"
		}
		return " " + tree.Text(n.Name) + " " + binder
	case parser.NodeBinaryAdd:
		return " " + tree.Text(n.Left) + " + " + tree.Text(n.Right)
	case parser.NodeIntegerLiteral:
		return fmt.Sprintf(" %d", n.Int)
	case parser.NodeStringLiteral:
		return fmt.Sprintf(" %q", tree.Text(n.Name))
	case parser.NodeProcCall, parser.NodeIdentifier:
		return " " + tree.Text(n.Name)
	default:
		return ""
	}
}
