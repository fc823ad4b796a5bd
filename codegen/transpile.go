// Package codegen emits C source for a parsed bloom file.
package codegen

import (
	"fmt"
	"io"

	"github.com/aledsdavies/bloom/core/arena"
	"github.com/aledsdavies/bloom/core/invariant"
	"github.com/aledsdavies/bloom/runtime/lexer"
	"github.com/aledsdavies/bloom/runtime/parser"
)

// minScratch is the smallest output buffer worth taking from the arena.
const minScratch = 256

// UnsupportedError reports a construct that has no C rendering.
type UnsupportedError struct {
	Position  lexer.Position
	Construct string // "nested procedure", "return type"
	Name      string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: unsupported %s %q", e.Position, e.Construct, e.Name)
}

var returnTypes = map[string]string{
	"Int": "int",
}

// TranspileC writes C source for tree to w: one function per top-level
// procedure and one constant per top-level integer binding.
//
// The output is staged in the unused tail of scratch and flushed to w in
// chunks; scratch is rewound before returning. A tree with parse errors is
// rejected, as is any construct without a C rendering, before anything is
// written.
func TranspileC(w io.Writer, tree *parser.Tree, scratch *arena.Arena) error {
	invariant.NotNil(tree, "tree")
	invariant.Precondition(tree.Source != nil, "tree has no source; parse with ParseSource")

	if err := tree.Err(); err != nil {
		return fmt.Errorf("tree has parse errors: %w", err)
	}
	if err := check(tree); err != nil {
		return err
	}

	out := newScratchWriter(w, scratch)
	defer out.release()

	t := &transpiler{tree: tree, out: out}
	t.file()
	return out.flush()
}

// check finds the first construct TranspileC cannot render.
func check(tree *parser.Tree) error {
	for i, n := range tree.Nodes {
		if n.Kind != parser.NodeProcDef {
			continue
		}
		def := tree.ProcDef(parser.NodeRef(i))
		if def.Nested {
			return &UnsupportedError{Position: def.Position, Construct: "nested procedure", Name: tree.Text(def.Name)}
		}
		if def.ReturnType != nil {
			name := tree.Text(def.ReturnType.Name)
			if _, ok := returnTypes[name]; !ok {
				return &UnsupportedError{Position: def.ReturnType.Position, Construct: "return type", Name: name}
			}
		}
	}
	return nil
}

type transpiler struct {
	tree *parser.Tree
	out  *scratchWriter
}

func (t *transpiler) file() {
	t.out.WriteString("#include <stdio.h>\n\n")

	for _, ref := range t.tree.TopLevel() {
		switch t.tree.Node(ref).Kind {
		case parser.NodeProcDef:
			t.procDef(t.tree.ProcDef(ref))
		case parser.NodeVarDef:
			def := t.tree.VarDef(ref)
			fmt.Fprintf(t.out, "static const int %s = %d;\n\n", t.tree.Text(def.Name), t.tree.Node(def.Value).Int)
		}
	}
}

func (t *transpiler) procDef(def parser.ProcDef) {
	ret := "void"
	if def.ReturnType != nil {
		ret = returnTypes[t.tree.Text(def.ReturnType.Name)]
	}

	fmt.Fprintf(t.out, "%s %s(", ret, t.tree.Text(def.Name))
	for i, p := range def.Params {
		if i > 0 {
			t.out.WriteString(", ")
		}
		// Parameter types are parsed, not checked
		t.out.WriteString("int " + t.tree.Text(p.Name))
	}
	t.out.WriteString("){\n")

	for _, stmt := range def.Statements {
		t.out.WriteString("\t")
		t.statement(stmt, def.ReturnType != nil)
		t.out.WriteString("\n")
	}
	t.out.WriteString("}\n\n")
}

// statement writes one statement. A void procedure drops the value of an
// implicit return and keeps the addition as an expression statement.
func (t *transpiler) statement(ref parser.NodeRef, returns bool) {
	n := t.tree.Node(ref)
	switch n.Kind {
	case parser.NodeReturn:
		add := t.tree.BinaryAdd(n.Value)
		if !returns {
			fmt.Fprintf(t.out, "%s + %s;", t.tree.Text(add.Left), t.tree.Text(add.Right))
			break
		}
		fmt.Fprintf(t.out, "return %s + %s;", t.tree.Text(add.Left), t.tree.Text(add.Right))
	case parser.NodeBinaryAdd:
		fmt.Fprintf(t.out, "%s + %s;", t.tree.Text(n.Left), t.tree.Text(n.Right))
	case parser.NodeProcCall:
		t.procCall(t.tree.ProcCall(ref))
	case parser.NodeVarDef:
		def := t.tree.VarDef(ref)
		fmt.Fprintf(t.out, "int %s = %d;", t.tree.Text(def.Name), t.tree.Node(def.Value).Int)
	case parser.NodePass:
		t.out.WriteString(";")
	default:
		invariant.Invariant(false, "statement node %d has kind %s", ref, n.Kind)
	}
}

func (t *transpiler) procCall(call parser.ProcCall) {
	t.out.WriteString(t.tree.Text(call.Callee) + "(")
	for i, arg := range call.Args {
		if i > 0 {
			t.out.WriteString(", ")
		}
		n := t.tree.Node(arg)
		if n.Kind == parser.NodeStringLiteral {
			t.out.WriteString(cString(t.tree.Text(n.Name)))
		} else {
			t.out.WriteString(t.tree.Text(n.Name))
		}
	}
	t.out.WriteString(");")
}

// cString quotes s as a C string literal.
func cString(s string) string {
	buf := make([]byte, 0, len(s)+2)
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			buf = append(buf, '\\', c)
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			buf = append(buf, c)
		}
	}
	return string(append(buf, '"'))
}
