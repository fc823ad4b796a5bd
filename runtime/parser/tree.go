package parser

import (
	"github.com/aledsdavies/bloom/core/arena"
	"github.com/aledsdavies/bloom/core/invariant"
	"github.com/aledsdavies/bloom/runtime/lexer"
)

// Tree represents the result of parsing. Nodes, Params and Types live in the
// arena the tree was parsed into and stay valid for as long as that arena is
// neither rewound nor reclaimed below them.
type Tree struct {
	Source      []byte           // Original source (nil when parsed from tokens only)
	Tokens      []lexer.Token    // Tokens from lexer
	Nodes       []Node           // Compacted node array
	Params      []Param          // Compacted parameter array
	Types       []TypeAnnotation // Compacted return-type array
	Errors      *ErrorLog        // Parse errors
	Telemetry   *ParseTelemetry  // Performance metrics (nil if disabled)
	DebugEvents []DebugEvent     // Debug events (nil if disabled)

	nodes  arena.Block[Node]
	params arena.Block[Param]
	types  arena.Block[TypeAnnotation]
}

// NodeRef is the index of a node in Tree.Nodes.
type NodeRef int32

// NoNode is the parent of top-level nodes and the value of nodes without one.
const NoNode NodeRef = -1

// NodeKind represents syntax node types
type NodeKind uint8

const (
	NodeInvalid        NodeKind = iota
	NodeProcDef                 // name :: proc(params) -> Type
	NodeBinaryAdd               // left + right
	NodeIdentifier              // call argument
	NodeIntegerLiteral          // 42
	NodeStringLiteral           // "text"
	NodeProcCall                // name(args)
	NodeVarDef                  // name := value, or name :: INTEGER at top level
	NodePass                    // pass
	NodeReturn                  // synthesized for a trailing addition
)

func (k NodeKind) String() string {
	switch k {
	case NodeProcDef:
		return "ProcDef"
	case NodeBinaryAdd:
		return "BinaryAdd"
	case NodeIdentifier:
		return "Identifier"
	case NodeIntegerLiteral:
		return "IntegerLiteral"
	case NodeStringLiteral:
		return "StringLiteral"
	case NodeProcCall:
		return "ProcCall"
	case NodeVarDef:
		return "VarDef"
	case NodePass:
		return "Pass"
	case NodeReturn:
		return "Return"
	default:
		return "Invalid"
	}
}

// Node is a flat tagged record. Which fields are meaningful depends on Kind;
// the typed views on Tree give checked access.
//
// Children of a ProcDef (its body) or a ProcCall (its arguments) is the
// contiguous run of every node appended after the owner while it was being
// parsed, so it includes grandchildren. Direct children are the nodes in that
// run whose Parent is the owner.
type Node struct {
	Kind     NodeKind
	Constant bool // VarDef bound with ::
	Parent   NodeRef
	Value    NodeRef // VarDef value, Return value
	Position lexer.Position

	Name  lexer.Span // binder, callee, identifier or string contents
	Left  lexer.Span // BinaryAdd operands
	Right lexer.Span

	Params     arena.Handle // into Tree.Params
	ReturnType arena.Handle // into Tree.Types, zero when absent
	Children   arena.Handle // into Tree.Nodes

	Int int64 // IntegerLiteral value
}

// blockKind names the array a handle points into.
type blockKind uint8

const (
	nodeBlock blockKind = iota
	paramBlock
	typeBlock
)

// references calls visit for every handle field of n. Compaction rebases
// through this single visitor, so a new handle field only needs adding here.
func (n *Node) references(visit func(target blockKind, h *arena.Handle)) {
	visit(paramBlock, &n.Params)
	visit(typeBlock, &n.ReturnType)
	visit(nodeBlock, &n.Children)
}

// Param is a procedure parameter.
type Param struct {
	Name     lexer.Span
	Type     lexer.Span // parsed, not checked
	Position lexer.Position
}

// TypeAnnotation is a procedure return type.
type TypeAnnotation struct {
	Name     lexer.Span
	Position lexer.Position
}

// ProcDef is the checked view of a NodeProcDef.
type ProcDef struct {
	Ref        NodeRef
	Name       lexer.Span
	Position   lexer.Position
	Params     []Param
	ReturnType *TypeAnnotation // nil when the procedure declares none
	Statements []NodeRef       // direct children in source order
	Nested     bool            // bound with := inside another procedure
}

// ProcCall is the checked view of a NodeProcCall.
type ProcCall struct {
	Ref    NodeRef
	Callee lexer.Span
	Args   []NodeRef // NodeIdentifier or NodeStringLiteral
}

// VarDef is the checked view of a NodeVarDef.
type VarDef struct {
	Ref      NodeRef
	Name     lexer.Span
	Value    NodeRef // NodeIntegerLiteral or NodeProcDef
	Constant bool
}

// BinaryAdd is the checked view of a NodeBinaryAdd.
type BinaryAdd struct {
	Ref         NodeRef
	Left, Right lexer.Span
}

// Return is the checked view of a NodeReturn.
type Return struct {
	Ref   NodeRef
	Value NodeRef
}

// Node returns the node at ref.
func (t *Tree) Node(ref NodeRef) Node {
	t.checkRef(ref)
	return t.Nodes[ref]
}

// Text returns the source text a span covers.
func (t *Tree) Text(s lexer.Span) string {
	invariant.Precondition(t.Source != nil, "tree has no source; parse with ParseSource")
	return s.String(t.Source)
}

// TopLevel returns the nodes without a parent, in source order.
func (t *Tree) TopLevel() []NodeRef {
	var refs []NodeRef
	for i := range t.Nodes {
		if t.Nodes[i].Parent == NoNode {
			refs = append(refs, NodeRef(i))
		}
	}
	return refs
}

// Descendants returns the contiguous run of nodes owned by ref.
func (t *Tree) Descendants(ref NodeRef) []Node {
	t.checkRef(ref)
	h := t.Nodes[ref].Children
	if h.IsZero() {
		return nil
	}
	return arena.Resolve(t.nodes, h)
}

// Children returns the direct children of ref in source order.
func (t *Tree) Children(ref NodeRef) []NodeRef {
	t.checkRef(ref)
	h := t.Nodes[ref].Children
	if h.IsZero() {
		return nil
	}

	run := arena.Resolve(t.nodes, h)
	var refs []NodeRef
	for i := range run {
		if run[i].Parent == ref {
			refs = append(refs, NodeRef(int(h.Start)+i))
		}
	}
	return refs
}

// ProcDef returns the procedure definition at ref.
func (t *Tree) ProcDef(ref NodeRef) ProcDef {
	n := t.nodeOfKind(ref, NodeProcDef)

	view := ProcDef{
		Ref:        ref,
		Name:       n.Name,
		Position:   n.Position,
		Params:     arena.Resolve(t.params, n.Params),
		Statements: t.Children(ref),
		Nested:     n.Parent != NoNode,
	}
	if !n.ReturnType.IsZero() {
		view.ReturnType = &arena.Resolve(t.types, n.ReturnType)[0]
	}
	return view
}

// ProcCall returns the procedure call at ref.
func (t *Tree) ProcCall(ref NodeRef) ProcCall {
	n := t.nodeOfKind(ref, NodeProcCall)
	return ProcCall{Ref: ref, Callee: n.Name, Args: t.Children(ref)}
}

// VarDef returns the variable definition at ref.
func (t *Tree) VarDef(ref NodeRef) VarDef {
	n := t.nodeOfKind(ref, NodeVarDef)
	return VarDef{Ref: ref, Name: n.Name, Value: n.Value, Constant: n.Constant}
}

// BinaryAdd returns the addition at ref.
func (t *Tree) BinaryAdd(ref NodeRef) BinaryAdd {
	n := t.nodeOfKind(ref, NodeBinaryAdd)
	return BinaryAdd{Ref: ref, Left: n.Left, Right: n.Right}
}

// Return returns the return statement at ref.
func (t *Tree) Return(ref NodeRef) Return {
	n := t.nodeOfKind(ref, NodeReturn)
	return Return{Ref: ref, Value: n.Value}
}

// HasErrors reports whether parsing recorded any error.
func (t *Tree) HasErrors() bool {
	return t.Errors != nil && (t.Errors.Len() > 0 || t.Errors.Dropped() > 0)
}

// Err returns the recorded errors as an *ErrorList, or nil.
func (t *Tree) Err() error {
	if !t.HasErrors() {
		return nil
	}
	return &ErrorList{Errors: t.Errors.All(), Dropped: t.Errors.Dropped()}
}

func (t *Tree) nodeOfKind(ref NodeRef, kind NodeKind) *Node {
	t.checkRef(ref)
	n := &t.Nodes[ref]
	invariant.Precondition(n.Kind == kind, "node %d is %s, not %s", ref, n.Kind, kind)
	return n
}

func (t *Tree) checkRef(ref NodeRef) {
	invariant.Precondition(ref >= 0 && int(ref) < len(t.Nodes),
		"node ref %d outside tree of %d nodes", ref, len(t.Nodes))
}
