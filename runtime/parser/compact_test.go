package parser

import (
	"testing"

	"github.com/aledsdavies/bloom/core/arena"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repackSource = "first :: proc(a: Int)\n" +
	"  a + a\n" +
	"limit :: 10\n" +
	"sum :: proc(a: Int, b: Int) -> Int\n" +
	"  inner := proc(x: Int, y: Int, z: Int) -> Int\n" +
	"    x + y\n" +
	"  a + b\n"

func TestRepackHandlesPointIntoFinalArrays(t *testing.T) {
	tree, _ := parseString(t, repackSource)
	require.NoError(t, tree.Err())
	require.Len(t, tree.Params, 6)
	require.Len(t, tree.Types, 2)

	procs := 0
	for i, n := range tree.Nodes {
		if n.Kind != NodeProcDef {
			continue
		}
		procs++

		assert.True(t, tree.params.Contains(n.Params), "node %d params %+v outside final params", i, n.Params)
		assert.Equal(t, tree.params.Generation, n.Params.Generation)
		assert.True(t, tree.nodes.Contains(n.Children), "node %d body outside final nodes", i)
		assert.Equal(t, int32(i+1), n.Children.Start, "body starts right after its procedure")
		if !n.ReturnType.IsZero() {
			assert.True(t, tree.types.Contains(n.ReturnType))
		}

		view := tree.ProcDef(NodeRef(i))
		if len(view.Params) > 0 {
			first := &view.Params[0]
			last := &view.Params[len(view.Params)-1]
			assert.True(t, first == &tree.Params[n.Params.Start], "params must alias the final array")
			assert.True(t, last == &tree.Params[n.Params.Start+n.Params.Len-1])
		}
	}
	assert.Equal(t, 3, procs)

	inner := tree.ProcDef(tree.VarDef(tree.ProcDef(5).Statements[0]).Value)
	assert.Equal(t, []string{"x", "y", "z"}, []string{
		tree.Text(inner.Params[0].Name), tree.Text(inner.Params[1].Name), tree.Text(inner.Params[2].Name),
	})
}

func TestRepackIsTight(t *testing.T) {
	tree, a := parseString(t, repackSource)

	assert.Equal(t, tree.types.End(), a.Offset(), "types are the last allocation")
	assert.LessOrEqual(t, tree.nodes.End(), tree.params.Offset)
	assert.LessOrEqual(t, tree.params.End(), tree.types.Offset)
	assert.Equal(t, len(tree.Nodes), cap(tree.Nodes))

	for i, b := range a.Bytes()[a.Offset():] {
		if b != 0 {
			t.Fatalf("byte %d above the offset not reclaimed", a.Offset()+i)
		}
	}
}

func TestErrorLogSurvivesRepack(t *testing.T) {
	tree, _ := parseString(t, "bad :: proc(a Int)\nok :: proc(b: Int)\n  pass\n")

	require.Equal(t, 1, tree.Errors.Len())
	assert.LessOrEqual(t, tree.Errors.entries.End(), tree.nodes.Offset)
	assert.Equal(t, 15, tree.Errors.At(0).Position.Column)
	require.Len(t, tree.Params, 1)
	assert.Equal(t, "b", tree.Text(tree.Params[0].Name))
}

func TestStaleHandlePanics(t *testing.T) {
	tree, _ := parseString(t, "sum :: proc(a: Int, b: Int) -> Int\n  a + b")

	stale := tree.Nodes[0].Params
	stale.Generation--
	assert.Panics(t, func() { arena.Resolve(tree.params, stale) })

	assert.NotPanics(t, func() { arena.Resolve(tree.params, tree.Nodes[0].Params) })
}

func TestRequiredArenaSizeFits(t *testing.T) {
	inputs := []string{
		"",
		"x",
		repackSource,
		"f :: proc(a: Int, b: Int, c: Int, d: Int, e: Int)\n  g(a, b, c, d, e)\n",
	}
	for _, input := range inputs {
		a := arena.New(RequiredArenaSize(len(input), WithErrorCapacity(64)))
		assert.NotPanics(t, func() {
			_, err := ParseString(input, a, WithErrorCapacity(64))
			assert.NoError(t, err)
		}, "input %q", input)
	}
}
