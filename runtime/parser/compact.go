package parser

import (
	"github.com/aledsdavies/bloom/core/arena"
	"github.com/aledsdavies/bloom/core/invariant"
)

// compacted holds the final arrays produced by compact.
type compacted struct {
	nodes     arena.Block[Node]
	params    arena.Block[Param]
	types     arena.Block[TypeAnnotation]
	bytes     int // size of the final arrays, padding included
	reclaimed int // bytes zero-filled above them
}

// compact repacks the provisional arrays tightly at the initial marker and
// rebases every handle onto the new arrays.
//
//  1. copy the used prefixes above the provisional arrays
//  2. mark, then rewind to initial
//  3. copy the tight copies back down, now contiguous from initial
//  4. retarget every node handle from its provisional block to its final block
//  5. mark again and reclaim everything between the two marks
//
// After compact the provisional blocks are dead; handles issued against them
// no longer resolve.
func (p *parser) compact(initial arena.Marker) compacted {
	if p.config.debug > DebugOff {
		p.recordDebugEvent("enter_compact", "")
	}

	nodesCopy := arena.AllocateFromCopy(p.arena, p.nodes.Items[:p.nodeCount])
	paramsCopy := arena.AllocateFromCopy(p.arena, p.params.Items[:p.paramCount])
	typesCopy := arena.AllocateFromCopy(p.arena, p.types.Items[:p.typeCount])
	afterProvisional := p.arena.Mark()

	p.arena.Rewind(initial)

	nodes := arena.AllocateFromCopy(p.arena, nodesCopy.Items)
	params := arena.AllocateFromCopy(p.arena, paramsCopy.Items)
	types := arena.AllocateFromCopy(p.arena, typesCopy.Items)
	invariant.Invariant(p.arena.Offset() <= nodesCopy.Offset,
		"final arrays end at %d, overlapping tight copies at %d", p.arena.Offset(), nodesCopy.Offset)

	rebase := func(target blockKind, h *arena.Handle) {
		if h.IsZero() {
			return
		}
		switch target {
		case nodeBlock:
			*h = arena.Retarget(*h, p.nodes, nodes)
		case paramBlock:
			*h = arena.Retarget(*h, p.params, params)
		case typeBlock:
			*h = arena.Retarget(*h, p.types, types)
		}
	}
	for i := range nodes.Items {
		nodes.Items[i].references(rebase)
	}

	afterFinal := p.arena.Mark()
	p.arena.Reclaim(afterProvisional, afterFinal)

	p.nodes = arena.Block[Node]{}
	p.params = arena.Block[Param]{}
	p.types = arena.Block[TypeAnnotation]{}

	if p.config.debug > DebugOff {
		p.recordDebugEvent("exit_compact", "")
	}

	return compacted{
		nodes:     nodes,
		params:    params,
		types:     types,
		bytes:     afterFinal.Offset() - initial.Offset(),
		reclaimed: afterProvisional.Offset() - afterFinal.Offset(),
	}
}
