package arena

import "github.com/aledsdavies/bloom/core/invariant"

// Handle addresses a contiguous run of elements inside one block. It carries
// the block's generation so a reference into a block that has since been
// replaced is detected instead of read.
//
// The zero Handle refers to nothing.
type Handle struct {
	Generation uint32
	Start      int32
	Len        int32
}

// IsZero reports whether h refers to nothing.
func (h Handle) IsZero() bool {
	return h.Generation == 0
}

// Resolve returns the elements h refers to inside b.
func Resolve[T any](b Block[T], h Handle) []T {
	invariant.Precondition(h.Generation == b.Generation,
		"stale handle: generation %d, block generation %d", h.Generation, b.Generation)
	invariant.Precondition(b.Contains(h),
		"handle [%d, +%d) outside block of %d elements", h.Start, h.Len, len(b.Items))

	end := h.Start + h.Len
	return b.Items[h.Start:end:end]
}

// Retarget rebases h from one block onto another: the relative position is
// kept and the generation is switched to the target block's.
func Retarget[T any](h Handle, from, to Block[T]) Handle {
	invariant.Precondition(h.Generation == from.Generation,
		"handle generation %d was not issued by block generation %d", h.Generation, from.Generation)

	h.Generation = to.Generation

	invariant.Postcondition(to.Contains(h),
		"rebased handle [%d, +%d) outside target block of %d elements", h.Start, h.Len, len(to.Items))
	return h
}
