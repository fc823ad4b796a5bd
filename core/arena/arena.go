// Package arena implements a fixed-budget bump allocator.
//
// An Arena owns one contiguous byte region and hands out monotonically
// increasing blocks from it. Nothing is freed individually: memory comes back
// by shrinking the most recent block, rewinding to a Marker, or reclaiming the
// range between two markers.
//
// Blocks are typed views (Block[T]) over the region. Element types must be
// pointer-free, since the garbage collector does not scan arena bytes; text is
// referenced by offsets into its owning buffer instead of by pointer.
//
// Running out of space is fatal: the arena size is a deployment budget, so
// Allocate panics with *ExhaustedError rather than growing.
package arena

import (
	"fmt"
	"unsafe"

	"github.com/aledsdavies/bloom/core/invariant"
	"github.com/google/uuid"
)

// wordSize is the alignment guaranteed for the start of the region.
const wordSize = 8

// Arena is a single-owner bump allocator. It is not safe for concurrent use.
type Arena struct {
	id         uuid.UUID
	data       []byte
	offset     int
	generation uint32 // sequence number of the last allocation, never reused
}

// Marker is a snapshot of an arena offset.
type Marker struct {
	arena  uuid.UUID
	offset int
}

// Offset returns the arena offset captured by the marker.
func (m Marker) Offset() int {
	return m.offset
}

// Stats describes arena usage.
type Stats struct {
	Capacity    int
	InUse       int
	Remaining   int
	Allocations uint32
}

// ExhaustedError is the panic value raised when an allocation does not fit.
type ExhaustedError struct {
	Arena     uuid.UUID
	Requested int // bytes, including alignment padding
	Remaining int
	Capacity  int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("arena %s exhausted: requested %d bytes with %d of %d remaining",
		e.Arena, e.Requested, e.Remaining, e.Capacity)
}

// New creates an arena with size bytes of backing memory.
func New(size int) *Arena {
	invariant.Precondition(size >= 0, "arena size must be non-negative, got %d", size)

	// Back the region with words so every block offset that is a multiple of
	// an element's alignment is also aligned in memory.
	var data []byte
	if size > 0 {
		words := make([]uint64, (size+wordSize-1)/wordSize)
		data = unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
	}

	return &Arena{id: uuid.New(), data: data}
}

// ID returns the identity stamped into markers taken from this arena.
func (a *Arena) ID() uuid.UUID {
	return a.id
}

// Len returns the total size of the region in bytes.
func (a *Arena) Len() int {
	return len(a.data)
}

// Offset returns the current allocation offset.
func (a *Arena) Offset() int {
	return a.offset
}

// Remaining returns the number of bytes not yet handed out.
func (a *Arena) Remaining() int {
	return len(a.data) - a.offset
}

// Bytes returns the whole region. Callers must treat it as read-only.
func (a *Arena) Bytes() []byte {
	return a.data
}

// Stats returns a usage snapshot.
func (a *Arena) Stats() Stats {
	return Stats{
		Capacity:    len(a.data),
		InUse:       a.offset,
		Remaining:   a.Remaining(),
		Allocations: a.generation,
	}
}

// Mark captures the current offset.
func (a *Arena) Mark() Marker {
	return Marker{arena: a.id, offset: a.offset}
}

// Since returns the number of bytes allocated after m was taken. The result
// is negative if the arena has been rewound below m.
func (a *Arena) Since(m Marker) int {
	a.checkMarker(m)
	return a.offset - m.offset
}

// Rewind moves the offset back to m. The bytes above m are left as they are;
// blocks allocated after m must not be used afterwards.
func (a *Arena) Rewind(m Marker) {
	a.checkMarker(m)
	invariant.Precondition(m.offset <= a.offset,
		"cannot rewind forward from offset %d to %d", a.offset, m.offset)

	a.offset = m.offset
}

// Reclaim zero-fills the bytes between two markers and folds the offset down
// so it does not exceed newer. The older marker is the one with the larger
// offset: it is taken after the discarded region was allocated, newer is
// taken once the live data has been re-homed below it.
//
// Nothing live may sit above older when Reclaim is called.
func (a *Arena) Reclaim(older, newer Marker) {
	a.checkMarker(older)
	a.checkMarker(newer)
	invariant.Precondition(older.offset >= newer.offset,
		"reclaim requires older offset %d >= newer offset %d", older.offset, newer.offset)
	invariant.Precondition(a.offset <= older.offset,
		"reclaim would drop live data between offsets %d and %d", older.offset, a.offset)

	clear(a.data[newer.offset:older.offset])
	a.offset = min(a.offset, newer.offset)

	invariant.Postcondition(a.offset >= 0 && a.offset <= len(a.data),
		"offset %d outside [0, %d]", a.offset, len(a.data))
}

func (a *Arena) checkMarker(m Marker) {
	invariant.Precondition(m.arena == a.id,
		"marker belongs to arena %s, not %s", m.arena, a.id)
}

// reserve bumps the offset for count elements of the given layout and returns
// the aligned start offset.
func (a *Arena) reserve(size, align, count int) int {
	invariant.Precondition(count >= 0, "allocation count must be non-negative, got %d", count)

	start := alignUp(a.offset, align)
	required := size * count
	if start > len(a.data) || required > len(a.data)-start {
		panic(&ExhaustedError{
			Arena:     a.id,
			Requested: start - a.offset + required,
			Remaining: a.Remaining(),
			Capacity:  len(a.data),
		})
	}

	a.offset = start + required
	a.generation++

	invariant.Postcondition(a.offset <= len(a.data),
		"offset %d beyond capacity %d", a.offset, len(a.data))
	return start
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}
