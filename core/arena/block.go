package arena

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/aledsdavies/bloom/core/invariant"
)

// Block is a typed view of one allocation.
type Block[T any] struct {
	Items      []T
	Offset     int    // arena offset of the first element
	Generation uint32 // allocation sequence number, unique within the arena
}

// Len returns the number of elements in the block.
func (b Block[T]) Len() int {
	return len(b.Items)
}

// Size returns the number of bytes covered by the block.
func (b Block[T]) Size() int {
	var zero T
	return len(b.Items) * int(unsafe.Sizeof(zero))
}

// End returns the arena offset just past the block.
func (b Block[T]) End() int {
	return b.Offset + b.Size()
}

// Handle returns a reference to Items[start : start+n].
func (b Block[T]) Handle(start, n int) Handle {
	invariant.Precondition(start >= 0 && n >= 0 && start+n <= len(b.Items),
		"handle [%d, +%d) outside block of %d elements", start, n, len(b.Items))

	return Handle{Generation: b.Generation, Start: int32(start), Len: int32(n)}
}

// Contains reports whether h was issued for this block and lies inside it.
func (b Block[T]) Contains(h Handle) bool {
	return h.Generation == b.Generation &&
		h.Start >= 0 && h.Len >= 0 &&
		int(h.Start)+int(h.Len) <= len(b.Items)
}

// Allocate hands out a zeroed block of count elements of T.
func Allocate[T any](a *Arena, count int) Block[T] {
	b := allocate[T](a, count)
	clear(b.Items)
	return b
}

// AllocateFromCopy allocates a block sized to src and copies src into it.
func AllocateFromCopy[T any](a *Arena, src []T) Block[T] {
	b := allocate[T](a, len(src))
	copy(b.Items, src)
	return b
}

// Shrink reduces b to count elements and returns the freed tail to the arena.
// Only the most recent allocation may be shrunk.
func Shrink[T any](a *Arena, b *Block[T], count int) {
	invariant.NotNil(a, "arena")
	invariant.NotNil(b, "block")
	invariant.Precondition(count >= 0 && count <= len(b.Items),
		"shrink to %d elements outside [0, %d]", count, len(b.Items))
	invariant.Precondition(b.End() == a.offset,
		"only the most recent allocation can be shrunk (block ends at %d, arena offset %d)",
		b.End(), a.offset)

	freed := b.Size()
	b.Items = b.Items[:count:count]
	a.offset -= freed - b.Size()

	invariant.Postcondition(b.End() == a.offset, "shrunk block must end at the arena offset")
}

func allocate[T any](a *Arena, count int) Block[T] {
	invariant.NotNil(a, "arena")

	var zero T
	size, align := int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero))
	checkPointerFree(reflect.TypeFor[T]())

	start := a.reserve(size, align, count)

	var items []T
	if count == 0 || size == 0 {
		items = make([]T, count)
	} else {
		items = unsafe.Slice((*T)(unsafe.Pointer(&a.data[start])), count)
	}

	return Block[T]{Items: items, Offset: start, Generation: a.generation}
}

var pointerFreeCache sync.Map // reflect.Type -> bool

func checkPointerFree(t reflect.Type) {
	ok, cached := pointerFreeCache.Load(t)
	if !cached {
		ok = !hasPointers(t)
		pointerFreeCache.Store(t, ok)
	}
	invariant.Precondition(ok.(bool), "arena element type %s must not contain pointers", t)
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
