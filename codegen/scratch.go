package codegen

import (
	"io"

	"github.com/aledsdavies/bloom/core/arena"
)

// scratchWriter buffers output in arena memory and flushes it to w whenever
// the buffer fills. The first write error sticks.
type scratchWriter struct {
	w      io.Writer
	a      *arena.Arena
	marker arena.Marker
	buf    []byte
	n      int
	err    error
}

// newScratchWriter takes the remaining space of a as its buffer, or a heap
// buffer when less than minScratch bytes are left.
func newScratchWriter(w io.Writer, a *arena.Arena) *scratchWriter {
	sw := &scratchWriter{w: w, a: a, marker: a.Mark()}
	if a.Remaining() >= minScratch {
		sw.buf = arena.Allocate[byte](a, a.Remaining()).Items
	} else {
		sw.buf = make([]byte, minScratch)
	}
	return sw
}

func (sw *scratchWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 && sw.err == nil {
		if sw.n == len(sw.buf) {
			sw.flush()
			continue
		}
		c := copy(sw.buf[sw.n:], p)
		sw.n += c
		written += c
		p = p[c:]
	}
	return written, sw.err
}

func (sw *scratchWriter) WriteString(s string) {
	for len(s) > 0 && sw.err == nil {
		if sw.n == len(sw.buf) {
			sw.flush()
			continue
		}
		c := copy(sw.buf[sw.n:], s)
		sw.n += c
		s = s[c:]
	}
}

func (sw *scratchWriter) flush() error {
	if sw.err != nil || sw.n == 0 {
		return sw.err
	}
	_, sw.err = sw.w.Write(sw.buf[:sw.n])
	sw.n = 0
	return sw.err
}

// release hands the buffer back to the arena.
func (sw *scratchWriter) release() {
	sw.buf = nil
	sw.a.Rewind(sw.marker)
}
