package diag

import (
	"fmt"
	"strings"

	"github.com/aledsdavies/bloom/core/arena"
)

const bytesPerRow = 16

// DumpArena writes the arena region as hex rows. Bytes below the offset are
// live, bytes in [offset, highWater) were used and reclaimed, the rest are
// free. Rows stop one row past the high-water mark.
func (r *Renderer) DumpArena(a *arena.Arena, highWater int) {
	offset := a.Offset()
	highWater = min(max(highWater, offset), a.Len())
	end := min(a.Len(), (highWater+bytesPerRow-1)/bytesPerRow*bytesPerRow+bytesPerRow)
	data := a.Bytes()

	fmt.Fprintf(r.w, "arena %s: %d bytes, %d live, %d reclaimed, %d free\n",
		a.ID(), a.Len(), offset, highWater-offset, a.Len()-offset)

	var row strings.Builder
	for start := 0; start < end; start += bytesPerRow {
		row.Reset()
		fmt.Fprintf(&row, "%08x ", start)
		for i := start; i < min(start+bytesPerRow, end); i++ {
			cell := fmt.Sprintf(" %02x", data[i])
			switch {
			case i < offset:
				row.WriteString(r.live.Render(cell))
			case i < highWater:
				row.WriteString(r.reclaimed.Render(cell))
			default:
				row.WriteString(r.free.Render(cell))
			}
		}
		fmt.Fprintln(r.w, row.String())
	}
	if end < a.Len() {
		fmt.Fprintf(r.w, "%s\n", r.muted.Render(fmt.Sprintf("... %d free bytes not shown", a.Len()-end)))
	}
}
