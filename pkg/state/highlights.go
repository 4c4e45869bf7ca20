package state

import (
	"sort"
	"time"

	"github.com/a-essam23/go-place/pkg/grid"
)

type cellKey struct {
	X, Y int
}

type highlight struct {
	cell  grid.Cell
	timer *time.Timer
}

// Highlights is the transient set of recently placed cells. Each entry owns
// the timer that will expire it; setting an entry again stops the previous
// timer so a re-placed cell keeps its highlight for the full duration.
type Highlights struct {
	entries map[cellKey]*highlight
}

func NewHighlights() *Highlights {
	return &Highlights{entries: make(map[cellKey]*highlight)}
}

// Set adds or refreshes the highlight for cell. timer may be nil.
func (h *Highlights) Set(cell grid.Cell, timer *time.Timer) {
	key := cellKey{cell.X, cell.Y}
	if existing, ok := h.entries[key]; ok && existing.timer != nil && existing.timer != timer {
		existing.timer.Stop()
	}
	h.entries[key] = &highlight{cell: cell, timer: timer}
}

// Expire removes the highlight at (x, y) only if it is still owned by timer.
// A timer that fired after its entry was refreshed is therefore harmless.
func (h *Highlights) Expire(x, y int, timer *time.Timer) bool {
	key := cellKey{x, y}
	existing, ok := h.entries[key]
	if !ok || existing.timer != timer {
		return false
	}
	delete(h.entries, key)
	return true
}

func (h *Highlights) Has(x, y int) bool {
	_, ok := h.entries[cellKey{x, y}]
	return ok
}

func (h *Highlights) Len() int {
	return len(h.entries)
}

// Cells returns the highlighted cells ordered by row then column.
func (h *Highlights) Cells() []grid.Cell {
	out := make([]grid.Cell, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e.cell)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Clear stops every timer and empties the set.
func (h *Highlights) Clear() {
	for key, e := range h.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(h.entries, key)
	}
}
