package state_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-essam23/go-place/pkg/grid"
	"github.com/a-essam23/go-place/pkg/state"
)

func TestHighlights_SetAndHas(t *testing.T) {
	h := state.NewHighlights()
	h.Set(grid.Cell{X: 1, Y: 2, Color: "#000"}, nil)

	if !h.Has(1, 2) {
		t.Fatal("Expected highlight at (1,2)")
	}
	if h.Has(2, 1) {
		t.Error("Unexpected highlight at (2,1)")
	}
}

func TestHighlights_Clear(t *testing.T) {
	h := state.NewHighlights()
	h.Set(grid.Cell{X: 1, Y: 1}, nil)
	h.Set(grid.Cell{X: 2, Y: 1}, nil)
	h.Clear()
	h.Clear()

	if h.Len() != 0 {
		t.Errorf("Expected empty set, got %d", h.Len())
	}
}

func TestHighlights_ClearStopsTimer(t *testing.T) {
	h := state.NewHighlights()
	var fired atomic.Bool

	timer := time.AfterFunc(20*time.Millisecond, func() { fired.Store(true) })
	h.Set(grid.Cell{X: 0, Y: 0}, timer)
	h.Clear()

	time.Sleep(30 * time.Millisecond)
	if fired.Load() {
		t.Error("Clear did not stop the timer, as the AfterFunc was executed")
	}
}

func TestHighlights_SetStopsPreviousTimer(t *testing.T) {
	h := state.NewHighlights()
	var fired atomic.Bool

	timer1 := time.AfterFunc(20*time.Millisecond, func() { fired.Store(true) })
	h.Set(grid.Cell{X: 3, Y: 3}, timer1)
	h.Set(grid.Cell{X: 3, Y: 3}, nil)

	time.Sleep(30 * time.Millisecond)
	if fired.Load() {
		t.Error("Set did not stop the previous timer upon overwrite")
	}
}

func TestHighlights_ExpireIgnoresStaleTimer(t *testing.T) {
	h := state.NewHighlights()
	old := time.NewTimer(time.Hour)
	fresh := time.NewTimer(time.Hour)
	defer fresh.Stop()

	h.Set(grid.Cell{X: 4, Y: 4}, old)
	h.Set(grid.Cell{X: 4, Y: 4}, fresh)

	if h.Expire(4, 4, old) {
		t.Error("Stale timer expired a refreshed highlight")
	}
	if !h.Expire(4, 4, fresh) {
		t.Error("Owning timer failed to expire its highlight")
	}
	if h.Has(4, 4) {
		t.Error("Highlight survived expiry")
	}
}

func TestHighlights_CellsOrdered(t *testing.T) {
	h := state.NewHighlights()
	h.Set(grid.Cell{X: 5, Y: 1}, nil)
	h.Set(grid.Cell{X: 2, Y: 1}, nil)
	h.Set(grid.Cell{X: 0, Y: 0}, nil)

	cells := h.Cells()
	want := [][2]int{{0, 0}, {2, 1}, {5, 1}}
	for i, c := range cells {
		if c.X != want[i][0] || c.Y != want[i][1] {
			t.Fatalf("Unexpected order: %+v", cells)
		}
	}
}

func TestNewState(t *testing.T) {
	st := state.New(state.Options{GridSize: 4})
	if st.Grid.Size() != 4 {
		t.Errorf("Expected grid of 4, got %d", st.Grid.Size())
	}
	if st.Presence == nil || st.Chat == nil || st.Highlights == nil {
		t.Error("Expected every store to be constructed")
	}
}
