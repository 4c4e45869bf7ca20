package edit

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/a-essam23/go-place/internal/engine"
	"github.com/a-essam23/go-place/pkg/grid"
	"github.com/a-essam23/go-place/pkg/state"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeWriter struct {
	mu    sync.Mutex
	calls []grid.Cell
	reply func(grid.Cell) (*grid.Cell, error)
}

func (f *fakeWriter) PlacePixel(_ context.Context, c grid.Cell) (*grid.Cell, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	return f.reply(c)
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixture struct {
	loop *engine.Loop
	st   *state.State
	w    *fakeWriter
	s    *Session
}

func newFixture(t *testing.T, highlight time.Duration, reply func(grid.Cell) (*grid.Cell, error)) *fixture {
	t.Helper()
	loop := engine.NewLoop(newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	st := state.New(state.Options{GridSize: 4})
	w := &fakeWriter{reply: reply}
	return &fixture{loop: loop, st: st, w: w, s: NewSession(ctx, newTestLogger(), loop, st, w, highlight)}
}

// place runs Place on the loop and waits for its result.
func (f *fixture) place(t *testing.T, x, y int, color grid.Color) (Result, bool) {
	t.Helper()
	results := make(chan Result, 1)
	var accepted bool
	f.loop.Do(context.Background(), func() {
		accepted = f.s.Place(x, y, color, func(r Result) { results <- r })
	})
	if !accepted {
		return Result{}, false
	}
	select {
	case r := <-results:
		return r, true
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the placement result")
		return Result{}, false
	}
}

func (f *fixture) read(fn func()) {
	f.loop.Do(context.Background(), fn)
}

func TestPlaceOutOfRangeIsIgnored(t *testing.T) {
	f := newFixture(t, time.Second, func(c grid.Cell) (*grid.Cell, error) { return &c, nil })

	for _, xy := range [][2]int{{-1, 0}, {0, -1}, {4, 0}, {0, 4}} {
		if _, ok := f.place(t, xy[0], xy[1], "#000"); ok {
			t.Errorf("Place(%d,%d) was accepted", xy[0], xy[1])
		}
	}
	if f.w.count() != 0 {
		t.Errorf("Writer called %d times for out-of-range cells", f.w.count())
	}
}

func TestPlaceAppliesServerCell(t *testing.T) {
	// the server answers with its own idea of the color
	f := newFixture(t, 30*time.Millisecond, func(c grid.Cell) (*grid.Cell, error) {
		return &grid.Cell{X: c.X, Y: c.Y, Color: "#00ff00"}, nil
	})

	res, ok := f.place(t, 1, 2, "#ff0000")
	if !ok || res.Err != nil || res.Cell == nil {
		t.Fatalf("Unexpected result %+v (accepted=%v)", res, ok)
	}

	var color grid.Color
	var lit bool
	f.read(func() {
		color = f.st.Grid.Get(1, 2).Color
		lit = f.st.Highlights.Has(1, 2)
	})
	if color != "#00ff00" {
		t.Errorf("Expected the server's color, got %s", color)
	}
	if !lit {
		t.Error("Expected the placed cell to be highlighted")
	}

	time.Sleep(80 * time.Millisecond)
	f.read(func() { lit = f.st.Highlights.Has(1, 2) })
	if lit {
		t.Error("Highlight did not expire")
	}
}

func TestPlaceNoop(t *testing.T) {
	f := newFixture(t, time.Second, func(grid.Cell) (*grid.Cell, error) { return nil, nil })

	res, ok := f.place(t, 0, 0, "#FFFFFF")
	if !ok || res.Err != nil || res.Cell != nil {
		t.Fatalf("Expected an empty result, got %+v", res)
	}
	f.read(func() {
		if f.st.Highlights.Len() != 0 {
			t.Error("No-op write should not highlight")
		}
	})
}

func TestPlaceFailure(t *testing.T) {
	boom := errors.New("503")
	f := newFixture(t, time.Second, func(grid.Cell) (*grid.Cell, error) { return nil, boom })

	res, ok := f.place(t, 3, 3, "#123")
	if !ok || !errors.Is(res.Err, boom) {
		t.Fatalf("Expected the write error, got %+v", res)
	}
	f.read(func() {
		if f.st.Grid.Get(3, 3).Color != grid.White {
			t.Error("Failed write changed the grid")
		}
	})
	if f.w.count() != 1 {
		t.Errorf("Expected exactly one attempt, got %d", f.w.count())
	}
}

func TestReplaceRefreshesHighlight(t *testing.T) {
	f := newFixture(t, 60*time.Millisecond, func(c grid.Cell) (*grid.Cell, error) { return &c, nil })

	f.place(t, 1, 1, "#111")
	time.Sleep(40 * time.Millisecond)
	f.place(t, 1, 1, "#222")
	time.Sleep(40 * time.Millisecond)

	// 80ms after the first placement, but only 40ms after the second
	var lit bool
	f.read(func() { lit = f.st.Highlights.Has(1, 1) })
	if !lit {
		t.Error("Refreshed highlight expired early")
	}
}
