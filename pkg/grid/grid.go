package grid

import "strings"

// Color is a CSS-style color string as carried on the wire, e.g. "#ff0000".
type Color string

// White is the color of every cell that was never written.
const White Color = "#FFFFFF"

const DefaultSize = 256

type Cell struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Color Color `json:"color"`
}

// Equal compares colors case-insensitively, so "#fff000" matches "#FFF000".
func (c Color) Equal(other Color) bool {
	return strings.EqualFold(string(c), string(other))
}

// Store owns an N×N table of cells. It is not safe for concurrent use; all
// access goes through the engine loop, which is what makes a batch atomic
// with respect to readers.
type Store struct {
	size  int
	cells []Color

	// dirty tracks cells written since the last DrainDirty call.
	dirty     map[int]struct{}
	fullDirty bool
}

func NewStore(size int) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	s := &Store{size: size}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.cells = make([]Color, s.size*s.size)
	for i := range s.cells {
		s.cells[i] = White
	}
	s.dirty = make(map[int]struct{})
	s.fullDirty = true
}

func (s *Store) Size() int {
	return s.size
}

func (s *Store) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.size && y < s.size
}

func (s *Store) index(x, y int) int {
	return y*s.size + x
}

// Initialize replaces the whole table: every cell becomes white and the
// snapshot is laid over it. Out-of-range snapshot entries are skipped.
func (s *Store) Initialize(snapshot []Cell) {
	s.reset()
	for _, c := range snapshot {
		if !s.InBounds(c.X, c.Y) || c.Color == "" {
			continue
		}
		s.cells[s.index(c.X, c.Y)] = c.Color
	}
}

// ApplyUpdate overwrites a single cell. It reports false and leaves the
// store untouched when the cell is out of range.
func (s *Store) ApplyUpdate(c Cell) bool {
	if !s.InBounds(c.X, c.Y) || c.Color == "" {
		return false
	}
	i := s.index(c.X, c.Y)
	s.cells[i] = c.Color
	if !s.fullDirty {
		s.dirty[i] = struct{}{}
	}
	return true
}

// ApplyBatch applies each cell in order and returns how many were applied.
func (s *Store) ApplyBatch(cells []Cell) int {
	applied := 0
	for _, c := range cells {
		if s.ApplyUpdate(c) {
			applied++
		}
	}
	return applied
}

// Get never fails: coordinates outside the grid read as white.
func (s *Store) Get(x, y int) Cell {
	if !s.InBounds(x, y) {
		return Cell{X: x, Y: y, Color: White}
	}
	return Cell{X: x, Y: y, Color: s.cells[s.index(x, y)]}
}

// DrainDirty returns the cells written since the previous drain. When full
// is true the whole grid must be repainted and cells is nil.
func (s *Store) DrainDirty() (cells []Cell, full bool) {
	if s.fullDirty {
		s.fullDirty = false
		s.dirty = make(map[int]struct{})
		return nil, true
	}
	if len(s.dirty) == 0 {
		return nil, false
	}
	cells = make([]Cell, 0, len(s.dirty))
	for i := range s.dirty {
		cells = append(cells, Cell{X: i % s.size, Y: i / s.size, Color: s.cells[i]})
	}
	s.dirty = make(map[int]struct{})
	return cells, false
}
