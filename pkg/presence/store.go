package presence

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/a-essam23/go-place/pkg/grid"
)

// Entry is the last known cursor of one peer. Key is the peer's session id
// when it sent one and its display name otherwise.
type Entry struct {
	Key         string
	DisplayName string
	X           float64
	Y           float64
	Color       grid.Color
	LastSeenAt  time.Time
}

type ColorFunc func() grid.Color

// RandomColor returns a random opaque "#rrggbb" color.
func RandomColor() grid.Color {
	return grid.Color(fmt.Sprintf("#%06x", rand.IntN(0x1000000)))
}

// Store is the only owner of the presence map. Not safe for concurrent use.
type Store struct {
	entries  map[string]*Entry
	newColor ColorFunc
}

func NewStore(newColor ColorFunc) *Store {
	if newColor == nil {
		newColor = RandomColor
	}
	return &Store{
		entries:  make(map[string]*Entry),
		newColor: newColor,
	}
}

// Upsert records a cursor position. A key seen for the first time gets a
// fresh color which it keeps until the entry is removed.
func (s *Store) Upsert(key, displayName string, x, y float64, now time.Time) *Entry {
	e, ok := s.entries[key]
	if !ok {
		e = &Entry{Key: key, Color: s.newColor()}
		s.entries[key] = e
	}
	if displayName == "" {
		displayName = key
	}
	e.DisplayName = displayName
	e.X = x
	e.Y = y
	e.LastSeenAt = now
	return e
}

func (s *Store) Remove(key string) bool {
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// RemoveByName deletes every entry showing the given display name. Peers
// that never send a session id are keyed by name, so this is how their
// removal messages resolve.
func (s *Store) RemoveByName(name string) int {
	removed := 0
	for key, e := range s.entries {
		if key == name || e.DisplayName == name {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// SweepExpired deletes every entry not seen for longer than threshold and
// returns the removed keys.
func (s *Store) SweepExpired(now time.Time, threshold time.Duration) []string {
	var removed []string
	for key, e := range s.entries {
		if now.Sub(e.LastSeenAt) > threshold {
			delete(s.entries, key)
			removed = append(removed, key)
		}
	}
	return removed
}

func (s *Store) Get(key string) (Entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (s *Store) Len() int {
	return len(s.entries)
}

// Others returns copies of every entry except self, ordered by key.
func (s *Store) Others(self string) []Entry {
	out := make([]Entry, 0, len(s.entries))
	for key, e := range s.entries {
		if key == self {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
