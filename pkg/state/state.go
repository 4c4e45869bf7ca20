// Package state aggregates the stores owned by the engine loop.
package state

import (
	"time"

	"github.com/a-essam23/go-place/pkg/chat"
	"github.com/a-essam23/go-place/pkg/grid"
	"github.com/a-essam23/go-place/pkg/presence"
)

// State is everything the inbound handlers and local actions mutate. None
// of it is synchronized: it must only be touched from the engine loop.
type State struct {
	Grid       *grid.Store
	Presence   *presence.Store
	Chat       *chat.Log
	Highlights *Highlights
}

type Options struct {
	GridSize    int
	DedupWindow time.Duration
	ColorFunc   presence.ColorFunc
}

func New(opts Options) *State {
	return &State{
		Grid:       grid.NewStore(opts.GridSize),
		Presence:   presence.NewStore(opts.ColorFunc),
		Chat:       chat.NewLog(opts.DedupWindow),
		Highlights: NewHighlights(),
	}
}
