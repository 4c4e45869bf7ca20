// Package edit turns a click into a pixel write and folds the server's
// answer back into the grid.
package edit

import (
	"context"
	"log/slog"
	"time"

	"github.com/a-essam23/go-place/internal/engine"
	"github.com/a-essam23/go-place/pkg/grid"
	"github.com/a-essam23/go-place/pkg/state"
)

const DefaultHighlightDuration = time.Second

type PixelWriter interface {
	PlacePixel(ctx context.Context, cell grid.Cell) (*grid.Cell, error)
}

// Result of one placement. Both fields nil means the server accepted the
// write but nothing changed.
type Result struct {
	Cell *grid.Cell
	Err  error
}

type Session struct {
	ctx       context.Context
	loop      *engine.Loop
	state     *state.State
	writer    PixelWriter
	highlight time.Duration
	logger    *slog.Logger
}

func NewSession(ctx context.Context, logger *slog.Logger, loop *engine.Loop, st *state.State, writer PixelWriter, highlight time.Duration) *Session {
	if highlight <= 0 {
		highlight = DefaultHighlightDuration
	}
	return &Session{
		ctx:       ctx,
		loop:      loop,
		state:     st,
		writer:    writer,
		highlight: highlight,
		logger:    logger.With(slog.String("component", "edit_session")),
	}
}

// Place sends the write in the background and calls done on the loop once
// the server answers. It returns false, without calling done, when (x, y)
// is off the grid. There is no retry: a failed write is lost.
func (s *Session) Place(x, y int, color grid.Color, done func(Result)) bool {
	if !s.state.Grid.InBounds(x, y) || color == "" {
		return false
	}
	cell := grid.Cell{X: x, Y: y, Color: color}
	go func() {
		got, err := s.writer.PlacePixel(s.ctx, cell)
		s.loop.Post(func() { s.complete(cell, got, err, done) })
	}()
	return true
}

func (s *Session) complete(sent grid.Cell, got *grid.Cell, err error, done func(Result)) {
	res := Result{Cell: got, Err: err}
	switch {
	case err != nil:
		s.logger.Warn("Pixel write failed", slog.Int("x", sent.X), slog.Int("y", sent.Y), slog.Any("error", err))
	case got == nil:
		s.logger.Debug("Pixel write changed nothing", slog.Int("x", sent.X), slog.Int("y", sent.Y))
	default:
		// the server's cell wins over what we asked for
		if s.state.Grid.ApplyUpdate(*got) {
			s.markPlaced(*got)
		}
	}
	if done != nil {
		done(res)
	}
}

func (s *Session) markPlaced(c grid.Cell) {
	var timer *time.Timer
	timer = s.loop.AfterFunc(s.highlight, func() {
		s.state.Highlights.Expire(c.X, c.Y, timer)
	})
	s.state.Highlights.Set(c, timer)
}
