package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a-essam23/go-place/internal/edit"
	"github.com/a-essam23/go-place/internal/session"
	"github.com/a-essam23/go-place/pkg/chat"
	"github.com/a-essam23/go-place/pkg/geometry"
	"github.com/a-essam23/go-place/pkg/grid"
	"github.com/a-essam23/go-place/pkg/identity"
	"github.com/a-essam23/go-place/pkg/presence"
)

func (a *App) PointerDown(px, py float64) {
	a.loop.Post(func() { a.viewport.PointerDown(px, py) })
}

func (a *App) PointerMove(px, py float64) {
	a.loop.Post(func() { a.viewport.PointerMove(px, py) })
}

// PointerUp places a pixel in the selected color when the gesture was a
// click on the grid.
func (a *App) PointerUp(px, py float64) {
	a.loop.Post(func() {
		gx, gy, ok := a.viewport.PointerUp(px, py)
		if !ok {
			return
		}
		a.edit.Place(gx, gy, a.color, a.onPlaced)
	})
}

func (a *App) onPlaced(res edit.Result) {
	if a.hooks.OnPlaced != nil {
		a.hooks.OnPlaced(res)
	}
}

func (a *App) Wheel(px, py, deltaY float64) {
	a.loop.Post(func() { a.viewport.Wheel(px, py, deltaY) })
}

func (a *App) SetModifier(held bool) {
	a.loop.Post(func() { a.viewport.SetModifier(held) })
}

func (a *App) SetColor(c grid.Color) {
	a.loop.Post(func() { a.color = c })
}

func (a *App) SendChat(content string) {
	a.loop.Post(func() { a.manager.SendChat(content) })
}

// Rename validates and persists a new display name. It applies to every
// publish after it returns; the session id and presence key stay the same.
func (a *App) Rename(name string) error {
	name, err := identity.NormalizeName(name, a.config.Identity.MaxNameLength)
	if err != nil {
		return err
	}
	if a.identities != nil {
		if err := a.identities.SaveName(name); err != nil {
			return err
		}
	}
	id := a.Identity()
	id.DisplayName = name
	a.identity.Store(&id)
	a.logger.Info("Display name changed", slog.String("name", name))
	return nil
}

// SetVisible reports host visibility. Going hidden tells peers to drop our
// cursor; coming back retries the connection if it was given up.
func (a *App) SetVisible(visible bool) {
	a.loop.Post(func() {
		if !visible {
			a.manager.AnnounceDeparture()
			return
		}
		a.manager.Connect()
	})
}

// Reconnect starts a fresh connection attempt with a full retry budget.
func (a *App) Reconnect() {
	a.loop.Post(a.manager.Connect)
}

// Frame is a consistent copy of what a renderer needs for one paint.
type Frame struct {
	Status     session.Status
	Viewport   geometry.Viewport
	Visible    geometry.Range
	Cursors    []presence.Entry
	Chat       []chat.Message
	Highlights []grid.Cell
	// Dirty lists cells changed since the previous Frame; FullRedraw means
	// every cell must be repainted instead.
	Dirty      []grid.Cell
	FullRedraw bool
}

// Frame snapshots the engine for a surface of width w and height h.
func (a *App) Frame(ctx context.Context, w, h float64) (Frame, error) {
	var f Frame
	err := a.loop.Do(ctx, func() {
		v := a.viewport.Viewport()
		f = Frame{
			Status:     a.manager.Status(),
			Viewport:   v,
			Visible:    a.viewport.Transform().VisibleRange(v, w, h),
			Cursors:    a.state.Presence.Others(a.selfKey()),
			Chat:       a.state.Chat.Messages(),
			Highlights: a.state.Highlights.Cells(),
		}
		f.Dirty, f.FullRedraw = a.state.Grid.DrainDirty()
	})
	if err != nil {
		return Frame{}, fmt.Errorf("frame: %w", err)
	}
	return f, nil
}

// Cell reads one cell; coordinates off the grid read as white.
func (a *App) Cell(ctx context.Context, x, y int) (grid.Cell, error) {
	var c grid.Cell
	err := a.loop.Do(ctx, func() { c = a.state.Grid.Get(x, y) })
	return c, err
}
